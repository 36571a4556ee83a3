package config

import (
	"fmt"
	"os"
	"regexp"
	"runtime"
	"strconv"
	"time"

	"ocrpdf/internal/logger"
)

// Engine names accepted by OCR_ENGINE and the --engine flag.
const (
	EngineTesseract  = "tesseract"
	EngineVision     = "vision"
	EngineDocumentAI = "documentai"
)

var languageCodeRe = regexp.MustCompile(`^[a-z]{3}(_[a-z]+)?$`)

type Config struct {
	// External tool paths. Bare names are resolved through PATH.
	GhostscriptPath string
	TesseractPath   string
	UnpaperPath     string
	PdfInfoPath     string
	PdfImagesPath   string
	JhovePath       string
	JhoveConfigPath string

	// ICC profile embedded as the PDF/A output intent
	SRGBProfilePath string

	// OCR defaults
	Engine      string
	Languages   []string
	OCRTimeout  time.Duration
	ToolTimeout time.Duration

	// Worker pool size for page-level stages
	Jobs int

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		GhostscriptPath: getEnv("OCRPDF_GS", "gs"),
		TesseractPath:   getEnv("OCRPDF_TESSERACT", "tesseract"),
		UnpaperPath:     getEnv("OCRPDF_UNPAPER", "unpaper"),
		PdfInfoPath:     getEnv("OCRPDF_PDFINFO", "pdfinfo"),
		PdfImagesPath:   getEnv("OCRPDF_PDFIMAGES", "pdfimages"),
		JhovePath:       getEnv("OCRPDF_JHOVE", "jhove"),
		JhoveConfigPath: getEnv("OCRPDF_JHOVE_CONFIG", ""),
		SRGBProfilePath: getEnv("OCRPDF_SRGB_ICC", "srgb.icc"),
		Engine:          getEnv("OCR_ENGINE", EngineTesseract),
		Languages:       []string{getEnv("OCR_LANGUAGE", "eng")},
		OCRTimeout:      getEnvDuration("OCR_TIMEOUT", 180*time.Second),
		ToolTimeout:     getEnvDuration("OCRPDF_TOOL_TIMEOUT", 300*time.Second),
		Jobs:            getEnvInt("OCRPDF_JOBS", runtime.NumCPU()),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:   getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:       getEnv("LOG_OUTPUT", "stdout"),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate checks option combinations that cannot work. It runs at load time
// and again after CLI flags have been merged in.
func (c *Config) Validate() error {
	switch c.Engine {
	case EngineTesseract, EngineVision, EngineDocumentAI:
	default:
		return fmt.Errorf("unsupported OCR engine %q (want %s, %s or %s)",
			c.Engine, EngineTesseract, EngineVision, EngineDocumentAI)
	}
	if len(c.Languages) == 0 {
		return fmt.Errorf("at least one OCR language is required")
	}
	for _, lang := range c.Languages {
		if !languageCodeRe.MatchString(lang) {
			return fmt.Errorf("invalid language code %q (want ISO 639-2, e.g. \"eng\")", lang)
		}
	}
	if c.Jobs < 1 {
		return fmt.Errorf("worker count must be at least 1, got %d", c.Jobs)
	}
	if c.OCRTimeout <= 0 {
		return fmt.Errorf("OCR timeout must be positive, got %v", c.OCRTimeout)
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}
