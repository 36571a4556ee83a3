package ocr_test

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"ocrpdf/internal/ocr"
	"ocrpdf/internal/runner"
	"ocrpdf/pkg/models"
)

// Example demonstrates recognizing one page raster with the default
// Tesseract engine.
func Example() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	engine := ocr.NewTesseractEngine("tesseract", runner.New())

	raster := &models.RasterImage{
		Path:     "page-000001.png",
		Format:   "png",
		WidthPx:  2550,
		HeightPx: 3300,
		DPI:      300,
		Mode:     models.ColorModeGray,
	}

	result, err := engine.Recognize(ctx, raster, ocr.Options{
		Languages: []string{"eng"},
	})
	if err != nil {
		log.Fatalf("Failed to recognize page: %v", err)
	}

	fmt.Printf("Recognized %d words (%.1f%% confidence)\n",
		len(result.Words), result.Confidence*100)
	for _, word := range result.Words[:3] {
		fmt.Printf("  %q at (%.0f,%.0f)-(%.0f,%.0f)\n",
			word.Text, word.X0, word.Y0, word.X1, word.Y1)
	}
}

// ExampleTesseractEngine_CheckLanguages demonstrates validating language
// hints before starting a run.
func ExampleTesseractEngine_CheckLanguages() {
	ctx := context.Background()
	engine := ocr.NewTesseractEngine("tesseract", runner.New())

	err := engine.CheckLanguages(ctx, []string{"eng", "deu"})
	if err != nil {
		// Handle missing trained data
		log.Fatalf("Language data missing: %v", err)
	}

	fmt.Println("All requested languages are installed")
}

// ExampleNewVisionEngine demonstrates the Google Cloud Vision backend.
// Credentials are read from the environment:
// GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS.
func ExampleNewVisionEngine() {
	ctx := context.Background()

	engine, err := ocr.NewVisionEngine(ctx)
	if err != nil {
		if errors.Is(err, ocr.ErrMissingCredentials) {
			log.Fatalf("Please set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS")
		}
		log.Fatalf("Failed to create Vision engine: %v", err)
	}
	defer engine.Close()

	raster := &models.RasterImage{Path: "page-000001.png", WidthPx: 2550, HeightPx: 3300, DPI: 300}
	result, err := engine.Recognize(ctx, raster, ocr.Options{
		Languages: []string{"eng"},
		Timeout:   60 * time.Second,
	})
	if err != nil {
		log.Fatalf("Failed to recognize page: %v", err)
	}

	fmt.Printf("Text: %s\n", result.PlainText)
}
