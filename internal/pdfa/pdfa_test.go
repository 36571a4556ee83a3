package pdfa

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocrpdf/internal/runner"
)

// fakePdfwrite captures the gs invocation, snapshots the definition prolog
// (it is deleted after assembly) and writes a stub output file.
type fakePdfwrite struct {
	args       []string
	definition string
}

func (f *fakePdfwrite) Run(_ context.Context, spec runner.Command) ([]byte, error) {
	f.args = spec.Args
	for _, arg := range spec.Args {
		if strings.HasSuffix(arg, "pdfa_def.ps") {
			data, err := os.ReadFile(arg)
			if err != nil {
				return nil, err
			}
			f.definition = string(data)
		}
		if out, ok := strings.CutPrefix(arg, "-sOutputFile="); ok {
			if err := os.WriteFile(out, []byte("%PDF-1.7 stub"), 0644); err != nil {
				return nil, err
			}
		}
	}
	return nil, nil
}

func testProfile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "srgb.icc")
	require.NoError(t, os.WriteFile(path, []byte("icc"), 0644))
	return path
}

func testPages(t *testing.T, n int) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, n)
	for i := range paths {
		paths[i] = filepath.Join(dir, "page.pdf")
	}
	return paths
}

func TestAssemble(t *testing.T) {
	fake := &fakePdfwrite{}
	icc := testProfile(t)
	fin := New(Config{GhostscriptPath: "gs", SRGBProfilePath: icc}, fake)
	output := filepath.Join(t.TempDir(), "out.pdf")

	err := fin.Assemble(context.Background(), testPages(t, 2), output, Metadata{
		Title:    "Annual (Report)",
		Language: "en-US",
		Producer: "ocrpdf 1.0.0",
	})
	require.NoError(t, err)

	args := strings.Join(fake.args, " ")
	assert.Contains(t, args, "-sDEVICE=pdfwrite")
	assert.Contains(t, args, "-dPDFA=2")
	assert.Contains(t, args, "-sColorConversionStrategy=/RGB")
	assert.Contains(t, args, "-sProcessColorModel=DeviceRGB")
	assert.Contains(t, args, "-sPDFACompatibilityPolicy=2")
	assert.Contains(t, args, "-sOutputICCProfile="+icc)

	// Page files come last, after the definition prolog.
	assert.True(t, strings.HasSuffix(fake.args[len(fake.args)-1], "page.pdf"))

	// The prolog carries the metadata, the catalog language and the output
	// intent, with PostScript delimiters escaped.
	assert.Contains(t, fake.definition, `/Title (Annual \(Report\))`)
	assert.Contains(t, fake.definition, "/Producer (ocrpdf 1.0.0)")
	assert.Contains(t, fake.definition, "<</Lang (en-US)>>")
	assert.Contains(t, fake.definition, "/S /GTS_PDFA1")
	assert.Contains(t, fake.definition, "/OutputConditionIdentifier (sRGB)")

	assert.FileExists(t, output)
}

func TestAssembleNoPages(t *testing.T) {
	fin := New(Config{GhostscriptPath: "gs", SRGBProfilePath: testProfile(t)}, &fakePdfwrite{})

	err := fin.Assemble(context.Background(), nil, "out.pdf", Metadata{})
	assert.ErrorIs(t, err, ErrNoPages)
}

func TestAssembleMissingProfile(t *testing.T) {
	fin := New(Config{GhostscriptPath: "gs", SRGBProfilePath: "/nonexistent/srgb.icc"}, &fakePdfwrite{})

	err := fin.Assemble(context.Background(), testPages(t, 1), "out.pdf", Metadata{})
	assert.ErrorIs(t, err, ErrMissingProfile)
}

func TestAssembleEmptyOutput(t *testing.T) {
	// The runner reports success but writes nothing.
	fin := New(Config{GhostscriptPath: "gs", SRGBProfilePath: testProfile(t)}, &noopRunner{})

	err := fin.Assemble(context.Background(), testPages(t, 1), filepath.Join(t.TempDir(), "out.pdf"), Metadata{})
	assert.ErrorIs(t, err, ErrEmptyOutput)
}

type noopRunner struct{}

func (noopRunner) Run(_ context.Context, _ runner.Command) ([]byte, error) {
	return nil, nil
}
