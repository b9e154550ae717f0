package compression

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
)

// Ghostscript rewrites whole documents with the gs pdfwrite device.
type Ghostscript struct {
	path   string
	logger *slog.Logger
}

// NewGhostscript returns nil when no binary is configured.
func NewGhostscript(path string, logger *slog.Logger) *Ghostscript {
	if path == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ghostscript{path: path, logger: logger}
}

// IsAvailable checks if Ghostscript is available
func (g *Ghostscript) IsAvailable() bool {
	return g != nil && g.path != ""
}

// Path returns the path to the Ghostscript executable
func (g *Ghostscript) Path() string {
	if g == nil {
		return ""
	}
	return g.path
}

// Args builds the pdfwrite command line for the /screen preset at the given image resolution.
func (g *Ghostscript) Args(inputPath, outputPath string, dpi int) []string {
	return []string{
		"-sDEVICE=pdfwrite",
		"-dPDFSETTINGS=/screen",
		"-dCompatibilityLevel=1.4",
		"-dNOPAUSE",
		"-dQUIET",
		"-dBATCH",
		"-dSAFER",
		"-dAutoRotatePages=/None",
		"-dColorImageDownsampleType=/Bicubic",
		fmt.Sprintf("-dColorImageResolution=%d", dpi),
		"-dGrayImageDownsampleType=/Bicubic",
		fmt.Sprintf("-dGrayImageResolution=%d", dpi),
		"-dMonoImageDownsampleType=/Bicubic",
		fmt.Sprintf("-dMonoImageResolution=%d", dpi),
		"-dSubsetFonts=true",
		"-dCompressFonts=true",
		"-dCompressStreams=true",
		"-dDetectDuplicateImages=true",
		"-dDownsampleColorImages=true",
		"-dDownsampleGrayImages=true",
		"-dDownsampleMonoImages=true",
		"-sOutputFile=" + outputPath,
		inputPath,
	}
}

// Rewrite runs gs on inputPath and writes outputPath.
func (g *Ghostscript) Rewrite(ctx context.Context, inputPath, outputPath string, dpi int) error {
	if !g.IsAvailable() {
		return fmt.Errorf("ghostscript not configured")
	}

	cmd := exec.CommandContext(ctx, g.path, g.Args(inputPath, outputPath, dpi)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ghostscript failed: %v, output: %s", err, string(output))
	}

	// Check if output file was created
	if _, err := os.Stat(outputPath); os.IsNotExist(err) {
		return fmt.Errorf("ghostscript did not create output file")
	}

	g.logger.Debug("Ghostscript rewrite finished", "input", inputPath, "output", outputPath, "dpi", dpi)
	return nil
}
