// Package pdfconv normalizes uploaded question-paper images into single-page
// PDFs so the exam UI only ever has to render one artifact format.
package pdfconv

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// IsImage reports whether the file extension names a supported image format.
func IsImage(ext string) bool {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "jpg", "jpeg", "png":
		return true
	}
	return false
}

// Convert wraps a JPEG or PNG image in a PDF page sized to the image
// (one pixel per point). PDFs pass through a separate path; callers are
// expected to have checked IsImage first.
func Convert(data []byte) ([]byte, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("image has no pixels")
	}

	size := gofpdf.SizeType{Wd: float64(cfg.Width), Ht: float64(cfg.Height)}
	pdf := gofpdf.NewCustom(&gofpdf.InitType{UnitStr: "pt", Size: size})
	opts := gofpdf.ImageOptions{ImageType: strings.ToUpper(format)}
	pdf.RegisterImageOptionsReader("page", opts, bytes.NewReader(data))
	pdf.AddPageFormat("P", size)
	pdf.ImageOptions("page", 0, 0, size.Wd, size.Ht, false, opts, 0, "")
	if pdf.Err() {
		return nil, fmt.Errorf("build pdf: %w", pdf.Error())
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
