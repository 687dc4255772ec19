package pdfconv

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func TestIsImage(t *testing.T) {
	for ext, want := range map[string]bool{
		".jpg": true, ".JPEG": true, "png": true,
		".pdf": false, ".zip": false, "": false,
	} {
		if got := IsImage(ext); got != want {
			t.Errorf("IsImage(%q) = %v, want %v", ext, got, want)
		}
	}
}

func TestConvertPNG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 200, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}

	out, err := Convert(buf.Bytes())
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Fatalf("output does not look like a PDF (starts with %q)", out[:min(8, len(out))])
	}
}

func TestConvertRejectsGarbage(t *testing.T) {
	if _, err := Convert([]byte("not an image")); err == nil {
		t.Fatal("expected error for non-image input")
	}
}
