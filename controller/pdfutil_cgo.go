//go:build cgo
// +build cgo

package controller

import (
	"bytes"
	"image/png"

	"github.com/gen2brain/go-fitz"
)

// renderPDFFirstPagePNG rasterizes the first page of the PDF at the given
// DPI and returns it PNG-encoded.
func renderPDFFirstPagePNG(pdfPath string, dpi int) ([]byte, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	img, err := doc.ImageDPI(0, float64(dpi))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
