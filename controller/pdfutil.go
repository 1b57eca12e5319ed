//go:build !cgo
// +build !cgo

package controller

import (
	"fmt"
)

func renderPDFFirstPagePNG(pdfPath string, dpi int) ([]byte, error) {
	return nil, fmt.Errorf("PDF rendering not supported (built without cgo/fitz)")
}
