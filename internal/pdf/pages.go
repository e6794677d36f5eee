// Package pdfutil reads label PDFs with ledongthuc/pdf.
package pdfutil

import (
	"bytes"
	"errors"
	"fmt"

	pdf "github.com/ledongthuc/pdf"
)

// ErrNoPages is returned for documents that parse but contain no page.
var ErrNoPages = errors.New("pdf has no pages")

// PageCount parses data and returns the number of pages.
func PageCount(data []byte) (n int, err error) {
	// The parser panics on some malformed inputs instead of returning an error.
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("parse pdf: %v", r)
		}
	}()
	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("new pdf reader: %w", err)
	}
	n = doc.NumPage()
	if n == 0 {
		return 0, ErrNoPages
	}
	return n, nil
}
