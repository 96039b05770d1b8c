package pdfextract

import (
	"bytes"
	"io"

	"github.com/ledongthuc/pdf"
)

// Result is the plain text and raw metadata pulled out of a PDF. Malformed
// files fail here, upstream of the chunker.
type Result struct {
	Text  string
	Pages int
	Size  int64
}

// Extract reads the entire content of r and extracts plain text plus page
// count. A PDF with no extractable text yields an empty Text and no error.
func Extract(r io.Reader) (Result, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return Result{}, err
	}
	if len(b) == 0 {
		return Result{}, nil
	}
	readerAt := bytes.NewReader(b)
	pdfReader, err := pdf.NewReader(readerAt, int64(len(b)))
	if err != nil {
		return Result{}, err
	}
	plainReader, err := pdfReader.GetPlainText()
	if err != nil {
		return Result{}, err
	}
	out, err := io.ReadAll(plainReader)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Text:  string(out),
		Pages: pdfReader.NumPage(),
		Size:  int64(len(b)),
	}, nil
}
