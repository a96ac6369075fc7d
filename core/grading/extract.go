package grading

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/trezcool/darasa/core/classroom"
)

// extractText pulls answer text out of an attachment. Unreadable or non-PDF
// content yields a placeholder note so the submission still goes to the model
// with whatever else it has.
func extractText(f classroom.File) string {
	if text, err := pdfText(f.Content); err == nil && strings.TrimSpace(text) != "" {
		return text
	}
	return fmt.Sprintf("[no readable text could be extracted from attachment %q]", f.Name)
}

func pdfText(data []byte) (text string, err error) {
	// the pdf package panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parsing pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if _, err = io.Copy(&b, plain); err != nil {
		return "", err
	}
	return b.String(), nil
}
