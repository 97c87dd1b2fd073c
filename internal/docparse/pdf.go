package docparse

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

// ParsePDF stream-extracts the text of every page into a single string.
// Page boundaries are joined with newlines; no structural metadata is kept.
func ParsePDF(data []byte) (text string, err error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty PDF", ErrParse)
	}

	// The pdf library panics on some malformed files; convert to ErrParse.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: malformed PDF: %v", ErrParse, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: reading PDF: %v", ErrParse, err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: extracting PDF text: %v", ErrParse, err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("%w: reading PDF text: %v", ErrParse, err)
	}

	return buf.String(), nil
}

// ParsePDFBase64 decodes base64 content and extracts the PDF text.
func ParsePDFBase64(content string) (string, error) {
	data, err := DecodeBase64(content)
	if err != nil {
		return "", err
	}
	return ParsePDF(data)
}
