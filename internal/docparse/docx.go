package docparse

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
)

var docxParaRe = regexp.MustCompile(`</w:p>`)

// parseDocx extracts the paragraph text from a DOCX archive's main
// document part.
func parseDocx(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: reading DOCX archive: %v", ErrParse, err)
	}

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("%w: opening DOCX document part: %v", ErrParse, err)
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("%w: reading DOCX document part: %v", ErrParse, err)
		}

		// Paragraph closes become line breaks, remaining markup is stripped.
		text := docxParaRe.ReplaceAllString(string(raw), "\n")
		text = htmlTagRe.ReplaceAllString(text, "")
		text = html.UnescapeString(text)

		lines := strings.Split(text, "\n")
		for i, line := range lines {
			lines[i] = strings.TrimSpace(whitespaceRe.ReplaceAllString(line, " "))
		}
		return strings.TrimSpace(strings.Join(lines, "\n")), nil
	}

	return "", fmt.Errorf("%w: DOCX archive has no word/document.xml", ErrParse)
}
