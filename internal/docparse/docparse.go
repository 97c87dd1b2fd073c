// Package docparse converts raw adverse event report bytes (PDFs, generic
// documents, MIME emails) into plain text for the extraction pipeline.
//
// All functions are pure transforms over the input bytes. Undecodable input
// fails with ErrParse; nothing in this package calls out to the network.
package docparse

import (
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ErrParse indicates input bytes that are not decodable as the claimed
// format, including invalid base64.
var ErrParse = errors.New("unparseable input")

var (
	htmlTagRe    = regexp.MustCompile(`<[^>]*>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// StripHTML removes all tags from an HTML fragment and collapses runs of
// whitespace to single spaces. Idempotent on plain text.
func StripHTML(html string) string {
	if html == "" {
		return ""
	}
	text := htmlTagRe.ReplaceAllString(html, " ")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// DecodeBase64 decodes standard base64 content, tolerating surrounding
// whitespace. Fails with ErrParse on malformed input.
func DecodeBase64(content string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(content))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 content: %v", ErrParse, err)
	}
	return data, nil
}

// ParseDocument extracts plain text from a document of unknown type using
// content sniffing. Supports PDF, plain text, HTML, DOCX, and RFC-822
// email. Unknown formats fail with ErrParse.
func ParseDocument(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty document", ErrParse)
	}

	mtype := mimetype.Detect(data)
	switch {
	case mtype.Is("application/pdf"):
		return ParsePDF(data)
	case mtype.Is("text/html"):
		return StripHTML(string(data)), nil
	case strings.HasPrefix(mtype.String(), "text/"):
		return strings.TrimSpace(string(data)), nil
	case mtype.Is("application/vnd.openxmlformats-officedocument.wordprocessingml.document"):
		return parseDocx(data)
	case mtype.Is("message/rfc822"):
		email, err := ParseEmail(data)
		if err != nil {
			return "", err
		}
		return email.Body, nil
	default:
		return "", fmt.Errorf("%w: unsupported document type %s", ErrParse, mtype.String())
	}
}

// ParseDocumentBase64 decodes base64 content then sniffs and extracts it.
func ParseDocumentBase64(content string) (string, error) {
	data, err := DecodeBase64(content)
	if err != nil {
		return "", err
	}
	return ParseDocument(data)
}

// DetectType returns the sniffed MIME type of the given bytes.
func DetectType(data []byte) string {
	return mimetype.Detect(data).String()
}
