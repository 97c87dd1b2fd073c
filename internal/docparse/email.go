package docparse

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jhillyerd/enmime"
)

// Email holds the normalized fields of a parsed MIME message.
type Email struct {
	Subject  string
	From     string
	SentDate string
	Body     string
}

// ParseEmail parses a raw RFC-822/MIME message. Multipart bodies are
// walked recursively: text/plain parts are concatenated verbatim,
// text/html parts have their tags stripped, nested multiparts recurse.
func ParseEmail(data []byte) (*Email, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty email", ErrParse)
	}

	env, err := enmime.ReadEnvelope(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing MIME message: %v", ErrParse, err)
	}

	email := &Email{
		Subject:  env.GetHeader("Subject"),
		From:     env.GetHeader("From"),
		SentDate: env.GetHeader("Date"),
	}

	if env.Root != nil {
		email.Body = strings.TrimSpace(extractPartText(env.Root))
	}
	// Fall back to enmime's own text rendering for messages whose part
	// tree yields nothing (e.g. encoded single-part bodies).
	if email.Body == "" {
		email.Body = strings.TrimSpace(env.Text)
	}

	return email, nil
}

// ParseEmailBase64 decodes base64 content then parses the MIME message.
func ParseEmailBase64(content string) (*Email, error) {
	data, err := DecodeBase64(content)
	if err != nil {
		return nil, err
	}
	return ParseEmail(data)
}

// extractPartText walks a MIME part tree collecting readable text.
func extractPartText(part *enmime.Part) string {
	if part == nil {
		return ""
	}

	ct := strings.ToLower(part.ContentType)
	switch {
	case strings.HasPrefix(ct, "multipart/"):
		var sb strings.Builder
		for child := part.FirstChild; child != nil; child = child.NextSibling {
			sb.WriteString(extractPartText(child))
		}
		return sb.String()
	case ct == "text/plain" || ct == "":
		return string(part.Content)
	case ct == "text/html":
		return StripHTML(string(part.Content))
	default:
		// Attachments and other part types carry no report text.
		return ""
	}
}
