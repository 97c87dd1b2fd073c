package docparse

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple tags", "<p>Patient developed <b>severe rash</b></p>", "Patient developed severe rash"},
		{"nested markup", "<div><ul><li>Nausea</li><li>Dizziness</li></ul></div>", "Nausea Dizziness"},
		{"whitespace collapse", "Drug:   Aspirin\n\n\tDose: 100mg", "Drug: Aspirin Dose: 100mg"},
		{"plain text unchanged", "no markup here", "no markup here"},
		{"empty", "", ""},
		{"attributes stripped", `<a href="http://x.test">link</a> text`, "link text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripHTML(tt.input); got != tt.want {
				t.Errorf("StripHTML(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestStripHTMLIdempotent(t *testing.T) {
	input := "<html><body>Severe headache after Ibuprofen</body></html>"
	once := StripHTML(input)
	twice := StripHTML(once)
	if once != twice {
		t.Errorf("StripHTML not idempotent: %q vs %q", once, twice)
	}
}

func TestDecodeBase64Invalid(t *testing.T) {
	_, err := DecodeBase64("!!!not-base64!!!")
	if err == nil {
		t.Fatal("expected error for invalid base64")
	}
	if !errors.Is(err, ErrParse) {
		t.Errorf("expected ErrParse, got %v", err)
	}
}

func TestParsePDFMalformed(t *testing.T) {
	_, err := ParsePDF([]byte("this is not a pdf at all"))
	if err == nil {
		t.Fatal("expected error for non-PDF bytes")
	}
	if !errors.Is(err, ErrParse) {
		t.Errorf("expected ErrParse, got %v", err)
	}
}

func TestParsePDFBase64Invalid(t *testing.T) {
	_, err := ParsePDFBase64("%%%%")
	if !errors.Is(err, ErrParse) {
		t.Errorf("expected ErrParse for bad base64, got %v", err)
	}
}

func TestParseDocumentPlainText(t *testing.T) {
	text := "Patient reported severe nausea after starting Metformin 500mg."
	got, err := ParseDocument([]byte(text))
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	if got != text {
		t.Errorf("got %q, want %q", got, text)
	}
}

func TestParseDocumentHTML(t *testing.T) {
	got, err := ParseDocument([]byte("<html><body><p>Rash after <b>Amoxicillin</b></p></body></html>"))
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	if got != "Rash after Amoxicillin" {
		t.Errorf("got %q", got)
	}
}

func TestParseDocumentUnsupported(t *testing.T) {
	// PNG magic bytes, sniffable but not a supported report format.
	png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0}
	_, err := ParseDocument(png)
	if !errors.Is(err, ErrParse) {
		t.Errorf("expected ErrParse for PNG input, got %v", err)
	}
}

func TestParseDocumentEmpty(t *testing.T) {
	if _, err := ParseDocument(nil); !errors.Is(err, ErrParse) {
		t.Errorf("expected ErrParse for empty input, got %v", err)
	}
}

const plainEmail = "From: nurse@clinic.test\r\n" +
	"To: safety@pharma.test\r\n" +
	"Subject: Adverse reaction report\r\n" +
	"Date: Mon, 12 Jan 2026 09:30:00 +0000\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Patient developed hives two hours after taking Penicillin.\r\n"

func TestParseEmailPlainText(t *testing.T) {
	email, err := ParseEmail([]byte(plainEmail))
	if err != nil {
		t.Fatalf("ParseEmail: %v", err)
	}

	if email.Subject != "Adverse reaction report" {
		t.Errorf("subject: got %q", email.Subject)
	}
	if !strings.Contains(email.From, "nurse@clinic.test") {
		t.Errorf("from: got %q", email.From)
	}
	if email.SentDate == "" {
		t.Error("sent date missing")
	}

	// Plain-text bodies come through verbatim, trimmed.
	want := "Patient developed hives two hours after taking Penicillin."
	if email.Body != want {
		t.Errorf("body: got %q, want %q", email.Body, want)
	}
}

func TestParseEmailMultipart(t *testing.T) {
	raw := "From: doctor@hospital.test\r\n" +
		"Subject: Suspected ADR\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/alternative; boundary=\"SEP\"\r\n" +
		"\r\n" +
		"--SEP\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"Plain part: dizziness after Lisinopril.\r\n" +
		"--SEP\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<p>HTML part: <b>dizziness</b> after Lisinopril.</p>\r\n" +
		"--SEP--\r\n"

	email, err := ParseEmail([]byte(raw))
	if err != nil {
		t.Fatalf("ParseEmail: %v", err)
	}

	if !strings.Contains(email.Body, "Plain part: dizziness after Lisinopril.") {
		t.Errorf("body missing plain part: %q", email.Body)
	}
	if !strings.Contains(email.Body, "HTML part: dizziness after Lisinopril.") {
		t.Errorf("body missing stripped html part: %q", email.Body)
	}
	if strings.Contains(email.Body, "<b>") {
		t.Errorf("body still contains tags: %q", email.Body)
	}
}

func TestParseEmailBase64(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte(plainEmail))
	email, err := ParseEmailBase64(encoded)
	if err != nil {
		t.Fatalf("ParseEmailBase64: %v", err)
	}
	if email.Subject != "Adverse reaction report" {
		t.Errorf("subject: got %q", email.Subject)
	}

	if _, err := ParseEmailBase64("@@bad@@"); !errors.Is(err, ErrParse) {
		t.Errorf("expected ErrParse for bad base64, got %v", err)
	}
}
