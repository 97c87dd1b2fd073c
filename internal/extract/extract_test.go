package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hurttlocker/vigil/internal/llm"
)

// fakeProvider returns canned responses and records the prompts it saw.
type fakeProvider struct {
	response string
	err      error
	prompts  []string
	opts     []llm.CompletionOpts
}

func (f *fakeProvider) Complete(ctx context.Context, prompt string, opts llm.CompletionOpts) (string, error) {
	f.prompts = append(f.prompts, prompt)
	f.opts = append(f.opts, opts)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeProvider) Name() string { return "fake" }

const goodResponse = `{
	"drugName": "Aspirin",
	"adverseEventDescription": "Severe gastric bleeding",
	"severity": "SEVERE",
	"symptoms": "melena, dizziness",
	"patientAge": "67",
	"patientGender": "MALE",
	"medicalHistory": "Not mentioned",
	"concomitantMedications": "N/A",
	"dateOfOnset": "not available",
	"outcome": "Hospitalized",
	"reporterName": "Dr. Smith",
	"reporterType": "PHYSICIAN",
	"additionalNotes": "Not mentioned"
}`

func TestExtract(t *testing.T) {
	p := &fakeProvider{response: goodResponse}
	e := NewEngine(p, "test-model")

	rec, err := e.Extract(context.Background(), "patient report text", SourceClinicalDocument)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if rec.ExtractionError != "" {
		t.Fatalf("unexpected extraction error: %s", rec.ExtractionError)
	}
	if rec.DrugName == nil || *rec.DrugName != "Aspirin" {
		t.Errorf("DrugName = %v", rec.DrugName)
	}
	if rec.Severity == nil || *rec.Severity != "SEVERE" {
		t.Errorf("Severity = %v", rec.Severity)
	}
	// Sentinels normalize to nil regardless of case.
	if rec.MedicalHistory != nil {
		t.Errorf("MedicalHistory = %v, want nil", *rec.MedicalHistory)
	}
	if rec.ConcomitantMedications != nil {
		t.Errorf("ConcomitantMedications = %v, want nil", *rec.ConcomitantMedications)
	}
	if rec.DateOfOnset != nil {
		t.Errorf("DateOfOnset = %v, want nil", *rec.DateOfOnset)
	}

	if len(p.opts) != 1 {
		t.Fatalf("got %d calls, want 1", len(p.opts))
	}
	opts := p.opts[0]
	if opts.MaxTokens != 1500 {
		t.Errorf("MaxTokens = %d, want 1500", opts.MaxTokens)
	}
	if opts.Temperature != 0.2 {
		t.Errorf("Temperature = %v, want 0.2", opts.Temperature)
	}
	if opts.System == "" {
		t.Error("expected a system prompt")
	}
	if !strings.Contains(p.prompts[0], "clinical_document") {
		t.Error("prompt should name the source type")
	}
	if !strings.Contains(p.prompts[0], "patient report text") {
		t.Error("prompt should embed the input text")
	}
}

func TestExtractCodeFenced(t *testing.T) {
	p := &fakeProvider{response: "```json\n" + goodResponse + "\n```"}
	e := NewEngine(p, "test-model")

	rec, err := e.Extract(context.Background(), "text", SourceEmail)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if rec.ExtractionError != "" {
		t.Fatalf("fenced JSON should parse, got error: %s", rec.ExtractionError)
	}
	if rec.DrugName == nil || *rec.DrugName != "Aspirin" {
		t.Errorf("DrugName = %v", rec.DrugName)
	}
}

func TestExtractParseFailure(t *testing.T) {
	p := &fakeProvider{response: "I could not find any adverse event."}
	e := NewEngine(p, "test-model")

	rec, err := e.Extract(context.Background(), "text", SourceTranscript)
	if err != nil {
		t.Fatalf("parse failures must be absorbed, got: %v", err)
	}
	if rec.ExtractionError == "" {
		t.Error("expected ExtractionError on unparseable response")
	}
	if rec.RawResponse != "I could not find any adverse event." {
		t.Errorf("RawResponse = %q", rec.RawResponse)
	}
	if rec.DrugName != nil {
		t.Error("degraded record should have no extracted fields")
	}
}

func TestExtractModelFailure(t *testing.T) {
	p := &fakeProvider{err: llm.ErrModelCall}
	e := NewEngine(p, "test-model")

	rec, err := e.Extract(context.Background(), "text", SourceClinicalDocument)
	if err != nil {
		t.Fatalf("model failures must be absorbed, got: %v", err)
	}
	if rec.ExtractionError == "" {
		t.Error("expected ExtractionError on model failure")
	}
}

func TestSourceWrappers(t *testing.T) {
	p := &fakeProvider{response: goodResponse}
	e := NewEngine(p, "test-model")
	ctx := context.Background()

	if _, err := e.FromEmail(ctx, "AE report", "the body", "nurse@clinic.example"); err != nil {
		t.Fatalf("FromEmail: %v", err)
	}
	if !strings.Contains(p.prompts[0], "Email From: nurse@clinic.example") {
		t.Error("email prompt should frame the sender")
	}
	if !strings.Contains(p.prompts[0], "Subject: AE report") {
		t.Error("email prompt should frame the subject")
	}

	if _, err := e.FromTranscript(ctx, "hello, I am calling about...", "555-0100"); err != nil {
		t.Fatalf("FromTranscript: %v", err)
	}
	if !strings.Contains(p.prompts[1], "Call From: 555-0100") {
		t.Error("transcript prompt should frame the caller")
	}
	if !strings.Contains(p.prompts[1], "telephony_transcript") {
		t.Error("transcript prompt should name the source type")
	}
}

func TestNormalizeSentinel(t *testing.T) {
	tests := []struct {
		in      string
		wantNil bool
	}{
		{"Not mentioned", true},
		{"not mentioned", true},
		{"NOT MENTIONED", true},
		{"Not available", true},
		{"N/A", true},
		{"n/a", true},
		{"Aspirin", false},
		{"", false},
		{"not mentioned here", false},
	}
	for _, tt := range tests {
		v := tt.in
		got := NormalizeSentinel(&v)
		if tt.wantNil && got != nil {
			t.Errorf("NormalizeSentinel(%q) = %q, want nil", tt.in, *got)
		}
		if !tt.wantNil && (got == nil || *got != tt.in) {
			t.Errorf("NormalizeSentinel(%q) should pass through unchanged", tt.in)
		}
	}
	if NormalizeSentinel(nil) != nil {
		t.Error("NormalizeSentinel(nil) should be nil")
	}
}

func TestEnrich(t *testing.T) {
	e := NewEngine(&fakeProvider{}, "test-model")

	drug := "Aspirin"
	desc := "headache"

	valid := e.Enrich(&Record{DrugName: &drug, AdverseEventDescription: &desc})
	if !valid.IsValid {
		t.Error("record with drug and description should be valid")
	}
	if valid.ValidationError != "" {
		t.Errorf("ValidationError = %q, want empty", valid.ValidationError)
	}
	if valid.ExtractionTimestamp.IsZero() {
		t.Error("expected extraction timestamp")
	}
	if valid.ExtractionSource != "fake-test-model" {
		t.Errorf("ExtractionSource = %q", valid.ExtractionSource)
	}

	for _, rec := range []*Record{
		{},
		{DrugName: &drug},
		{AdverseEventDescription: &desc},
	} {
		got := e.Enrich(rec)
		if got.IsValid {
			t.Errorf("record %+v should be invalid", rec)
		}
		if got.ValidationError == "" {
			t.Error("invalid record should carry a validation error")
		}
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct{ in, want string }{
		{"```json\n{}\n```", "{}"},
		{"```\n{}\n```", "{}"},
		{"{}", "{}"},
		{"  {} ", "{}"},
	}
	for _, tt := range tests {
		if got := StripCodeFences(tt.in); got != tt.want {
			t.Errorf("StripCodeFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtractModelFailureIsNotValid(t *testing.T) {
	p := &fakeProvider{err: errors.New("quota exceeded")}
	e := NewEngine(p, "test-model")

	rec, _ := e.Extract(context.Background(), "text", SourceClinicalDocument)
	enriched := e.Enrich(rec)
	if enriched.IsValid {
		t.Error("degraded record must validate as invalid")
	}
}
