// Package extract turns normalized report text into structured adverse
// event records using an LLM, then validates and enriches the result.
//
// Model and parse failures never escape Extract: they produce a degraded
// Record carrying the error and raw response, which validation then marks
// invalid. A bad model call must not lose the text already gathered.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hurttlocker/vigil/internal/llm"
)

// ErrExtractionParse indicates the model returned non-JSON or
// schema-violating output.
var ErrExtractionParse = errors.New("unparseable extraction response")

// Source types accepted by Extract.
const (
	SourceClinicalDocument = "clinical_document"
	SourceEmail            = "email"
	SourceTranscript       = "telephony_transcript"
)

const systemPrompt = "You are a pharmacovigilance expert specialized in extracting structured adverse event data from unstructured text. Always respond with valid JSON."

const promptTemplate = `You are a pharmacovigilance expert. Extract adverse event information from the following %s.

Text Content:
%s

Extract the following information in JSON format:
{
  "drugName": "Name of the drug/medication involved",
  "adverseEventDescription": "Description of the adverse event",
  "severity": "MILD, MODERATE, SEVERE, LIFE_THREATENING, or FATAL",
  "symptoms": "List of symptoms observed",
  "patientAge": "Patient age if mentioned",
  "patientGender": "MALE, FEMALE, or OTHER",
  "medicalHistory": "Relevant medical history",
  "concomitantMedications": "Other medications being taken",
  "dateOfOnset": "When the adverse event started",
  "outcome": "Current outcome or status",
  "reporterName": "Name of person reporting",
  "reporterType": "PHYSICIAN, NURSE, PHARMACIST, PATIENT, or OTHER",
  "additionalNotes": "Any other relevant information"
}

Important instructions:
- Extract only information that is explicitly mentioned in the text
- Use "Not mentioned" for fields where information is not available
- For severity, make your best assessment based on the description
- Ensure the response is valid JSON
- Be precise and factual

Return ONLY the JSON object, no additional text or explanation.`

// Record is the structured output of one extraction. Nil fields were not
// mentioned in the source text. ExtractionError and RawResponse are set
// only on degraded records.
type Record struct {
	DrugName                *string `json:"drugName"`
	AdverseEventDescription *string `json:"adverseEventDescription"`
	Severity                *string `json:"severity"`
	Symptoms                *string `json:"symptoms"`
	PatientAge              *string `json:"patientAge"`
	PatientGender           *string `json:"patientGender"`
	MedicalHistory          *string `json:"medicalHistory"`
	ConcomitantMedications  *string `json:"concomitantMedications"`
	DateOfOnset             *string `json:"dateOfOnset"`
	Outcome                 *string `json:"outcome"`
	ReporterName            *string `json:"reporterName"`
	ReporterType            *string `json:"reporterType"`
	AdditionalNotes         *string `json:"additionalNotes"`

	ExtractionError string `json:"extractionError,omitempty"`
	RawResponse     string `json:"rawResponse,omitempty"`
}

// EnrichedRecord is a Record stamped with extraction metadata and a
// validation verdict.
type EnrichedRecord struct {
	Record
	ExtractionTimestamp time.Time `json:"extractionTimestamp"`
	ExtractionSource    string    `json:"extractionSource"`
	IsValid             bool      `json:"isValid"`
	ValidationError     string    `json:"validationError,omitempty"`
}

// Engine extracts structured records from text via an LLM provider.
type Engine struct {
	provider llm.Provider
	model    string
}

// NewEngine creates an extraction engine bound to a provider and model.
func NewEngine(provider llm.Provider, model string) *Engine {
	return &Engine{provider: provider, model: model}
}

// Model returns the model id the engine is bound to.
func (e *Engine) Model() string {
	return e.model
}

// Extract runs one extraction call over normalized text. A nil error does
// not mean extraction succeeded: model and parse failures come back as a
// degraded Record with ExtractionError set.
func (e *Engine) Extract(ctx context.Context, text, sourceType string) (*Record, error) {
	prompt := fmt.Sprintf(promptTemplate, sourceType, text)

	ctx, cancel := context.WithTimeout(ctx, llm.DefaultTimeout)
	defer cancel()

	response, err := e.provider.Complete(ctx, prompt, llm.CompletionOpts{
		Model:       e.model,
		System:      systemPrompt,
		MaxTokens:   1500,
		Temperature: 0.2,
	})
	if err != nil {
		return &Record{
			ExtractionError: fmt.Sprintf("Failed to extract adverse event data: %v", err),
		}, nil
	}

	return parseResponse(response), nil
}

// FromClinicalDocument extracts from parsed clinical document text.
func (e *Engine) FromClinicalDocument(ctx context.Context, documentText string) (*Record, error) {
	return e.Extract(ctx, documentText, SourceClinicalDocument)
}

// FromEmail extracts from an email, framing sender and subject for context.
func (e *Engine) FromEmail(ctx context.Context, subject, body, sender string) (*Record, error) {
	fullText := fmt.Sprintf("Email From: %s\nSubject: %s\n\nBody:\n%s\n", sender, subject, body)
	return e.Extract(ctx, fullText, SourceEmail)
}

// FromTranscript extracts from a telephony transcript.
func (e *Engine) FromTranscript(ctx context.Context, transcript, callerInfo string) (*Record, error) {
	fullText := fmt.Sprintf("Call From: %s\n\nTranscript:\n%s\n", callerInfo, transcript)
	return e.Extract(ctx, fullText, SourceTranscript)
}

// parseResponse strips code fences, parses JSON, and normalizes sentinel
// values. Parse failures yield a degraded record, never an error.
func parseResponse(response string) *Record {
	cleaned := StripCodeFences(response)

	rec := &Record{}
	if err := json.Unmarshal([]byte(cleaned), rec); err != nil {
		return &Record{
			ExtractionError: fmt.Sprintf("%v: %v", ErrExtractionParse, err),
			RawResponse:     response,
		}
	}

	for _, f := range rec.fields() {
		*f = NormalizeSentinel(*f)
	}
	return rec
}

func (r *Record) fields() []**string {
	return []**string{
		&r.DrugName, &r.AdverseEventDescription, &r.Severity, &r.Symptoms,
		&r.PatientAge, &r.PatientGender, &r.MedicalHistory, &r.ConcomitantMedications,
		&r.DateOfOnset, &r.Outcome, &r.ReporterName, &r.ReporterType, &r.AdditionalNotes,
	}
}

// StripCodeFences removes surrounding markdown code fence markers.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// NormalizeSentinel maps the model's "no data" sentinel strings to nil.
// All other values pass through unchanged.
func NormalizeSentinel(v *string) *string {
	if v == nil {
		return nil
	}
	switch strings.ToLower(*v) {
	case "not mentioned", "not available", "n/a":
		return nil
	}
	return v
}

// Enrich stamps extraction metadata and computes validity. Pure function,
// no external calls. A record is valid iff both drugName and
// adverseEventDescription are present.
func (e *Engine) Enrich(rec *Record) *EnrichedRecord {
	enriched := &EnrichedRecord{
		Record:              *rec,
		ExtractionTimestamp: time.Now().UTC(),
		ExtractionSource:    e.provider.Name() + "-" + e.model,
		IsValid:             rec.DrugName != nil && rec.AdverseEventDescription != nil,
	}
	if !enriched.IsValid {
		enriched.ValidationError = "Missing required fields: drugName and adverseEventDescription"
	}
	return enriched
}
