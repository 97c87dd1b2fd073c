package mcp

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hurttlocker/vigil/internal/docparse"
	"github.com/hurttlocker/vigil/internal/extract"
	"github.com/hurttlocker/vigil/internal/store"
)

// extractedTextPreview caps how much source text is echoed in responses.
const extractedTextPreview = 500

// classifyExtracted runs extraction output through validation and, when
// valid, classification. Invalid records come back with isValid false and
// a nil classification instead of being discarded.
func classifyExtracted(ctx context.Context, cfg ServerConfig, rec *extract.Record) (*extract.EnrichedRecord, map[string]any) {
	enriched := cfg.Extractor.Enrich(rec)
	if !enriched.IsValid {
		return enriched, nil
	}

	c := &store.Case{
		CaseNumber:             "EXTRACTED-" + uuid.NewString()[:8],
		DrugName:               deref(enriched.DrugName),
		Description:            deref(enriched.AdverseEventDescription),
		Symptoms:               deref(enriched.Symptoms),
		MedicalHistory:         deref(enriched.MedicalHistory),
		ConcomitantMedications: deref(enriched.ConcomitantMedications),
	}
	if sev := deref(enriched.Severity); store.ValidSeverity(sev) {
		c.Severity = sev
	}

	causality, risk, err := cfg.Classifier.Classify(ctx, c)
	if err != nil {
		return enriched, map[string]any{"error": fmt.Sprintf("Classification failed: %v", err)}
	}
	return enriched, classificationPayload(causality, risk)
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func registerClassifyFromPDFTool(s *server.MCPServer, cfg ServerConfig) {
	tool := mcp.NewTool("classify_from_pdf",
		mcp.WithDescription("Parse a Base64-encoded PDF, extract adverse event data with AI, validate it, and classify it when valid."),
		mcp.WithString("pdfContent",
			mcp.Required(),
			mcp.Description("Base64-encoded PDF bytes"),
		),
		mcp.WithString("fileName",
			mcp.Description("Original file name, for the response only"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		base64Content, err := req.RequireString("pdfContent")
		if err != nil {
			return resultFail("pdfContent (Base64 encoded) is required"), nil
		}
		fileName := optString(req, "fileName", "document.pdf")

		text, err := docparse.ParsePDFBase64(base64Content)
		if err != nil {
			return resultFail(fmt.Sprintf("Failed to classify from PDF: %v", err)), nil
		}

		rec, err := cfg.Extractor.FromClinicalDocument(ctx, text)
		if err != nil {
			return resultFail(fmt.Sprintf("Failed to classify from PDF: %v", err)), nil
		}
		enriched, classification := classifyExtracted(ctx, cfg, rec)

		return resultOK(map[string]any{
			"fileName":       fileName,
			"extractedText":  truncateText(text, extractedTextPreview),
			"extractedData":  enriched,
			"classification": classification,
			"message":        "PDF processed and adverse event classified successfully",
		}), nil
	})
}

func registerClassifyFromEmailTool(s *server.MCPServer, cfg ServerConfig) {
	tool := mcp.NewTool("classify_from_email",
		mcp.WithDescription("Extract and classify an adverse event from an email, given either a Base64-encoded .eml file or explicit subject and body."),
		mcp.WithString("emlContent",
			mcp.Description("Base64-encoded raw RFC-822 message; overrides subject/body"),
		),
		mcp.WithString("subject",
			mcp.Description("Email subject, used with body when emlContent is absent"),
		),
		mcp.WithString("body",
			mcp.Description("Email body, used with subject when emlContent is absent"),
		),
		mcp.WithString("sender",
			mcp.Description("Sender address for direct subject/body input"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		var subject, body, from string
		if emlContent := optString(req, "emlContent", ""); emlContent != "" {
			email, err := docparse.ParseEmailBase64(emlContent)
			if err != nil {
				return resultFail(fmt.Sprintf("Failed to classify from email: %v", err)), nil
			}
			subject, body, from = email.Subject, email.Body, email.From
		} else {
			subject = optString(req, "subject", "")
			body = optString(req, "body", "")
			from = optString(req, "sender", "Unknown")
			if subject == "" || body == "" {
				return resultFail("Either emlContent or both subject and body are required"), nil
			}
		}

		rec, err := cfg.Extractor.FromEmail(ctx, subject, body, from)
		if err != nil {
			return resultFail(fmt.Sprintf("Failed to classify from email: %v", err)), nil
		}
		enriched, classification := classifyExtracted(ctx, cfg, rec)

		return resultOK(map[string]any{
			"emailMetadata": map[string]any{
				"from":    from,
				"subject": subject,
			},
			"extractedData":  enriched,
			"classification": classification,
			"message":        "Email processed and adverse event classified successfully",
		}), nil
	})
}

func registerClassifyFromTranscriptTool(s *server.MCPServer, cfg ServerConfig) {
	tool := mcp.NewTool("classify_from_telephony_transcript",
		mcp.WithDescription("Extract and classify an adverse event from a telephony call transcript."),
		mcp.WithString("transcript",
			mcp.Required(),
			mcp.Description("Full call transcript text"),
		),
		mcp.WithString("callerInfo",
			mcp.Description("Caller identity or phone number"),
		),
		mcp.WithString("callId",
			mcp.Description("Call identifier, for the response only"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		transcript, err := req.RequireString("transcript")
		if err != nil {
			return resultFail("transcript is required"), nil
		}
		callerInfo := optString(req, "callerInfo", "Unknown caller")
		callID := optString(req, "callId", "N/A")

		rec, err := cfg.Extractor.FromTranscript(ctx, transcript, callerInfo)
		if err != nil {
			return resultFail(fmt.Sprintf("Failed to classify from telephony transcript: %v", err)), nil
		}
		enriched, classification := classifyExtracted(ctx, cfg, rec)

		return resultOK(map[string]any{
			"callMetadata": map[string]any{
				"callId":     callID,
				"callerInfo": callerInfo,
			},
			"extractedData":  enriched,
			"classification": classification,
			"message":        "Telephony transcript processed and adverse event classified successfully",
		}), nil
	})
}

func registerClassifyFromDocumentTool(s *server.MCPServer, cfg ServerConfig) {
	tool := mcp.NewTool("classify_from_document",
		mcp.WithDescription("Parse any Base64-encoded document (PDF, HTML, DOCX, plain text, email), extract adverse event data with AI, and classify it when valid. Content type is sniffed."),
		mcp.WithString("documentContent",
			mcp.Required(),
			mcp.Description("Base64-encoded document bytes"),
		),
		mcp.WithString("fileName",
			mcp.Description("Original file name, for the response only"),
		),
		mcp.WithString("documentType",
			mcp.Description("Declared document type hint; detection is automatic"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		base64Content, err := req.RequireString("documentContent")
		if err != nil {
			return resultFail("documentContent (Base64 encoded) is required"), nil
		}
		fileName := optString(req, "fileName", "document")

		text, err := docparse.ParseDocumentBase64(base64Content)
		if err != nil {
			return resultFail(fmt.Sprintf("Failed to classify from document: %v", err)), nil
		}

		rec, err := cfg.Extractor.FromClinicalDocument(ctx, text)
		if err != nil {
			return resultFail(fmt.Sprintf("Failed to classify from document: %v", err)), nil
		}
		enriched, classification := classifyExtracted(ctx, cfg, rec)

		return resultOK(map[string]any{
			"fileName":       fileName,
			"extractedText":  truncateText(text, extractedTextPreview),
			"extractedData":  enriched,
			"classification": classification,
			"message":        "Document processed and adverse event classified successfully",
		}), nil
	})
}
