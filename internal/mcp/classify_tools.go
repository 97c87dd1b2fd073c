package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hurttlocker/vigil/internal/store"
)

func registerClassifyAdverseEventTool(s *server.MCPServer, cfg ServerConfig) {
	tool := mcp.NewTool("classify_adverse_event",
		mcp.WithDescription("Run AI causality assessment and risk analysis for an existing adverse event case. Both analyses are persisted."),
		mcp.WithNumber("eventId",
			mcp.Required(),
			mcp.Description("Case ID"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		eventID, err := req.RequireFloat("eventId")
		if err != nil {
			return resultFail("eventId is required"), nil
		}

		c, err := cfg.Store.GetCase(ctx, int64(eventID))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return resultFail("Adverse event not found"), nil
			}
			return resultFail(fmt.Sprintf("Failed to classify adverse event: %v", err)), nil
		}

		causality, risk, err := cfg.Classifier.Classify(ctx, c)
		if err != nil {
			return resultFail(fmt.Sprintf("Failed to classify adverse event: %v", err)), nil
		}

		data := classificationPayload(causality, risk)
		data["eventId"] = c.ID
		data["caseNumber"] = c.CaseNumber
		return resultOK(map[string]any{
			"data":    data,
			"message": "AI classification completed successfully",
		}), nil
	})
}

func registerClassifyFromInputTool(s *server.MCPServer, cfg ServerConfig) {
	tool := mcp.NewTool("classify_event_from_input",
		mcp.WithDescription("Run AI causality assessment and risk analysis over raw adverse event fields without creating a case record."),
		mcp.WithString("drugName",
			mcp.Required(),
			mcp.Description("Name of the drug involved"),
		),
		mcp.WithString("adverseEventDescription",
			mcp.Required(),
			mcp.Description("Description of the adverse event"),
		),
		mcp.WithString("caseNumber",
			mcp.Description("Reference case number; a TEMP- number is generated when omitted"),
		),
		mcp.WithString("severity",
			mcp.Description("Severity level; invalid values are ignored"),
		),
		mcp.WithString("symptoms",
			mcp.Description("Observed symptoms"),
		),
		mcp.WithString("medicalHistory",
			mcp.Description("Relevant medical history"),
		),
		mcp.WithString("concomitantMedications",
			mcp.Description("Other medications being taken"),
		),
		mcp.WithString("patientId",
			mcp.Description("External patient ID for prompt context"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		drugName, err := req.RequireString("drugName")
		if err != nil {
			return resultFail("drugName and adverseEventDescription are required"), nil
		}
		description, err := req.RequireString("adverseEventDescription")
		if err != nil {
			return resultFail("drugName and adverseEventDescription are required"), nil
		}

		severity := optString(req, "severity", "")
		if severity != "" && !store.ValidSeverity(severity) {
			// invalid severity is ignored here, not rejected
			severity = ""
		}

		c := &store.Case{
			CaseNumber:             optString(req, "caseNumber", "TEMP-"+uuid.NewString()[:8]),
			DrugName:               drugName,
			Description:            description,
			Severity:               severity,
			Symptoms:               optString(req, "symptoms", ""),
			MedicalHistory:         optString(req, "medicalHistory", ""),
			ConcomitantMedications: optString(req, "concomitantMedications", ""),
		}

		if externalID := optString(req, "patientId", ""); externalID != "" {
			if patient, err := cfg.Store.GetPatientByExternalID(ctx, externalID); err == nil {
				c.PatientExternalID = patient.PatientID
			}
		}

		causality, risk, err := cfg.Classifier.Classify(ctx, c)
		if err != nil {
			return resultFail(fmt.Sprintf("Failed to classify event from input: %v", err)), nil
		}

		data := classificationPayload(causality, risk)
		data["inputData"] = map[string]any{
			"drugName":                drugName,
			"adverseEventDescription": description,
			"severity":                orDefault(severity, "Not specified"),
			"symptoms":                orDefault(c.Symptoms, "Not provided"),
		}
		return resultOK(map[string]any{
			"data":    data,
			"message": "AI classification from input completed successfully",
		}), nil
	})
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
