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

// NewCaseNumber generates a unique case number for newly reported events.
func NewCaseNumber() string {
	return "AE-" + uuid.NewString()[:8]
}

func registerCreateAdverseEventTool(s *server.MCPServer, cfg ServerConfig) {
	tool := mcp.NewTool("create_adverse_event",
		mcp.WithDescription("Create a new adverse event case. The workflow agent processes it asynchronously: AI classification, follow-up actions, and status advancement."),
		mcp.WithString("drugName",
			mcp.Required(),
			mcp.Description("Name of the drug involved"),
		),
		mcp.WithString("adverseEventDescription",
			mcp.Required(),
			mcp.Description("Description of the adverse event"),
		),
		mcp.WithString("caseNumber",
			mcp.Description("Case number; generated when omitted"),
		),
		mcp.WithString("severity",
			mcp.Description("Severity level"),
			mcp.Enum(store.SeverityMild, store.SeverityModerate, store.SeveritySevere, store.SeverityLifeThreatening, store.SeverityFatal),
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
		mcp.WithString("reporterNotes",
			mcp.Description("Free-text notes from the reporter"),
		),
		mcp.WithString("patientId",
			mcp.Description("External patient ID to link (e.g. PAT-001)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		drugName, err := req.RequireString("drugName")
		if err != nil {
			return resultFail("drugName is required"), nil
		}
		description, err := req.RequireString("adverseEventDescription")
		if err != nil {
			return resultFail("adverseEventDescription is required"), nil
		}

		severity := optString(req, "severity", "")
		if severity != "" && !store.ValidSeverity(severity) {
			return resultFail(fmt.Sprintf("invalid severity: %s", severity)), nil
		}

		c := &store.Case{
			CaseNumber:             optString(req, "caseNumber", NewCaseNumber()),
			DrugName:               drugName,
			Description:            description,
			Severity:               severity,
			Status:                 store.StatusNew,
			Symptoms:               optString(req, "symptoms", ""),
			MedicalHistory:         optString(req, "medicalHistory", ""),
			ConcomitantMedications: optString(req, "concomitantMedications", ""),
			ReporterNotes:          optString(req, "reporterNotes", ""),
		}

		if externalID := optString(req, "patientId", ""); externalID != "" {
			patient, err := cfg.Store.GetPatientByExternalID(ctx, externalID)
			if err == nil {
				c.PatientID = &patient.ID
				c.PatientExternalID = patient.PatientID
			} else if !errors.Is(err, store.ErrNotFound) {
				return resultFail(fmt.Sprintf("Failed to create adverse event: %v", err)), nil
			}
		}

		id, err := cfg.Store.SaveCase(ctx, c)
		if err != nil {
			return resultFail(fmt.Sprintf("Failed to create adverse event: %v", err)), nil
		}

		// Fire-and-forget workflow run; rejection under backlog pressure
		// is fine since the pending sweep will pick the case up later.
		if cfg.Agent != nil && cfg.Pool != nil {
			cfg.Pool.Submit(func(ctx context.Context) {
				cfg.Agent.Process(ctx, id)
			})
		}

		return resultOK(map[string]any{
			"data":    c,
			"message": "Adverse event created successfully",
		}), nil
	})
}

func registerUpdateStatusTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("update_adverse_event_status",
		mcp.WithDescription("Update the status of an existing adverse event case."),
		mcp.WithNumber("eventId",
			mcp.Required(),
			mcp.Description("Case ID"),
		),
		mcp.WithString("status",
			mcp.Required(),
			mcp.Description("New case status"),
			mcp.Enum(store.StatusNew, store.StatusUnderInvestigation, store.StatusConfirmed, store.StatusRejected, store.StatusClosed),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		eventID, err := req.RequireFloat("eventId")
		if err != nil {
			return resultFail("eventId is required"), nil
		}
		status, err := req.RequireString("status")
		if err != nil {
			return resultFail("status is required"), nil
		}
		if !store.ValidStatus(status) {
			return resultFail(fmt.Sprintf("invalid status: %s", status)), nil
		}

		c, err := st.GetCase(ctx, int64(eventID))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return resultFail("Adverse event not found"), nil
			}
			return resultFail(fmt.Sprintf("Failed to update adverse event status: %v", err)), nil
		}

		c.Status = status
		if _, err := st.SaveCase(ctx, c); err != nil {
			return resultFail(fmt.Sprintf("Failed to update adverse event status: %v", err)), nil
		}

		return resultOK(map[string]any{
			"data":    c,
			"message": "Adverse event status updated successfully",
		}), nil
	})
}
