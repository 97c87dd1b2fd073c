package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hurttlocker/vigil/internal/store"
)

func registerGetAdverseEventsTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("get_adverse_events",
		mcp.WithDescription("Retrieve adverse event cases filtered by severity, status, drug name, or patient ID. All filters optional; omit them all to list every case."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("severity",
			mcp.Description("Filter by severity"),
			mcp.Enum(store.SeverityMild, store.SeverityModerate, store.SeveritySevere, store.SeverityLifeThreatening, store.SeverityFatal),
		),
		mcp.WithString("status",
			mcp.Description("Filter by case status"),
			mcp.Enum(store.StatusNew, store.StatusUnderInvestigation, store.StatusConfirmed, store.StatusRejected, store.StatusClosed),
		),
		mcp.WithString("drugName",
			mcp.Description("Filter by drug name, case-insensitive substring match"),
		),
		mcp.WithString("patientId",
			mcp.Description("Filter by external patient ID (e.g. PAT-001)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of cases to return"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		opts := store.ListOpts{
			Severity:          optString(req, "severity", ""),
			Status:            optString(req, "status", ""),
			DrugName:          optString(req, "drugName", ""),
			PatientExternalID: optString(req, "patientId", ""),
		}
		if limit, err := req.RequireFloat("limit"); err == nil && limit > 0 {
			opts.Limit = int(limit)
		}

		events, err := st.ListCases(ctx, opts)
		if err != nil {
			return resultFail(fmt.Sprintf("Failed to retrieve adverse events: %v", err)), nil
		}
		if events == nil {
			events = []*store.Case{}
		}
		return resultOK(map[string]any{
			"data":  events,
			"count": len(events),
		}), nil
	})
}

func registerGetPatientInfoTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("get_patient_info",
		mcp.WithDescription("Retrieve a patient registry entry by external patient ID."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("patientId",
			mcp.Required(),
			mcp.Description("External patient ID (e.g. PAT-001)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		patientID, err := req.RequireString("patientId")
		if err != nil {
			return resultFail("Patient ID is required"), nil
		}

		patient, err := st.GetPatientByExternalID(ctx, patientID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return resultFail("Patient not found"), nil
			}
			return resultFail(fmt.Sprintf("Failed to retrieve patient information: %v", err)), nil
		}
		return resultOK(map[string]any{"data": patient}), nil
	})
}

func registerGetDrugInfoTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("get_drug_info",
		mcp.WithDescription("Retrieve drug registry entries by drug code (exact) or drug name (substring)."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("drugCode",
			mcp.Description("Exact drug code (e.g. ASP-100)"),
		),
		mcp.WithString("drugName",
			mcp.Description("Drug or generic name, case-insensitive substring match"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		drugCode := optString(req, "drugCode", "")
		drugName := optString(req, "drugName", "")

		var drugs []*store.Drug
		switch {
		case drugCode != "":
			drug, err := st.GetDrugByCode(ctx, drugCode)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return resultFail(fmt.Sprintf("Failed to retrieve drug information: %v", err)), nil
			}
			if drug != nil {
				drugs = append(drugs, drug)
			}
		case drugName != "":
			var err error
			drugs, err = st.FindDrugsByName(ctx, drugName)
			if err != nil {
				return resultFail(fmt.Sprintf("Failed to retrieve drug information: %v", err)), nil
			}
		default:
			return resultFail("Either drugCode or drugName is required"), nil
		}

		if drugs == nil {
			drugs = []*store.Drug{}
		}
		return resultOK(map[string]any{
			"data":  drugs,
			"count": len(drugs),
		}), nil
	})
}

func registerGetStatisticsTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("get_statistics",
		mcp.WithDescription("Retrieve aggregate pharmacovigilance statistics: total cases, patients, drugs, analyses, and actions, plus case counts by severity and status."),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		stats, err := st.Stats(ctx)
		if err != nil {
			return resultFail(fmt.Sprintf("Failed to retrieve statistics: %v", err)), nil
		}
		return resultOK(map[string]any{"data": stats}), nil
	})
}
