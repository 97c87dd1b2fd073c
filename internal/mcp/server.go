// Package mcp provides the Model Context Protocol server for Vigil.
//
// It exposes the pharmacovigilance pipeline as MCP tools: querying cases,
// patients, drugs, and statistics; creating and updating cases; and the
// classify family that runs raw input, PDFs, emails, transcripts, and
// generic documents through normalization, extraction, validation, and
// AI classification. Stdio transport only.
package mcp

import (
	"encoding/json"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hurttlocker/vigil/internal/agent"
	"github.com/hurttlocker/vigil/internal/classify"
	"github.com/hurttlocker/vigil/internal/extract"
	"github.com/hurttlocker/vigil/internal/store"
)

// ServerConfig holds the wired pipeline the tools operate on.
type ServerConfig struct {
	Store      store.Store
	Extractor  *extract.Engine
	Classifier *classify.Engine
	Agent      *agent.Agent // async workflow runs for created cases
	Pool       *agent.Pool
	Version    string
}

// dbMu serializes tool calls that touch the database. The mcp-go library
// dispatches handlers concurrently via goroutines; SQLite supports only
// one writer at a time, and reads during writes can return stale rows.
var dbMu sync.Mutex

// NewServer creates a configured MCP server with all Vigil tools.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer(
		"Vigil",
		ver,
		server.WithToolCapabilities(false),
	)

	registerGetAdverseEventsTool(s, cfg.Store)
	registerGetPatientInfoTool(s, cfg.Store)
	registerGetDrugInfoTool(s, cfg.Store)
	registerGetStatisticsTool(s, cfg.Store)
	registerCreateAdverseEventTool(s, cfg)
	registerUpdateStatusTool(s, cfg.Store)
	registerClassifyAdverseEventTool(s, cfg)
	registerClassifyFromInputTool(s, cfg)
	registerClassifyFromPDFTool(s, cfg)
	registerClassifyFromEmailTool(s, cfg)
	registerClassifyFromTranscriptTool(s, cfg)
	registerClassifyFromDocumentTool(s, cfg)

	return s
}

// resultOK marshals a success payload into a text result.
func resultOK(payload map[string]any) *mcp.CallToolResult {
	payload["success"] = true
	data, _ := json.MarshalIndent(payload, "", "  ")
	return mcp.NewToolResultText(string(data))
}

// resultFail marshals a {success:false, error} payload. Failures are
// structured responses, never protocol errors.
func resultFail(message string) *mcp.CallToolResult {
	data, _ := json.MarshalIndent(map[string]any{
		"success": false,
		"error":   message,
	}, "", "  ")
	return mcp.NewToolResultText(string(data))
}

// analysisPayload shapes one analysis for tool responses.
func analysisPayload(a *store.Analysis) map[string]any {
	return map[string]any{
		"analysisId":      a.ID,
		"type":            a.Type,
		"status":          a.Status,
		"insights":        a.Insights,
		"recommendations": a.Recommendations,
		"fullResponse":    a.Response,
	}
}

// classificationPayload shapes a causality/risk pair.
func classificationPayload(causality, risk *store.Analysis) map[string]any {
	return map[string]any{
		"causalityAssessment": analysisPayload(causality),
		"riskAnalysis":        analysisPayload(risk),
	}
}

// truncateText caps echoed source text at max bytes with an ellipsis.
func truncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// optString reads an optional string parameter, defaulting when absent.
func optString(req mcp.CallToolRequest, key, fallback string) string {
	if v, err := req.RequireString(key); err == nil && v != "" {
		return v
	}
	return fallback
}
