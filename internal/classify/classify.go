// Package classify runs AI causality assessment, risk analysis, and
// cross-case pattern detection over adverse event cases.
package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/hurttlocker/vigil/internal/llm"
	"github.com/hurttlocker/vigil/internal/store"
)

// MinPatternCases is the minimum case count for pattern detection.
const MinPatternCases = 5

const causalityTemplate = `As a pharmacovigilance expert, please assess the causality between the drug and adverse event.

Case Details:
- Case Number: %s
- Drug: %s
- Patient ID: %s
- Adverse Event: %s
- Severity: %s
- Symptoms: %s
- Medical History: %s
- Concomitant Medications: %s

Please provide:
1. Causality assessment (Certain, Probable, Possible, Unlikely, Unclassifiable, Unassessable)
2. Reasoning for your assessment
3. Key factors that influenced your decision, on one line starting with "Key factors:"
4. Recommendations for further investigation if needed, on one line starting with "Recommendations:"

Format your response as a structured analysis.`

const riskTemplate = `As a pharmacovigilance expert, please perform a risk analysis for this adverse event.

Case Details:
- Case Number: %s
- Drug: %s
- Patient ID: %s
- Adverse Event: %s
- Severity: %s
- Symptoms: %s

Please analyze:
1. Risk level (Low, Medium, High, Critical)
2. Potential impact on patient safety
3. Regulatory implications
4. Risk mitigation strategies, summarized on one line starting with "Key factors:"
5. Monitoring recommendations, summarized on one line starting with "Recommendations:"

Format your response as a structured risk assessment.`

// Engine performs classification calls and persists the resulting
// analyses for durable cases.
type Engine struct {
	provider llm.Provider
	model    string
	store    store.Store
}

// NewEngine creates a classification engine. The store may be nil when
// classifying transient cases only.
func NewEngine(provider llm.Provider, model string, st store.Store) *Engine {
	return &Engine{provider: provider, model: model, store: st}
}

// Classify runs causality assessment and risk analysis for one case.
// Both calls use the same model. Model call failures become FAILED
// analyses holding the error string; they are recorded, not returned.
// Analyses for persisted cases (ID > 0) are saved regardless of content.
func (e *Engine) Classify(ctx context.Context, c *store.Case) (causality, risk *store.Analysis, err error) {
	patientID := "N/A"
	if c.PatientExternalID != "" {
		patientID = c.PatientExternalID
	}

	causalityPrompt := fmt.Sprintf(causalityTemplate,
		c.CaseNumber, c.DrugName, patientID, c.Description,
		c.Severity, c.Symptoms, c.MedicalHistory, c.ConcomitantMedications)
	causality = e.runAnalysis(ctx, c.ID, store.AnalysisCausality, causalityPrompt)

	riskPrompt := fmt.Sprintf(riskTemplate,
		c.CaseNumber, c.DrugName, patientID, c.Description,
		c.Severity, c.Symptoms)
	risk = e.runAnalysis(ctx, c.ID, store.AnalysisRisk, riskPrompt)

	if c.ID > 0 && e.store != nil {
		if _, serr := e.store.SaveAnalysis(ctx, causality); serr != nil {
			return causality, risk, fmt.Errorf("saving causality analysis: %w", serr)
		}
		if _, serr := e.store.SaveAnalysis(ctx, risk); serr != nil {
			return causality, risk, fmt.Errorf("saving risk analysis: %w", serr)
		}
	}
	return causality, risk, nil
}

// DetectPatterns runs one pattern detection analysis over a set of cases.
// Callers gate on MinPatternCases; the guard here is a backstop.
func (e *Engine) DetectPatterns(ctx context.Context, cases []*store.Case) (*store.Analysis, error) {
	if len(cases) < MinPatternCases {
		return nil, fmt.Errorf("pattern detection needs at least %d cases, have %d", MinPatternCases, len(cases))
	}

	var b strings.Builder
	b.WriteString("As a pharmacovigilance expert, please analyze the following adverse events for patterns and trends.\n\nAdverse Events Data:\n")
	for _, c := range cases {
		fmt.Fprintf(&b, "- Case: %s, Drug: %s, Event: %s, Severity: %s, Status: %s\n",
			c.CaseNumber, c.DrugName, c.Description, c.Severity, c.Status)
	}
	b.WriteString(`
Please identify:
1. Common patterns across events
2. Drug-specific trends
3. Severity patterns
4. Potential safety signals, summarized on one line starting with "Key factors:"
5. Recommendations for further investigation, on one line starting with "Recommendations:"

Format your response as a structured pattern analysis.`)

	analysis := e.runAnalysis(ctx, 0, store.AnalysisPattern, b.String())
	if e.store != nil {
		if _, err := e.store.SaveAnalysis(ctx, analysis); err != nil {
			return analysis, fmt.Errorf("saving pattern analysis: %w", err)
		}
	}
	return analysis, nil
}

// runAnalysis makes one model call and builds the analysis record. A
// failed call yields Status FAILED with the error string as Response.
func (e *Engine) runAnalysis(ctx context.Context, caseID int64, analysisType, prompt string) *store.Analysis {
	analysis := &store.Analysis{
		CaseID: caseID,
		Type:   analysisType,
		Prompt: prompt,
		Model:  e.model,
	}

	callCtx, cancel := context.WithTimeout(ctx, llm.DefaultTimeout)
	defer cancel()

	response, err := e.provider.Complete(callCtx, prompt, llm.CompletionOpts{
		Model:       e.model,
		MaxTokens:   1000,
		Temperature: 0.3,
	})
	if err != nil {
		analysis.Response = fmt.Sprintf("Error: Unable to perform AI analysis - %v", err)
		analysis.Status = store.AnalysisFailed
		analysis.Insights = "Analysis unavailable due to model call failure"
		analysis.Recommendations = "Retry the analysis"
		return analysis
	}

	analysis.Response = response
	analysis.Status = store.AnalysisCompleted
	analysis.Insights = extractMarkedLine(response, "Key factors:", "AI-generated insights from the analysis")
	analysis.Recommendations = extractMarkedLine(response, "Recommendations:", "AI-generated recommendations from the analysis")
	return analysis
}

// extractMarkedLine finds the literal marker and returns text from it to
// the next newline, searching for the break past marker+50 so short lines
// still capture some content. The placeholder covers both a missing
// marker and a marker with no line break after it. Best effort, not
// NLP-grade.
func extractMarkedLine(response, marker, placeholder string) string {
	start := strings.Index(response, marker)
	if start < 0 {
		return placeholder
	}
	searchFrom := start + 50
	if searchFrom > len(response) {
		searchFrom = len(response)
	}
	end := strings.Index(response[searchFrom:], "\n")
	if end < 0 {
		return placeholder
	}
	return response[start : searchFrom+end]
}
