package store

import (
	"context"
	"fmt"
	"time"
)

// SaveAnalysis inserts a new AI analysis. Analyses are append-only.
func (s *SQLiteStore) SaveAnalysis(ctx context.Context, a *Analysis) (int64, error) {
	now := time.Now().UTC()
	if a.Status == "" {
		a.Status = AnalysisPending
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO ai_analyses (case_id, analysis_type, prompt, response, model, insights, recommendations, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.CaseID, a.Type, a.Prompt, a.Response, a.Model, a.Insights, a.Recommendations, a.Status, now,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting analysis: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting last insert id: %w", err)
	}
	a.ID = id
	a.CreatedAt = now
	return id, nil
}

// ListAnalysesByCase returns all analyses for a case, oldest first.
func (s *SQLiteStore) ListAnalysesByCase(ctx context.Context, caseID int64) ([]*Analysis, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, case_id, analysis_type, prompt, response, model, insights, recommendations, status, created_at
		 FROM ai_analyses WHERE case_id = ? ORDER BY id`, caseID)
	if err != nil {
		return nil, fmt.Errorf("listing analyses for case %d: %w", caseID, err)
	}
	defer rows.Close()

	var analyses []*Analysis
	for rows.Next() {
		a := &Analysis{}
		if err := rows.Scan(&a.ID, &a.CaseID, &a.Type, &a.Prompt, &a.Response, &a.Model,
			&a.Insights, &a.Recommendations, &a.Status, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning analysis: %w", err)
		}
		analyses = append(analyses, a)
	}
	return analyses, rows.Err()
}
