package store

import (
	"context"
	"fmt"
)

// Stats returns aggregate counts across all tables plus case breakdowns
// by severity and status.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{}

	counts := []struct {
		table string
		dest  *int64
	}{
		{"adverse_events", &st.TotalCases},
		{"patients", &st.TotalPatients},
		{"drugs", &st.TotalDrugs},
		{"ai_analyses", &st.TotalAnalyses},
		{"follow_up_actions", &st.TotalActions},
	}
	for _, c := range counts {
		err := s.db.QueryRowContext(ctx,
			fmt.Sprintf(`SELECT COUNT(*) FROM %s`, c.table)).Scan(c.dest)
		if err != nil {
			return nil, fmt.Errorf("counting %s: %w", c.table, err)
		}
	}

	var err error
	st.SeverityCounts, err = s.CountCasesBySeverity(ctx)
	if err != nil {
		return nil, err
	}
	st.StatusCounts, err = s.CountCasesByStatus(ctx)
	if err != nil {
		return nil, err
	}
	return st, nil
}
