package store

import (
	"context"
	"fmt"
	"time"
)

// SaveAction inserts a new follow-up action. Actions are never
// deduplicated against prior workflow runs.
func (s *SQLiteStore) SaveAction(ctx context.Context, a *FollowUpAction) (int64, error) {
	now := time.Now().UTC()
	if a.Status == "" {
		a.Status = ActionPending
	}
	if a.DueDate.IsZero() {
		a.DueDate = now.Add(7 * 24 * time.Hour)
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO follow_up_actions (case_id, action_type, description, assigned_to, status, due_date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.CaseID, a.Type, a.Description, a.AssignedTo, a.Status, a.DueDate.UTC(), now,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting follow-up action: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting last insert id: %w", err)
	}
	a.ID = id
	a.CreatedAt = now
	return id, nil
}

// ListActionsByCase returns all follow-up actions for a case, oldest first.
func (s *SQLiteStore) ListActionsByCase(ctx context.Context, caseID int64) ([]*FollowUpAction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, case_id, action_type, description, assigned_to, status, due_date, created_at
		 FROM follow_up_actions WHERE case_id = ? ORDER BY id`, caseID)
	if err != nil {
		return nil, fmt.Errorf("listing actions for case %d: %w", caseID, err)
	}
	defer rows.Close()

	var actions []*FollowUpAction
	for rows.Next() {
		a := &FollowUpAction{}
		if err := rows.Scan(&a.ID, &a.CaseID, &a.Type, &a.Description, &a.AssignedTo,
			&a.Status, &a.DueDate, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning action: %w", err)
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}
