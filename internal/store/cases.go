package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// SaveCase inserts a new case or updates an existing one. Each save is a
// single transaction; the workflow's other writes commit independently.
func (s *SQLiteStore) SaveCase(ctx context.Context, c *Case) (int64, error) {
	now := time.Now().UTC()
	if c.Status == "" {
		c.Status = StatusNew
	}

	if c.ID == 0 {
		c.CreatedAt = now
		c.UpdatedAt = now
		result, err := s.db.ExecContext(ctx,
			`INSERT INTO adverse_events (case_number, drug_name, description, severity, status,
				causality, symptoms, medical_history, concomitant_medications, reporter_notes,
				patient_id, drug_id, event_date, report_date, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.CaseNumber, c.DrugName, c.Description, c.Severity, c.Status,
			c.Causality, c.Symptoms, c.MedicalHistory, c.ConcomitantMedications, c.ReporterNotes,
			c.PatientID, c.DrugID, c.EventDate, c.ReportDate, now, now,
		)
		if err != nil {
			return 0, fmt.Errorf("inserting case: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("getting last insert id: %w", err)
		}
		c.ID = id
		return id, nil
	}

	c.UpdatedAt = now
	result, err := s.db.ExecContext(ctx,
		`UPDATE adverse_events SET case_number = ?, drug_name = ?, description = ?, severity = ?,
			status = ?, causality = ?, symptoms = ?, medical_history = ?, concomitant_medications = ?,
			reporter_notes = ?, patient_id = ?, drug_id = ?, event_date = ?, report_date = ?, updated_at = ?
		 WHERE id = ?`,
		c.CaseNumber, c.DrugName, c.Description, c.Severity,
		c.Status, c.Causality, c.Symptoms, c.MedicalHistory, c.ConcomitantMedications,
		c.ReporterNotes, c.PatientID, c.DrugID, c.EventDate, c.ReportDate, now,
		c.ID,
	)
	if err != nil {
		return 0, fmt.Errorf("updating case %d: %w", c.ID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking update of case %d: %w", c.ID, err)
	}
	if rows == 0 {
		return 0, fmt.Errorf("case %d: %w", c.ID, ErrNotFound)
	}
	return c.ID, nil
}

// The patients join resolves the linked patient's external identifier so
// classification prompts carry it after a reload.
const caseColumns = `e.id, e.case_number, e.drug_name, e.description, e.severity, e.status, e.causality,
	e.symptoms, e.medical_history, e.concomitant_medications, e.reporter_notes,
	e.patient_id, e.drug_id, e.event_date, e.report_date, e.created_at, e.updated_at,
	p.patient_id`

const caseFrom = `FROM adverse_events e LEFT JOIN patients p ON p.id = e.patient_id`

func scanCase(row interface{ Scan(...any) error }) (*Case, error) {
	c := &Case{}
	var patientID, drugID sql.NullInt64
	var eventDate, reportDate sql.NullTime
	var patientExternalID sql.NullString
	err := row.Scan(&c.ID, &c.CaseNumber, &c.DrugName, &c.Description, &c.Severity, &c.Status,
		&c.Causality, &c.Symptoms, &c.MedicalHistory, &c.ConcomitantMedications, &c.ReporterNotes,
		&patientID, &drugID, &eventDate, &reportDate, &c.CreatedAt, &c.UpdatedAt,
		&patientExternalID)
	if err != nil {
		return nil, err
	}
	if patientID.Valid {
		c.PatientID = &patientID.Int64
	}
	if patientExternalID.Valid {
		c.PatientExternalID = patientExternalID.String
	}
	if drugID.Valid {
		c.DrugID = &drugID.Int64
	}
	if eventDate.Valid {
		t := eventDate.Time
		c.EventDate = &t
	}
	if reportDate.Valid {
		t := reportDate.Time
		c.ReportDate = &t
	}
	return c, nil
}

// GetCase retrieves a case by ID. Returns ErrNotFound if absent.
func (s *SQLiteStore) GetCase(ctx context.Context, id int64) (*Case, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+caseColumns+` `+caseFrom+` WHERE e.id = ?`, id)
	c, err := scanCase(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("case %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting case %d: %w", id, err)
	}
	return c, nil
}

// ListCases returns cases matching the given filters, newest first.
func (s *SQLiteStore) ListCases(ctx context.Context, opts ListOpts) ([]*Case, error) {
	var conds []string
	var args []any

	if opts.Severity != "" {
		conds = append(conds, "e.severity = ?")
		args = append(args, opts.Severity)
	}
	if opts.Status != "" {
		conds = append(conds, "e.status = ?")
		args = append(args, opts.Status)
	}
	if opts.DrugName != "" {
		conds = append(conds, "LOWER(e.drug_name) LIKE ?")
		args = append(args, "%"+strings.ToLower(opts.DrugName)+"%")
	}
	if opts.PatientExternalID != "" {
		conds = append(conds, "p.patient_id = ?")
		args = append(args, opts.PatientExternalID)
	}

	query := `SELECT ` + caseColumns + ` ` + caseFrom
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY e.created_at DESC, e.id DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing cases: %w", err)
	}
	defer rows.Close()

	var cases []*Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning case: %w", err)
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

// CountCasesBySeverity returns case counts grouped by severity.
func (s *SQLiteStore) CountCasesBySeverity(ctx context.Context) (map[string]int64, error) {
	return s.countCasesBy(ctx, "severity")
}

// CountCasesByStatus returns case counts grouped by status.
func (s *SQLiteStore) CountCasesByStatus(ctx context.Context) (map[string]int64, error) {
	return s.countCasesBy(ctx, "status")
}

func (s *SQLiteStore) countCasesBy(ctx context.Context, column string) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s, COUNT(*) FROM adverse_events GROUP BY %s`, column, column))
	if err != nil {
		return nil, fmt.Errorf("counting cases by %s: %w", column, err)
	}
	defer rows.Close()

	counts := map[string]int64{}
	for rows.Next() {
		var key string
		var n int64
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("scanning %s count: %w", column, err)
		}
		if key == "" {
			key = "UNSPECIFIED"
		}
		counts[key] = n
	}
	return counts, rows.Err()
}
