package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// SavePatient inserts a patient registry entry.
func (s *SQLiteStore) SavePatient(ctx context.Context, p *Patient) (int64, error) {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO patients (patient_id, first_name, last_name, gender, date_of_birth,
			medical_history, allergies, current_medications, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.PatientID, p.FirstName, p.LastName, p.Gender, p.DateOfBirth,
		p.MedicalHistory, p.Allergies, p.CurrentMedications, now,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting patient %s: %w", p.PatientID, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting last insert id: %w", err)
	}
	p.ID = id
	p.CreatedAt = now
	return id, nil
}

// GetPatientByExternalID looks up a patient by its external identifier
// (e.g. "PAT-001"). Returns ErrNotFound if absent.
func (s *SQLiteStore) GetPatientByExternalID(ctx context.Context, patientID string) (*Patient, error) {
	p := &Patient{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, patient_id, first_name, last_name, gender, date_of_birth,
			medical_history, allergies, current_medications, created_at
		 FROM patients WHERE patient_id = ?`, patientID).
		Scan(&p.ID, &p.PatientID, &p.FirstName, &p.LastName, &p.Gender, &p.DateOfBirth,
			&p.MedicalHistory, &p.Allergies, &p.CurrentMedications, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("patient %s: %w", patientID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting patient %s: %w", patientID, err)
	}
	return p, nil
}

// SaveDrug inserts a drug registry entry.
func (s *SQLiteStore) SaveDrug(ctx context.Context, d *Drug) (int64, error) {
	now := time.Now().UTC()
	if d.Status == "" {
		d.Status = "ACTIVE"
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO drugs (drug_code, drug_name, generic_name, manufacturer,
			known_adverse_effects, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.DrugCode, d.DrugName, d.GenericName, d.Manufacturer,
		d.KnownAdverseEffects, d.Status, now,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting drug %s: %w", d.DrugCode, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting last insert id: %w", err)
	}
	d.ID = id
	d.CreatedAt = now
	return id, nil
}

const drugColumns = `id, drug_code, drug_name, generic_name, manufacturer,
	known_adverse_effects, status, created_at`

func scanDrug(row interface{ Scan(...any) error }) (*Drug, error) {
	d := &Drug{}
	err := row.Scan(&d.ID, &d.DrugCode, &d.DrugName, &d.GenericName, &d.Manufacturer,
		&d.KnownAdverseEffects, &d.Status, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// GetDrugByCode looks up a drug by its code. Returns ErrNotFound if absent.
func (s *SQLiteStore) GetDrugByCode(ctx context.Context, code string) (*Drug, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+drugColumns+` FROM drugs WHERE drug_code = ?`, code)
	d, err := scanDrug(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("drug %s: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting drug %s: %w", code, err)
	}
	return d, nil
}

// FindDrugsByName returns drugs whose name or generic name contains the
// given string, case-insensitive.
func (s *SQLiteStore) FindDrugsByName(ctx context.Context, name string) ([]*Drug, error) {
	pattern := "%" + strings.ToLower(name) + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+drugColumns+` FROM drugs
		 WHERE LOWER(drug_name) LIKE ? OR LOWER(generic_name) LIKE ?
		 ORDER BY drug_name`, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("finding drugs by name %q: %w", name, err)
	}
	defer rows.Close()

	var drugs []*Drug
	for rows.Next() {
		d, err := scanDrug(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning drug: %w", err)
		}
		drugs = append(drugs, d)
	}
	return drugs, rows.Err()
}
