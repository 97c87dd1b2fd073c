// Package store provides the SQLite storage layer for Vigil.
//
// All case data lives in a single SQLite database file, including:
// - Adverse event cases with severity, status, and causality
// - AI analyses (causality assessments, risk analyses, pattern detections)
// - Follow-up actions derived by the workflow agent
// - Patient and drug registries
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultDBPath is the default database location.
const DefaultDBPath = "~/.vigil/vigil.db"

// ErrNotFound indicates a referenced case, patient, or drug does not exist.
var ErrNotFound = errors.New("not found")

// Severity levels for an adverse event case.
const (
	SeverityMild            = "MILD"
	SeverityModerate        = "MODERATE"
	SeveritySevere          = "SEVERE"
	SeverityLifeThreatening = "LIFE_THREATENING"
	SeverityFatal           = "FATAL"
)

// Case status values. NEW cases are picked up by the scheduler; the
// workflow agent moves them to UNDER_INVESTIGATION or CONFIRMED. REJECTED
// and CLOSED are reachable only through direct status edits.
const (
	StatusNew                = "NEW"
	StatusUnderInvestigation = "UNDER_INVESTIGATION"
	StatusConfirmed          = "CONFIRMED"
	StatusRejected           = "REJECTED"
	StatusClosed             = "CLOSED"
)

// Causality assessment categories (WHO-UMC scale).
const (
	CausalityCertain        = "CERTAIN"
	CausalityProbable       = "PROBABLE"
	CausalityPossible       = "POSSIBLE"
	CausalityUnlikely       = "UNLIKELY"
	CausalityUnclassifiable = "UNCLASSIFIABLE"
	CausalityUnassessable   = "UNASSESSABLE"
)

// Analysis types.
const (
	AnalysisCausality = "causality_assessment"
	AnalysisRisk      = "risk_analysis"
	AnalysisPattern   = "pattern_detection"
)

// Analysis status values.
const (
	AnalysisPending   = "PENDING"
	AnalysisCompleted = "COMPLETED"
	AnalysisFailed    = "FAILED"
	AnalysisPartial   = "PARTIAL"
)

// Follow-up action types.
const (
	ActionInvestigation        = "INVESTIGATION"
	ActionRegulatorySubmission = "REGULATORY_SUBMISSION"
	ActionPatientFollowUp      = "PATIENT_FOLLOW_UP"
	ActionDrugSafetyReview     = "DRUG_SAFETY_REVIEW"
)

// ActionPending is the status every newly derived action starts in.
const ActionPending = "PENDING"

// ValidSeverity reports whether s is a recognized severity level.
func ValidSeverity(s string) bool {
	switch s {
	case SeverityMild, SeverityModerate, SeveritySevere, SeverityLifeThreatening, SeverityFatal:
		return true
	}
	return false
}

// ValidStatus reports whether s is a recognized case status.
func ValidStatus(s string) bool {
	switch s {
	case StatusNew, StatusUnderInvestigation, StatusConfirmed, StatusRejected, StatusClosed:
		return true
	}
	return false
}

// Case is an adverse event case, the durable subject of analysis.
// Transient cases (built only to feed classification) have ID 0 and are
// never saved.
type Case struct {
	ID                     int64      `json:"id"`
	CaseNumber             string     `json:"caseNumber"`
	DrugName               string     `json:"drugName"`
	Description            string     `json:"adverseEventDescription"`
	Severity               string     `json:"severity,omitempty"`
	Status                 string     `json:"status,omitempty"`
	Causality              string     `json:"causality,omitempty"`
	Symptoms               string     `json:"symptoms,omitempty"`
	MedicalHistory         string     `json:"medicalHistory,omitempty"`
	ConcomitantMedications string     `json:"concomitantMedications,omitempty"`
	ReporterNotes          string     `json:"reporterNotes,omitempty"`
	PatientID              *int64     `json:"patientId,omitempty"`
	PatientExternalID      string     `json:"patientExternalId,omitempty"`
	DrugID                 *int64     `json:"drugId,omitempty"`
	EventDate              *time.Time `json:"eventDate,omitempty"`
	ReportDate             *time.Time `json:"reportDate,omitempty"`
	CreatedAt              time.Time  `json:"createdAt"`
	UpdatedAt              time.Time  `json:"updatedAt"`
}

// Analysis is one AI analysis tied to a case. Pattern detections span
// multiple cases and carry CaseID 0. Analyses are never mutated after
// creation.
type Analysis struct {
	ID              int64     `json:"id"`
	CaseID          int64     `json:"caseId,omitempty"`
	Type            string    `json:"type"`
	Prompt          string    `json:"prompt,omitempty"`
	Response        string    `json:"response"`
	Model           string    `json:"model"`
	Insights        string    `json:"insights"`
	Recommendations string    `json:"recommendations"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
}

// FollowUpAction is a remediation task derived from a case's severity.
type FollowUpAction struct {
	ID          int64     `json:"id"`
	CaseID      int64     `json:"caseId"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	AssignedTo  string    `json:"assignedTo"`
	Status      string    `json:"status"`
	DueDate     time.Time `json:"dueDate"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Patient is a registry entry referenced by cases via external patient id.
type Patient struct {
	ID                 int64     `json:"id"`
	PatientID          string    `json:"patientId"`
	FirstName          string    `json:"firstName"`
	LastName           string    `json:"lastName"`
	Gender             string    `json:"gender,omitempty"`
	DateOfBirth        string    `json:"dateOfBirth,omitempty"`
	MedicalHistory     string    `json:"medicalHistory,omitempty"`
	Allergies          string    `json:"allergies,omitempty"`
	CurrentMedications string    `json:"currentMedications,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
}

// Drug is a registry entry for a monitored drug.
type Drug struct {
	ID                  int64     `json:"id"`
	DrugCode            string    `json:"drugCode"`
	DrugName            string    `json:"drugName"`
	GenericName         string    `json:"genericName,omitempty"`
	Manufacturer        string    `json:"manufacturer,omitempty"`
	KnownAdverseEffects string    `json:"knownAdverseEffects,omitempty"`
	Status              string    `json:"status,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
}

// ListOpts filters case listings. Zero values mean "no filter".
type ListOpts struct {
	Severity          string
	Status            string
	DrugName          string // case-insensitive substring match
	PatientExternalID string
	Limit             int
}

// Stats holds aggregate counts for the get_statistics tool.
type Stats struct {
	TotalCases     int64            `json:"totalAdverseEvents"`
	TotalPatients  int64            `json:"totalPatients"`
	TotalDrugs     int64            `json:"totalDrugs"`
	TotalAnalyses  int64            `json:"totalAnalyses"`
	TotalActions   int64            `json:"totalFollowUpActions"`
	SeverityCounts map[string]int64 `json:"severityCounts"`
	StatusCounts   map[string]int64 `json:"statusCounts"`
}

// StoreConfig holds configuration for NewStore.
type StoreConfig struct {
	DBPath string
}

// Store defines the storage interface consumed by the pipeline.
type Store interface {
	// Cases
	SaveCase(ctx context.Context, c *Case) (int64, error)
	GetCase(ctx context.Context, id int64) (*Case, error)
	ListCases(ctx context.Context, opts ListOpts) ([]*Case, error)
	CountCasesBySeverity(ctx context.Context) (map[string]int64, error)
	CountCasesByStatus(ctx context.Context) (map[string]int64, error)

	// Analyses
	SaveAnalysis(ctx context.Context, a *Analysis) (int64, error)
	ListAnalysesByCase(ctx context.Context, caseID int64) ([]*Analysis, error)

	// Follow-up actions
	SaveAction(ctx context.Context, a *FollowUpAction) (int64, error)
	ListActionsByCase(ctx context.Context, caseID int64) ([]*FollowUpAction, error)

	// Registries
	SavePatient(ctx context.Context, p *Patient) (int64, error)
	GetPatientByExternalID(ctx context.Context, patientID string) (*Patient, error)
	SaveDrug(ctx context.Context, d *Drug) (int64, error)
	GetDrugByCode(ctx context.Context, code string) (*Drug, error)
	FindDrugsByName(ctx context.Context, name string) ([]*Drug, error)

	// Observability
	Stats(ctx context.Context) (*Stats, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewStore creates a new SQLite-backed Store.
// Pass ":memory:" for in-memory databases (testing).
func NewStore(cfg StoreConfig) (Store, error) {
	if cfg.DBPath == "" {
		cfg.DBPath = expandPath(DefaultDBPath)
	}

	if cfg.DBPath != ":memory:" {
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db, dbPath: cfg.DBPath}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// GetDB exposes the underlying database handle for maintenance tooling.
func (s *SQLiteStore) GetDB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
