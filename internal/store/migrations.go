package store

import "fmt"

// migrate creates all tables and indexes if they don't exist.
func (s *SQLiteStore) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS patients (
			id                  INTEGER PRIMARY KEY AUTOINCREMENT,
			patient_id          TEXT NOT NULL UNIQUE,
			first_name          TEXT NOT NULL,
			last_name           TEXT NOT NULL,
			gender              TEXT NOT NULL DEFAULT '',
			date_of_birth       TEXT NOT NULL DEFAULT '',
			medical_history     TEXT NOT NULL DEFAULT '',
			allergies           TEXT NOT NULL DEFAULT '',
			current_medications TEXT NOT NULL DEFAULT '',
			created_at          TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS drugs (
			id                    INTEGER PRIMARY KEY AUTOINCREMENT,
			drug_code             TEXT NOT NULL UNIQUE,
			drug_name             TEXT NOT NULL,
			generic_name          TEXT NOT NULL DEFAULT '',
			manufacturer          TEXT NOT NULL DEFAULT '',
			known_adverse_effects TEXT NOT NULL DEFAULT '',
			status                TEXT NOT NULL DEFAULT 'ACTIVE',
			created_at            TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS adverse_events (
			id                      INTEGER PRIMARY KEY AUTOINCREMENT,
			case_number             TEXT NOT NULL,
			drug_name               TEXT NOT NULL,
			description             TEXT NOT NULL,
			severity                TEXT NOT NULL DEFAULT '',
			status                  TEXT NOT NULL DEFAULT 'NEW',
			causality               TEXT NOT NULL DEFAULT '',
			symptoms                TEXT NOT NULL DEFAULT '',
			medical_history         TEXT NOT NULL DEFAULT '',
			concomitant_medications TEXT NOT NULL DEFAULT '',
			reporter_notes          TEXT NOT NULL DEFAULT '',
			patient_id              INTEGER REFERENCES patients(id),
			drug_id                 INTEGER REFERENCES drugs(id),
			event_date              TIMESTAMP,
			report_date             TIMESTAMP,
			created_at              TIMESTAMP NOT NULL,
			updated_at              TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS ai_analyses (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			case_id         INTEGER NOT NULL DEFAULT 0,
			analysis_type   TEXT NOT NULL,
			prompt          TEXT NOT NULL DEFAULT '',
			response        TEXT NOT NULL DEFAULT '',
			model           TEXT NOT NULL DEFAULT '',
			insights        TEXT NOT NULL DEFAULT '',
			recommendations TEXT NOT NULL DEFAULT '',
			status          TEXT NOT NULL DEFAULT 'PENDING',
			created_at      TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS follow_up_actions (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			case_id     INTEGER NOT NULL REFERENCES adverse_events(id),
			action_type TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			assigned_to TEXT NOT NULL DEFAULT '',
			status      TEXT NOT NULL DEFAULT 'PENDING',
			due_date    TIMESTAMP NOT NULL,
			created_at  TIMESTAMP NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_events_status ON adverse_events(status)`,
		`CREATE INDEX IF NOT EXISTS idx_events_severity ON adverse_events(severity)`,
		`CREATE INDEX IF NOT EXISTS idx_events_case_number ON adverse_events(case_number)`,
		`CREATE INDEX IF NOT EXISTS idx_analyses_case ON ai_analyses(case_id)`,
		`CREATE INDEX IF NOT EXISTS idx_actions_case ON follow_up_actions(case_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}
	return nil
}
