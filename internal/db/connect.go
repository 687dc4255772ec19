package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open opens a DB and ensures schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:gatehall.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/gatehall?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	if err := ensureSchema(ctx, db, driver); err != nil {
		return nil, err
	}
	return db, nil
}

func ensureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

const schemaSQLite = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS exams (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  duration_minutes INTEGER NOT NULL,
  total_marks REAL NOT NULL DEFAULT 100,
  question_paper_key TEXT NOT NULL DEFAULT '',
  answer_key_key TEXT NOT NULL DEFAULT '',
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sections (
  exam_id TEXT NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
  name TEXT NOT NULL,
  ord INTEGER NOT NULL,
  PRIMARY KEY (exam_id, name)
);

CREATE TABLE IF NOT EXISTS question_meta (
  exam_id TEXT NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
  section_name TEXT NOT NULL DEFAULT '',
  question_number INTEGER NOT NULL,
  question_type TEXT NOT NULL,
  correct_answer TEXT NOT NULL,
  marks_positive REAL NOT NULL,
  marks_negative REAL NOT NULL,
  PRIMARY KEY (exam_id, question_number)
);

CREATE TABLE IF NOT EXISTS attempts (
  id TEXT PRIMARY KEY,
  exam_id TEXT NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
  user_id TEXT NOT NULL,
  is_submitted INTEGER NOT NULL DEFAULT 0,
  total_score REAL,
  current_state TEXT NOT NULL DEFAULT '{}',
  started_at INTEGER NOT NULL,
  completed_at INTEGER
);

CREATE TABLE IF NOT EXISTS responses (
  attempt_id TEXT NOT NULL REFERENCES attempts(id) ON DELETE CASCADE,
  question_number INTEGER NOT NULL,
  user_input TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'not_visited',
  time_spent_seconds INTEGER NOT NULL DEFAULT 0,
  is_correct INTEGER,
  marks_awarded REAL NOT NULL DEFAULT 0,
  PRIMARY KEY (attempt_id, question_number)
);

CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'student',
  created_at INTEGER NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS exams (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  duration_minutes INTEGER NOT NULL,
  total_marks DOUBLE PRECISION NOT NULL DEFAULT 100,
  question_paper_key TEXT NOT NULL DEFAULT '',
  answer_key_key TEXT NOT NULL DEFAULT '',
  is_active BOOLEAN NOT NULL DEFAULT TRUE,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS sections (
  exam_id TEXT NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
  name TEXT NOT NULL,
  ord INTEGER NOT NULL,
  PRIMARY KEY (exam_id, name)
);

CREATE TABLE IF NOT EXISTS question_meta (
  exam_id TEXT NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
  section_name TEXT NOT NULL DEFAULT '',
  question_number INTEGER NOT NULL,
  question_type TEXT NOT NULL,
  correct_answer TEXT NOT NULL,
  marks_positive DOUBLE PRECISION NOT NULL,
  marks_negative DOUBLE PRECISION NOT NULL,
  PRIMARY KEY (exam_id, question_number)
);

CREATE TABLE IF NOT EXISTS attempts (
  id TEXT PRIMARY KEY,
  exam_id TEXT NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
  user_id TEXT NOT NULL,
  is_submitted BOOLEAN NOT NULL DEFAULT FALSE,
  total_score DOUBLE PRECISION,
  current_state TEXT NOT NULL DEFAULT '{}',
  started_at BIGINT NOT NULL,
  completed_at BIGINT
);

CREATE TABLE IF NOT EXISTS responses (
  attempt_id TEXT NOT NULL REFERENCES attempts(id) ON DELETE CASCADE,
  question_number INTEGER NOT NULL,
  user_input TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'not_visited',
  time_spent_seconds INTEGER NOT NULL DEFAULT 0,
  is_correct BOOLEAN,
  marks_awarded DOUBLE PRECISION NOT NULL DEFAULT 0,
  PRIMARY KEY (attempt_id, question_number)
);

CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'student',
  created_at BIGINT NOT NULL
);
`
