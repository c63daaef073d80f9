package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/ap-automation/internal/core/domain"
)

const schemaLockID int64 = 2026030101

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the tables and seeds the demo user directory.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS users (
	id BIGINT PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	full_name TEXT NOT NULL,
	role TEXT NOT NULL,
	is_active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS suppliers (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	tax_id TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	address TEXT NOT NULL DEFAULT '',
	country TEXT NOT NULL DEFAULT '',
	default_payment_terms TEXT NOT NULL DEFAULT '',
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	is_verified BOOLEAN NOT NULL DEFAULT FALSE,
	risk_score INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS invoices (
	id TEXT PRIMARY KEY,
	invoice_number TEXT UNIQUE,
	supplier_id TEXT REFERENCES suppliers(id),
	invoice_date TIMESTAMPTZ,
	due_date TIMESTAMPTZ,
	total_amount NUMERIC(14,2) NOT NULL DEFAULT 0,
	tax_amount NUMERIC(14,2) NOT NULL DEFAULT 0,
	net_amount NUMERIC(14,2) NOT NULL DEFAULT 0,
	currency TEXT NOT NULL DEFAULT 'USD',
	po_number TEXT NOT NULL DEFAULT '',
	po_matched BOOLEAN NOT NULL DEFAULT FALSE,
	status TEXT NOT NULL,
	processing_status TEXT NOT NULL,
	confidence_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	is_touchless BOOLEAN NOT NULL DEFAULT FALSE,
	extracted_data JSONB,
	validation_errors JSONB NOT NULL DEFAULT '[]'::jsonb,
	early_payment_discount NUMERIC(14,2) NOT NULL DEFAULT 0,
	gl_account TEXT NOT NULL DEFAULT '',
	cost_center TEXT NOT NULL DEFAULT '',
	document_path TEXT NOT NULL,
	document_format TEXT NOT NULL,
	approval_status TEXT NOT NULL,
	approval_level TEXT NOT NULL DEFAULT '',
	approver_id BIGINT,
	approved_by BIGINT,
	approved_at TIMESTAMPTZ,
	rejection_reason TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	processing_error TEXT NOT NULL DEFAULT '',
	processing_time_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
	uploaded_by BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_invoices_status ON invoices(status);
CREATE INDEX IF NOT EXISTS idx_invoices_created_at ON invoices(created_at DESC);

CREATE TABLE IF NOT EXISTS audit_log (
	id TEXT PRIMARY KEY,
	entity_type TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	action TEXT NOT NULL,
	user_id BIGINT NOT NULL,
	details JSONB,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_log_entity ON audit_log(entity_type, entity_id, created_at);

INSERT INTO users (id, username, email, full_name, role) VALUES
	(1, 'admin', 'admin@example.com', 'System Administrator', 'admin'),
	(2, 'finance', 'finance@example.com', 'Finance Manager', 'finance_manager'),
	(3, 'approver', 'approver@example.com', 'Invoice Approver', 'approver'),
	(4, 'viewer', 'viewer@example.com', 'Read Only Viewer', 'viewer')
ON CONFLICT (id) DO NOTHING;
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func expectOneRow(result sql.Result, kind error, op, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if rows == 0 {
		return kindError(kind, op, id)
	}
	return nil
}

func kindError(kind error, op, id string) error {
	return domain.WrapError(kind, op, fmt.Errorf("id=%s", id))
}
