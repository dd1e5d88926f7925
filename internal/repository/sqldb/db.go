// Package sqldb implements the repository interfaces on database/sql. The same
// queries run on PostgreSQL (lib/pq) and SQLite (mattn/go-sqlite3): both accept
// $n placeholders, and money is stored as NUMERIC or TEXT so no precision is
// lost. Placeholders must first appear in ascending order because SQLite binds
// them by position of first use.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when an optimistic version check fails.
	ErrConflict = errors.New("concurrent modification")
)

// dialect holds the column types that differ between drivers.
type dialect struct {
	uuid      string
	money     string
	timestamp string
}

var dialects = map[string]dialect{
	DriverPostgres: {uuid: "UUID", money: "NUMERIC", timestamp: "TIMESTAMPTZ"},
	DriverSQLite:   {uuid: "TEXT", money: "TEXT", timestamp: "TIMESTAMP"},
}

// Open connects to the database and applies per-driver connection settings.
func Open(driver, dsn string) (*sql.DB, error) {
	if _, ok := dialects[driver]; !ok {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	if driver == DriverSQLite {
		// a single writer connection keeps SQLite from returning SQLITE_BUSY
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
		if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}
	return db, nil
}

func schema(d dialect) []string {
	r := strings.NewReplacer("{uuid}", d.uuid, "{money}", d.money, "{ts}", d.timestamp)
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS credits (
			id               {uuid} PRIMARY KEY,
			client_ref       TEXT NOT NULL,
			borrower_email   TEXT NOT NULL DEFAULT '',
			principal        {money} NOT NULL,
			monthly_rate     {money} NOT NULL,
			term_months      {money} NOT NULL,
			frequency        TEXT NOT NULL,
			start_date       DATE NOT NULL,
			calendar         TEXT NOT NULL,
			periodic_payment {money} NOT NULL,
			maturity_date    DATE NOT NULL,
			status           TEXT NOT NULL,
			version          INTEGER NOT NULL DEFAULT 1,
			created_at       {ts} NOT NULL,
			updated_at       {ts} NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_credits_status ON credits (status)`,
		`CREATE INDEX IF NOT EXISTS idx_credits_calendar ON credits (calendar)`,
		`CREATE TABLE IF NOT EXISTS installments (
			credit_id {uuid} NOT NULL REFERENCES credits (id),
			number    INTEGER NOT NULL,
			due_date  DATE NOT NULL,
			principal {money} NOT NULL,
			interest  {money} NOT NULL,
			total     {money} NOT NULL,
			balance   {money} NOT NULL,
			PRIMARY KEY (credit_id, number)
		)`,
		`CREATE TABLE IF NOT EXISTS payments (
			id          {uuid} PRIMARY KEY,
			credit_id   {uuid} NOT NULL REFERENCES credits (id),
			amount      {money} NOT NULL,
			paid_at     {ts} NOT NULL,
			status      TEXT NOT NULL,
			reference   TEXT NOT NULL DEFAULT '',
			operator    TEXT NOT NULL,
			voided_at   {ts},
			voided_by   TEXT NOT NULL DEFAULT '',
			void_reason TEXT NOT NULL DEFAULT '',
			created_at  {ts} NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_credit ON payments (credit_id, paid_at)`,
		`CREATE TABLE IF NOT EXISTS holidays (
			calendar     TEXT NOT NULL,
			holiday_date DATE NOT NULL,
			name         TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (calendar, holiday_date)
		)`,
	}
	for i, s := range stmts {
		stmts[i] = r.Replace(s)
	}
	return stmts
}

// Migrate creates the tables if they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	d, ok := dialects[driver]
	if !ok {
		return fmt.Errorf("unsupported database driver %q", driver)
	}
	for _, stmt := range schema(d) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// expectOne turns a zero-row update into err.
func expectOne(result sql.Result, err error) error {
	rows, rerr := result.RowsAffected()
	if rerr != nil {
		return fmt.Errorf("failed to get rows affected: %w", rerr)
	}
	if rows == 0 {
		return err
	}
	return nil
}
