package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"credit-engine/internal/engine"
	"credit-engine/internal/models"
)

// CreditRepo is a database/sql implementation of the repository.CreditRepository interface
type CreditRepo struct {
	db *sql.DB
}

// NewCreditRepository creates a new CreditRepo
func NewCreditRepository(db *sql.DB) *CreditRepo {
	return &CreditRepo{db: db}
}

const creditColumns = `id, client_ref, borrower_email, principal, monthly_rate, term_months,
             frequency, start_date, calendar, periodic_payment, maturity_date, status,
             version, created_at, updated_at`

// Create creates a new credit in the database
func (r *CreditRepo) Create(ctx context.Context, credit *models.Credit) error {
	return r.create(ctx, r.db, credit)
}

// CreateTx creates a new credit within a transaction
func (r *CreditRepo) CreateTx(ctx context.Context, tx *sql.Tx, credit *models.Credit) error {
	return r.create(ctx, tx, credit)
}

func (r *CreditRepo) create(ctx context.Context, q querier, credit *models.Credit) error {
	query := `INSERT INTO credits (` + creditColumns + `)
             VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	now := time.Now().UTC()
	if credit.CreatedAt.IsZero() {
		credit.CreatedAt = now
	}
	credit.UpdatedAt = now
	if credit.Version == 0 {
		credit.Version = 1
	}

	_, err := q.ExecContext(
		ctx,
		query,
		credit.ID,
		credit.ClientRef,
		credit.BorrowerEmail,
		credit.Principal,
		credit.MonthlyRate,
		credit.TermMonths,
		credit.Frequency.String(),
		engine.DateOf(credit.StartDate),
		credit.Calendar,
		credit.PeriodicPayment,
		engine.DateOf(credit.MaturityDate),
		credit.Status,
		credit.Version,
		credit.CreatedAt,
		credit.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create credit: %w", err)
	}

	return nil
}

// GetByID gets a credit by ID
func (r *CreditRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Credit, error) {
	query := `SELECT ` + creditColumns + ` FROM credits WHERE id = $1`

	credit, err := scanCredit(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("credit %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get credit: %w", err)
	}

	return credit, nil
}

// List returns credits matching filter, oldest first
func (r *CreditRepo) List(ctx context.Context, filter models.CreditFilter) ([]*models.Credit, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.ClientRef != "" {
		args = append(args, filter.ClientRef)
		conds = append(conds, fmt.Sprintf("client_ref = $%d", len(args)))
	}
	if filter.Calendar != "" {
		args = append(args, filter.Calendar)
		conds = append(conds, fmt.Sprintf("calendar = $%d", len(args)))
	}

	query := `SELECT ` + creditColumns + ` FROM credits`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get credits: %w", err)
	}
	defer rows.Close()

	return scanCredits(rows)
}

// GetActiveCredits gets all credits that still have an outstanding balance
func (r *CreditRepo) GetActiveCredits(ctx context.Context) ([]*models.Credit, error) {
	return r.List(ctx, models.CreditFilter{Status: models.CreditStatusActive})
}

// UpdateStatusTx sets the lifecycle status of a credit
func (r *CreditRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, status models.CreditStatus) error {
	query := `UPDATE credits SET status = $1, updated_at = $2 WHERE id = $3`

	result, err := tx.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update credit status: %w", err)
	}
	return expectOne(result, fmt.Errorf("credit %s: %w", id, ErrNotFound))
}

// UpdateScheduleTx stores the schedule-derived fields of a credit
func (r *CreditRepo) UpdateScheduleTx(ctx context.Context, tx *sql.Tx, credit *models.Credit) error {
	query := `UPDATE credits
             SET periodic_payment = $1, maturity_date = $2, updated_at = $3
             WHERE id = $4`

	result, err := tx.ExecContext(
		ctx,
		query,
		credit.PeriodicPayment,
		engine.DateOf(credit.MaturityDate),
		time.Now().UTC(),
		credit.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update credit schedule: %w", err)
	}
	return expectOne(result, fmt.Errorf("credit %s: %w", credit.ID, ErrNotFound))
}

// BumpVersionTx increments the credit version if it still equals expected.
// It returns ErrConflict when another writer got there first.
func (r *CreditRepo) BumpVersionTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, expected int) error {
	query := `UPDATE credits SET version = version + 1, updated_at = $1
             WHERE id = $2 AND version = $3`

	result, err := tx.ExecContext(ctx, query, time.Now().UTC(), id, expected)
	if err != nil {
		return fmt.Errorf("failed to bump credit version: %w", err)
	}
	return expectOne(result, fmt.Errorf("credit %s version %d: %w", id, expected, ErrConflict))
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCredit(row rowScanner) (*models.Credit, error) {
	credit := &models.Credit{}
	var freq string
	err := row.Scan(
		&credit.ID,
		&credit.ClientRef,
		&credit.BorrowerEmail,
		&credit.Principal,
		&credit.MonthlyRate,
		&credit.TermMonths,
		&freq,
		&credit.StartDate,
		&credit.Calendar,
		&credit.PeriodicPayment,
		&credit.MaturityDate,
		&credit.Status,
		&credit.Version,
		&credit.CreatedAt,
		&credit.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	credit.Frequency, err = engine.ParseFrequency(freq)
	if err != nil {
		return nil, fmt.Errorf("credit %s: %w", credit.ID, err)
	}
	credit.StartDate = engine.DateOf(credit.StartDate)
	credit.MaturityDate = engine.DateOf(credit.MaturityDate)
	return credit, nil
}

// Helper function to scan multiple credits
func scanCredits(rows *sql.Rows) ([]*models.Credit, error) {
	var credits []*models.Credit

	for rows.Next() {
		credit, err := scanCredit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan credit: %w", err)
		}
		credits = append(credits, credit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return credits, nil
}
