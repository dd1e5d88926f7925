package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"credit-engine/internal/engine"
	"credit-engine/internal/models"
)

// PaymentRepo is a database/sql implementation of the repository.PaymentRepository interface
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepository creates a new PaymentRepo
func NewPaymentRepository(db *sql.DB) *PaymentRepo {
	return &PaymentRepo{db: db}
}

const paymentColumns = `id, credit_id, amount, paid_at, status, reference, operator,
             voided_at, voided_by, void_reason, created_at`

// CreateTx appends a payment to the ledger within a transaction
func (r *PaymentRepo) CreateTx(ctx context.Context, tx *sql.Tx, p *models.Payment) error {
	query := `INSERT INTO payments (` + paymentColumns + `)
             VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	_, err := tx.ExecContext(
		ctx,
		query,
		p.ID,
		p.CreditID,
		p.Amount,
		p.PaidAt.UTC(),
		p.Status,
		p.Reference,
		p.Operator,
		utcPtr(p.VoidedAt),
		p.VoidedBy,
		p.VoidReason,
		p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// GetByID gets a payment by ID
func (r *PaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	p, err := scanPayment(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("payment %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return p, nil
}

// GetByCreditID returns the full ledger of a credit, voided entries included,
// in application order.
func (r *PaymentRepo) GetByCreditID(ctx context.Context, creditID uuid.UUID) ([]*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE credit_id = $1
             ORDER BY paid_at, created_at`

	rows, err := r.db.QueryContext(ctx, query, creditID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payments: %w", err)
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	models.SortPayments(payments)
	return payments, nil
}

// VoidTx records the void of a valid payment. It returns ErrConflict when the
// payment is no longer valid.
func (r *PaymentRepo) VoidTx(ctx context.Context, tx *sql.Tx, p *models.Payment) error {
	query := `UPDATE payments
             SET status = $1, voided_at = $2, voided_by = $3, void_reason = $4
             WHERE id = $5 AND status = $6`

	result, err := tx.ExecContext(
		ctx,
		query,
		engine.PaymentVoided,
		utcPtr(p.VoidedAt),
		p.VoidedBy,
		p.VoidReason,
		p.ID,
		engine.PaymentValid,
	)
	if err != nil {
		return fmt.Errorf("failed to void payment: %w", err)
	}
	return expectOne(result, fmt.Errorf("payment %s is not valid: %w", p.ID, ErrConflict))
}

func scanPayment(row rowScanner) (*models.Payment, error) {
	p := &models.Payment{}
	var voidedAt sql.NullTime
	err := row.Scan(
		&p.ID,
		&p.CreditID,
		&p.Amount,
		&p.PaidAt,
		&p.Status,
		&p.Reference,
		&p.Operator,
		&voidedAt,
		&p.VoidedBy,
		&p.VoidReason,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if voidedAt.Valid {
		t := voidedAt.Time
		p.VoidedAt = &t
	}
	return p, nil
}

func utcPtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
