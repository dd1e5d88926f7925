package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"credit-engine/internal/engine"
	"credit-engine/internal/models"
)

// InstallmentRepo is a database/sql implementation of the repository.InstallmentRepository interface
type InstallmentRepo struct {
	db *sql.DB
}

// NewInstallmentRepository creates a new InstallmentRepo
func NewInstallmentRepository(db *sql.DB) *InstallmentRepo {
	return &InstallmentRepo{db: db}
}

// ReplaceTx swaps the whole schedule of a credit for rows.
func (r *InstallmentRepo) ReplaceTx(ctx context.Context, tx *sql.Tx, creditID uuid.UUID, rows []*models.Installment) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM installments WHERE credit_id = $1`, creditID); err != nil {
		return fmt.Errorf("failed to delete installments: %w", err)
	}
	for start := 0; start < len(rows); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := insertInstallments(ctx, tx, creditID, rows[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// insertBatchSize keeps each statement under the bind parameter limit.
const insertBatchSize = 100

func insertInstallments(ctx context.Context, tx *sql.Tx, creditID uuid.UUID, rows []*models.Installment) error {
	const cols = 7
	valueStrings := make([]string, 0, len(rows))
	valueArgs := make([]interface{}, 0, len(rows)*cols)

	for i, row := range rows {
		valueStrings = append(valueStrings, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			i*cols+1, i*cols+2, i*cols+3, i*cols+4, i*cols+5, i*cols+6, i*cols+7))

		valueArgs = append(valueArgs,
			creditID,
			row.Number,
			engine.DateOf(row.DueDate),
			row.Principal,
			row.Interest,
			row.Total,
			row.Balance,
		)
	}

	query := fmt.Sprintf(`INSERT INTO installments (credit_id, number, due_date, principal, interest, total, balance)
             VALUES %s`, strings.Join(valueStrings, ","))

	if _, err := tx.ExecContext(ctx, query, valueArgs...); err != nil {
		return fmt.Errorf("failed to insert installments: %w", err)
	}
	return nil
}

// GetByCreditID returns the schedule of a credit ordered by installment number
func (r *InstallmentRepo) GetByCreditID(ctx context.Context, creditID uuid.UUID) ([]*models.Installment, error) {
	query := `SELECT credit_id, number, due_date, principal, interest, total, balance
             FROM installments WHERE credit_id = $1
             ORDER BY number`

	rows, err := r.db.QueryContext(ctx, query, creditID)
	if err != nil {
		return nil, fmt.Errorf("failed to get installments: %w", err)
	}
	defer rows.Close()

	var installments []*models.Installment
	for rows.Next() {
		in := &models.Installment{}
		err := rows.Scan(
			&in.CreditID,
			&in.Number,
			&in.DueDate,
			&in.Principal,
			&in.Interest,
			&in.Total,
			&in.Balance,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan installment: %w", err)
		}
		in.DueDate = engine.DateOf(in.DueDate)
		installments = append(installments, in)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return installments, nil
}
