package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"credit-engine/internal/models"
	"credit-engine/internal/repository/sqldb"
)

var (
	// ErrNotFound is wrapped by every lookup that finds nothing.
	ErrNotFound = sqldb.ErrNotFound

	// ErrConflict is returned when a credit was modified concurrently.
	ErrConflict = sqldb.ErrConflict
)

// TransactionManager defines methods for transaction management
type TransactionManager interface {
	BeginTx(ctx context.Context) (*sql.Tx, error)
	CommitTx(tx *sql.Tx) error
	RollbackTx(tx *sql.Tx) error
}

// CreditRepository defines methods for credit repository
type CreditRepository interface {
	Create(ctx context.Context, credit *models.Credit) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Credit, error)
	List(ctx context.Context, filter models.CreditFilter) ([]*models.Credit, error)
	GetActiveCredits(ctx context.Context) ([]*models.Credit, error)

	// Transaction-specific methods
	CreateTx(ctx context.Context, tx *sql.Tx, credit *models.Credit) error
	UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, status models.CreditStatus) error
	UpdateScheduleTx(ctx context.Context, tx *sql.Tx, credit *models.Credit) error
	BumpVersionTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, expected int) error
}

// InstallmentRepository defines methods for schedule storage
type InstallmentRepository interface {
	GetByCreditID(ctx context.Context, creditID uuid.UUID) ([]*models.Installment, error)

	// Transaction-specific methods
	ReplaceTx(ctx context.Context, tx *sql.Tx, creditID uuid.UUID, rows []*models.Installment) error
}

// PaymentRepository defines methods for the append-only payment ledger
type PaymentRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	GetByCreditID(ctx context.Context, creditID uuid.UUID) ([]*models.Payment, error)

	// Transaction-specific methods
	CreateTx(ctx context.Context, tx *sql.Tx, payment *models.Payment) error
	VoidTx(ctx context.Context, tx *sql.Tx, payment *models.Payment) error
}

// HolidayRepository defines methods for holiday calendars
type HolidayRepository interface {
	Add(ctx context.Context, holiday *models.Holiday) (bool, error)
	AddBatch(ctx context.Context, holidays []*models.Holiday) (int, error)
	Remove(ctx context.Context, calendar string, date time.Time) error
	GetByCalendar(ctx context.Context, calendar string) ([]*models.Holiday, error)
	Calendars(ctx context.Context) ([]string, error)
}

// Repository is a composition of all repositories
type Repository struct {
	DB          *sql.DB
	Credit      CreditRepository
	Installment InstallmentRepository
	Payment     PaymentRepository
	Holiday     HolidayRepository
}

// NewRepository creates a new repository with all sub-repositories
func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		DB:          db,
		Credit:      sqldb.NewCreditRepository(db),
		Installment: sqldb.NewInstallmentRepository(db),
		Payment:     sqldb.NewPaymentRepository(db),
		Holiday:     sqldb.NewHolidayRepository(db),
	}
}

// BeginTx begins a new transaction
func (r *Repository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return r.DB.BeginTx(ctx, nil)
}

// CommitTx commits a transaction
func (r *Repository) CommitTx(tx *sql.Tx) error {
	return tx.Commit()
}

// RollbackTx rolls back a transaction
func (r *Repository) RollbackTx(tx *sql.Tx) error {
	return tx.Rollback()
}
