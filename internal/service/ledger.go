package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"credit-engine/internal/engine"
	"credit-engine/internal/models"
	"credit-engine/internal/repository"
)

// ErrOutOfOrder is returned for a payment dated before the latest valid
// payment of the same credit.
var ErrOutOfOrder = errors.New("payment predates the latest valid payment")

// creditLocks serializes writers per credit inside this process. The version
// check in the database catches writers in other processes.
type creditLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*creditLock
}

type creditLock struct {
	sync.Mutex
	refs int
}

func newCreditLocks() *creditLocks {
	return &creditLocks{locks: make(map[uuid.UUID]*creditLock)}
}

// Lock blocks until the caller holds the lock for id and returns the unlock func.
func (l *creditLocks) Lock(id uuid.UUID) func() {
	l.mu.Lock()
	lk, ok := l.locks[id]
	if !ok {
		lk = &creditLock{}
		l.locks[id] = lk
	}
	lk.refs++
	l.mu.Unlock()

	lk.Lock()
	return func() {
		lk.Unlock()
		l.mu.Lock()
		lk.refs--
		if lk.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

// ledgerLoader reads what the engine needs to evaluate one credit. Payment
// timestamps leave it in the business zone, so the live allocation and every
// later rebuild agree on the day each payment falls on.
type ledgerLoader struct {
	repos  *repository.Repository
	engine *engine.Engine
	loc    *time.Location
}

// local moves p's timestamps into the business zone.
func (l *ledgerLoader) local(p *models.Payment) *models.Payment {
	p.PaidAt = p.PaidAt.In(l.loc)
	if p.VoidedAt != nil {
		v := p.VoidedAt.In(l.loc)
		p.VoidedAt = &v
	}
	return p
}

// payment reads one payment in the business zone.
func (l *ledgerLoader) payment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	p, err := l.repos.Payment.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return l.local(p), nil
}

func (l *ledgerLoader) schedule(ctx context.Context, credit *models.Credit) (engine.Schedule, error) {
	rows, err := l.repos.Installment.GetByCreditID(ctx, credit.ID)
	if err != nil {
		return engine.Schedule{}, fmt.Errorf("failed to get schedule: %w", err)
	}
	if len(rows) == 0 {
		return engine.Schedule{}, fmt.Errorf("credit %s has no schedule", credit.ID)
	}
	return models.ToSchedule(credit.PeriodicPayment, rows), nil
}

// ledger loads the schedule and the full payment ledger of credit.
func (l *ledgerLoader) ledger(ctx context.Context, credit *models.Credit) (engine.Schedule, []*models.Payment, error) {
	s, err := l.schedule(ctx, credit)
	if err != nil {
		return engine.Schedule{}, nil, err
	}
	payments, err := l.repos.Payment.GetByCreditID(ctx, credit.ID)
	if err != nil {
		return engine.Schedule{}, nil, fmt.Errorf("failed to get payments: %w", err)
	}
	for _, p := range payments {
		l.local(p)
	}
	return s, payments, nil
}

// state computes the ledger state of credit as of asOf.
func (l *ledgerLoader) state(ctx context.Context, credit *models.Credit, asOf time.Time) (engine.LedgerState, error) {
	s, payments, err := l.ledger(ctx, credit)
	if err != nil {
		return engine.LedgerState{}, err
	}
	return l.engine.ComputeStatus(s, models.LedgerPayments(payments), asOf), nil
}

// inTx runs fn in a transaction, rolling back when fn fails.
func inTx(ctx context.Context, repos *repository.Repository, fn func(tx *sql.Tx) error) (err error) {
	tx, err := repos.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			repos.RollbackTx(tx)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = repos.CommitTx(tx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// loadCalendar reads a named holiday calendar into the engine's form.
func loadCalendar(ctx context.Context, repos *repository.Repository, name string) (*engine.Calendar, error) {
	holidays, err := repos.Holiday.GetByCalendar(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to load calendar %s: %w", name, err)
	}
	cal := engine.NewCalendar()
	for _, h := range holidays {
		cal.Add(h.Date)
	}
	return cal, nil
}
