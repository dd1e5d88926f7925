package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"credit-engine/internal/engine"
	"credit-engine/internal/models"
	"credit-engine/internal/repository"
)

// PaymentSvc is an implementation of the service.PaymentService interface
type PaymentSvc struct {
	repos   *repository.Repository
	logger  *logrus.Logger
	engine  *engine.Engine
	locks   *creditLocks
	ledgers *ledgerLoader
	now     func() time.Time
}

// NewPaymentService creates a new PaymentSvc
func NewPaymentService(deps Dependencies, locks *creditLocks, ledgers *ledgerLoader) *PaymentSvc {
	return &PaymentSvc{
		repos:   deps.Repos,
		logger:  deps.Logger,
		engine:  deps.Engine,
		locks:   locks,
		ledgers: ledgers,
		now:     deps.Clock,
	}
}

// Apply allocates a payment to a credit and appends it to the ledger.
// Payments on one credit are applied one at a time and in timestamp order.
func (s *PaymentSvc) Apply(ctx context.Context, creditID uuid.UUID, req *models.PaymentRequest) (*models.PaymentResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	paidAt := now
	if req.PaidAt != nil {
		paidAt = *req.PaidAt
	}
	if paidAt.After(now) {
		return nil, fmt.Errorf("%w: paid_at %s is in the future", models.ErrInvalidRequest, paidAt.Format(time.RFC3339))
	}
	paidAt = paidAt.In(s.ledgers.loc)

	unlock := s.locks.Lock(creditID)
	defer unlock()

	credit, err := s.repos.Credit.GetByID(ctx, creditID)
	if err != nil {
		return nil, fmt.Errorf("failed to get credit: %w", err)
	}

	schedule, ledger, err := s.ledgers.ledger(ctx, credit)
	if err != nil {
		return nil, err
	}
	if latest := models.LatestValid(ledger); paidAt.Before(latest) {
		return nil, fmt.Errorf("%w: %s is before %s", ErrOutOfOrder,
			paidAt.Format(time.RFC3339), latest.Format(time.RFC3339))
	}

	state := s.engine.ComputeStatus(schedule, models.LedgerPayments(ledger), paidAt)
	result, err := s.engine.ApplyPayment(state, req.Amount, paidAt)
	if err != nil {
		return nil, fmt.Errorf("failed to apply payment to credit %s: %w", credit.ID, err)
	}

	payment := &models.Payment{
		ID:        uuid.New(),
		CreditID:  credit.ID,
		Amount:    req.Amount,
		PaidAt:    paidAt,
		Status:    engine.PaymentValid,
		Reference: req.Reference,
		Operator:  req.Operator,
		CreatedAt: now.UTC(),
	}

	settled := result.Updated.Settled()
	err = inTx(ctx, s.repos, func(tx *sql.Tx) error {
		if err := s.repos.Credit.BumpVersionTx(ctx, tx, credit.ID, credit.Version); err != nil {
			return err
		}
		if err := s.repos.Payment.CreateTx(ctx, tx, payment); err != nil {
			return err
		}
		if settled && credit.Status != models.CreditStatusSettled {
			return s.repos.Credit.UpdateStatusTx(ctx, tx, credit.ID, models.CreditStatusSettled)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"credit_id":  credit.ID,
		"payment_id": payment.ID,
		"amount":     payment.Amount.StringFixed(2),
		"overdue":    result.Allocation.Overdue.StringFixed(2),
		"due_today":  result.Allocation.DueToday.StringFixed(2),
		"advance":    result.Allocation.Advance.StringFixed(2),
		"settled":    settled,
	}).Info("Payment applied")

	return &models.PaymentResponse{
		Payment:    payment,
		Allocation: result.Allocation,
		Ledger:     result.Updated,
	}, nil
}

// Void flips a valid payment to voided. The credit is reopened if the void
// leaves a balance outstanding.
func (s *PaymentSvc) Void(ctx context.Context, paymentID uuid.UUID, req *models.VoidRequest) (*models.Payment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	payment, err := s.ledgers.payment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(payment.CreditID)
	defer unlock()

	credit, err := s.repos.Credit.GetByID(ctx, payment.CreditID)
	if err != nil {
		return nil, fmt.Errorf("failed to get credit: %w", err)
	}
	schedule, ledger, err := s.ledgers.ledger(ctx, credit)
	if err != nil {
		return nil, err
	}

	now := s.now().In(s.ledgers.loc)
	var target *models.Payment
	for _, p := range ledger {
		if p.ID == paymentID {
			target = p
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("payment %s: %w", paymentID, repository.ErrNotFound)
	}

	lp := target.Ledger()
	if err := engine.VoidPayment(&lp, req.Operator, req.Reason, now.UTC()); err != nil {
		return nil, err
	}
	target.SetVoid(lp)

	reopen := credit.Status == models.CreditStatusSettled &&
		!s.engine.ComputeStatus(schedule, models.LedgerPayments(ledger), now).Settled()

	err = inTx(ctx, s.repos, func(tx *sql.Tx) error {
		if err := s.repos.Credit.BumpVersionTx(ctx, tx, credit.ID, credit.Version); err != nil {
			return err
		}
		if err := s.repos.Payment.VoidTx(ctx, tx, target); err != nil {
			return err
		}
		if reopen {
			return s.repos.Credit.UpdateStatusTx(ctx, tx, credit.ID, models.CreditStatusActive)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to void payment: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"credit_id":  credit.ID,
		"payment_id": target.ID,
		"voided_by":  target.VoidedBy,
		"reason":     target.VoidReason,
		"reopened":   reopen,
	}).Warn("Payment voided")

	return target, nil
}

// List returns the ledger of a credit, voided payments included
func (s *PaymentSvc) List(ctx context.Context, creditID uuid.UUID) ([]*models.Payment, error) {
	if _, err := s.repos.Credit.GetByID(ctx, creditID); err != nil {
		return nil, fmt.Errorf("failed to get credit: %w", err)
	}
	payments, err := s.repos.Payment.GetByCreditID(ctx, creditID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payments: %w", err)
	}
	for _, p := range payments {
		s.ledgers.local(p)
	}
	return payments, nil
}

// Receipt reconstructs the allocation of a payment from the ledger as it stood
// just before the payment. Payments voided since then are left out, so the
// receipt reflects the current view of history.
func (s *PaymentSvc) Receipt(ctx context.Context, paymentID uuid.UUID) (*models.Receipt, error) {
	payment, err := s.ledgers.payment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	credit, err := s.repos.Credit.GetByID(ctx, payment.CreditID)
	if err != nil {
		return nil, fmt.Errorf("failed to get credit: %w", err)
	}
	schedule, ledger, err := s.ledgers.ledger(ctx, credit)
	if err != nil {
		return nil, err
	}

	var prior []engine.Payment
	for _, p := range ledger {
		if p.ID == payment.ID {
			break
		}
		prior = append(prior, p.Ledger())
	}

	before := s.engine.ComputeStatus(schedule, prior, payment.PaidAt)
	result, err := s.engine.ApplyPayment(before, payment.Amount, payment.PaidAt)
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct payment %s: %w", payment.ID, err)
	}

	return &models.Receipt{
		Payment:    payment,
		CreditID:   credit.ID,
		ClientRef:  credit.ClientRef,
		Allocation: result.Allocation,
		Before:     before,
		After:      result.Updated,
		Voided:     payment.Status == engine.PaymentVoided,
	}, nil
}
