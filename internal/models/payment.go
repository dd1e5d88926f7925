package models

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"credit-engine/internal/engine"
)

// Payment is a persisted ledger entry. Entries are never deleted; voiding
// flips the status and records who did it.
type Payment struct {
	ID         uuid.UUID            `json:"id" db:"id"`
	CreditID   uuid.UUID            `json:"credit_id" db:"credit_id"`
	Amount     decimal.Decimal      `json:"amount" db:"amount"`
	PaidAt     time.Time            `json:"paid_at" db:"paid_at"`
	Status     engine.PaymentStatus `json:"status" db:"status"`
	Reference  string               `json:"reference,omitempty" db:"reference"`
	Operator   string               `json:"operator" db:"operator"`
	VoidedAt   *time.Time           `json:"voided_at,omitempty" db:"voided_at"`
	VoidedBy   string               `json:"voided_by,omitempty" db:"voided_by"`
	VoidReason string               `json:"void_reason,omitempty" db:"void_reason"`
	CreatedAt  time.Time            `json:"created_at" db:"created_at"`
}

// Ledger converts the record to the engine's payment.
func (p *Payment) Ledger() engine.Payment {
	return engine.Payment{
		ID:         p.ID,
		Amount:     p.Amount,
		Timestamp:  p.PaidAt,
		Status:     p.Status,
		Reference:  p.Reference,
		Operator:   p.Operator,
		VoidedAt:   p.VoidedAt,
		VoidedBy:   p.VoidedBy,
		VoidReason: p.VoidReason,
	}
}

// SetVoid copies void metadata from the engine's payment.
func (p *Payment) SetVoid(lp engine.Payment) {
	p.Status = lp.Status
	p.VoidedAt = lp.VoidedAt
	p.VoidedBy = lp.VoidedBy
	p.VoidReason = lp.VoidReason
}

// LedgerPayments converts records to engine payments.
func LedgerPayments(payments []*Payment) []engine.Payment {
	out := make([]engine.Payment, 0, len(payments))
	for _, p := range payments {
		out = append(out, p.Ledger())
	}
	return out
}

// SortPayments orders payments by payment time, then by creation time.
func SortPayments(payments []*Payment) {
	sort.SliceStable(payments, func(i, j int) bool {
		if !payments[i].PaidAt.Equal(payments[j].PaidAt) {
			return payments[i].PaidAt.Before(payments[j].PaidAt)
		}
		return payments[i].CreatedAt.Before(payments[j].CreatedAt)
	})
}

// LatestValid returns the latest payment time among valid payments, or the
// zero time when there are none.
func LatestValid(payments []*Payment) time.Time {
	var latest time.Time
	for _, p := range payments {
		if p.Status == engine.PaymentValid && p.PaidAt.After(latest) {
			latest = p.PaidAt
		}
	}
	return latest
}

// PaymentRequest represents an incoming payment
type PaymentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	PaidAt    *time.Time      `json:"paid_at,omitempty"`
	Reference string          `json:"reference,omitempty"`
	Operator  string          `json:"operator"`
}

// Validate validates payment request data
func (r *PaymentRequest) Validate() error {
	if strings.TrimSpace(r.Operator) == "" {
		return fmt.Errorf("%w: operator is required", ErrInvalidRequest)
	}
	return nil
}

// VoidRequest asks for a payment to be voided. Approval happens before the
// request reaches this service.
type VoidRequest struct {
	Operator string `json:"operator"`
	Reason   string `json:"reason"`
}

// Validate validates void request data
func (r *VoidRequest) Validate() error {
	if strings.TrimSpace(r.Operator) == "" {
		return fmt.Errorf("%w: operator is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(r.Reason) == "" {
		return fmt.Errorf("%w: reason is required", ErrInvalidRequest)
	}
	return nil
}

// PaymentResponse is returned after a payment is applied.
type PaymentResponse struct {
	Payment    *Payment           `json:"payment"`
	Allocation engine.Allocation  `json:"allocation"`
	Ledger     engine.LedgerState `json:"ledger"`
}

// Receipt reconstructs how a payment was allocated when it was applied.
type Receipt struct {
	Payment    *Payment           `json:"payment"`
	CreditID   uuid.UUID          `json:"credit_id"`
	ClientRef  string             `json:"client_ref"`
	Allocation engine.Allocation  `json:"allocation"`
	Before     engine.LedgerState `json:"before"`
	After      engine.LedgerState `json:"after"`
	Voided     bool               `json:"voided"`
}
