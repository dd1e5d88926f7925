package engine

import (
	"errors"
	"fmt"
)

// Kind groups engine errors so callers can react to a class of failure.
type Kind string

const (
	KindValidation Kind = "validation"
	KindScheduling Kind = "scheduling"
	KindState      Kind = "state"
)

// Error implements error so a Kind can be matched with errors.Is.
func (k Kind) Error() string { return string(k) + " error" }

var (
	// ErrInvalidTerms is returned when loan terms fail validation.
	ErrInvalidTerms = errors.New("invalid loan terms")

	// ErrInvalidAmount is returned for non-positive payment amounts.
	ErrInvalidAmount = errors.New("payment amount must be positive")

	// ErrInvalidRules is returned when a rule table is not a gapless ascending
	// partition of [0, inf) or when the delinquency and provisioning tables disagree.
	ErrInvalidRules = errors.New("invalid rule table")

	// ErrUnresolvableDate is returned when the holiday calendar blocks every
	// candidate date for an installment.
	ErrUnresolvableDate = errors.New("no business date available")

	// ErrNoOutstandingBalance is returned when a payment targets a settled loan.
	ErrNoOutstandingBalance = errors.New("no outstanding balance")

	// ErrExceedsBalance is returned when a payment is larger than the remaining balance.
	ErrExceedsBalance = errors.New("payment exceeds outstanding balance")

	// ErrAlreadyVoided is returned when voiding a payment that is already voided.
	ErrAlreadyVoided = errors.New("payment already voided")

	// ErrStaleLedger is returned when a ledger state was computed for a different
	// date than the payment being applied.
	ErrStaleLedger = errors.New("ledger state does not match payment date")
)

var kinds = map[error]Kind{
	ErrInvalidTerms:         KindValidation,
	ErrInvalidAmount:        KindValidation,
	ErrInvalidRules:         KindValidation,
	ErrUnresolvableDate:     KindScheduling,
	ErrNoOutstandingBalance: KindState,
	ErrExceedsBalance:       KindState,
	ErrAlreadyVoided:        KindState,
	ErrStaleLedger:          KindState,
}

// Error wraps an engine failure with the operation that produced it.
type Error struct {
	// Op is the engine operation that failed, e.g. "GenerateSchedule".
	Op string

	// Kind classifies the failure.
	Kind Kind

	// Err is the underlying sentinel error.
	Err error

	// Details is a human readable explanation.
	Details string
}

func (e *Error) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Err, e.Details)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches both the sentinel (via Unwrap) and the error kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

func newError(op string, sentinel error, format string, args ...interface{}) error {
	return &Error{
		Op:      op,
		Kind:    kinds[sentinel],
		Err:     sentinel,
		Details: fmt.Sprintf(format, args...),
	}
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool { return errors.Is(err, KindValidation) }

// IsScheduling reports whether err is a scheduling failure.
func IsScheduling(err error) bool { return errors.Is(err, KindScheduling) }

// IsState reports whether err is a ledger state failure.
func IsState(err error) bool { return errors.Is(err, KindState) }

// mustHold panics when an internal invariant is broken. These indicate bugs in
// the amortization math and must never be swallowed.
func mustHold(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(fmt.Sprintf("engine invariant violated: "+format, args...))
	}
}
