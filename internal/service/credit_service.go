package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"credit-engine/configs"
	"credit-engine/internal/engine"
	"credit-engine/internal/models"
	"credit-engine/internal/repository"
)

// CreditSvc is an implementation of the service.CreditService interface
type CreditSvc struct {
	repos   *repository.Repository
	logger  *logrus.Logger
	config  *configs.Config
	engine  *engine.Engine
	locks   *creditLocks
	ledgers *ledgerLoader
}

// NewCreditService creates a new CreditSvc
func NewCreditService(deps Dependencies, locks *creditLocks, ledgers *ledgerLoader) *CreditSvc {
	return &CreditSvc{
		repos:   deps.Repos,
		logger:  deps.Logger,
		config:  deps.Config,
		engine:  deps.Engine,
		locks:   locks,
		ledgers: ledgers,
	}
}

// Create originates a credit: the schedule is generated against the credit's
// holiday calendar and stored together with the credit.
func (s *CreditSvc) Create(ctx context.Context, req *models.CreditRequest) (*models.Credit, error) {
	credit, err := req.ToCredit(s.config.Engine.DefaultCalendar)
	if err != nil {
		return nil, fmt.Errorf("invalid credit request: %w", err)
	}

	cal, err := loadCalendar(ctx, s.repos, credit.Calendar)
	if err != nil {
		return nil, err
	}

	schedule, err := engine.GenerateSchedule(credit.Terms(cal))
	if err != nil {
		return nil, fmt.Errorf("failed to generate schedule: %w", err)
	}
	credit.ApplySchedule(schedule)

	err = inTx(ctx, s.repos, func(tx *sql.Tx) error {
		if err := s.repos.Credit.CreateTx(ctx, tx, credit); err != nil {
			return err
		}
		return s.repos.Installment.ReplaceTx(ctx, tx, credit.ID, models.InstallmentsFromSchedule(credit.ID, schedule))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create credit: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"credit_id":    credit.ID,
		"client_ref":   credit.ClientRef,
		"principal":    credit.Principal.StringFixed(2),
		"frequency":    credit.Frequency.String(),
		"installments": len(schedule.Installments),
	}).Info("Credit created")

	return credit, nil
}

// GetByID gets a credit by ID
func (s *CreditSvc) GetByID(ctx context.Context, id uuid.UUID) (*models.Credit, error) {
	credit, err := s.repos.Credit.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get credit: %w", err)
	}
	return credit, nil
}

// List lists credits matching filter
func (s *CreditSvc) List(ctx context.Context, filter models.CreditFilter) ([]*models.Credit, error) {
	credits, err := s.repos.Credit.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list credits: %w", err)
	}
	return credits, nil
}

// GetSchedule returns the schedule of a credit with per-installment coverage
// as of asOf.
func (s *CreditSvc) GetSchedule(ctx context.Context, id uuid.UUID, asOf time.Time) (*models.ScheduleResponse, error) {
	credit, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	state, err := s.ledgers.state(ctx, credit, asOf)
	if err != nil {
		return nil, err
	}

	return &models.ScheduleResponse{
		CreditID:        credit.ID,
		AsOf:            state.AsOf,
		PeriodicPayment: credit.PeriodicPayment,
		Summary:         models.CalculateScheduleSummary(state),
		Installments:    state.Installments,
	}, nil
}

// GetStatus returns the ledger state and provisioning of a credit as of asOf.
func (s *CreditSvc) GetStatus(ctx context.Context, id uuid.UUID, asOf time.Time) (*models.CreditStatusResponse, error) {
	credit, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	state, err := s.ledgers.state(ctx, credit, asOf)
	if err != nil {
		return nil, err
	}

	return &models.CreditStatusResponse{
		Credit:    credit,
		Ledger:    state,
		Provision: s.engine.Categorize(state.LateDays, state.RemainingBalance),
	}, nil
}

// Resync regenerates the schedule of a credit against the current state of its
// holiday calendar. Amounts do not depend on the calendar, so only due dates
// and the maturity date can move.
func (s *CreditSvc) Resync(ctx context.Context, id uuid.UUID) (*models.Credit, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	credit, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	cal, err := loadCalendar(ctx, s.repos, credit.Calendar)
	if err != nil {
		return nil, err
	}

	schedule, err := engine.GenerateSchedule(credit.Terms(cal))
	if err != nil {
		return nil, fmt.Errorf("failed to regenerate schedule: %w", err)
	}
	credit.ApplySchedule(schedule)

	err = inTx(ctx, s.repos, func(tx *sql.Tx) error {
		if err := s.repos.Credit.BumpVersionTx(ctx, tx, credit.ID, credit.Version); err != nil {
			return err
		}
		if err := s.repos.Installment.ReplaceTx(ctx, tx, credit.ID, models.InstallmentsFromSchedule(credit.ID, schedule)); err != nil {
			return err
		}
		return s.repos.Credit.UpdateScheduleTx(ctx, tx, credit)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resync credit %s: %w", credit.ID, err)
	}
	credit.Version++

	s.logger.Infof("Credit %s resynced against calendar %s, maturity %s",
		credit.ID, credit.Calendar, credit.MaturityDate.Format(time.DateOnly))

	return credit, nil
}

// ResyncAll resyncs every active credit using calendar. A failure on one
// credit does not stop the others; all failures are returned together.
func (s *CreditSvc) ResyncAll(ctx context.Context, calendar string) (int, error) {
	credits, err := s.repos.Credit.List(ctx, models.CreditFilter{Status: models.CreditStatusActive, Calendar: calendar})
	if err != nil {
		return 0, fmt.Errorf("failed to list credits: %w", err)
	}

	var (
		done int
		errs []error
	)
	for _, c := range credits {
		if _, err := s.Resync(ctx, c.ID); err != nil {
			s.logger.Warnf("Failed to resync credit %s: %v", c.ID, err)
			errs = append(errs, err)
			continue
		}
		done++
	}

	s.logger.Infof("Resynced %d of %d credits on calendar %s", done, len(credits), calendar)
	return done, errors.Join(errs...)
}
