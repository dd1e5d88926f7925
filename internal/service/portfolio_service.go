package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"credit-engine/internal/engine"
	"credit-engine/internal/models"
	"credit-engine/internal/repository"
)

// PortfolioSvc is an implementation of the service.PortfolioService interface
type PortfolioSvc struct {
	repos   *repository.Repository
	logger  *logrus.Logger
	engine  *engine.Engine
	ledgers *ledgerLoader
}

// NewPortfolioService creates a new PortfolioSvc
func NewPortfolioService(deps Dependencies, ledgers *ledgerLoader) *PortfolioSvc {
	return &PortfolioSvc{
		repos:   deps.Repos,
		logger:  deps.Logger,
		engine:  deps.Engine,
		ledgers: ledgers,
	}
}

// ProvisioningReport categorizes every credit that was disbursed and not yet
// repaid as of asOf and totals the required reserve per bucket.
func (s *PortfolioSvc) ProvisioningReport(ctx context.Context, asOf time.Time) (*models.ProvisioningReport, error) {
	asOf = engine.DateOf(asOf)

	credits, err := s.repos.Credit.List(ctx, models.CreditFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list credits: %w", err)
	}

	report := &models.ProvisioningReport{AsOf: asOf, Credits: []models.CreditProvision{}}
	var states []engine.LedgerState
	for _, credit := range credits {
		if credit.StartDate.After(asOf) {
			continue
		}
		state, err := s.ledgers.state(ctx, credit, asOf)
		if err != nil {
			return nil, fmt.Errorf("credit %s: %w", credit.ID, err)
		}
		if state.Settled() {
			continue
		}

		states = append(states, state)
		report.Credits = append(report.Credits, models.CreditProvision{
			CreditID:         credit.ID,
			ClientRef:        credit.ClientRef,
			LateDays:         state.LateDays,
			RemainingBalance: state.RemainingBalance,
			Provision:        s.engine.Categorize(state.LateDays, state.RemainingBalance),
		})
	}
	report.Summary = s.engine.SummarizePortfolio(states)

	s.logger.WithFields(logrus.Fields{
		"as_of":     asOf.Format(time.DateOnly),
		"loans":     report.Summary.Loans,
		"balance":   report.Summary.Balance.StringFixed(2),
		"provision": report.Summary.ProvisionAmount.StringFixed(2),
	}).Info("Provisioning report built")

	return report, nil
}
