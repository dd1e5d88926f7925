package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"credit-engine/internal/engine"
)

// CreditProvision is one credit's line in a provisioning report.
type CreditProvision struct {
	CreditID         uuid.UUID        `json:"credit_id"`
	ClientRef        string           `json:"client_ref"`
	LateDays         int              `json:"late_days"`
	RemainingBalance decimal.Decimal  `json:"remaining_balance"`
	Provision        engine.Provision `json:"provision"`
}

// ProvisioningReport is the loss reserve position of the active portfolio.
type ProvisioningReport struct {
	AsOf    time.Time               `json:"as_of"`
	Summary engine.PortfolioSummary `json:"summary"`
	Credits []CreditProvision       `json:"credits"`
}
