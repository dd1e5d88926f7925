package engine

import (
	"github.com/shopspring/decimal"
)

// Provision is the reserve required for one loan.
type Provision struct {
	Category        string          `json:"category"`
	BucketLabel     string          `json:"bucket_label"`
	ReserveRate     decimal.Decimal `json:"reserve_rate"`
	ProvisionAmount decimal.Decimal `json:"provision_amount"`
}

// Categorize looks up the bucket holding lateDays and applies its reserve rate
// to remainingBalance.
func (e *Engine) Categorize(lateDays int, remainingBalance decimal.Decimal) Provision {
	b := e.rules.Bucket(lateDays)
	return Provision{
		Category:        b.Category,
		BucketLabel:     b.Label,
		ReserveRate:     b.ReserveRate,
		ProvisionAmount: remainingBalance.Mul(b.ReserveRate).Round(2),
	}
}

// BucketTotals aggregates the loans that fell in one provisioning bucket.
type BucketTotals struct {
	Category        string          `json:"category"`
	Label           string          `json:"label"`
	ReserveRate     decimal.Decimal `json:"reserve_rate"`
	Loans           int             `json:"loans"`
	Balance         decimal.Decimal `json:"balance"`
	ProvisionAmount decimal.Decimal `json:"provision_amount"`
}

// PortfolioSummary is the provisioning position of a set of loans.
type PortfolioSummary struct {
	Buckets         []BucketTotals  `json:"buckets"`
	Loans           int             `json:"loans"`
	Balance         decimal.Decimal `json:"balance"`
	ProvisionAmount decimal.Decimal `json:"provision_amount"`
}

// SummarizePortfolio categorizes every ledger state and totals them per bucket.
// Every bucket of the table appears in the result, empty ones included.
func (e *Engine) SummarizePortfolio(states []LedgerState) PortfolioSummary {
	summary := PortfolioSummary{Balance: decimal.Zero, ProvisionAmount: decimal.Zero}
	index := make(map[string]int, len(e.rules.Provisioning))
	for i, b := range e.rules.Provisioning {
		index[b.Category] = i
		summary.Buckets = append(summary.Buckets, BucketTotals{
			Category:        b.Category,
			Label:           b.Label,
			ReserveRate:     b.ReserveRate,
			Balance:         decimal.Zero,
			ProvisionAmount: decimal.Zero,
		})
	}

	for _, st := range states {
		p := e.Categorize(st.LateDays, st.RemainingBalance)
		bt := &summary.Buckets[index[p.Category]]
		bt.Loans++
		bt.Balance = bt.Balance.Add(st.RemainingBalance)
		bt.ProvisionAmount = bt.ProvisionAmount.Add(p.ProvisionAmount)

		summary.Loans++
		summary.Balance = summary.Balance.Add(st.RemainingBalance)
		summary.ProvisionAmount = summary.ProvisionAmount.Add(p.ProvisionAmount)
	}
	return summary
}
