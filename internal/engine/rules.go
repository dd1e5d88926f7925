package engine

import (
	"github.com/shopspring/decimal"
)

// CategoryRule maps a late-day range [MinDays, MaxDays) to a delinquency
// category. MaxDays of zero means the range is open ended.
type CategoryRule struct {
	MinDays  int    `json:"min_days" yaml:"min_days"`
	MaxDays  int    `json:"max_days" yaml:"max_days"`
	Category string `json:"category" yaml:"category"`
}

// ProvisionBucket maps a late-day range [MinDays, MaxDays) to a reserve rate.
type ProvisionBucket struct {
	MinDays     int             `json:"min_days" yaml:"min_days"`
	MaxDays     int             `json:"max_days" yaml:"max_days"`
	Category    string          `json:"category" yaml:"category"`
	Label       string          `json:"label" yaml:"label"`
	ReserveRate decimal.Decimal `json:"reserve_rate" yaml:"reserve_rate"` // fraction, 0.20 = 20%
}

// Rules holds both rule tables. They must share the same boundaries.
type Rules struct {
	Delinquency  []CategoryRule    `json:"delinquency" yaml:"delinquency"`
	Provisioning []ProvisionBucket `json:"provisioning" yaml:"provisioning"`
}

// DefaultRules returns the standard five-bucket tables.
func DefaultRules() Rules {
	buckets := []ProvisionBucket{
		{MinDays: 0, MaxDays: 1, Category: "A", Label: "current", ReserveRate: decimal.RequireFromString("0.01")},
		{MinDays: 1, MaxDays: 31, Category: "B", Label: "watch", ReserveRate: decimal.RequireFromString("0.05")},
		{MinDays: 31, MaxDays: 61, Category: "C", Label: "substandard", ReserveRate: decimal.RequireFromString("0.20")},
		{MinDays: 61, MaxDays: 91, Category: "D", Label: "doubtful", ReserveRate: decimal.RequireFromString("0.50")},
		{MinDays: 91, MaxDays: 0, Category: "E", Label: "loss", ReserveRate: decimal.RequireFromString("1.00")},
	}
	rules := Rules{Provisioning: buckets}
	for _, b := range buckets {
		rules.Delinquency = append(rules.Delinquency, CategoryRule{MinDays: b.MinDays, MaxDays: b.MaxDays, Category: b.Category})
	}
	return rules
}

type span struct{ min, max int }

// checkPartition verifies that spans are ascending, non-overlapping, gapless,
// start at zero and end with a single open-ended span.
func checkPartition(table string, spans []span) error {
	const op = "Rules.Validate"
	if len(spans) == 0 {
		return newError(op, ErrInvalidRules, "%s table is empty", table)
	}
	if spans[0].min != 0 {
		return newError(op, ErrInvalidRules, "%s table must start at 0 days", table)
	}
	for i, s := range spans {
		last := i == len(spans)-1
		if last && s.max != 0 {
			return newError(op, ErrInvalidRules, "%s table must end open ended", table)
		}
		if !last {
			if s.max <= s.min {
				return newError(op, ErrInvalidRules, "%s rule %d has empty range [%d, %d)", table, i, s.min, s.max)
			}
			if spans[i+1].min != s.max {
				return newError(op, ErrInvalidRules, "%s rule %d ends at %d but next starts at %d", table, i, s.max, spans[i+1].min)
			}
		}
	}
	return nil
}

// Validate checks both tables and their agreement.
func (r Rules) Validate() error {
	cat := make([]span, len(r.Delinquency))
	for i, c := range r.Delinquency {
		if c.Category == "" {
			return newError("Rules.Validate", ErrInvalidRules, "delinquency rule %d has no category", i)
		}
		cat[i] = span{c.MinDays, c.MaxDays}
	}
	if err := checkPartition("delinquency", cat); err != nil {
		return err
	}

	prov := make([]span, len(r.Provisioning))
	for i, b := range r.Provisioning {
		if b.ReserveRate.IsNegative() || b.ReserveRate.GreaterThan(decimal.NewFromInt(1)) {
			return newError("Rules.Validate", ErrInvalidRules, "provisioning bucket %d rate %s outside [0, 1]", i, b.ReserveRate)
		}
		prov[i] = span{b.MinDays, b.MaxDays}
	}
	if err := checkPartition("provisioning", prov); err != nil {
		return err
	}
	return r.CheckAgreement()
}

// CheckAgreement fails unless every delinquency category has exactly the same
// boundaries as the provisioning bucket at the same position.
func (r Rules) CheckAgreement() error {
	if len(r.Delinquency) != len(r.Provisioning) {
		return newError("Rules.CheckAgreement", ErrInvalidRules,
			"%d delinquency categories vs %d provisioning buckets", len(r.Delinquency), len(r.Provisioning))
	}
	for i, c := range r.Delinquency {
		b := r.Provisioning[i]
		if c.MinDays != b.MinDays || c.MaxDays != b.MaxDays || c.Category != b.Category {
			return newError("Rules.CheckAgreement", ErrInvalidRules,
				"category %s [%d, %d) does not match bucket %s [%d, %d)",
				c.Category, c.MinDays, c.MaxDays, b.Category, b.MinDays, b.MaxDays)
		}
	}
	return nil
}

func contains(min, max, days int) bool {
	return days >= min && (max == 0 || days < max)
}

// Category returns the delinquency category for lateDays.
func (r Rules) Category(lateDays int) string {
	if lateDays < 0 {
		lateDays = 0
	}
	for _, c := range r.Delinquency {
		if contains(c.MinDays, c.MaxDays, lateDays) {
			return c.Category
		}
	}
	// unreachable for a validated table
	return ""
}

// Bucket returns the provisioning bucket for lateDays.
func (r Rules) Bucket(lateDays int) ProvisionBucket {
	if lateDays < 0 {
		lateDays = 0
	}
	for _, b := range r.Provisioning {
		if contains(b.MinDays, b.MaxDays, lateDays) {
			return b
		}
	}
	mustHold(false, "no provisioning bucket for %d late days", lateDays)
	return ProvisionBucket{}
}
