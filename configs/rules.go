package configs

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"credit-engine/internal/engine"
)

// HolidayEntry is one date of an inline holiday calendar.
type HolidayEntry struct {
	Date string `yaml:"date"` // YYYY-MM-DD
	Name string `yaml:"name"`
}

// RulesFile is the YAML document named by RULES_FILE.
type RulesFile struct {
	Delinquency  []engine.CategoryRule     `yaml:"delinquency"`
	Provisioning []engine.ProvisionBucket  `yaml:"provisioning"`
	Calendars    map[string][]HolidayEntry `yaml:"calendars"`
}

// Rules returns the rule tables, falling back to the defaults for a table the
// file leaves out.
func (f *RulesFile) Rules() engine.Rules {
	rules := engine.DefaultRules()
	if len(f.Delinquency) > 0 {
		rules.Delinquency = f.Delinquency
	}
	if len(f.Provisioning) > 0 {
		rules.Provisioning = f.Provisioning
	}
	return rules
}

// HolidayDates returns the parsed dates of each inline calendar.
func (f *RulesFile) HolidayDates() (map[string][]time.Time, error) {
	out := make(map[string][]time.Time, len(f.Calendars))
	for name, entries := range f.Calendars {
		for _, e := range entries {
			d, err := time.Parse(time.DateOnly, e.Date)
			if err != nil {
				return nil, fmt.Errorf("calendar %s: bad date %q: %w", name, e.Date, err)
			}
			out[name] = append(out[name], d)
		}
	}
	return out, nil
}

// LoadRules reads the rules file at path. An empty path yields the default
// tables and no calendars. The tables are validated before returning.
func LoadRules(path string) (*RulesFile, error) {
	f := &RulesFile{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read rules: %w", err)
		}
		if err := yaml.Unmarshal(data, f); err != nil {
			return nil, fmt.Errorf("parse rules: %w", err)
		}
	}

	if err := f.Rules().Validate(); err != nil {
		return nil, fmt.Errorf("rules file %s: %w", path, err)
	}
	if _, err := f.HolidayDates(); err != nil {
		return nil, err
	}
	return f, nil
}
