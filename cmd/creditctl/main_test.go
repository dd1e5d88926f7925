package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credit-engine/internal/engine"
	"credit-engine/internal/models"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func useSQLite(t *testing.T) {
	t.Helper()
	t.Setenv("DB_DRIVER", "sqlite3")
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "ctl.db"))
	t.Setenv("RULES_FILE", "")
	t.Setenv("SMTP_HOST", "")
}

func TestScheduleCmd(t *testing.T) {
	out, err := run(t, "schedule",
		"--principal", "1200", "--rate", "6", "--term", "2",
		"--frequency", "semimonthly", "--start", "2025-01-01",
		"--holiday", "2025-01-16")
	require.NoError(t, err)

	var s engine.Schedule
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	require.Len(t, s.Installments, 4)
	assert.Equal(t, "322.83", s.PeriodicPayment.StringFixed(2))
	assert.Equal(t, engine.Date(2025, time.January, 17), s.Installments[0].DueDate)
	assert.True(t, s.Installments[3].Balance.IsZero())
}

func TestScheduleCmd_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing principal", []string{"schedule", "--rate", "6", "--term", "2", "--start", "2025-01-01"}},
		{"bad frequency", []string{"schedule", "--principal", "100", "--rate", "6", "--term", "2", "--start", "2025-01-01", "--frequency", "hourly"}},
		{"bad start", []string{"schedule", "--principal", "100", "--rate", "6", "--term", "2", "--start", "01/01/2025"}},
		{"bad term", []string{"schedule", "--principal", "100", "--rate", "6", "--term", "0.7", "--start", "2025-01-01"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestMigrateCmd(t *testing.T) {
	useSQLite(t)

	out, err := run(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "schema is up to date (sqlite3)")
}

func TestHolidaysImportAndList(t *testing.T) {
	useSQLite(t)
	doc := filepath.Join(t.TempDir(), "calendar.xml")
	require.NoError(t, os.WriteFile(doc, []byte(`<calendar year="2025"><days><day d="05.01" t="1"/><day d="05.09" t="1"/></days></calendar>`), 0o600))

	out, err := run(t, "holidays", "import", "ru", "--file", doc)
	require.NoError(t, err)
	var result models.ImportResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 2, result.Added)

	out, err = run(t, "holidays", "list")
	require.NoError(t, err)
	assert.JSONEq(t, `["ru"]`, out)

	_, err = run(t, "holidays", "import", "ru")
	assert.Error(t, err)
}

func TestProvisionCmd_EmptyPortfolio(t *testing.T) {
	useSQLite(t)

	out, err := run(t, "provision", "--as-of", "2025-02-10", "--summary")
	require.NoError(t, err)
	var summary engine.PortfolioSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 0, summary.Loans)
	assert.Len(t, summary.Buckets, 5)
}

func TestStatusCmd_BadID(t *testing.T) {
	_, err := run(t, "status", "not-a-uuid")
	assert.Error(t, err)
}
