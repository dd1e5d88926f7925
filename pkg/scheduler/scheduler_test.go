package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credit-engine/internal/engine"
	"credit-engine/internal/models"
)

type sweepCall struct {
	asOf       time.Time
	thresholds []int
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []sweepCall
	err   error
}

func (f *fakeNotifier) SendDelinquencyNotice(ctx context.Context, credit *models.Credit, state engine.LedgerState) error {
	return nil
}

func (f *fakeNotifier) DelinquencySweep(ctx context.Context, asOf time.Time, thresholds []int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sweepCall{asOf: asOf, thresholds: thresholds})
	return 2, f.err
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func fixedNow() time.Time { return time.Date(2025, time.March, 3, 18, 30, 0, 0, time.UTC) }

func TestScheduler_RunNow(t *testing.T) {
	logger, _ := test.NewNullLogger()
	notifier := &fakeNotifier{}
	s := NewScheduler(notifier, []int{1, 7}, fixedNow, logger)

	sent, err := s.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)

	require.Len(t, notifier.calls, 1)
	assert.Equal(t, engine.Date(2025, time.March, 3), notifier.calls[0].asOf)
	assert.Equal(t, []int{1, 7}, notifier.calls[0].thresholds)
}

func TestScheduler_StartRunsSweep(t *testing.T) {
	logger, _ := test.NewNullLogger()
	notifier := &fakeNotifier{}
	s := NewScheduler(notifier, []int{1}, fixedNow, logger)

	require.NoError(t, s.Start("* * * * * *"))
	defer s.Stop()

	assert.Eventually(t, func() bool { return notifier.count() > 0 }, 3*time.Second, 50*time.Millisecond)
}

func TestScheduler_StartRejectsFiveFieldExpression(t *testing.T) {
	logger, _ := test.NewNullLogger()
	s := NewScheduler(&fakeNotifier{}, nil, nil, logger)

	// five fields: the seconds field is required
	assert.Error(t, s.Start("0 7 * * *"))
}

func TestScheduler_SweepLogsErrors(t *testing.T) {
	logger, hook := test.NewNullLogger()
	s := NewScheduler(&fakeNotifier{err: errors.New("smtp down")}, []int{1}, fixedNow, logger)

	s.sweep()

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Contains(t, entry.Message, "smtp down")
}
