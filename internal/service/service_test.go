package service_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credit-engine/configs"
	"credit-engine/internal/engine"
	"credit-engine/internal/models"
	"credit-engine/internal/repository"
	"credit-engine/internal/repository/sqldb"
	"credit-engine/internal/service"
	mock_service "credit-engine/internal/service/mocks"
)

type fixture struct {
	svc   *service.Service
	repos *repository.Repository
	cfg   *configs.Config
	now   time.Time
}

func newFixture(t *testing.T, mailer service.Mailer) *fixture {
	t.Helper()
	return newFixtureIn(t, mailer, nil)
}

// newFixtureIn builds a fixture whose payments are dated in loc.
func newFixtureIn(t *testing.T, mailer service.Mailer, loc *time.Location) *fixture {
	t.Helper()
	db, err := sqldb.Open(sqldb.DriverSQLite, filepath.Join(t.TempDir(), "service.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqldb.Migrate(context.Background(), db, sqldb.DriverSQLite))

	log := logrus.New()
	log.SetOutput(io.Discard)

	f := &fixture{
		repos: repository.NewRepository(db),
		cfg: &configs.Config{
			Engine: configs.EngineConfig{DefaultCalendar: "default", Currency: "RUB"},
		},
		now: time.Date(2025, time.April, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc = service.NewService(service.Dependencies{
		Repos:    f.repos,
		Logger:   log,
		Config:   f.cfg,
		Engine:   engine.Default(),
		Mailer:   mailer,
		Clock:    func() time.Time { return f.now },
		Location: loc,
	})
	return f
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func at(month time.Month, day, hour int) *time.Time {
	t := time.Date(2025, month, day, hour, 0, 0, 0, time.UTC)
	return &t
}

// createCredit originates 1200 at 6% a month over two months, paid
// semimonthly: 322.83 due Jan 16, Feb 1, Feb 16 and 322.84 due Mar 1.
func (f *fixture) createCredit(t *testing.T, email string) *models.Credit {
	t.Helper()
	credit, err := f.svc.Credit.Create(context.Background(), &models.CreditRequest{
		ClientRef:     "CL-42",
		BorrowerEmail: email,
		Principal:     dec("1200"),
		MonthlyRate:   dec("6"),
		TermMonths:    dec("2"),
		Frequency:     "semimonthly",
		StartDate:     "2025-01-01",
	})
	require.NoError(t, err)
	return credit
}

func (f *fixture) pay(t *testing.T, creditID uuid.UUID, amount string, paidAt *time.Time) *models.PaymentResponse {
	t.Helper()
	resp, err := f.svc.Payment.Apply(context.Background(), creditID, &models.PaymentRequest{
		Amount: dec(amount), PaidAt: paidAt, Operator: "teller-1",
	})
	require.NoError(t, err)
	return resp
}

func TestCreditService_CreateAndStatus(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	credit := f.createCredit(t, "")

	assert.Equal(t, "322.83", credit.PeriodicPayment.StringFixed(2))
	assert.Equal(t, engine.Date(2025, time.March, 1), credit.MaturityDate)
	assert.Equal(t, "default", credit.Calendar)

	sched, err := f.svc.Credit.GetSchedule(ctx, credit.ID, engine.Date(2025, time.January, 1))
	require.NoError(t, err)
	require.Len(t, sched.Installments, 4)
	assert.Equal(t, "36.00", sched.Installments[0].Interest.StringFixed(2))
	assert.Equal(t, "322.84", sched.Installments[3].Total.StringFixed(2))
	assert.Equal(t, "1291.33", sched.Summary.TotalAmount.StringFixed(2))

	status, err := f.svc.Credit.GetStatus(ctx, credit.ID, engine.Date(2025, time.February, 10))
	require.NoError(t, err)
	assert.Equal(t, "645.66", status.Ledger.Overdue.StringFixed(2))
	assert.Equal(t, 25, status.Ledger.LateDays)
	assert.Equal(t, "B", status.Ledger.Category)
	assert.Equal(t, "watch", status.Provision.BucketLabel)
	assert.Equal(t, "64.57", status.Provision.ProvisionAmount.StringFixed(2))
}

func TestCreditService_CreateRejectsBadTerms(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Credit.Create(context.Background(), &models.CreditRequest{
		ClientRef:   "CL-1",
		Principal:   dec("1000"),
		MonthlyRate: dec("2"),
		TermMonths:  dec("1.25"),
		Frequency:   "WEEKLY",
		StartDate:   "2025-01-01",
	})
	assert.ErrorIs(t, err, engine.ErrInvalidTerms)

	credits, err := f.svc.Credit.List(context.Background(), models.CreditFilter{})
	require.NoError(t, err)
	assert.Empty(t, credits)
}

func TestPaymentService_ApplyAllocatesAndSettles(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	credit := f.createCredit(t, "")

	first := f.pay(t, credit.ID, "400", at(time.February, 1, 10))
	assert.Equal(t, "322.83", first.Allocation.Overdue.StringFixed(2))
	assert.Equal(t, "77.17", first.Allocation.DueToday.StringFixed(2))
	assert.Equal(t, "891.33", first.Ledger.RemainingBalance.StringFixed(2))

	_, err := f.svc.Payment.Apply(ctx, credit.ID, &models.PaymentRequest{
		Amount: dec("10"), PaidAt: at(time.January, 31, 10), Operator: "teller-1",
	})
	assert.ErrorIs(t, err, service.ErrOutOfOrder)

	_, err = f.svc.Payment.Apply(ctx, credit.ID, &models.PaymentRequest{
		Amount: dec("10"), PaidAt: at(time.May, 1, 10), Operator: "teller-1",
	})
	assert.ErrorIs(t, err, models.ErrInvalidRequest)

	_, err = f.svc.Payment.Apply(ctx, credit.ID, &models.PaymentRequest{
		Amount: dec("891.34"), PaidAt: at(time.March, 1, 10), Operator: "teller-1",
	})
	assert.ErrorIs(t, err, engine.ErrExceedsBalance)

	last := f.pay(t, credit.ID, "891.33", at(time.March, 1, 10))
	assert.True(t, last.Ledger.Settled())

	got, err := f.svc.Credit.GetByID(ctx, credit.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CreditStatusSettled, got.Status)
	assert.Equal(t, 3, got.Version)

	_, err = f.svc.Payment.Apply(ctx, credit.ID, &models.PaymentRequest{
		Amount: dec("10"), PaidAt: at(time.March, 2, 10), Operator: "teller-1",
	})
	assert.ErrorIs(t, err, engine.ErrNoOutstandingBalance)
	assert.True(t, engine.IsState(err))
}

func TestPaymentService_VoidReopensCredit(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	credit := f.createCredit(t, "")

	f.pay(t, credit.ID, "400", at(time.February, 1, 10))
	last := f.pay(t, credit.ID, "891.33", at(time.March, 1, 10))

	voided, err := f.svc.Payment.Void(ctx, last.Payment.ID, &models.VoidRequest{Operator: "supervisor", Reason: "chargeback"})
	require.NoError(t, err)
	assert.Equal(t, engine.PaymentVoided, voided.Status)
	assert.Equal(t, "supervisor", voided.VoidedBy)

	got, err := f.svc.Credit.GetByID(ctx, credit.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CreditStatusActive, got.Status)

	status, err := f.svc.Credit.GetStatus(ctx, credit.ID, engine.Date(2025, time.March, 1))
	require.NoError(t, err)
	assert.Equal(t, "891.33", status.Ledger.RemainingBalance.StringFixed(2))

	_, err = f.svc.Payment.Void(ctx, last.Payment.ID, &models.VoidRequest{Operator: "supervisor", Reason: "again"})
	assert.ErrorIs(t, err, engine.ErrAlreadyVoided)

	_, err = f.svc.Payment.Void(ctx, last.Payment.ID, &models.VoidRequest{Operator: "supervisor"})
	assert.ErrorIs(t, err, models.ErrInvalidRequest)

	ledger, err := f.svc.Payment.List(ctx, credit.ID)
	require.NoError(t, err)
	assert.Len(t, ledger, 2)
}

func TestPaymentService_Receipt(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	credit := f.createCredit(t, "")

	first := f.pay(t, credit.ID, "400", at(time.February, 1, 10))
	second := f.pay(t, credit.ID, "300", at(time.February, 20, 10))

	receipt, err := f.svc.Payment.Receipt(ctx, second.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, "CL-42", receipt.ClientRef)
	assert.Equal(t, second.Allocation.Overdue.String(), receipt.Allocation.Overdue.String())
	assert.Equal(t, second.Allocation.Advance.String(), receipt.Allocation.Advance.String())
	assert.Equal(t, "891.33", receipt.Before.RemainingBalance.StringFixed(2))
	assert.Equal(t, "591.33", receipt.After.RemainingBalance.StringFixed(2))
	assert.False(t, receipt.Voided)

	_, err = f.svc.Payment.Void(ctx, first.Payment.ID, &models.VoidRequest{Operator: "supervisor", Reason: "bounced"})
	require.NoError(t, err)

	receipt, err = f.svc.Payment.Receipt(ctx, first.Payment.ID)
	require.NoError(t, err)
	assert.True(t, receipt.Voided)
	assert.Equal(t, "1291.33", receipt.Before.RemainingBalance.StringFixed(2))

	// with the first payment gone the second now lands entirely on arrears
	receipt, err = f.svc.Payment.Receipt(ctx, second.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, "300.00", receipt.Allocation.Overdue.StringFixed(2))
}

func TestPaymentService_BusinessZoneDecidesPaymentDay(t *testing.T) {
	// 04:00 UTC on Jan 17 is still Jan 16 at UTC-5
	paidAt := time.Date(2025, time.January, 17, 4, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		loc    *time.Location
		day    time.Time
		bucket engine.AllocationBucket
	}{
		{"utc minus five", time.FixedZone("EST", -5*3600), engine.Date(2025, time.January, 16), engine.BucketDueToday},
		{"utc", time.UTC, engine.Date(2025, time.January, 17), engine.BucketOverdue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixtureIn(t, nil, tt.loc)
			ctx := context.Background()
			credit := f.createCredit(t, "")

			// the caller's own offset must not matter
			live := f.pay(t, credit.ID, "322.83", &paidAt)
			require.Len(t, live.Allocation.Lines, 1)
			assert.Equal(t, tt.bucket, live.Allocation.Lines[0].Bucket)

			status, err := f.svc.Credit.GetStatus(ctx, credit.ID, tt.day)
			require.NoError(t, err)
			assert.Equal(t, "322.83", status.Ledger.PaidAmount.StringFixed(2))

			receipt, err := f.svc.Payment.Receipt(ctx, live.Payment.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.day, receipt.Before.AsOf)
			assert.Equal(t, live.Allocation.Overdue.String(), receipt.Allocation.Overdue.String())
			assert.Equal(t, live.Allocation.DueToday.String(), receipt.Allocation.DueToday.String())
			assert.Equal(t, live.Allocation.Advance.String(), receipt.Allocation.Advance.String())
			require.Len(t, receipt.Allocation.Lines, 1)
			assert.Equal(t, tt.bucket, receipt.Allocation.Lines[0].Bucket)
		})
	}
}

func TestPaymentService_ConcurrentPayments(t *testing.T) {
	f := newFixture(t, nil)
	credit := f.createCredit(t, "")
	paidAt := at(time.February, 1, 10)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Payment.Apply(context.Background(), credit.ID, &models.PaymentRequest{
				Amount: dec("10"), PaidAt: paidAt, Operator: "batch",
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	got, err := f.svc.Credit.GetByID(context.Background(), credit.ID)
	require.NoError(t, err)
	assert.Equal(t, 11, got.Version)

	status, err := f.svc.Credit.GetStatus(context.Background(), credit.ID, *paidAt)
	require.NoError(t, err)
	assert.Equal(t, "100.00", status.Ledger.PaidAmount.StringFixed(2))
}

func TestPaymentService_UnknownCredit(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Payment.Apply(context.Background(), uuid.New(), &models.PaymentRequest{Amount: dec("1"), Operator: "x"})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestHolidayService_ResyncMovesDueDates(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	credit := f.createCredit(t, "")

	added, err := f.svc.Holiday.Add(ctx, &models.Holiday{Calendar: "default", Date: engine.Date(2025, time.January, 16)})
	require.NoError(t, err)
	assert.True(t, added)

	n, err := f.svc.Credit.ResyncAll(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	sched, err := f.svc.Credit.GetSchedule(ctx, credit.ID, engine.Date(2025, time.January, 1))
	require.NoError(t, err)
	assert.Equal(t, engine.Date(2025, time.January, 17), sched.Installments[0].DueDate)
	assert.Equal(t, "322.83", sched.Installments[0].Total.StringFixed(2))

	require.NoError(t, f.svc.Holiday.Remove(ctx, "default", engine.Date(2025, time.January, 16)))
	resynced, err := f.svc.Credit.Resync(ctx, credit.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, resynced.Version)

	sched, err = f.svc.Credit.GetSchedule(ctx, credit.ID, engine.Date(2025, time.January, 1))
	require.NoError(t, err)
	assert.Equal(t, engine.Date(2025, time.January, 16), sched.Installments[0].DueDate)
}

const productionCalendar = `<?xml version="1.0" encoding="UTF-8"?>
<calendar year="2025" lang="ru" date="2025.01.01">
	<holidays>
		<holiday id="1" title="New Year"/>
	</holidays>
	<days>
		<day d="01.01" t="1" h="1"/>
		<day d="01.02" t="1" h="1"/>
		<day d="04.30" t="2"/>
		<day d="11.01" t="3"/>
	</days>
</calendar>`

func TestHolidayService_ImportXML(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.svc.Holiday.ImportXML(ctx, "ru", strings.NewReader(productionCalendar))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Parsed)
	assert.Equal(t, 2, res.Added)

	list, err := f.svc.Holiday.List(ctx, "ru")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, engine.Date(2025, time.January, 2), list[1].Date)
	assert.Equal(t, "New Year", list[0].Name)

	cal, err := f.svc.Holiday.Calendar(ctx, "ru")
	require.NoError(t, err)
	assert.True(t, cal.Contains(engine.Date(2025, time.January, 1)))

	_, err = f.svc.Holiday.ImportXML(ctx, "ru", strings.NewReader("<nope"))
	assert.ErrorIs(t, err, models.ErrInvalidRequest)
}

func TestHolidayService_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2025.xml" {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, productionCalendar)
	}))
	defer srv.Close()

	f := newFixture(t, nil)
	f.cfg.Engine.CalendarURL = srv.URL + "/%d.xml"

	res, err := f.svc.Holiday.Fetch(context.Background(), "ru", 2025)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Added)

	_, err = f.svc.Holiday.Fetch(context.Background(), "ru", 1999)
	assert.Error(t, err)
}

func TestHolidayService_ImportRules(t *testing.T) {
	f := newFixture(t, nil)
	rules := &configs.RulesFile{Calendars: map[string][]configs.HolidayEntry{
		"us": {{Date: "2025-07-04", Name: "Independence Day"}},
	}}

	n, err := f.svc.Holiday.ImportRules(context.Background(), rules)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	names, err := f.svc.Holiday.Calendars(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"us"}, names)
}

func TestPortfolioService_ProvisioningReport(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	late := f.createCredit(t, "")
	paid := f.createCredit(t, "")
	f.pay(t, paid.ID, "1291.33", at(time.January, 10, 9))

	report, err := f.svc.Portfolio.ProvisioningReport(ctx, engine.Date(2025, time.February, 10))
	require.NoError(t, err)

	require.Len(t, report.Credits, 1)
	assert.Equal(t, late.ID, report.Credits[0].CreditID)
	assert.Equal(t, 1, report.Summary.Loans)
	assert.Equal(t, "64.57", report.Summary.ProvisionAmount.StringFixed(2))
	assert.Equal(t, 1, report.Summary.Buckets[1].Loans)

	report, err = f.svc.Portfolio.ProvisioningReport(ctx, engine.Date(2024, time.December, 31))
	require.NoError(t, err)
	assert.Empty(t, report.Credits)
}

func TestNotificationService_DelinquencySweep(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mailer := mock_service.NewMockMailer(ctrl)
	f := newFixture(t, mailer)
	ctx := context.Background()
	f.createCredit(t, "borrower@example.com")
	f.createCredit(t, "")

	mailer.EXPECT().
		Send("borrower@example.com", gomock.Any(), gomock.Any()).
		DoAndReturn(func(to, subject, body string) error {
			assert.Contains(t, subject, "CL-42")
			assert.Contains(t, body, "overdue by 7 days")
			assert.Contains(t, body, "322.83 RUB")
			return nil
		})

	// Jan 16 + 7 days
	sent, err := f.svc.Notification.DelinquencySweep(ctx, engine.Date(2025, time.January, 23), []int{1, 7, 30})
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	sent, err = f.svc.Notification.DelinquencySweep(ctx, engine.Date(2025, time.January, 24), []int{1, 7, 30})
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
}

func TestNotificationService_MailerFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mailer := mock_service.NewMockMailer(ctrl)
	f := newFixture(t, mailer)
	f.createCredit(t, "borrower@example.com")

	mailer.EXPECT().Send(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("smtp down"))

	sent, err := f.svc.Notification.DelinquencySweep(context.Background(), engine.Date(2025, time.January, 17), []int{1})
	assert.Error(t, err)
	assert.Equal(t, 0, sent)
}

func TestNewSMTPMailer(t *testing.T) {
	assert.Nil(t, service.NewSMTPMailer(configs.EmailConfig{}))
	assert.NotNil(t, service.NewSMTPMailer(configs.EmailConfig{SMTPHost: "smtp.example.com", SMTPPort: 587}))
}
