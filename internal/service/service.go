package service

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"credit-engine/configs"
	"credit-engine/internal/engine"
	"credit-engine/internal/models"
	"credit-engine/internal/repository"
)

// CreditService defines methods for credit service
type CreditService interface {
	Create(ctx context.Context, req *models.CreditRequest) (*models.Credit, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Credit, error)
	List(ctx context.Context, filter models.CreditFilter) ([]*models.Credit, error)
	GetSchedule(ctx context.Context, id uuid.UUID, asOf time.Time) (*models.ScheduleResponse, error)
	GetStatus(ctx context.Context, id uuid.UUID, asOf time.Time) (*models.CreditStatusResponse, error)
	Resync(ctx context.Context, id uuid.UUID) (*models.Credit, error)
	ResyncAll(ctx context.Context, calendar string) (int, error)
}

// PaymentService defines methods for payment service
type PaymentService interface {
	Apply(ctx context.Context, creditID uuid.UUID, req *models.PaymentRequest) (*models.PaymentResponse, error)
	Void(ctx context.Context, paymentID uuid.UUID, req *models.VoidRequest) (*models.Payment, error)
	List(ctx context.Context, creditID uuid.UUID) ([]*models.Payment, error)
	Receipt(ctx context.Context, paymentID uuid.UUID) (*models.Receipt, error)
}

// PortfolioService defines methods for portfolio reporting
type PortfolioService interface {
	ProvisioningReport(ctx context.Context, asOf time.Time) (*models.ProvisioningReport, error)
}

// HolidayService defines methods for holiday calendars
type HolidayService interface {
	Calendars(ctx context.Context) ([]string, error)
	List(ctx context.Context, calendar string) ([]*models.Holiday, error)
	Add(ctx context.Context, holiday *models.Holiday) (bool, error)
	Remove(ctx context.Context, calendar string, date time.Time) error
	ImportXML(ctx context.Context, calendar string, r io.Reader) (*models.ImportResult, error)
	Fetch(ctx context.Context, calendar string, year int) (*models.ImportResult, error)
	ImportRules(ctx context.Context, rules *configs.RulesFile) (int, error)
	Calendar(ctx context.Context, name string) (*engine.Calendar, error)
}

// NotificationService defines methods for borrower notifications
type NotificationService interface {
	SendDelinquencyNotice(ctx context.Context, credit *models.Credit, state engine.LedgerState) error
	DelinquencySweep(ctx context.Context, asOf time.Time, thresholds []int) (int, error)
}

// Dependencies contains dependencies for services
type Dependencies struct {
	Repos  *repository.Repository
	Logger *logrus.Logger
	Config *configs.Config
	Engine *engine.Engine

	// Mailer sends notices. Nil disables e-mail.
	Mailer Mailer

	// Clock defaults to time.Now.
	Clock func() time.Time

	// Location is the business time zone: a payment belongs to the calendar
	// day its timestamp has there. Defaults to UTC.
	Location *time.Location
}

// Service is a composition of all services
type Service struct {
	Credit       CreditService
	Payment      PaymentService
	Portfolio    PortfolioService
	Holiday      HolidayService
	Notification NotificationService
}

// NewService creates a new service with all sub-services
func NewService(deps Dependencies) *Service {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Engine == nil {
		deps.Engine = engine.Default()
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}

	locks := newCreditLocks()
	ledgers := &ledgerLoader{repos: deps.Repos, engine: deps.Engine, loc: deps.Location}

	return &Service{
		Credit:       NewCreditService(deps, locks, ledgers),
		Payment:      NewPaymentService(deps, locks, ledgers),
		Portfolio:    NewPortfolioService(deps, ledgers),
		Holiday:      NewHolidayService(deps),
		Notification: NewNotificationService(deps, ledgers),
	}
}
