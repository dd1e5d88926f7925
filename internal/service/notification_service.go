package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"credit-engine/configs"
	"credit-engine/internal/engine"
	"credit-engine/internal/models"
	"credit-engine/internal/repository"
)

// Mailer delivers an HTML e-mail.
//
//go:generate mockgen -destination=mocks/mock_mailer.go -source=notification_service.go Mailer
type Mailer interface {
	Send(to, subject, body string) error
}

// SMTPMailer sends mail through an SMTP server
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPMailer returns a mailer for cfg, or nil when no SMTP host is set.
func NewSMTPMailer(cfg configs.EmailConfig) *SMTPMailer {
	if cfg.SMTPHost == "" {
		return nil
	}
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword),
		from:   cfg.SenderEmail,
	}
}

// Send sends an email using the SMTP server
func (m *SMTPMailer) Send(to, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// NotificationSvc is an implementation of the service.NotificationService interface
type NotificationSvc struct {
	repos   *repository.Repository
	logger  *logrus.Logger
	config  *configs.Config
	mailer  Mailer
	ledgers *ledgerLoader
}

// NewNotificationService creates a new NotificationSvc
func NewNotificationService(deps Dependencies, ledgers *ledgerLoader) *NotificationSvc {
	return &NotificationSvc{
		repos:   deps.Repos,
		logger:  deps.Logger,
		config:  deps.Config,
		mailer:  deps.Mailer,
		ledgers: ledgers,
	}
}

// SendDelinquencyNotice e-mails the borrower the overdue position of a credit.
// It does nothing when mail is disabled or the borrower has no address.
func (s *NotificationSvc) SendDelinquencyNotice(ctx context.Context, credit *models.Credit, state engine.LedgerState) error {
	if s.mailer == nil || credit.BorrowerEmail == "" {
		return nil
	}

	currency := s.config.Engine.Currency
	subject := fmt.Sprintf("OVERDUE Payment Reminder: Credit %s", credit.ClientRef)

	body := fmt.Sprintf(`
	<h2>Credit Payment Reminder</h2>

	<p style="color: red; font-weight: bold;">
		Your credit %s is overdue by %d days.
	</p>

	<table style="border-collapse: collapse; width: 100%%;">
		<tr>
			<td style="padding: 8px; border: 1px solid #ddd;"><strong>Overdue Amount:</strong></td>
			<td style="padding: 8px; border: 1px solid #ddd;">%s %s</td>
		</tr>
		<tr>
			<td style="padding: 8px; border: 1px solid #ddd;"><strong>Overdue Installments:</strong></td>
			<td style="padding: 8px; border: 1px solid #ddd;">%d</td>
		</tr>
		<tr>
			<td style="padding: 8px; border: 1px solid #ddd;"><strong>Due Today:</strong></td>
			<td style="padding: 8px; border: 1px solid #ddd;">%s %s</td>
		</tr>
		<tr>
			<td style="padding: 8px; border: 1px solid #ddd;"><strong>Remaining Balance:</strong></td>
			<td style="padding: 8px; border: 1px solid #ddd;">%s %s</td>
		</tr>
		<tr>
			<td style="padding: 8px; border: 1px solid #ddd;"><strong>Statement Date:</strong></td>
			<td style="padding: 8px; border: 1px solid #ddd;">%s</td>
		</tr>
	</table>

	<p>Please pay the overdue amount as soon as possible to avoid further delinquency.</p>

	<p>
	Best regards,<br>
	Credit Servicing Team
	</p>
	`,
		credit.ClientRef, state.LateDays,
		state.Overdue.StringFixed(2), currency,
		state.OverdueInstallments,
		state.DueToday.StringFixed(2), currency,
		state.RemainingBalance.StringFixed(2), currency,
		state.AsOf.Format(time.DateOnly),
	)

	if err := s.mailer.Send(credit.BorrowerEmail, subject, body); err != nil {
		return fmt.Errorf("failed to send delinquency notice for credit %s: %w", credit.ID, err)
	}

	s.logger.Infof("Delinquency notice sent to %s for credit %s (%d days late)",
		credit.BorrowerEmail, credit.ID, state.LateDays)
	return nil
}

// DelinquencySweep evaluates every active credit as of asOf and notifies the
// borrowers whose late days hit one of thresholds exactly, so each threshold
// triggers once per delinquency episode. It returns the number of notices sent.
func (s *NotificationSvc) DelinquencySweep(ctx context.Context, asOf time.Time, thresholds []int) (int, error) {
	hit := make(map[int]bool, len(thresholds))
	for _, t := range thresholds {
		hit[t] = true
	}

	credits, err := s.repos.Credit.GetActiveCredits(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get active credits: %w", err)
	}

	var (
		sent int
		errs []error
	)
	for _, credit := range credits {
		state, err := s.ledgers.state(ctx, credit, asOf)
		if err != nil {
			s.logger.Warnf("Failed to evaluate credit %s: %v", credit.ID, err)
			errs = append(errs, err)
			continue
		}
		if !hit[state.LateDays] {
			continue
		}
		if err := s.SendDelinquencyNotice(ctx, credit, state); err != nil {
			s.logger.Warnf("%v", err)
			errs = append(errs, err)
			continue
		}
		if s.mailer != nil && credit.BorrowerEmail != "" {
			sent++
		}
	}

	s.logger.WithFields(logrus.Fields{
		"as_of":   engine.DateOf(asOf).Format(time.DateOnly),
		"credits": len(credits),
		"sent":    sent,
	}).Info("Delinquency sweep finished")

	return sent, errors.Join(errs...)
}
