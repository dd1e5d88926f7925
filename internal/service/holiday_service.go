package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/sirupsen/logrus"

	"credit-engine/configs"
	"credit-engine/internal/engine"
	"credit-engine/internal/models"
	"credit-engine/internal/repository"
)

// HolidaySvc is an implementation of the service.HolidayService interface
type HolidaySvc struct {
	repos  *repository.Repository
	logger *logrus.Logger
	config *configs.Config
	client *http.Client
}

// NewHolidayService creates a new HolidaySvc
func NewHolidayService(deps Dependencies) *HolidaySvc {
	return &HolidaySvc{
		repos:  deps.Repos,
		logger: deps.Logger,
		config: deps.Config,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Calendars lists the calendars that have holidays
func (s *HolidaySvc) Calendars(ctx context.Context) ([]string, error) {
	return s.repos.Holiday.Calendars(ctx)
}

// List lists the holidays of a calendar
func (s *HolidaySvc) List(ctx context.Context, calendar string) ([]*models.Holiday, error) {
	return s.repos.Holiday.GetByCalendar(ctx, calendar)
}

// Add adds a holiday. It reports whether the date was new.
func (s *HolidaySvc) Add(ctx context.Context, holiday *models.Holiday) (bool, error) {
	added, err := s.repos.Holiday.Add(ctx, holiday)
	if err != nil {
		return false, err
	}
	if added {
		s.logger.Infof("Holiday %s added to calendar %s", holiday.Date.Format(time.DateOnly), holiday.Calendar)
	}
	return added, nil
}

// Remove removes a holiday
func (s *HolidaySvc) Remove(ctx context.Context, calendar string, date time.Time) error {
	if err := s.repos.Holiday.Remove(ctx, calendar, date); err != nil {
		return err
	}
	s.logger.Infof("Holiday %s removed from calendar %s", date.Format(time.DateOnly), calendar)
	return nil
}

// Calendar returns the named calendar in the engine's form
func (s *HolidaySvc) Calendar(ctx context.Context, name string) (*engine.Calendar, error) {
	return loadCalendar(ctx, s.repos, name)
}

// ImportXML reads a production calendar document and stores its holidays in
// calendar. The document lists days as
//
//	<calendar year="2025"><days><day d="01.01" t="1" h="1"/>...</days></calendar>
//
// where d is MM.DD and t="1" marks a non-working day. Shortened working days
// (t="2") and working weekends (t="3") are ignored.
func (s *HolidaySvc) ImportXML(ctx context.Context, calendar string, r io.Reader) (*models.ImportResult, error) {
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("%w: failed to parse calendar XML: %v", models.ErrInvalidRequest, err)
	}

	holidays, err := parseProductionCalendar(doc, calendar)
	if err != nil {
		return nil, err
	}

	added, err := s.repos.Holiday.AddBatch(ctx, holidays)
	if err != nil {
		return nil, err
	}

	s.logger.Infof("Imported %d holidays (%d new) into calendar %s", len(holidays), added, calendar)
	return &models.ImportResult{Calendar: calendar, Parsed: len(holidays), Added: added}, nil
}

func parseProductionCalendar(doc *etree.Document, calendar string) ([]*models.Holiday, error) {
	root := doc.FindElement("//calendar")
	if root == nil {
		return nil, fmt.Errorf("%w: calendar element not found", models.ErrInvalidRequest)
	}
	year, err := strconv.Atoi(root.SelectAttrValue("year", ""))
	if err != nil {
		return nil, fmt.Errorf("%w: calendar year attribute: %v", models.ErrInvalidRequest, err)
	}

	names := make(map[string]string)
	for _, h := range root.FindElements("holidays/holiday") {
		names[h.SelectAttrValue("id", "")] = h.SelectAttrValue("title", "")
	}

	var holidays []*models.Holiday
	for _, day := range root.FindElements("days/day") {
		if day.SelectAttrValue("t", "1") != "1" {
			continue
		}
		d := day.SelectAttrValue("d", "")
		date, err := time.Parse("01.02", d)
		if err != nil {
			return nil, fmt.Errorf("%w: bad day %q: %v", models.ErrInvalidRequest, d, err)
		}
		holidays = append(holidays, &models.Holiday{
			Calendar: calendar,
			Date:     engine.Date(year, date.Month(), date.Day()),
			Name:     names[day.SelectAttrValue("h", "")],
		})
	}
	return holidays, nil
}

// Fetch downloads the production calendar for year from the configured URL
// and imports it.
func (s *HolidaySvc) Fetch(ctx context.Context, calendar string, year int) (*models.ImportResult, error) {
	url := s.config.Engine.CalendarURL
	if strings.Contains(url, "%d") {
		url = fmt.Sprintf(url, year)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch calendar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch calendar: %s returned %s", url, resp.Status)
	}

	return s.ImportXML(ctx, calendar, resp.Body)
}

// ImportRules stores the inline calendars of a rules file.
func (s *HolidaySvc) ImportRules(ctx context.Context, rules *configs.RulesFile) (int, error) {
	dates, err := rules.HolidayDates()
	if err != nil {
		return 0, err
	}

	var holidays []*models.Holiday
	for name, entries := range rules.Calendars {
		for i, e := range entries {
			holidays = append(holidays, &models.Holiday{Calendar: name, Date: dates[name][i], Name: e.Name})
		}
	}
	if len(holidays) == 0 {
		return 0, nil
	}

	added, err := s.repos.Holiday.AddBatch(ctx, holidays)
	if err != nil {
		return 0, err
	}
	s.logger.Infof("Loaded %d holidays from rules file (%d new)", len(holidays), added)
	return added, nil
}
