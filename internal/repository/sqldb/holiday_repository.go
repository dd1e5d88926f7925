package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"credit-engine/internal/engine"
	"credit-engine/internal/models"
)

// HolidayRepo is a database/sql implementation of the repository.HolidayRepository interface
type HolidayRepo struct {
	db *sql.DB
}

// NewHolidayRepository creates a new HolidayRepo
func NewHolidayRepository(db *sql.DB) *HolidayRepo {
	return &HolidayRepo{db: db}
}

const insertHoliday = `INSERT INTO holidays (calendar, holiday_date, name)
             VALUES ($1, $2, $3)
             ON CONFLICT (calendar, holiday_date) DO NOTHING`

// Add inserts a holiday. It reports false when the date was already present.
func (r *HolidayRepo) Add(ctx context.Context, h *models.Holiday) (bool, error) {
	result, err := r.db.ExecContext(ctx, insertHoliday, h.Calendar, engine.DateOf(h.Date), h.Name)
	if err != nil {
		return false, fmt.Errorf("failed to add holiday: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// AddBatch inserts holidays in one transaction and returns how many were new.
func (r *HolidayRepo) AddBatch(ctx context.Context, holidays []*models.Holiday) (added int, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, h := range holidays {
		result, err := tx.ExecContext(ctx, insertHoliday, h.Calendar, engine.DateOf(h.Date), h.Name)
		if err != nil {
			return 0, fmt.Errorf("failed to add holiday %s: %w", h.Date.Format(time.DateOnly), err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to get rows affected: %w", err)
		}
		added += int(n)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return added, nil
}

// Remove deletes one holiday from a calendar
func (r *HolidayRepo) Remove(ctx context.Context, calendar string, date time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM holidays WHERE calendar = $1 AND holiday_date = $2`,
		calendar, engine.DateOf(date))
	if err != nil {
		return fmt.Errorf("failed to remove holiday: %w", err)
	}
	return expectOne(result, fmt.Errorf("holiday %s in %s: %w", date.Format(time.DateOnly), calendar, ErrNotFound))
}

// GetByCalendar lists the holidays of a calendar in date order
func (r *HolidayRepo) GetByCalendar(ctx context.Context, calendar string) ([]*models.Holiday, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT calendar, holiday_date, name FROM holidays WHERE calendar = $1 ORDER BY holiday_date`,
		calendar)
	if err != nil {
		return nil, fmt.Errorf("failed to get holidays: %w", err)
	}
	defer rows.Close()

	var holidays []*models.Holiday
	for rows.Next() {
		h := &models.Holiday{}
		if err := rows.Scan(&h.Calendar, &h.Date, &h.Name); err != nil {
			return nil, fmt.Errorf("failed to scan holiday: %w", err)
		}
		h.Date = engine.DateOf(h.Date)
		holidays = append(holidays, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return holidays, nil
}

// Calendars lists the names of all calendars that have at least one holiday
func (r *HolidayRepo) Calendars(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT calendar FROM holidays ORDER BY calendar`)
	if err != nil {
		return nil, fmt.Errorf("failed to get calendars: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan calendar: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return names, nil
}
