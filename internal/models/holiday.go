package models

import (
	"fmt"
	"strings"
	"time"
)

// Holiday is a non-business date in a named calendar.
type Holiday struct {
	Calendar string    `json:"calendar" db:"calendar"`
	Date     time.Time `json:"date" db:"holiday_date"`
	Name     string    `json:"name,omitempty" db:"name"`
}

// HolidayRequest adds a holiday to a calendar
type HolidayRequest struct {
	Date string `json:"date"` // YYYY-MM-DD
	Name string `json:"name,omitempty"`
}

// ToHoliday validates the request and converts it for calendar.
func (r *HolidayRequest) ToHoliday(calendar string) (*Holiday, error) {
	if strings.TrimSpace(calendar) == "" {
		return nil, fmt.Errorf("%w: calendar is required", ErrInvalidRequest)
	}
	d, err := time.Parse(time.DateOnly, r.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidRequest)
	}
	return &Holiday{Calendar: calendar, Date: d, Name: r.Name}, nil
}

// ImportResult reports a calendar import.
type ImportResult struct {
	Calendar string `json:"calendar"`
	Parsed   int    `json:"parsed"`
	Added    int    `json:"added"`
	Resynced int    `json:"resynced"`
}
