package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"credit-engine/configs"
	"credit-engine/internal/models"
	"credit-engine/internal/service"
	"credit-engine/pkg/utils"
)

// maxCalendarSize bounds an uploaded calendar document.
const maxCalendarSize = 1 << 20

// HolidayHandler handles holiday calendar HTTP requests. Every change to a
// calendar is followed by a resync of the active credits that use it.
type HolidayHandler struct {
	holidayService service.HolidayService
	creditService  service.CreditService
	logger         *logrus.Logger
	config         *configs.Config
}

// NewHolidayHandler creates a new HolidayHandler
func NewHolidayHandler(holidayService service.HolidayService, creditService service.CreditService, logger *logrus.Logger, config *configs.Config) *HolidayHandler {
	return &HolidayHandler{
		holidayService: holidayService,
		creditService:  creditService,
		logger:         logger,
		config:         config,
	}
}

// Calendars handles listing calendar names
func (h *HolidayHandler) Calendars(w http.ResponseWriter, r *http.Request) {
	names, err := h.holidayService.Calendars(r.Context())
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to get calendars")
		return
	}
	utils.RespondWithSuccess(w, http.StatusOK, "calendars retrieved successfully", names)
}

// GetAll handles listing the holidays of a calendar
func (h *HolidayHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	holidays, err := h.holidayService.List(r.Context(), mux.Vars(r)["calendar"])
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to get holidays")
		return
	}
	utils.RespondWithSuccess(w, http.StatusOK, "holidays retrieved successfully", holidays)
}

// Add handles adding a holiday
func (h *HolidayHandler) Add(w http.ResponseWriter, r *http.Request) {
	calendar := mux.Vars(r)["calendar"]

	var holidayRequest models.HolidayRequest
	if err := json.NewDecoder(r.Body).Decode(&holidayRequest); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	defer r.Body.Close()

	holiday, err := holidayRequest.ToHoliday(calendar)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	added, err := h.holidayService.Add(r.Context(), holiday)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to add holiday")
		return
	}

	result := &models.ImportResult{Calendar: calendar, Parsed: 1}
	if added {
		result.Added = 1
		if !h.resync(r.Context(), w, result) {
			return
		}
	}
	utils.RespondWithSuccess(w, http.StatusCreated, "holiday added successfully", result)
}

// Remove handles deleting a holiday
func (h *HolidayHandler) Remove(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	calendar := vars["calendar"]

	date, err := time.Parse(time.DateOnly, vars["date"])
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	if err := h.holidayService.Remove(r.Context(), calendar, date); err != nil {
		respondWithServiceError(w, h.logger, err, "failed to remove holiday")
		return
	}

	result := &models.ImportResult{Calendar: calendar}
	if !h.resync(r.Context(), w, result) {
		return
	}
	utils.RespondWithSuccess(w, http.StatusOK, "holiday removed successfully", result)
}

// Import handles uploading a production calendar XML document
func (h *HolidayHandler) Import(w http.ResponseWriter, r *http.Request) {
	calendar := mux.Vars(r)["calendar"]
	defer r.Body.Close()

	result, err := h.holidayService.ImportXML(r.Context(), calendar, http.MaxBytesReader(w, r.Body, maxCalendarSize))
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to import calendar")
		return
	}
	if result.Added > 0 && !h.resync(r.Context(), w, result) {
		return
	}
	utils.RespondWithSuccess(w, http.StatusOK, "calendar imported successfully", result)
}

// Fetch handles downloading the production calendar of the year query
// parameter, the current year by default
func (h *HolidayHandler) Fetch(w http.ResponseWriter, r *http.Request) {
	calendar := mux.Vars(r)["calendar"]

	year := time.Now().Year()
	if v := r.URL.Query().Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "invalid year")
			return
		}
		year = y
	}

	result, err := h.holidayService.Fetch(r.Context(), calendar, year)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to fetch calendar")
		return
	}
	if result.Added > 0 && !h.resync(r.Context(), w, result) {
		return
	}
	utils.RespondWithSuccess(w, http.StatusOK, "calendar fetched successfully", result)
}

// Resync handles regenerating every active credit on a calendar
func (h *HolidayHandler) Resync(w http.ResponseWriter, r *http.Request) {
	result := &models.ImportResult{Calendar: mux.Vars(r)["calendar"]}
	if !h.resync(r.Context(), w, result) {
		return
	}
	utils.RespondWithSuccess(w, http.StatusOK, "credits resynced successfully", result)
}

// resync regenerates the credits on result's calendar and records the count.
// It writes the error response and returns false on failure.
func (h *HolidayHandler) resync(ctx context.Context, w http.ResponseWriter, result *models.ImportResult) bool {
	n, err := h.creditService.ResyncAll(ctx, result.Calendar)
	result.Resynced = n
	if err != nil {
		respondWithServiceError(w, h.logger, err, "calendar updated but resync failed")
		return false
	}
	return true
}
