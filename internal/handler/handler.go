package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"credit-engine/configs"
	"credit-engine/internal/service"
)

// Dependencies contains handler dependencies
type Dependencies struct {
	Services *service.Service
	Logger   *logrus.Logger
	Config   *configs.Config
}

// Handler contains all HTTP handlers for the application
type Handler struct {
	Credit    *CreditHandler
	Payment   *PaymentHandler
	Holiday   *HolidayHandler
	Portfolio *PortfolioHandler
}

// NewHandler creates a new Handler with all subhandlers
func NewHandler(deps Dependencies) *Handler {
	return &Handler{
		Credit:    NewCreditHandler(deps.Services.Credit, deps.Logger, deps.Config),
		Payment:   NewPaymentHandler(deps.Services.Payment, deps.Logger, deps.Config),
		Holiday:   NewHolidayHandler(deps.Services.Holiday, deps.Services.Credit, deps.Logger, deps.Config),
		Portfolio: NewPortfolioHandler(deps.Services.Portfolio, deps.Logger, deps.Config),
	}
}

// RegisterRoutes mounts every endpoint on api
func (h *Handler) RegisterRoutes(api *mux.Router) {
	// Credit endpoints
	api.HandleFunc("/credits", h.Credit.Create).Methods(http.MethodPost)
	api.HandleFunc("/credits", h.Credit.GetAll).Methods(http.MethodGet)
	api.HandleFunc("/credits/{id}", h.Credit.GetByID).Methods(http.MethodGet)
	api.HandleFunc("/credits/{id}/schedule", h.Credit.GetSchedule).Methods(http.MethodGet)
	api.HandleFunc("/credits/{id}/status", h.Credit.GetStatus).Methods(http.MethodGet)
	api.HandleFunc("/credits/{id}/resync", h.Credit.Resync).Methods(http.MethodPost)

	// Payment endpoints
	api.HandleFunc("/credits/{id}/payments", h.Payment.Apply).Methods(http.MethodPost)
	api.HandleFunc("/credits/{id}/payments", h.Payment.GetAll).Methods(http.MethodGet)
	api.HandleFunc("/payments/{id}/void", h.Payment.Void).Methods(http.MethodPost)
	api.HandleFunc("/payments/{id}/receipt", h.Payment.Receipt).Methods(http.MethodGet)

	// Holiday calendar endpoints
	api.HandleFunc("/holidays", h.Holiday.Calendars).Methods(http.MethodGet)
	api.HandleFunc("/holidays/{calendar}", h.Holiday.GetAll).Methods(http.MethodGet)
	api.HandleFunc("/holidays/{calendar}", h.Holiday.Add).Methods(http.MethodPost)
	api.HandleFunc("/holidays/{calendar}/{date}", h.Holiday.Remove).Methods(http.MethodDelete)
	api.HandleFunc("/holidays/{calendar}/import", h.Holiday.Import).Methods(http.MethodPost)
	api.HandleFunc("/holidays/{calendar}/fetch", h.Holiday.Fetch).Methods(http.MethodPost)
	api.HandleFunc("/holidays/{calendar}/resync", h.Holiday.Resync).Methods(http.MethodPost)

	// Portfolio endpoints
	api.HandleFunc("/portfolio/provisioning", h.Portfolio.Provisioning).Methods(http.MethodGet)
}
