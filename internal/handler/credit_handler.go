package handler

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"credit-engine/configs"
	"credit-engine/internal/models"
	"credit-engine/internal/service"
	"credit-engine/pkg/utils"
)

// CreditHandler handles credit-related HTTP requests
type CreditHandler struct {
	creditService service.CreditService
	logger        *logrus.Logger
	config        *configs.Config
}

// NewCreditHandler creates a new CreditHandler
func NewCreditHandler(creditService service.CreditService, logger *logrus.Logger, config *configs.Config) *CreditHandler {
	return &CreditHandler{
		creditService: creditService,
		logger:        logger,
		config:        config,
	}
}

// Create handles credit origination
func (h *CreditHandler) Create(w http.ResponseWriter, r *http.Request) {
	var creditRequest models.CreditRequest
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&creditRequest); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	defer r.Body.Close()

	credit, err := h.creditService.Create(r.Context(), &creditRequest)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to create credit")
		return
	}

	utils.RespondWithSuccess(w, http.StatusCreated, "credit created successfully", credit)
}

// GetAll handles listing credits, optionally filtered by status, client_ref
// and calendar
func (h *CreditHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.CreditFilter{
		Status:    models.CreditStatus(q.Get("status")),
		ClientRef: q.Get("client_ref"),
		Calendar:  q.Get("calendar"),
	}

	credits, err := h.creditService.List(r.Context(), filter)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to get credits")
		return
	}

	utils.RespondWithSuccess(w, http.StatusOK, "credits retrieved successfully", credits)
}

// GetByID handles retrieving a specific credit by ID
func (h *CreditHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	creditID, err := pathUUID(r, "id")
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid credit ID")
		return
	}

	credit, err := h.creditService.GetByID(r.Context(), creditID)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to get credit")
		return
	}

	utils.RespondWithSuccess(w, http.StatusOK, "credit retrieved successfully", credit)
}

// GetSchedule handles retrieving the payment schedule of a credit with the
// coverage of each installment as of the as_of date
func (h *CreditHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	creditID, err := pathUUID(r, "id")
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid credit ID")
		return
	}
	asOf, err := asOfDate(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	schedule, err := h.creditService.GetSchedule(r.Context(), creditID, asOf)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to get payment schedule")
		return
	}

	utils.RespondWithSuccess(w, http.StatusOK, "payment schedule retrieved successfully", schedule)
}

// GetStatus handles retrieving the ledger state and provisioning of a credit
func (h *CreditHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	creditID, err := pathUUID(r, "id")
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid credit ID")
		return
	}
	asOf, err := asOfDate(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	status, err := h.creditService.GetStatus(r.Context(), creditID, asOf)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to get credit status")
		return
	}

	utils.RespondWithSuccess(w, http.StatusOK, "credit status retrieved successfully", status)
}

// Resync handles regenerating a credit's due dates against its calendar
func (h *CreditHandler) Resync(w http.ResponseWriter, r *http.Request) {
	creditID, err := pathUUID(r, "id")
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid credit ID")
		return
	}

	credit, err := h.creditService.Resync(r.Context(), creditID)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to resync credit")
		return
	}

	utils.RespondWithSuccess(w, http.StatusOK, "credit resynced successfully", credit)
}
