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

// PaymentHandler handles payment-related HTTP requests
type PaymentHandler struct {
	paymentService service.PaymentService
	logger         *logrus.Logger
	config         *configs.Config
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(paymentService service.PaymentService, logger *logrus.Logger, config *configs.Config) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		logger:         logger,
		config:         config,
	}
}

// Apply handles posting a payment to a credit
func (h *PaymentHandler) Apply(w http.ResponseWriter, r *http.Request) {
	creditID, err := pathUUID(r, "id")
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid credit ID")
		return
	}

	var paymentRequest models.PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&paymentRequest); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	defer r.Body.Close()

	resp, err := h.paymentService.Apply(r.Context(), creditID, &paymentRequest)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to apply payment")
		return
	}

	utils.RespondWithSuccess(w, http.StatusCreated, "payment applied successfully", resp)
}

// GetAll handles listing the payments of a credit
func (h *PaymentHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	creditID, err := pathUUID(r, "id")
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid credit ID")
		return
	}

	payments, err := h.paymentService.List(r.Context(), creditID)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to get payments")
		return
	}

	utils.RespondWithSuccess(w, http.StatusOK, "payments retrieved successfully", payments)
}

// Void handles voiding a payment
func (h *PaymentHandler) Void(w http.ResponseWriter, r *http.Request) {
	paymentID, err := pathUUID(r, "id")
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid payment ID")
		return
	}

	var voidRequest models.VoidRequest
	if err := json.NewDecoder(r.Body).Decode(&voidRequest); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	defer r.Body.Close()

	payment, err := h.paymentService.Void(r.Context(), paymentID, &voidRequest)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to void payment")
		return
	}

	utils.RespondWithSuccess(w, http.StatusOK, "payment voided successfully", payment)
}

// Receipt handles retrieving the allocation receipt of a payment
func (h *PaymentHandler) Receipt(w http.ResponseWriter, r *http.Request) {
	paymentID, err := pathUUID(r, "id")
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid payment ID")
		return
	}

	receipt, err := h.paymentService.Receipt(r.Context(), paymentID)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to build receipt")
		return
	}

	utils.RespondWithSuccess(w, http.StatusOK, "receipt retrieved successfully", receipt)
}
