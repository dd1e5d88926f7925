package handler

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"credit-engine/configs"
	"credit-engine/internal/service"
	"credit-engine/pkg/utils"
)

// PortfolioHandler handles portfolio reporting HTTP requests
type PortfolioHandler struct {
	portfolioService service.PortfolioService
	logger           *logrus.Logger
	config           *configs.Config
}

// NewPortfolioHandler creates a new PortfolioHandler
func NewPortfolioHandler(portfolioService service.PortfolioService, logger *logrus.Logger, config *configs.Config) *PortfolioHandler {
	return &PortfolioHandler{
		portfolioService: portfolioService,
		logger:           logger,
		config:           config,
	}
}

// Provisioning handles the loss provisioning report
func (h *PortfolioHandler) Provisioning(w http.ResponseWriter, r *http.Request) {
	asOf, err := asOfDate(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.portfolioService.ProvisioningReport(r.Context(), asOf)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to build provisioning report")
		return
	}

	utils.RespondWithSuccess(w, http.StatusOK, "provisioning report retrieved successfully", report)
}
