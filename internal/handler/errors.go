package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"credit-engine/internal/engine"
	"credit-engine/internal/models"
	"credit-engine/internal/repository"
	"credit-engine/internal/service"
	"credit-engine/pkg/utils"
)

// statusFor maps a service error to an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidRequest), engine.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case engine.IsState(err), errors.Is(err, service.ErrOutOfOrder), errors.Is(err, repository.ErrConflict):
		return http.StatusConflict
	case engine.IsScheduling(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondWithServiceError logs err and writes it with the mapped status.
// Internal errors are reported to the client as msg only.
func respondWithServiceError(w http.ResponseWriter, logger *logrus.Logger, err error, msg string) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		logger.Errorf("%s: %v", msg, err)
		utils.RespondWithError(w, code, msg)
		return
	}
	logger.Warnf("%s: %v", msg, err)
	utils.RespondWithError(w, code, err.Error())
}

// pathUUID reads the named path variable as a UUID.
func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s", models.ErrInvalidRequest, name)
	}
	return id, nil
}

// asOfDate reads the as_of query parameter, defaulting to today.
func asOfDate(r *http.Request) (time.Time, error) {
	v := r.URL.Query().Get("as_of")
	if v == "" {
		return engine.DateOf(time.Now()), nil
	}
	d, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: as_of must be YYYY-MM-DD", models.ErrInvalidRequest)
	}
	return d, nil
}
