package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/devkekops/weekender/internal/app/logger"
	"github.com/devkekops/weekender/internal/app/settlement"
	"github.com/devkekops/weekender/internal/app/storage"
)

type errorResponse struct {
	Error         string `json:"error"`
	Field         string `json:"field,omitempty"`
	Available     string `json:"available,omitempty"`
	NextAllowedAt string `json:"next_allowed_at,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Logger.Err(err).Msg("encode response")
	}
}

// decodeJSON reads the request body into v. An empty body leaves v as is.
func decodeJSON(req *http.Request, v interface{}) error {
	err := json.NewDecoder(req.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func invalidJSON(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON"})
	logger.Logger.Debug().Err(err).Msg("invalid request body")
}

func retryAfter(w http.ResponseWriter, seconds float64) {
	w.Header().Set("Retry-After", strconv.Itoa(int(math.Max(1, math.Ceil(seconds)))))
}

// writeError maps engine errors onto status codes.
func writeError(w http.ResponseWriter, err error) {
	var (
		validation   *settlement.ValidationError
		auth         *settlement.AuthorizationError
		insufficient *settlement.InsufficientFundsError
		frequency    *settlement.FrequencyRestrictionError
		conflict     *settlement.ConflictError
	)
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Field: validation.Field})
	case errors.As(err, &auth):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error()})
	case errors.Is(err, settlement.ErrOnboardingRequired):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error()})
	case errors.As(err, &insufficient):
		writeJSON(w, http.StatusPaymentRequired, errorResponse{
			Error:     err.Error(),
			Available: insufficient.Available.String(),
		})
	case errors.As(err, &frequency):
		retryAfter(w, frequency.Wait.Seconds())
		writeJSON(w, http.StatusTooManyRequests, errorResponse{
			Error:         err.Error(),
			NextAllowedAt: frequency.NextAllowedAt.Format(time.RFC3339),
		})
	case errors.As(err, &conflict):
		retryAfter(w, 1)
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
		logger.Logger.Warn().Err(err).Msg("transaction retries exhausted")
	case errors.Is(err, settlement.ErrBonusAlreadyGranted), errors.Is(err, settlement.ErrSecretAlreadySet):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, settlement.ErrUnknownAccount),
		errors.Is(err, settlement.ErrUnknownRequest),
		errors.Is(err, settlement.ErrUnknownDeposit),
		errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "Request cancelled"})
		logger.Logger.Warn().Err(err).Msg("request cancelled")
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal Server Error"})
		logger.Logger.Error().Err(err).Msg("request failed")
	}
}
