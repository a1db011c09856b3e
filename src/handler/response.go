package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	logger "github.com/sirupsen/logrus"

	"tradesim/src/connectors"
	"tradesim/src/gtt"
	"tradesim/src/normalizer"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithError(err).Error("failed to encode response")
	}
}

// writeError maps domain errors onto HTTP statuses: validation 400,
// authority rejection 422, unknown order 404, anything else 500.
func writeError(w http.ResponseWriter, err error) {
	var rejected *connectors.RejectedError
	switch {
	case errors.Is(err, normalizer.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.As(err, &rejected):
		reason := rejected.Reason
		if reason == "" && rejected.Code != "" {
			reason = connectors.GetRejectMsg(rejected.Code)
		}
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "rejected", Code: rejected.Code, Reason: reason})
	case errors.Is(err, connectors.ErrRejected):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "rejected", Reason: err.Error()})
	case errors.Is(err, gtt.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	default:
		logger.WithError(err).Error("request failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal Server Error"})
	}
}

// decodeFields reads a JSON object body keeping numeric precision.
func decodeFields(r *http.Request) (normalizer.Fields, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	fields, err := normalizer.DecodeFields(body)
	if err != nil || fields == nil {
		return nil, invalidBody()
	}
	return fields, nil
}

func invalidBody() error {
	return validationError("request body must be a JSON object")
}
