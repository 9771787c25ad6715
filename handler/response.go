package handler

import (
	"encoding/json"
	"net/http"

	"store-assistant/internal/usecase"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func statusFor(code usecase.ErrorCode) int {
	switch code {
	case usecase.ErrorForbidden, usecase.ErrorFeatureDisabled:
		return http.StatusForbidden
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	ue := usecase.AsError(err)
	writeJSON(w, statusFor(ue.Code), errorResponse{Code: ue.Reason, Message: ue.Message()})
}
