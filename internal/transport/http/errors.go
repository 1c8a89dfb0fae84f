package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cimillas/grabticket/internal/domain"
)

const (
	codeMethodNotAllowed   = "method_not_allowed"
	codeNotFound           = "not_found"
	codeInvalidRequestBody = "invalid_request_body"
	codeInvalidTime        = "invalid_time"
	codeInvalidID          = "invalid_id"
	codeEventTitleRequired = "event_title_required"
	codeSeatTypeRequired   = "seat_type_required"
	codeUsernameRequired   = "username_required"
	codeUsernameTaken      = "username_taken"
	codeInvalidPrice       = "invalid_price"
	codeInvalidQuantity    = "invalid_quantity"
	codeInvalidBalance     = "invalid_balance"
	codeEventNotFound      = "event_not_found"
	codeForbidden          = "forbidden"
	codeServiceUnavailable = "service_unavailable"
	codeInternalError      = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

// writeDomainError maps catalog and admin errors to HTTP responses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidID):
		writeError(w, http.StatusNotFound, codeInvalidID, err.Error())
	case errors.Is(err, domain.ErrEventNotFound):
		writeError(w, http.StatusNotFound, codeEventNotFound, err.Error())
	case errors.Is(err, domain.ErrEventTitleRequired):
		writeError(w, http.StatusBadRequest, codeEventTitleRequired, err.Error())
	case errors.Is(err, domain.ErrSeatTypeRequired):
		writeError(w, http.StatusBadRequest, codeSeatTypeRequired, err.Error())
	case errors.Is(err, domain.ErrUsernameRequired):
		writeError(w, http.StatusBadRequest, codeUsernameRequired, err.Error())
	case errors.Is(err, domain.ErrUsernameTaken):
		writeError(w, http.StatusConflict, codeUsernameTaken, err.Error())
	case errors.Is(err, domain.ErrInvalidPrice):
		writeError(w, http.StatusBadRequest, codeInvalidPrice, err.Error())
	case errors.Is(err, domain.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, codeInvalidQuantity, err.Error())
	case errors.Is(err, domain.ErrInvalidBalance):
		writeError(w, http.StatusBadRequest, codeInvalidBalance, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
