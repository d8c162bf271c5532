package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/bookmarkd/bookmarkd/internal/domain"
	"github.com/bookmarkd/bookmarkd/pkg/logger"
)

// errorBody is the wire shape of every error response. Message carries the
// stable machine-readable code; info is free-form text for humans.
type errorBody struct {
	Message string `json:"message"`
	Info    string `json:"info,omitempty"`
}

func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindForbidden, domain.KindDisabled:
		return http.StatusForbidden
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindBadRequest, domain.KindInvalidSetting:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, l logger.Logger, err error) {
	var derr *domain.Error
	if errors.As(err, &derr) {
		writeJSON(w, statusFor(derr.Kind), errorBody{Message: derr.Code, Info: derr.Info})
		return
	}

	// Anything untyped is a bug or an infrastructure failure; log it and
	// keep the details off the wire.
	l.Error("internal error", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, errorBody{Message: "InternalError"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
