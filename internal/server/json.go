package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/riley-cms/riley-cms/internal/apperror"
)

// ErrorResponse is the single error wire shape (§6): {"error": "..."}.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeAppError maps an *apperror.E (or any error) to a status code and
// client body per §7's logging discipline: the detail is always logged
// server-side; only BadRequest/Unauthorized/NotFound/PayloadTooLarge
// ever leak their message to the client. Everything else becomes a
// generic "Internal server error" body.
func writeAppError(w http.ResponseWriter, logger *log.Logger, err error) {
	kind := apperror.KindOf(err)
	logger.Printf("request error (%s): %v", kind, err)

	switch kind {
	case apperror.KindBadRequest:
		writeError(w, http.StatusBadRequest, errMessage(err))
	case apperror.KindUnauthorized:
		writeError(w, http.StatusUnauthorized, errMessage(err))
	case apperror.KindNotFound:
		writeError(w, http.StatusNotFound, errMessage(err))
	case apperror.KindPayloadTooLarge:
		writeError(w, http.StatusRequestEntityTooLarge, errMessage(err))
	default:
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func errMessage(err error) string {
	var e *apperror.E
	if errors.As(err, &e) {
		return e.Msg
	}
	return err.Error()
}
