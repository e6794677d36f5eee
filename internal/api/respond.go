package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/LabelDrop/internal/model"
)

type errorBody struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, logger *zap.Logger, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Warn("encode response", zap.Error(err))
	}
}

// respondError writes the user message for err. The cause is logged for
// server-side failures only.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	s.writeError(w, r, err, model.UserMessage(err))
}

// respondUploadError is respondError with the upload form's wording.
func (s *Server) respondUploadError(w http.ResponseWriter, r *http.Request, err error) {
	s.writeError(w, r, err, model.UploadMessage(err))
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	status := httpStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	respondJSON(w, s.logger, status, errorBody{Error: msg})
}

func httpStatus(err error) int {
	switch {
	case model.IsKind(err, model.ErrNotPDF):
		return http.StatusUnprocessableEntity
	case model.IsKind(err, model.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case model.IsKind(err, model.ErrValidation):
		return http.StatusBadRequest
	case model.IsKind(err, model.ErrNotFound):
		return http.StatusNotFound
	case model.IsKind(err, model.ErrIllegalTransition), model.IsKind(err, model.ErrInFlight):
		return http.StatusConflict
	case model.IsKind(err, model.ErrPermissionDenied), model.IsKind(err, model.ErrSubscription):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
