package handler

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"ku-polls/internal/domain"
	"ku-polls/internal/middleware"
	apperrors "ku-polls/pkg/errors"
	"ku-polls/pkg/logger"
)

// IndexPath is where not-found questions redirect to
const IndexPath = "/api/polls"

const (
	MsgPollNotFound   = "Poll not found or not yet published."
	MsgPollClosed     = "This poll is not allowed for voting."
	MsgNoChoice       = "You didn't select a choice."
	MsgInvalidRequest = "Invalid request body"
)

// messageResponse is the body of redirects and simple acknowledgements
type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError maps err onto the error envelope. Unknown errors become a
// generic 500 and are logged with the request ID.
func respondError(w http.ResponseWriter, r *http.Request, err error, log *logger.Logger) {
	appErr := toAppError(err)
	requestID := middleware.GetRequestID(r.Context())

	if appErr.StatusCode >= http.StatusInternalServerError {
		log.WithError(err).WithFields(map[string]interface{}{
			"request_id": requestID,
			"method":     r.Method,
			"path":       r.URL.Path,
		}).Error("Request failed")
	} else {
		log.WithField("request_id", requestID).Debug(appErr.Message)
	}

	respondJSON(w, appErr.StatusCode, apperrors.NewErrorResponse(appErr, requestID))
}

func toAppError(err error) *apperrors.AppError {
	if appErr, ok := apperrors.As(err); ok {
		return appErr
	}
	switch {
	case errors.Is(err, domain.ErrVotingClosed):
		return apperrors.NewAuthorizationError(MsgPollClosed)
	case errors.Is(err, domain.ErrChoiceNotFound):
		return apperrors.NewValidationError(MsgNoChoice, map[string]interface{}{"field": "choice"})
	case errors.Is(err, domain.ErrQuestionNotFound):
		return apperrors.NewNotFoundError(MsgPollNotFound)
	default:
		return apperrors.NewInternalError("Internal server error", err)
	}
}

// redirectToIndex sends the client back to the poll index with a message
func redirectToIndex(w http.ResponseWriter, message string) {
	w.Header().Set("Location", IndexPath)
	respondJSON(w, http.StatusFound, messageResponse{Success: false, Message: message})
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<16))
	if err := dec.Decode(dst); err != nil {
		return apperrors.NewValidationError(MsgInvalidRequest, nil).WithInternal(err)
	}
	return nil
}

// clientIP expects chi's RealIP middleware to have rewritten RemoteAddr
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
