package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ku-polls/internal/domain"
	"ku-polls/internal/middleware"
	"ku-polls/internal/service"
	apperrors "ku-polls/pkg/errors"
	"ku-polls/pkg/logger"
)

// PollHandler serves the question index, detail, results and voting endpoints
type PollHandler struct {
	polls  service.PollService
	logger *logger.Logger
	now    func() time.Time
}

func NewPollHandler(polls service.PollService, logger *logger.Logger) *PollHandler {
	return &PollHandler{
		polls:  polls,
		logger: logger,
		now:    time.Now,
	}
}

// Routes mounts the poll endpoints. Voting needs a session; everything
// else is readable anonymously.
func (h *PollHandler) Routes(verifier middleware.SessionVerifier) chi.Router {
	r := chi.NewRouter()
	r.With(middleware.OptionalAuth(verifier, h.logger)).Get("/", h.Index)
	r.With(middleware.OptionalAuth(verifier, h.logger)).Get("/{questionID}", h.Detail)
	r.Get("/{questionID}/results", h.Results)
	r.With(middleware.RequireAuth(verifier, h.logger)).Post("/{questionID}/vote", h.Vote)
	return r
}

// Index handles GET /api/polls
func (h *PollHandler) Index(w http.ResponseWriter, r *http.Request) {
	questions, err := h.polls.ListLatest(r.Context(), h.now())
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"questions": questions,
	})
}

// Detail handles GET /api/polls/{questionID}
func (h *PollHandler) Detail(w http.ResponseWriter, r *http.Request) {
	userID := ""
	if claims, ok := middleware.UserFromContext(r.Context()); ok {
		userID = claims.UserID
	}

	detail, err := h.polls.GetDetail(r.Context(), chi.URLParam(r, "questionID"), userID, h.now())
	if errors.Is(err, domain.ErrQuestionNotFound) {
		redirectToIndex(w, MsgPollNotFound)
		return
	}
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	respondJSON(w, http.StatusOK, detail)
}

// Results handles GET /api/polls/{questionID}/results
func (h *PollHandler) Results(w http.ResponseWriter, r *http.Request) {
	results, err := h.polls.GetResults(r.Context(), chi.URLParam(r, "questionID"), h.now())
	if errors.Is(err, domain.ErrQuestionNotFound) {
		redirectToIndex(w, MsgPollNotFound)
		return
	}
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	respondJSON(w, http.StatusOK, results)
}

// Vote handles POST /api/polls/{questionID}/vote
func (h *PollHandler) Vote(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respondError(w, r, apperrors.NewAuthenticationError("Authentication required"), h.logger)
		return
	}

	// A missing or unreadable body is the same as not picking a choice.
	var req domain.VoteRequest
	_ = decodeJSON(r, &req)

	questionID := chi.URLParam(r, "questionID")
	result, err := h.polls.Vote(r.Context(), claims.UserID, questionID, req.ChoiceID, h.now())
	if errors.Is(err, domain.ErrQuestionNotFound) {
		redirectToIndex(w, MsgPollNotFound)
		return
	}
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	w.Header().Set("Location", IndexPath+"/"+questionID+"/results")
	respondJSON(w, status, result)
}
