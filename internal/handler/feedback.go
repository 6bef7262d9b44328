package handler

import (
	"net/http"

	"github.com/pulse-analytics/pulse/internal/ctxkeys"
	"github.com/pulse-analytics/pulse/internal/model"
	"github.com/pulse-analytics/pulse/internal/response"
	"github.com/pulse-analytics/pulse/internal/service"
	"github.com/pulse-analytics/pulse/internal/validation"
)

type feedbackHandler struct {
	feedbackService *service.FeedbackService
	validator       *validation.Validator
}

func NewFeedbackHandler(feedbackService *service.FeedbackService, validator *validation.Validator) *feedbackHandler {
	return &feedbackHandler{
		feedbackService: feedbackService,
		validator:       validator,
	}
}

func (h *feedbackHandler) List(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	entries, err := h.feedbackService.Feedback(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []*model.Feedback{}
	}

	response.JSON(w, http.StatusOK, map[string]any{"feedback": entries})
}

func (h *feedbackHandler) Submit(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var req model.CreateFeedbackRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	entry, err := h.feedbackService.Submit(r.Context(), user.ID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.JSON(w, http.StatusCreated, entry)
}
