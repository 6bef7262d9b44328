package handler

import (
	"net/http"

	"github.com/pulse-analytics/pulse/internal/ctxkeys"
	"github.com/pulse-analytics/pulse/internal/model"
	"github.com/pulse-analytics/pulse/internal/response"
	"github.com/pulse-analytics/pulse/internal/service"
	"github.com/pulse-analytics/pulse/internal/validation"
)

type taskHandler struct {
	taskService *service.TaskService
	validator   *validation.Validator
}

func NewTaskHandler(taskService *service.TaskService, validator *validation.Validator) *taskHandler {
	return &taskHandler{
		taskService: taskService,
		validator:   validator,
	}
}

func (h *taskHandler) List(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	tasks, err := h.taskService.Tasks(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []*model.Task{}
	}

	response.JSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

func (h *taskHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var req model.CreateTaskRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	task, err := h.taskService.Create(r.Context(), user.ID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.JSON(w, http.StatusCreated, task)
}

func (h *taskHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	task, err := h.taskService.ByID(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, task)
}

func (h *taskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	task, err := h.taskService.Complete(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, task)
}

func (h *taskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	err := h.taskService.Delete(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
