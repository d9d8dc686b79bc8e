package httptransport

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"contact-harvester/internal/entity"
	"contact-harvester/internal/service"
)

type Handler struct {
	taskSvc *service.TaskService
}

func NewHandler(taskSvc *service.TaskService) *Handler {
	return &Handler{taskSvc: taskSvc}
}

type createTaskDTO struct {
	Query       string `json:"query"`
	CallbackURL string `json:"callback_url"`
}

type createTaskResp struct {
	ID     string            `json:"id"`
	Status entity.TaskStatus `json:"status"`
}

type taskResp struct {
	ID               string            `json:"id"`
	Query            string            `json:"query"`
	CallbackURL      string            `json:"callback_url"`
	Status           entity.TaskStatus `json:"status"`
	Stage            entity.TaskStage  `json:"stage"`
	Result           map[string]any    `json:"result,omitempty"`
	ErrorReason      *string           `json:"error_reason,omitempty"`
	DeliveryAttempts int               `json:"delivery_attempts"`
	CreatedAt        string            `json:"created_at"`
	UpdatedAt        string            `json:"updated_at"`
}

// CreateTask godoc
// @Summary Create a contact-harvest task
// @Description Creates task in DB (PENDING) and enqueues it for background processing.
// @Tags tasks
// @Accept json
// @Produce json
// @Param request body createTaskDTO true "task payload"
// @Success 201 {object} createTaskResp
// @Failure 400 {object} apiError
// @Failure 500 {object} apiError
// @Router /tasks [post]
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var dto createTaskDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	id, err := h.taskSvc.CreateTask(r.Context(), service.CreateTaskRequest{
		Query:       dto.Query,
		CallbackURL: dto.CallbackURL,
	})
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, createTaskResp{ID: id.String(), Status: entity.StatusPending})
}

// GetTask godoc
// @Summary Get task by id
// @Tags tasks
// @Produce json
// @Param id path string true "task id (uuid)"
// @Success 200 {object} taskResp
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /tasks/{id} [get]
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid id")
		return
	}

	t, err := h.taskSvc.GetTask(r.Context(), id)
	if err != nil {
		writeErr(w, http.StatusNotFound, "task not found")
		return
	}

	resp := taskResp{
		ID:               t.ID.String(),
		Query:            t.Query,
		CallbackURL:      t.CallbackURL,
		Status:           t.Status,
		Stage:            t.Stage,
		ErrorReason:      t.ErrorReason,
		DeliveryAttempts: t.DeliveryAttempts,
		CreatedAt:        t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        t.UpdatedAt.Format(time.RFC3339),
	}

	if t.Status == entity.StatusSuccess && len(t.Result) > 0 {
		if err := json.Unmarshal(t.Result, &resp.Result); err != nil {
			log.Printf("[http] task_id=%s stored result unmarshal error=%v", t.ID.String(), err)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetTaskResult godoc
// @Summary Get task result
// @Tags tasks
// @Produce json
// @Param id path string true "task id (uuid)"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Failure 409 {object} apiError
// @Router /tasks/{id}/result [get]
func (h *Handler) GetTaskResult(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid id")
		return
	}

	t, err := h.taskSvc.GetTask(r.Context(), id)
	if err != nil {
		writeErr(w, http.StatusNotFound, "task not found")
		return
	}
	if t.Status != entity.StatusSuccess {
		writeErr(w, http.StatusConflict, "task not finished successfully")
		return
	}

	// raw json as stored, no re-encoding
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(t.Result)
}

// WebhookMock godoc
// @Summary Local callback sink for manual testing
// @Tags tasks
// @Accept json
// @Produce json
// @Success 200 {object} map[string]bool
// @Router /webhook-mock [post]
func (h *Handler) WebhookMock(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	log.Printf("[webhook-mock] received payload=%s", body)
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
