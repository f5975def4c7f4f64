package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"timeclock/middleware"
	"timeclock/models"
	"timeclock/schedule"
	"timeclock/session"
)

type SubTaskHandler struct {
	manager *session.Manager
}

func NewSubTaskHandler(manager *session.Manager) *SubTaskHandler {
	return &SubTaskHandler{manager: manager}
}

func (h *SubTaskHandler) Start(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	subTaskID, ok := subTaskIDParam(w, r)
	if !ok {
		return
	}

	result, err := h.manager.Start(r.Context(), subTaskID, user)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *SubTaskHandler) Stop(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	subTaskID, ok := subTaskIDParam(w, r)
	if !ok {
		return
	}

	duration, err := h.manager.Stop(r.Context(), subTaskID, user)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"duration_seconds": duration})
}

func (h *SubTaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	subTaskID, ok := subTaskIDParam(w, r)
	if !ok {
		return
	}

	var proof session.ProofOfWork
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&proof); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	sub, err := h.manager.Complete(r.Context(), subTaskID, user, proof)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

type autoStopRequest struct {
	ProofOfWork string   `json:"proof_of_work,omitempty"`
	Attachments []string `json:"attachments,omitempty"`
}

func (h *SubTaskHandler) AutoStop(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	subTaskID, ok := subTaskIDParam(w, r)
	if !ok {
		return
	}

	var req autoStopRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	duration, err := h.manager.AutoStop(r.Context(), subTaskID, user, session.ProofOfWork{
		Comment:     req.ProofOfWork,
		Attachments: req.Attachments,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"duration_seconds": duration})
}

// Active returns the caller's open session, or a JSON null when nothing is
// being tracked.
func (h *SubTaskHandler) Active(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	active, err := h.manager.GetActive(r.Context(), user)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if active == nil {
		writeJSON(w, http.StatusOK, (*session.ActiveSession)(nil))
		return
	}
	writeJSON(w, http.StatusOK, active)
}

// subTaskView is a sub-task enriched with live schedule and budget state for
// list rendering.
type subTaskView struct {
	models.SubTask
	Schedule               schedule.Evaluation `json:"schedule"`
	Display                schedule.Display    `json:"display"`
	BudgetSeconds          int64               `json:"budget_seconds"`
	RemainingBudgetSeconds int64               `json:"remaining_budget_seconds"`
}

func (h *SubTaskHandler) ByTask(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	taskID, err := strconv.ParseUint(chi.URLParam(r, "taskId"), 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	subs, err := h.manager.ListByTask(r.Context(), uint(taskID), user)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	now := time.Now()
	views := make([]subTaskView, 0, len(subs))
	for _, sub := range subs {
		eval := schedule.Evaluate(&sub, now)
		views = append(views, subTaskView{
			SubTask:                sub,
			Schedule:               eval,
			Display:                eval.Display(),
			BudgetSeconds:          sub.BudgetSeconds(),
			RemainingBudgetSeconds: sub.RemainingBudgetSeconds(),
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func subTaskIDParam(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid sub-task id")
		return 0, false
	}
	return uint(id), true
}
