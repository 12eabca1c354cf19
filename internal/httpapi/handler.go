package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/pilobster/pilobster/internal/commands"
	"github.com/pilobster/pilobster/internal/logger"
	"github.com/pilobster/pilobster/internal/store"
)

// maxBodyBytes bounds POST bodies.
const maxBodyBytes = 64 << 10

type Handler struct {
	svc    Service
	logger *logger.Logger
}

type JobResponse struct {
	ID          int64      `json:"id"`
	Schedule    string     `json:"schedule"`
	Task        string     `json:"task"`
	Message     string     `json:"message"`
	Scope       string     `json:"scope"`
	Creator     string     `json:"creator,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	LastFiredAt *time.Time `json:"last_fired_at,omitempty"`
}

type FireResponse struct {
	FireID     string    `json:"fire_id"`
	JobID      int64     `json:"job_id"`
	Task       string    `json:"task"`
	Tick       string    `json:"tick"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	Delivered  int       `json:"delivered"`
	Failed     int       `json:"failed"`
	DurationMS int64     `json:"duration_ms"`
	FinishedAt time.Time `json:"finished_at"`
}

type StatusResponse struct {
	Model          string         `json:"model"`
	Host           string         `json:"host"`
	ContextLength  int            `json:"context_length"`
	UptimeSeconds  int64          `json:"uptime_seconds"`
	ActiveJobs     int            `json:"active_jobs"`
	Sessions       int            `json:"sessions"`
	SchedulerState string         `json:"scheduler_state,omitempty"`
	ModelStatus    string         `json:"model_status,omitempty"`
	LastTick       *time.Time     `json:"last_tick,omitempty"`
	WorkspaceFiles int            `json:"workspace_files"`
	RecentFires    []FireResponse `json:"recent_fires"`
}

type CreateJobRequest struct {
	Schedule string `json:"schedule"`
	Message  string `json:"message"`
	Task     string `json:"task,omitempty"`
	Scope    string `json:"scope,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Status(r.Context())
	if err != nil {
		h.handleError(w, err, http.StatusInternalServerError)
		return
	}

	resp := StatusResponse{
		Model:          st.Model,
		Host:           st.Host,
		ContextLength:  st.ContextLength,
		UptimeSeconds:  int64(st.Uptime / time.Second),
		ActiveJobs:     st.ActiveJobs,
		Sessions:       st.Sessions,
		SchedulerState: st.SchedulerState,
		ModelStatus:    st.ModelStatus,
		WorkspaceFiles: st.WorkspaceFiles,
		RecentFires:    make([]FireResponse, 0, len(st.RecentFires)),
	}
	if !st.LastTick.Time.IsZero() {
		t := st.LastTick.Time
		resp.LastTick = &t
	}
	for _, f := range st.RecentFires {
		resp.RecentFires = append(resp.RecentFires, FireResponse{
			FireID:     f.FireID,
			JobID:      f.JobID,
			Task:       f.Task,
			Tick:       f.Tick,
			Status:     f.Status,
			Error:      f.Error,
			Delivered:  f.Delivered,
			Failed:     f.Failed,
			DurationMS: f.Duration.Milliseconds(),
			FinishedAt: f.FinishedAt,
		})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.svc.ListJobs(r.Context())
	if err != nil {
		h.handleError(w, err, http.StatusInternalServerError)
		return
	}
	out := make([]JobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, toJobResponse(j))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.handleError(w, err, http.StatusBadRequest)
		return
	}

	job, err := h.svc.CreateSchedule(r.Context(), commands.ScheduleRequest{
		Schedule: req.Schedule,
		Message:  req.Message,
		Task:     req.Task,
		Scope:    req.Scope,
		Creator:  "api",
	})
	if err != nil {
		// Anything but a failed write is a problem with the request.
		status := http.StatusBadRequest
		var writeErr *store.StoreWriteError
		if errors.As(err, &writeErr) {
			status = http.StatusInternalServerError
		}
		h.handleError(w, err, status)
		return
	}
	h.writeJSON(w, http.StatusCreated, toJobResponse(job))
}

func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		h.handleError(w, err, http.StatusBadRequest)
		return
	}

	if err := h.svc.CancelJob(r.Context(), id); err != nil {
		var notFound *store.JobNotFoundError
		if errors.As(err, &notFound) {
			h.handleError(w, err, http.StatusNotFound)
			return
		}
		h.handleError(w, err, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toJobResponse(j store.Job) JobResponse {
	return JobResponse{
		ID:          j.ID,
		Schedule:    j.Schedule,
		Task:        j.Task,
		Message:     j.Message,
		Scope:       j.Scope,
		Creator:     j.Creator,
		CreatedAt:   j.CreatedAt,
		LastFiredAt: j.LastFiredAt,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", err)
	}
}

func (h *Handler) handleError(w http.ResponseWriter, err error, status int) {
	if status >= http.StatusInternalServerError {
		h.logger.Error("admin api request failed", err, logger.Field{Key: "status", Value: status})
	}
	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}
