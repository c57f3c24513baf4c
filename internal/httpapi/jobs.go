// jobs.go implements the job CRUD and cancellation routes plus the SSE
// event stream, grounded on routes_v2/jobs.py.
package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/evalgo/gphotoctl/internal/model"
	"github.com/evalgo/gphotoctl/internal/safety"
	"github.com/evalgo/gphotoctl/internal/store"
)

type jobOut struct {
	ID              string           `json:"id"`
	AccountID       string           `json:"account_id"`
	Provider        string           `json:"provider"`
	Operation       string           `json:"operation"`
	DryRun          bool             `json:"dry_run"`
	Params          model.JSONMap    `json:"params"`
	Status          string           `json:"status"`
	Progress        float64          `json:"progress"`
	Message         string           `json:"message,omitempty"`
	Result          model.JSONMap    `json:"result,omitempty"`
	Error           model.JSONMap    `json:"error,omitempty"`
	CancelRequested bool             `json:"cancel_requested"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	StartedAt       *time.Time       `json:"started_at,omitempty"`
	FinishedAt      *time.Time       `json:"finished_at,omitempty"`
	Events          []jobEventOut    `json:"events,omitempty"`
}

type jobEventOut struct {
	ID        string    `json:"id"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Progress  *float64  `json:"progress,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toJobOut(j *model.Job) jobOut {
	return jobOut{
		ID:              j.ID,
		AccountID:       j.AccountID,
		Provider:        string(j.Provider),
		Operation:       j.Operation,
		DryRun:          j.DryRun,
		Params:          j.Params,
		Status:          string(j.Status),
		Progress:        j.Progress,
		Message:         j.Message,
		Result:          j.Result,
		Error:           j.Error,
		CancelRequested: j.CancelRequested,
		CreatedAt:       j.CreatedAt,
		UpdatedAt:       j.UpdatedAt,
		StartedAt:       j.StartedAt,
		FinishedAt:      j.FinishedAt,
	}
}

func toJobEventOut(ev model.JobEvent) jobEventOut {
	return jobEventOut{ID: ev.ID, Level: string(ev.Level), Message: ev.Message, Progress: ev.Progress, CreatedAt: ev.CreatedAt}
}

type createJobRequest struct {
	AccountID string        `json:"account_id"`
	Provider  string        `json:"provider"`
	Operation string        `json:"operation"`
	DryRun    bool          `json:"dry_run"`
	Params    model.JSONMap `json:"params"`
}

// createJob rejects a destructive, non-dry-run job that does not carry
// params.confirmed, mirroring the safety gate's confirm-to-leave-queued
// policy from spec.md §4.5.
func (h *handlers) createJob(c echo.Context) error {
	var req createJobRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.AccountID == "" || req.Provider == "" || req.Operation == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "account_id, provider and operation are required")
	}
	operation := req.Operation
	if len(operation) < len(req.Provider)+1 || operation[:len(req.Provider)+1] != req.Provider+"." {
		operation = req.Provider + "." + operation
	}
	if !req.DryRun && safety.IsDestructive(operation) {
		confirmed, _ := req.Params["confirmed"].(bool)
		if !confirmed {
			return echo.NewHTTPError(http.StatusBadRequest, "destructive operation requires params.confirmed=true for a non-dry-run job")
		}
	}

	job := &model.Job{
		AccountID: req.AccountID,
		Provider:  model.Provider(req.Provider),
		Operation: operation,
		DryRun:    req.DryRun,
		Params:    req.Params,
	}
	if err := h.d.Store.CreateJob(c.Request().Context(), job); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toJobOut(job))
}

func (h *handlers) listJobs(c echo.Context) error {
	limit := 200
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	filter := store.ListJobsFilter{
		AccountID: c.QueryParam("account_id"),
		Status:    model.JobStatus(c.QueryParam("status")),
		Limit:     limit,
	}
	jobs, err := h.d.Store.ListJobs(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	out := make([]jobOut, 0, len(jobs))
	for i := range jobs {
		out = append(out, toJobOut(&jobs[i]))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *handlers) getJob(c echo.Context) error {
	job, err := h.d.Store.GetJob(c.Request().Context(), c.Param("id"))
	if err != nil {
		if err == store.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "job not found")
		}
		return err
	}
	out := toJobOut(job)
	if c.QueryParam("include_events") != "false" {
		events, err := h.d.Store.TailEvents(c.Request().Context(), job.ID, time.Time{}, 500)
		if err != nil {
			return err
		}
		for _, ev := range events {
			out.Events = append(out.Events, toJobEventOut(ev))
		}
	}
	return c.JSON(http.StatusOK, out)
}

type cancelJobResponse struct {
	ID              string `json:"id"`
	Status          string `json:"status"`
	CancelRequested bool   `json:"cancel_requested"`
}

func (h *handlers) cancelJob(c echo.Context) error {
	job, err := h.d.Store.RequestCancel(c.Request().Context(), c.Param("id"))
	if err != nil {
		if err == store.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "job not found")
		}
		return err
	}
	return c.JSON(http.StatusOK, cancelJobResponse{ID: job.ID, Status: string(job.Status), CancelRequested: job.CancelRequested})
}

// streamJobs serves a keepalive-chunked SSE feed of job events since a
// cursor, polling the store at poll_seconds intervals, mirroring
// routes_v2/jobs.py's stream_jobs generator.
func (h *handlers) streamJobs(c echo.Context) error {
	pollSeconds := 1.0
	if v := c.QueryParam("poll_seconds"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0.2 && f <= 5.0 {
			pollSeconds = f
		}
	}
	cursor := time.Now().UTC()
	if v := c.QueryParam("since"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			cursor = t
		}
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	ticker := time.NewTicker(time.Duration(pollSeconds * float64(time.Second)))
	defer ticker.Stop()
	ctx := c.Request().Context()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			rows, err := h.d.Store.TailEvents(ctx, "", cursor, 300)
			if err != nil {
				continue
			}
			if len(rows) == 0 {
				fmt.Fprint(resp, ": keepalive\n\n")
				resp.Flush()
				continue
			}
			for _, ev := range rows {
				cursor = ev.CreatedAt
				job, jerr := h.d.Store.GetJob(ctx, ev.JobID)
				payload := map[string]interface{}{
					"event_id": ev.ID,
					"type":     "job_event",
					"job_id":   ev.JobID,
					"payload": map[string]interface{}{
						"level":    ev.Level,
						"message":  ev.Message,
						"progress": ev.Progress,
					},
					"created_at": ev.CreatedAt.Format(time.RFC3339),
				}
				if jerr == nil {
					payload["payload"].(map[string]interface{})["job"] = toJobOut(job)
				}
				b, merr := json.Marshal(payload)
				if merr != nil {
					continue
				}
				fmt.Fprintf(resp, "data: %s\n\n", b)
			}
			resp.Flush()
		}
	}
}
