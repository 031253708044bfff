package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/classforge/classforge-backend/internal/domain"
	"github.com/classforge/classforge-backend/internal/http/response"
	pkgerrors "github.com/classforge/classforge-backend/internal/pkg/errors"
	"github.com/classforge/classforge-backend/internal/platform/dbctx"
	"github.com/classforge/classforge-backend/internal/services"
)

type JobHandler struct {
	jobs services.JobService
}

func NewJobHandler(jobs services.JobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

type submitJobRequest struct {
	Route     string         `json:"route"`
	StudentID string         `json:"student_id,omitempty"`
	Request   map[string]any `json:"request"`
}

// POST /api/jobs
func (h *JobHandler) SubmitJob(c *gin.Context) {
	var body submitJobRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if !types.ValidRoute(body.Route) {
		response.RespondError(c, http.StatusBadRequest, "invalid_route", fmt.Errorf("unknown route %q", body.Route))
		return
	}

	payload := body.Request
	if payload == nil {
		payload = map[string]any{}
	}

	var studentID *uuid.UUID
	if body.StudentID != "" {
		id, err := uuid.Parse(body.StudentID)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_student_id", err)
			return
		}
		studentID = &id
		payload["student_id"] = id.String()
	}

	job, err := h.jobs.Submit(dbctx.Context{Ctx: c.Request.Context()}, body.Route, studentID, payload)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "submit_job_failed", err)
		return
	}
	response.RespondAccepted(c, gin.H{"job": job})
}

// GET /api/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	job, err := h.jobs.GetByID(dbctx.Context{Ctx: c.Request.Context()}, jobID)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "get_job_failed", err)
		return
	}
	if job == nil {
		response.RespondError(c, http.StatusNotFound, "job_not_found", fmt.Errorf("job %s not found", jobID))
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

// POST /api/jobs/:id/cancel
func (h *JobHandler) CancelJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	job, err := h.jobs.Cancel(dbctx.Context{Ctx: c.Request.Context()}, jobID)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			response.RespondError(c, http.StatusNotFound, "job_not_found", err)
			return
		}
		response.RespondError(c, http.StatusBadRequest, "cancel_job_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}
