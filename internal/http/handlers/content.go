package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/classforge/classforge-backend/internal/data/repos"
	"github.com/classforge/classforge-backend/internal/http/response"
	"github.com/classforge/classforge-backend/internal/platform/dbctx"
)

// ContentHandler serves the generated documents: session content buckets and
// per-student remediation reports.
type ContentHandler struct {
	sessions  repos.SessionDocRepo
	reports   repos.RemedyReportRepo
	artifacts repos.ArtifactRepo
}

func NewContentHandler(sessions repos.SessionDocRepo, reports repos.RemedyReportRepo, artifacts repos.ArtifactRepo) *ContentHandler {
	return &ContentHandler{sessions: sessions, reports: reports, artifacts: artifacts}
}

// GET /api/sessions/:id/content
func (h *ContentHandler) GetSessionContent(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}
	doc, err := h.sessions.GetBySessionID(dbctx.Context{Ctx: c.Request.Context()}, sessionID)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "get_session_content_failed", err)
		return
	}
	if doc == nil {
		response.RespondError(c, http.StatusNotFound, "session_content_not_found", fmt.Errorf("no content for session %s", sessionID))
		return
	}
	response.RespondOK(c, gin.H{"session": doc})
}

// GET /api/students/:id/report
func (h *ContentHandler) GetStudentReport(c *gin.Context) {
	studentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_student_id", err)
		return
	}
	report, err := h.reports.GetByStudentID(dbctx.Context{Ctx: c.Request.Context()}, studentID)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "get_report_failed", err)
		return
	}
	if report == nil {
		response.RespondError(c, http.StatusNotFound, "report_not_found", fmt.Errorf("no report for student %s", studentID))
		return
	}
	response.RespondOK(c, gin.H{"report": report})
}

// GET /api/jobs/:id/artifacts
func (h *ContentHandler) ListJobArtifacts(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	rows, err := h.artifacts.ListByJob(dbctx.Context{Ctx: c.Request.Context()}, jobID)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "list_artifacts_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"artifacts": rows})
}
