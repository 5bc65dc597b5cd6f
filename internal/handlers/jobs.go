package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/muandane/special-stack/jobcache/internal/jobs"
)

// JobsHandler serves listings, applications and profiles.
type JobsHandler struct {
	svc    *jobs.Service
	logger *slog.Logger
}

func NewJobsHandler(svc *jobs.Service, logger *slog.Logger) (*JobsHandler, error) {
	if svc == nil {
		return nil, fmt.Errorf("jobs service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &JobsHandler{svc: svc, logger: logger}, nil
}

func refresh(c *gin.Context) bool {
	v, _ := strconv.ParseBool(c.Query("refresh"))
	return v
}

// SearchJobs handles GET /jobs
func (h *JobsHandler) SearchJobs(c *gin.Context) {
	q, err := parseSearchQuery(c)
	if err != nil {
		sendError(c, h.logger, http.StatusBadRequest, "invalid query", err)
		return
	}

	res, err := h.svc.SearchJobs(c.Request.Context(), q, refresh(c))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

// GetJob handles GET /jobs/:id
func (h *JobsHandler) GetJob(c *gin.Context) {
	job, err := h.svc.GetJob(c.Request.Context(), c.Param("id"), refresh(c))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	writeJSON(c, http.StatusOK, job)
}

// CreateJob handles POST /jobs
func (h *JobsHandler) CreateJob(c *gin.Context) {
	var job jobs.Job
	if err := bindJSON(c, &job); err != nil {
		sendError(c, h.logger, http.StatusBadRequest, "failed to decode request body", err)
		return
	}
	job.ID = ""

	created, err := h.svc.PostJob(c.Request.Context(), job)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.Header("Location", "/jobs/"+created.ID)
	writeJSON(c, http.StatusCreated, created)
}

// PutJob handles PUT /jobs/:id
func (h *JobsHandler) PutJob(c *gin.Context) {
	var job jobs.Job
	if err := bindJSON(c, &job); err != nil {
		sendError(c, h.logger, http.StatusBadRequest, "failed to decode request body", err)
		return
	}
	job.ID = c.Param("id")

	saved, err := h.svc.PostJob(c.Request.Context(), job)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	writeJSON(c, http.StatusOK, saved)
}

// DeleteJob handles DELETE /jobs/:id
func (h *JobsHandler) DeleteJob(c *gin.Context) {
	if err := h.svc.DeleteJob(c.Request.Context(), c.Param("id")); err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListApplications handles GET /jobs/:id/applications
func (h *JobsHandler) ListApplications(c *gin.Context) {
	apps, err := h.svc.ListApplications(c.Request.Context(), c.Param("id"), refresh(c))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"applications": apps})
}

// SubmitApplication handles POST /jobs/:id/applications
func (h *JobsHandler) SubmitApplication(c *gin.Context) {
	var app jobs.Application
	if err := bindJSON(c, &app); err != nil {
		sendError(c, h.logger, http.StatusBadRequest, "failed to decode request body", err)
		return
	}
	app.JobID = c.Param("id")

	created, err := h.svc.SubmitApplication(c.Request.Context(), app)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	writeJSON(c, http.StatusCreated, created)
}

// UpdateApplication handles PATCH /jobs/:id/applications/:appID
func (h *JobsHandler) UpdateApplication(c *gin.Context) {
	var req struct {
		Status jobs.ApplicationStatus `json:"status"`
	}
	if err := bindJSON(c, &req); err != nil {
		sendError(c, h.logger, http.StatusBadRequest, "failed to decode request body", err)
		return
	}

	app, err := h.svc.UpdateApplicationStatus(c.Request.Context(), c.Param("id"), c.Param("appID"), req.Status)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	writeJSON(c, http.StatusOK, app)
}

// GetProfile handles GET /profiles/:id
func (h *JobsHandler) GetProfile(c *gin.Context) {
	p, err := h.svc.GetProfile(c.Request.Context(), c.Param("id"), refresh(c))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}

// PutProfile handles PUT /profiles/:id
func (h *JobsHandler) PutProfile(c *gin.Context) {
	var p jobs.Profile
	if err := bindJSON(c, &p); err != nil {
		sendError(c, h.logger, http.StatusBadRequest, "failed to decode request body", err)
		return
	}
	p.UserID = c.Param("id")

	saved, err := h.svc.PutProfile(c.Request.Context(), p)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	writeJSON(c, http.StatusOK, saved)
}

func parseSearchQuery(c *gin.Context) (jobs.SearchQuery, error) {
	q := jobs.SearchQuery{
		Text:           c.Query("q"),
		Location:       c.Query("location"),
		EmploymentType: jobs.EmploymentType(c.Query("type")),
		Skill:          c.Query("skill"),
	}
	if v := c.Query("remote"); v != "" {
		remote, err := strconv.ParseBool(v)
		if err != nil {
			return q, fmt.Errorf("remote: %w", err)
		}
		q.Remote = &remote
	}
	var err error
	if q.Limit, err = intQuery(c, "limit"); err != nil {
		return q, err
	}
	if q.Offset, err = intQuery(c, "offset"); err != nil {
		return q, err
	}
	return q, nil
}

func intQuery(c *gin.Context, name string) (int, error) {
	v := c.Query(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return n, nil
}
