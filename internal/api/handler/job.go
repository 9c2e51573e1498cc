package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/XProfessional1130/Getravio-Image-Processing/internal/api/middleware"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/repository"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/service"
	"github.com/gin-gonic/gin"
)

// maxUploadSize bounds the accepted source image payload.
const maxUploadSize = 20 << 20 // 20 MiB

// JobHandler handles the job submission and query endpoints.
type JobHandler struct {
	jobs *service.JobService
}

// NewJobHandler creates a new job handler.
// Parameters:
//   - jobs: job service instance.
// Returns:
//   - *JobHandler: initialized handler.
func NewJobHandler(jobs *service.JobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// favoriteRequest is the body of PATCH /api/v1/jobs/:id/favorite.
type favoriteRequest struct {
	Favorite bool `json:"favorite"`
}

// Submit handles POST /api/v1/jobs. The request is multipart/form-data with
// an "image" file part plus region, scenario, views and message fields.
func (h *JobHandler) Submit(c *gin.Context) {
	file, header, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "An image file is required"})
		return
	}
	defer file.Close()

	if header.Size > maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Image exceeds the upload size limit"})
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, maxUploadSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read image: " + err.Error()})
		return
	}
	if int64(len(data)) > maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Image exceeds the upload size limit"})
		return
	}

	req := &service.SubmitRequest{
		UserID:      middleware.UserID(c),
		Region:      c.PostForm("region"),
		Scenario:    c.PostForm("scenario"),
		Views:       viewsField(c),
		Message:     c.PostForm("message"),
		SourceImage: data,
		Filename:    header.Filename,
	}

	job, err := h.jobs.Submit(c.Request.Context(), req)
	if err != nil {
		if isValidationError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit job"})
		return
	}

	c.JSON(http.StatusCreated, h.jobs.Snapshot(c.Request.Context(), job))
}

// List handles GET /api/v1/jobs.
func (h *JobHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	jobs, err := h.jobs.List(c.Request.Context(), middleware.UserID(c), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list jobs"})
		return
	}

	snapshots := make([]interface{}, 0, len(jobs))
	for i := range jobs {
		snapshots = append(snapshots, h.jobs.Snapshot(c.Request.Context(), &jobs[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"results": snapshots,
		"count":   len(snapshots),
	})
}

// Get handles GET /api/v1/jobs/:id.
func (h *JobHandler) Get(c *gin.Context) {
	job, err := h.jobs.Get(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		writeJobError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.jobs.Snapshot(c.Request.Context(), job))
}

// Delete handles DELETE /api/v1/jobs/:id.
func (h *JobHandler) Delete(c *gin.Context) {
	if err := h.jobs.Delete(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		writeJobError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SetFavorite handles PATCH /api/v1/jobs/:id/favorite.
func (h *JobHandler) SetFavorite(c *gin.Context) {
	var req favoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	job, err := h.jobs.SetFavorite(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.Favorite)
	if err != nil {
		writeJobError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.jobs.Snapshot(c.Request.Context(), job))
}

// writeJobError maps service errors onto HTTP statuses. Jobs owned by other
// users read as missing.
func writeJobError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, service.ErrNotOwner):
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}

// viewsField accepts both repeated "views" form values and a single
// comma-separated value.
func viewsField(c *gin.Context) []string {
	raw := c.PostFormArray("views")
	if len(raw) == 1 && strings.Contains(raw[0], ",") {
		raw = strings.Split(raw[0], ",")
	}
	views := make([]string, 0, len(raw))
	for _, v := range raw {
		v = strings.TrimSpace(v)
		if v != "" {
			views = append(views, v)
		}
	}
	return views
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, service.ErrInvalidRegion),
		errors.Is(err, service.ErrInvalidScenario),
		errors.Is(err, service.ErrInvalidView),
		errors.Is(err, service.ErrNoViews),
		errors.Is(err, service.ErrInvalidImage):
		return true
	}
	return false
}
