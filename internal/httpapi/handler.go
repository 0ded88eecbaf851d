package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/veridocs/trainforge/internal/logger"
	"github.com/veridocs/trainforge/internal/queue"
	"github.com/veridocs/trainforge/internal/store/blobstore"
	"github.com/veridocs/trainforge/internal/store/jobstore"
	"github.com/veridocs/trainforge/internal/types"
)

// JobHandler serves the upload/status/download surface around the pipeline:
// submit a transcript, poll its status, download the result or the rendered
// document once the worker has finished.
type JobHandler struct {
	jobs  *jobstore.Store
	blobs *blobstore.Store
	tasks *asynq.Client
}

// NewJobHandler builds a JobHandler.
func NewJobHandler(jobs *jobstore.Store, blobs *blobstore.Store, tasks *asynq.Client) *JobHandler {
	return &JobHandler{jobs: jobs, blobs: blobs, tasks: tasks}
}

type createJobResponse struct {
	ID     string          `json:"id"`
	Status types.JobStatus `json:"status"`
}

type jobStatusResponse struct {
	ID          string          `json:"id"`
	Status      types.JobStatus `json:"status"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   string          `json:"created_at"`
	CompletedAt string          `json:"completed_at,omitempty"`
}

// Create accepts a job request, persists it, and enqueues a pipeline run.
func (h *JobHandler) Create(c *gin.Context) {
	var req types.JobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.Transcript) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "transcript is required"})
		return
	}

	id := uuid.New().String()
	ctx := logger.WithJobID(c.Request.Context(), id)

	rec, err := h.jobs.Create(ctx, id, req)
	if err != nil {
		logger.GetLogger(ctx).Errorf("create job record: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create job"})
		return
	}

	task, err := queue.NewRunTask(id, "default")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build task"})
		return
	}
	if _, err := h.tasks.EnqueueContext(ctx, task); err != nil {
		logger.GetLogger(ctx).Errorf("enqueue job: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue job"})
		return
	}

	c.JSON(http.StatusAccepted, createJobResponse{ID: rec.ID, Status: rec.Status})
}

// Status reports a job's current state.
func (h *JobHandler) Status(c *gin.Context) {
	rec, ok := h.loadJob(c)
	if !ok {
		return
	}
	resp := jobStatusResponse{
		ID:        rec.ID,
		Status:    rec.Status,
		Error:     rec.Error,
		CreatedAt: rec.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if rec.CompletedAt != nil {
		resp.CompletedAt = rec.CompletedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	c.JSON(http.StatusOK, resp)
}

// Result streams the serialized pipeline result for a completed job.
func (h *JobHandler) Result(c *gin.Context) {
	rec, ok := h.loadJob(c)
	if !ok {
		return
	}
	if rec.Status != types.JobStatusCompleted {
		c.JSON(http.StatusConflict, gin.H{"error": "job is not completed", "status": rec.Status})
		return
	}
	data, err := h.blobs.GetResult(c.Request.Context(), rec.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load result"})
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}

// Artifact streams the rendered document for a completed job.
func (h *JobHandler) Artifact(c *gin.Context) {
	rec, ok := h.loadJob(c)
	if !ok {
		return
	}
	if rec.Status != types.JobStatusCompleted {
		c.JSON(http.StatusConflict, gin.H{"error": "job is not completed", "status": rec.Status})
		return
	}
	data, err := h.blobs.GetArtifact(c.Request.Context(), rec.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load artifact"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="training-document.docx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", data)
}

func (h *JobHandler) loadJob(c *gin.Context) (*types.JobRecord, bool) {
	id := c.Param("id")
	rec, err := h.jobs.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, jobstore.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load job"})
		}
		return nil, false
	}
	return rec, true
}
