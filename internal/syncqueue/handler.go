package syncqueue

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joshu-sajeev/syncqueue/common"
	"github.com/joshu-sajeev/syncqueue/internal/dto"
	"github.com/joshu-sajeev/syncqueue/middleware"
)

type SyncJobHandler struct {
	service SyncJobServiceInterface
}

func NewSyncJobHandler(s SyncJobServiceInterface) *SyncJobHandler {
	return &SyncJobHandler{service: s}
}

var _ SyncJobHandlerInterface = (*SyncJobHandler)(nil)

// Enqueue handles trigger requests. It answers 201 with the new job id, or
// 200 with queued=false when the slot already has an active job.
func (h *SyncJobHandler) Enqueue(c *gin.Context) {
	var req dto.EnqueueSyncJobDTO
	if !middleware.Bind(c, &req) {
		c.Abort()
		return
	}

	id, err := h.service.EnqueueSyncJob(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	if id == nil {
		c.JSON(http.StatusOK, dto.EnqueueSyncJobResponseDTO{Queued: false})
		return
	}

	c.JSON(http.StatusCreated, dto.EnqueueSyncJobResponseDTO{ID: id, Queued: true})
}

// Claim hands the next job of a slot to the calling worker, or answers 204
// when there is nothing to run.
func (h *SyncJobHandler) Claim(c *gin.Context) {
	var req dto.ClaimSyncJobDTO
	if !middleware.Bind(c, &req) {
		c.Abort()
		return
	}

	job, err := h.service.ClaimSyncJob(c.Request.Context(), req.TenantID, req.ConnectorID)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	if job == nil {
		c.Status(http.StatusNoContent)
		return
	}

	c.JSON(http.StatusOK, job)
}

// Complete records a successful sync for the job in the path.
func (h *SyncJobHandler) Complete(c *gin.Context) {
	id := c.Param("id")

	var req dto.CompleteSyncJobDTO
	if !middleware.Bind(c, &req) {
		c.Abort()
		return
	}

	if err := h.service.CompleteSyncJob(c.Request.Context(), id, req.Stats()); err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	c.Status(http.StatusNoContent)
}

// Fail records a failed sync attempt for the job in the path.
func (h *SyncJobHandler) Fail(c *gin.Context) {
	id := c.Param("id")

	var req dto.FailSyncJobDTO
	if !middleware.Bind(c, &req) {
		c.Abort()
		return
	}

	if err := h.service.FailSyncJob(c.Request.Context(), id, req.Error); err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *SyncJobHandler) Get(c *gin.Context) {
	job, err := h.service.GetSyncJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, job)
}

// Status lists a tenant's jobs. tenant_id is required, connector_id optional.
func (h *SyncJobHandler) Status(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	if strings.TrimSpace(tenantID) == "" {
		c.Error(common.Errf(http.StatusBadRequest, "tenant_id parameter is required"))
		c.Abort()
		return
	}

	var connectorID *string
	if v, ok := c.GetQuery("connector_id"); ok && v != "" {
		connectorID = &v
	}

	jobs, err := h.service.GetSyncQueueStatus(c.Request.Context(), tenantID, connectorID)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, jobs)
}

func (h *SyncJobHandler) ReadyForRetry(c *gin.Context) {
	jobs, err := h.service.GetJobsReadyForRetry(c.Request.Context())
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, jobs)
}

// Reap fails stuck running jobs. An optional timeout query parameter
// (Go duration, e.g. "45m") overrides the configured timeout.
func (h *SyncJobHandler) Reap(c *gin.Context) {
	var timeout time.Duration
	if v := c.Query("timeout"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			c.Error(common.Errf(http.StatusBadRequest, "timeout must be a positive duration"))
			c.Abort()
			return
		}
		timeout = d
	}

	n, err := h.service.FailStuckJobs(c.Request.Context(), timeout)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, dto.CountResponseDTO{Count: int64(n)})
}

// Cleanup deletes terminal jobs older than the older_than_days query parameter.
func (h *SyncJobHandler) Cleanup(c *gin.Context) {
	days, err := strconv.Atoi(c.Query("older_than_days"))
	if err != nil {
		c.Error(common.Errf(http.StatusBadRequest, "older_than_days must be an integer"))
		c.Abort()
		return
	}

	n, err := h.service.CleanupOldSyncJobs(c.Request.Context(), days)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, dto.CountResponseDTO{Count: n})
}
