package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/enrichment/internal/domain"
	"github.com/jonesrussell/north-cloud/enrichment/internal/logger"
	"github.com/jonesrussell/north-cloud/enrichment/internal/service"
)

const userIDHeader = "X-User-ID"

// createJobRequest is the POST /api/v1/jobs body.
type createJobRequest struct {
	ProviderID    string          `json:"provider_id" binding:"required"`
	Operation     string          `json:"operation"   binding:"required"`
	Records       []domain.Record `json:"records"     binding:"required"`
	Configuration map[string]any  `json:"configuration"`
	Priority      string          `json:"priority"`
}

// enrichRequest is the POST /api/v1/enrich body.
type enrichRequest struct {
	ProviderID string        `json:"provider_id"`
	Operation  string        `json:"operation" binding:"required"`
	Params     domain.Record `json:"params"    binding:"required"`
}

func (r *Router) createJob(c *gin.Context) {
	userID := c.GetHeader(userIDHeader)
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing " + userIDHeader + " header"})
		return
	}

	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := r.svc.EnqueueJob(c.Request.Context(), service.EnqueueRequest{
		UserID:        userID,
		ProviderID:    req.ProviderID,
		Operation:     domain.Operation(req.Operation),
		Records:       req.Records,
		Configuration: req.Configuration,
		Priority:      req.Priority,
	})
	if err != nil {
		r.respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id":        job.ID,
		"status":        job.Status,
		"total_records": job.TotalRecords,
	})
}

func (r *Router) getJob(c *gin.Context) {
	job, err := r.svc.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		r.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (r *Router) getJobLogs(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil {
		limit = 100
	}

	logs, err := r.svc.GetJobLogs(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		r.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"logs":  logs,
		"count": len(logs),
	})
}

// enrich runs one record against one provider synchronously.
func (r *Router) enrich(c *gin.Context) {
	userID := c.GetHeader(userIDHeader)
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing " + userIDHeader + " header"})
		return
	}

	var req enrichRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ProviderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "provider_id is required"})
		return
	}

	resp, err := r.svc.ExecuteSingle(c.Request.Context(), userID, req.ProviderID,
		domain.Operation(req.Operation), req.Params)
	if err != nil {
		r.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// enrichWaterfall runs one record through the operation's fallback chain.
func (r *Router) enrichWaterfall(c *gin.Context) {
	userID := c.GetHeader(userIDHeader)
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing " + userIDHeader + " header"})
		return
	}

	var req enrichRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := r.svc.RunWaterfall(c.Request.Context(), userID,
		domain.Operation(req.Operation), req.Params)
	if err != nil {
		r.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (r *Router) listProviders(c *gin.Context) {
	ids := r.catalog.IDs()
	providers := make([]gin.H, 0, len(ids))
	for _, id := range ids {
		cfg, err := r.catalog.Get(id)
		if err != nil {
			continue
		}
		providers = append(providers, gin.H{
			"id":           cfg.ID,
			"display_name": cfg.DisplayName,
			"category":     cfg.Category,
			"operations":   cfg.Operations,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"providers": providers,
		"count":     len(providers),
	})
}

// respondError maps domain error codes onto HTTP statuses.
func (r *Router) respondError(c *gin.Context, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	domErr := domain.AsError(err)
	status := http.StatusInternalServerError
	switch domErr.Code {
	case domain.CodeValidation:
		status = http.StatusBadRequest
	case domain.CodeAuthentication:
		status = http.StatusUnauthorized
	case domain.CodeAuthorization:
		status = http.StatusForbidden
	case domain.CodeNotFound:
		status = http.StatusNotFound
	case domain.CodeRateLimited, domain.CodeProviderRateLimit:
		status = http.StatusTooManyRequests
	case domain.CodeProviderQuota:
		status = http.StatusPaymentRequired
	case domain.CodeTimeout:
		status = http.StatusGatewayTimeout
	case domain.CodeProvider:
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		r.logger.Error("request failed",
			logger.String("path", c.Request.URL.Path),
			logger.Error(err))
	}
	c.JSON(status, gin.H{
		"error": domErr.Message,
		"code":  domErr.Code,
	})
}
