package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jonesrussell/north-cloud/enrichment/internal/domain"
)

// upsertCredentialRequest is the PUT /api/v1/credentials body.
type upsertCredentialRequest struct {
	ProviderID string `json:"provider_id" binding:"required"`
	Secret     string `json:"secret"      binding:"required"`
}

func (r *Router) upsertCredential(c *gin.Context) {
	userID := c.GetHeader(userIDHeader)
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing " + userIDHeader + " header"})
		return
	}

	var req upsertCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := r.catalog.Get(req.ProviderID); err != nil {
		r.respondError(c, err)
		return
	}

	cred := &domain.Credential{
		ID:         uuid.NewString(),
		ProviderID: req.ProviderID,
		UserID:     userID,
		Secret:     req.Secret,
		Active:     true,
	}
	if err := r.credentials.Upsert(c.Request.Context(), cred); err != nil {
		r.respondError(c, err)
		return
	}

	// Secret never echoed back.
	c.JSON(http.StatusOK, gin.H{
		"provider_id": cred.ProviderID,
		"active":      true,
	})
}

func (r *Router) deleteCredential(c *gin.Context) {
	userID := c.GetHeader(userIDHeader)
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing " + userIDHeader + " header"})
		return
	}

	err := r.credentials.Delete(c.Request.Context(), c.Param("provider"), userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "credential not found"})
			return
		}
		r.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
