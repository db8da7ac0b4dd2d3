package handler

import (
	"context"
	"net/http"
	"time"

	"nimbus-portal/internal/repository"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const healthPingTimeout = 2 * time.Second

type HealthHandler interface {
	Health(c *gin.Context)
}

type healthHandler struct {
	db      repository.DBTX
	repo    repository.UserRepository
	project string
	log     *zap.Logger
}

func NewHealthHandler(db repository.DBTX, repo repository.UserRepository, project string, log *zap.Logger) HealthHandler {
	return &healthHandler{db: db, repo: repo, project: project, log: log}
}

// Health always answers 200; a failed store ping degrades the summary.
func (h *healthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthPingTimeout)
	defer cancel()

	status, database := "ok", "ok"
	if err := h.repo.Ping(ctx, h.db); err != nil {
		h.log.Warn("Health check: store ping failed", zap.Error(err))
		status, database = "degraded", "error"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   status,
		"database": database,
		"project":  h.project,
	})
}
