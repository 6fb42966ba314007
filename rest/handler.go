// Package rest exposes the job-enqueue endpoints and the live-notification
// websocket.
package rest

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"feed-hub/auth"
	"feed-hub/broadcaster"
	"feed-hub/domain"
	"feed-hub/service"
)

// Handler contains all HTTP handlers for feed-hub.
type Handler struct {
	queue    service.Enqueuer
	hub      *broadcaster.Hub
	verifier *auth.Verifier
	logger   *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(queue service.Enqueuer, hub *broadcaster.Hub, verifier *auth.Verifier, logger *slog.Logger) *Handler {
	return &Handler{queue: queue, hub: hub, verifier: verifier, logger: logger}
}

// RegisterRoutes mounts all routes on the echo instance.
func RegisterRoutes(e *echo.Echo, h *Handler) {
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	v1 := e.Group("/v1")
	v1.GET("/health", h.Health)

	jobs := v1.Group("/jobs")
	jobs.POST("/ingest", h.EnqueueIngest)
	jobs.POST("/refresh-feed", h.EnqueueRefreshFeed)
	jobs.POST("/refresh-all", h.EnqueueRefreshAll)
	jobs.POST("/import", h.EnqueueImport)

	v1.GET("/ws", h.Notifications)
}

// Health reports process liveness.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

type ingestRequest struct {
	FeedID int64 `json:"feed_id"`
	UserID int64 `json:"user_id"`
}

type refreshFeedRequest struct {
	FeedID int64 `json:"feed_id"`
}

type refreshAllRequest struct {
	UserID int64 `json:"user_id"`
}

type importRequest struct {
	UserID        int64                `json:"user_id"`
	Subscriptions []domain.ImportEntry `json:"subscriptions"`
}

type enqueueResponse struct {
	JobID string `json:"job_id"`
}

// EnqueueIngest queues the initial ingestion run of a fresh subscription.
func (h *Handler) EnqueueIngest(c echo.Context) error {
	var req ingestRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return h.enqueue(c, domain.NewIngestNewFeedJob(req.FeedID, req.UserID))
}

// EnqueueRefreshFeed queues a manual refresh of one feed.
func (h *Handler) EnqueueRefreshFeed(c echo.Context) error {
	var req refreshFeedRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return h.enqueue(c, domain.NewRefreshFeedJob(req.FeedID))
}

// EnqueueRefreshAll queues a refresh of every feed a user subscribes to.
func (h *Handler) EnqueueRefreshAll(c echo.Context) error {
	var req refreshAllRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return h.enqueue(c, domain.NewRefreshAllForUserJob(req.UserID))
}

// EnqueueImport queues a bulk subscription import.
func (h *Handler) EnqueueImport(c echo.Context) error {
	var req importRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return h.enqueue(c, domain.NewImportFeedsJob(req.UserID, req.Subscriptions))
}

func (h *Handler) enqueue(c echo.Context, job domain.Job) error {
	if err := job.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	if _, err := h.queue.Enqueue(ctx, job); err != nil {
		h.logger.ErrorContext(ctx, "enqueue failed",
			"job_kind", job.Kind, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to enqueue job")
	}

	return c.JSON(http.StatusAccepted, enqueueResponse{JobID: job.ID})
}
