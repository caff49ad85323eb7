// Package admin exposes support endpoints for inspecting and resetting a
// client's rate-limit window. Mounted behind JWT auth; never reachable from
// the anonymous funnel surface.
package admin

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"careergate/internal/platform/middleware"
	"careergate/internal/ratelimit/models"
	dErrors "careergate/pkg/domain-errors"
	"careergate/pkg/platform/httputil"
)

// Limiter is the subset of the rate limiter the admin surface needs.
type Limiter interface {
	Limit() int
	Window(ctx context.Context, clientID string) (*models.Window, error)
	Reset(ctx context.Context, clientID string) error
}

type Handler struct {
	limiter Limiter
	window  time.Duration
	logger  *slog.Logger
}

func New(limiter Limiter, window time.Duration, logger *slog.Logger) *Handler {
	return &Handler{
		limiter: limiter,
		window:  window,
		logger:  logger,
	}
}

// Register mounts the admin routes on r. Callers wrap r with RequireAuth.
func (h *Handler) Register(r chi.Router) {
	r.Get("/ratelimit/{clientID}", h.handleInspect)
	r.Delete("/ratelimit/{clientID}", h.handleReset)
}

// WindowResponse describes one client's current window for support tooling.
type WindowResponse struct {
	ClientID    string     `json:"client_id"`
	Limit       int        `json:"limit"`
	Used        int        `json:"used"`
	Remaining   int        `json:"remaining"`
	WindowStart *time.Time `json:"window_start,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

func (h *Handler) handleInspect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clientID := chi.URLParam(r, "clientID")
	if clientID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "client id is required"))
		return
	}

	window, err := h.limiter.Window(ctx, clientID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load rate-limit window",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	resp := WindowResponse{
		ClientID:  clientID,
		Limit:     h.limiter.Limit(),
		Remaining: h.limiter.Limit(),
	}
	if window != nil {
		used := window.Count()
		remaining := h.limiter.Limit() - used
		if remaining < 0 {
			remaining = 0
		}
		start := window.WindowStart
		expires := window.ExpiresAt(h.window)
		resp.Used = used
		resp.Remaining = remaining
		resp.WindowStart = &start
		resp.ExpiresAt = &expires
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clientID := chi.URLParam(r, "clientID")
	if clientID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "client id is required"))
		return
	}

	if err := h.limiter.Reset(ctx, clientID); err != nil {
		h.logger.ErrorContext(ctx, "failed to reset rate-limit window",
			"request_id", middleware.GetRequestID(ctx),
			"client_id", clientID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "rate-limit window reset",
		"request_id", middleware.GetRequestID(ctx),
		"client_id", clientID,
		"admin", middleware.GetAdminSubject(ctx),
	)
	w.WriteHeader(http.StatusNoContent)
}
