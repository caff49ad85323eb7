// Package ports defines the funnel service's outbound dependencies.
package ports

import (
	"context"

	"careergate/internal/analytics"
	rlmodels "careergate/internal/ratelimit/models"
	"careergate/internal/upstream"
)

// Backend is the opaque career-accelerator backend the funnel drives.
type Backend interface {
	AnalyzeResume(ctx context.Context, sessionID string, file upstream.File) (*upstream.AnalyzeResponse, error)
	CreatePersonalization(ctx context.Context, req upstream.PersonalizationRequest) (string, error)
	GenerateTicket(ctx context.Context, req upstream.TicketRequest) (*upstream.Ticket, error)
	CreateOrder(ctx context.Context, req upstream.OrderRequest) (*upstream.OrderResponse, error)
	SubmitLead(ctx context.Context, req upstream.LeadRequest) error
}

// RateLimiter gates the expensive analyze step per client.
type RateLimiter interface {
	CheckLimit(ctx context.Context, clientID string) (*rlmodels.Result, error)
	RecordRequest(ctx context.Context, clientID string) error
}

// AnalyticsSink receives funnel step events.
type AnalyticsSink interface {
	Emit(ctx context.Context, event analytics.Event) error
}
