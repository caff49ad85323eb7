// Package analytics emits funnel events to an injected sink. Consent decides
// at wiring time whether events leave the process: a declined consent flag
// gets the no-op sink, never a conditional inside business logic.
package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/mssola/useragent"
)

// Event is one funnel occurrence. Keep it transport-agnostic so sinks can
// fan out.
type Event struct {
	Timestamp time.Time  `json:"timestamp"`
	SessionID string     `json:"session_id"`
	Step      string     `json:"step"`
	Outcome   string     `json:"outcome"`
	Reason    string     `json:"reason,omitempty"`
	Client    ClientInfo `json:"client"`
}

// Event outcomes.
const (
	OutcomeSucceeded   = "succeeded"
	OutcomeFailed      = "failed"
	OutcomeRejected    = "rejected"
	OutcomeRateLimited = "rate_limited"
	OutcomeSoftFailed  = "soft_failed"
)

// ClientInfo is coarse client context derived from the User-Agent header.
type ClientInfo struct {
	Browser        string `json:"browser,omitempty"`
	BrowserVersion string `json:"browser_version,omitempty"`
	OS             string `json:"os,omitempty"`
	Mobile         bool   `json:"mobile,omitempty"`
}

// ParseClientInfo extracts browser, version and OS from a User-Agent string.
func ParseClientInfo(userAgent string) ClientInfo {
	if userAgent == "" {
		return ClientInfo{}
	}
	ua := useragent.New(userAgent)
	browser, version := ua.Browser()
	return ClientInfo{
		Browser:        browser,
		BrowserVersion: version,
		OS:             ua.OS(),
		Mobile:         ua.Mobile(),
	}
}

// Sink receives funnel events. Emit must not block the funnel: sinks queue
// or drop rather than stall a user-facing request.
type Sink interface {
	Emit(ctx context.Context, event Event) error
	Close() error
}

// NoopSink discards all events. Wired when analytics consent is declined.
type NoopSink struct{}

func (NoopSink) Emit(ctx context.Context, event Event) error { return nil }
func (NoopSink) Close() error                                { return nil }

// MemorySink collects events in memory for tests.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Emit(ctx context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *MemorySink) Close() error { return nil }

// Events returns a snapshot of everything emitted so far.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}
