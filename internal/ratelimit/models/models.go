package models

import "time"

// Window is the persisted rolling-window record for one client. All
// timestamps satisfy windowStart <= t < windowStart + window duration; the
// limiter clears the record once the duration has fully elapsed.
type Window struct {
	WindowStart       time.Time   `json:"window_start"`
	RequestTimestamps []time.Time `json:"request_timestamps"`
}

// Count returns the number of recorded requests in the window.
func (w *Window) Count() int {
	return len(w.RequestTimestamps)
}

// ExpiresAt returns the instant the window stops applying.
func (w *Window) ExpiresAt(duration time.Duration) time.Time {
	return w.WindowStart.Add(duration)
}

// Expired reports whether the window has fully elapsed at now.
func (w *Window) Expired(duration time.Duration, now time.Time) bool {
	return !now.Before(w.ExpiresAt(duration))
}

// Result is the outcome of a limit check.
type Result struct {
	Allowed   bool `json:"allowed"`
	Limit     int  `json:"limit"`
	Remaining int  `json:"remaining"`

	// TimeLeftSeconds is the wait until the window expires, rounded up.
	// Only set when the request is not allowed.
	TimeLeftSeconds int `json:"time_left_seconds,omitempty"`
}
