// Package service coordinates the multi-step career-accelerator funnel:
// resume analysis, personalized demo, ticket generation, goal refinement and
// checkout. Each step guards against duplicate in-flight invocations and the
// analyze step is gated by the advisory rate limiter before any network call.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"careergate/internal/analytics"
	"careergate/internal/funnel/models"
	"careergate/internal/funnel/ports"
	"careergate/internal/platform/metrics"
	rlmodels "careergate/internal/ratelimit/models"
	"careergate/internal/upstream"
	dErrors "careergate/pkg/domain-errors"
	"careergate/pkg/kvstore"
	"careergate/pkg/requestcontext"
)

// orderSnapshotTTL bounds how long a completed order stays recoverable.
const orderSnapshotTTL = 30 * 24 * time.Hour

// Coordinator drives the funnel for all sessions. Sessions live in process;
// the kv store only holds rate-limit windows and order snapshots.
type Coordinator struct {
	backend        ports.Backend
	limiter        ports.RateLimiter
	sink           ports.AnalyticsSink
	store          kvstore.Store
	paymentPageURL string
	logger         *slog.Logger
	metrics        *metrics.Metrics
	now            func() time.Time

	mu       sync.Mutex
	sessions map[string]*models.Session
}

// Option configures the Coordinator.
type Option func(*Coordinator)

// WithAnalytics sets the sink funnel events are emitted to.
func WithAnalytics(sink ports.AnalyticsSink) Option {
	return func(c *Coordinator) { c.sink = sink }
}

// WithOrderStore enables order snapshot caching in the given store.
func WithOrderStore(store kvstore.Store) Option {
	return func(c *Coordinator) { c.store = store }
}

// WithPaymentPageURL sets the hosted payment page checkout redirects to.
func WithPaymentPageURL(pageURL string) Option {
	return func(c *Coordinator) { c.paymentPageURL = pageURL }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// New creates a Coordinator. backend and limiter are required.
func New(backend ports.Backend, limiter ports.RateLimiter, opts ...Option) (*Coordinator, error) {
	if backend == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "backend is required")
	}
	if limiter == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "rate limiter is required")
	}

	c := &Coordinator{
		backend:  backend,
		limiter:  limiter,
		sink:     analytics.NoopSink{},
		logger:   slog.Default(),
		now:      time.Now,
		sessions: make(map[string]*models.Session),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Analyze validates the uploaded resume, checks the rate limit, and only
// then sends the file to the backend. A rejected upload or an exhausted
// quota never consumes a network call.
func (c *Coordinator) Analyze(ctx context.Context, sessionID string, file upstream.File) (*upstream.AnalyzeResponse, error) {
	sess := c.session(sessionID)
	if !sess.Begin(models.StepAnalyze) {
		return nil, dErrors.New(dErrors.CodeConflict, "an analysis is already in progress for this session")
	}

	if err := validateResume(file); err != nil {
		c.finishStep(ctx, sess, models.StepAnalyze, analytics.OutcomeRejected, "invalid_resume")
		return nil, err
	}

	check, err := c.limiter.CheckLimit(ctx, sessionID)
	if err != nil {
		c.finishStep(ctx, sess, models.StepAnalyze, analytics.OutcomeFailed, "limit_check_failed")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check the analysis limit")
	}
	if !check.Allowed {
		c.finishStep(ctx, sess, models.StepAnalyze, analytics.OutcomeRateLimited, "quota_exhausted")
		return nil, dErrors.New(dErrors.CodeRateLimited, "analysis limit reached, try again later").
			WithTimeLeft(check.TimeLeftSeconds)
	}

	resp, err := c.backend.AnalyzeResume(ctx, sessionID, file)
	if err != nil {
		c.finishStep(ctx, sess, models.StepAnalyze, analytics.OutcomeFailed, "backend_error")
		return nil, err
	}

	if err := c.limiter.RecordRequest(ctx, sessionID); err != nil {
		// The limiter is advisory; a failed record must not undo a
		// delivered analysis.
		c.logger.WarnContext(ctx, "failed to record analysis against the limit",
			"session_id", sessionID,
			"error", err,
		)
	}

	sess.SetAnalysis(resp.AnalysisID, &resp.Results)
	c.finishStep(ctx, sess, models.StepAnalyze, analytics.OutcomeSucceeded, "")
	return resp, nil
}

// Personalize creates the personalized demo record. Without a prior
// analysis it falls back to the bundled sample profile, so the step works
// for clients who skipped the upload.
func (c *Coordinator) Personalize(ctx context.Context, sessionID string) (string, error) {
	sess := c.session(sessionID)
	if !sess.Begin(models.StepPersonalize) {
		return "", dErrors.New(dErrors.CodeConflict, "a personalization is already in progress for this session")
	}

	analysisID, analysis := sess.Analysis()
	id, err := c.backend.CreatePersonalization(ctx, upstream.PersonalizationRequest{
		Columns:          personalizationColumns,
		Data:             personalizationData(analysis),
		ResumeAnalysisID: analysisID,
	})
	if err != nil {
		c.finishStep(ctx, sess, models.StepPersonalize, analytics.OutcomeFailed, "backend_error")
		return "", err
	}

	sess.SetPersonalizationID(id)
	c.finishStep(ctx, sess, models.StepPersonalize, analytics.OutcomeSucceeded, "")
	return id, nil
}

// GenerateTicket builds the career strategy ticket from whatever earlier
// steps produced. With neither an analysis nor a personalization on record
// it fails fast, before any network call. A regenerated ticket overwrites
// the previous one and re-seeds goal fields the user has not edited.
func (c *Coordinator) GenerateTicket(ctx context.Context, sessionID string) (*upstream.Ticket, error) {
	sess := c.session(sessionID)
	if !sess.Begin(models.StepTicket) {
		return nil, dErrors.New(dErrors.CodeConflict, "a ticket generation is already in progress for this session")
	}

	analysisID, personalizationID := sess.StepIDs()
	if analysisID == "" && personalizationID == "" {
		c.finishStep(ctx, sess, models.StepTicket, analytics.OutcomeRejected, "missing_prerequisite")
		return nil, dErrors.New(dErrors.CodeMissingPrerequisite,
			"run a resume analysis or personalization before requesting a ticket")
	}

	ticket, err := c.backend.GenerateTicket(ctx, upstream.TicketRequest{
		FinalizedGoals:    sess.GoalsPayload(),
		ResumeAnalysisID:  analysisID,
		PersonalizationID: personalizationID,
	})
	if err != nil {
		c.finishStep(ctx, sess, models.StepTicket, analytics.OutcomeFailed, "backend_error")
		return nil, err
	}

	sess.ApplyTicket(ticket)
	c.finishStep(ctx, sess, models.StepTicket, analytics.OutcomeSucceeded, "")
	return ticket, nil
}

// GoalsPatch is a partial update of the goal sheet; nil fields are left
// untouched.
type GoalsPatch struct {
	Email       *string `json:"email"`
	LinkedinURL *string `json:"linkedin_url"`
	SalaryGoal  *string `json:"salary_goal"`
	Notes       *string `json:"notes"`
}

// Goals returns the session's current goal sheet.
func (c *Coordinator) Goals(ctx context.Context, sessionID string) upstream.GoalsPayload {
	return c.session(sessionID).GoalsPayload()
}

// UpdateGoals applies a partial edit to the goal sheet. Edits are local;
// nothing is sent to the backend until ticket generation or checkout.
func (c *Coordinator) UpdateGoals(ctx context.Context, sessionID string, patch GoalsPatch) upstream.GoalsPayload {
	sess := c.session(sessionID)
	sess.EditGoals(func(goals *models.FinalizedGoals) {
		if patch.Email != nil {
			goals.SetEmail(*patch.Email)
		}
		if patch.LinkedinURL != nil {
			goals.SetLinkedinURL(*patch.LinkedinURL)
		}
		if patch.SalaryGoal != nil {
			goals.SetSalaryGoal(*patch.SalaryGoal)
		}
		if patch.Notes != nil {
			goals.SetNotes(*patch.Notes)
		}
	})
	return sess.GoalsPayload()
}

// AddTargetRole adds a role to the goal sheet with set semantics.
func (c *Coordinator) AddTargetRole(ctx context.Context, sessionID, role string) upstream.GoalsPayload {
	sess := c.session(sessionID)
	sess.EditGoals(func(goals *models.FinalizedGoals) { goals.AddTargetRole(role) })
	return sess.GoalsPayload()
}

// RemoveTargetRole removes a role from the goal sheet.
func (c *Coordinator) RemoveTargetRole(ctx context.Context, sessionID, role string) upstream.GoalsPayload {
	sess := c.session(sessionID)
	sess.EditGoals(func(goals *models.FinalizedGoals) { goals.RemoveTargetRole(role) })
	return sess.GoalsPayload()
}

// AddTargetLocation adds a location to the goal sheet with set semantics.
func (c *Coordinator) AddTargetLocation(ctx context.Context, sessionID, location string) upstream.GoalsPayload {
	sess := c.session(sessionID)
	sess.EditGoals(func(goals *models.FinalizedGoals) { goals.AddTargetLocation(location) })
	return sess.GoalsPayload()
}

// RemoveTargetLocation removes a location from the goal sheet.
func (c *Coordinator) RemoveTargetLocation(ctx context.Context, sessionID, location string) upstream.GoalsPayload {
	sess := c.session(sessionID)
	sess.EditGoals(func(goals *models.FinalizedGoals) { goals.RemoveTargetLocation(location) })
	return sess.GoalsPayload()
}

// CheckoutResult is the outcome of a successful checkout.
type CheckoutResult struct {
	OrderID           string `json:"order_id"`
	UserID            string `json:"user_id"`
	ClientReferenceID string `json:"client_reference_id"`
	RedirectURL       string `json:"redirect_url"`
}

// OrderSnapshot is the cached record of a completed checkout.
type OrderSnapshot struct {
	OrderID           string    `json:"order_id"`
	UserID            string    `json:"user_id"`
	ClientReferenceID string    `json:"client_reference_id"`
	CreatedAt         time.Time `json:"created_at"`
}

// Checkout validates contact details, creates the order and returns the
// payment page redirect carrying a fresh client reference id.
func (c *Coordinator) Checkout(ctx context.Context, sessionID string) (*CheckoutResult, error) {
	sess := c.session(sessionID)
	if !sess.Begin(models.StepCheckout) {
		return nil, dErrors.New(dErrors.CodeConflict, "a checkout is already in progress for this session")
	}

	goals := sess.GoalsPayload()
	if !validEmail(goals.Email) {
		c.finishStep(ctx, sess, models.StepCheckout, analytics.OutcomeRejected, "invalid_email")
		return nil, dErrors.New(dErrors.CodeValidation, "a valid email is required").WithField("email")
	}
	if goals.LinkedinURL == "" {
		c.finishStep(ctx, sess, models.StepCheckout, analytics.OutcomeRejected, "missing_linkedin_url")
		return nil, dErrors.New(dErrors.CodeValidation, "a LinkedIn profile URL is required").WithField("linkedin_url")
	}

	ref := uuid.NewString()
	order, err := c.backend.CreateOrder(ctx, upstream.OrderRequest{
		Email:             goals.Email,
		LinkedinURL:       goals.LinkedinURL,
		FinalizedGoals:    goals,
		Ticket:            sess.Ticket(),
		ClientReferenceID: ref,
	})
	if err != nil {
		c.finishStep(ctx, sess, models.StepCheckout, analytics.OutcomeFailed, "backend_error")
		return nil, err
	}

	c.cacheOrderSnapshot(ctx, sessionID, OrderSnapshot{
		OrderID:           order.OrderID,
		UserID:            order.UserID,
		ClientReferenceID: ref,
		CreatedAt:         c.now().UTC(),
	})

	sess.MarkCompleted()
	if c.metrics != nil {
		c.metrics.IncrementOrdersCreated()
	}
	c.finishStep(ctx, sess, models.StepCheckout, analytics.OutcomeSucceeded, "")

	return &CheckoutResult{
		OrderID:           order.OrderID,
		UserID:            order.UserID,
		ClientReferenceID: ref,
		RedirectURL:       c.paymentPageURL + "?client_reference_id=" + url.QueryEscape(ref),
	}, nil
}

// LastOrder returns the cached order snapshot for the session, if any.
func (c *Coordinator) LastOrder(ctx context.Context, sessionID string) (*OrderSnapshot, bool, error) {
	if c.store == nil {
		return nil, false, nil
	}
	raw, ok, err := c.store.Get(ctx, orderSnapshotKey(sessionID))
	if err != nil || !ok {
		return nil, false, err
	}

	var snapshot OrderSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to decode order snapshot")
	}
	return &snapshot, true, nil
}

// SubmitLead forwards a contact form submission. Delivery failures are
// swallowed: the caller sees success so an analytics hiccup never turns a
// warm lead away. The failure is logged and emitted as soft_failed.
func (c *Coordinator) SubmitLead(ctx context.Context, sessionID string, lead upstream.LeadRequest) error {
	if !validEmail(lead.Email) {
		return dErrors.New(dErrors.CodeValidation, "a valid email is required").WithField("email")
	}
	if lead.Resume != nil {
		if err := validateResume(*lead.Resume); err != nil {
			return err
		}
	}

	if err := c.backend.SubmitLead(ctx, lead); err != nil {
		c.logger.ErrorContext(ctx, "lead submission failed",
			"session_id", sessionID,
			"error", err,
		)
		c.emit(ctx, sessionID, "lead", analytics.OutcomeSoftFailed, "backend_error")
		return nil
	}

	c.emit(ctx, sessionID, "lead", analytics.OutcomeSucceeded, "")
	return nil
}

// CheckLimit reports the session's current analysis quota without consuming
// any of it.
func (c *Coordinator) CheckLimit(ctx context.Context, sessionID string) (*rlmodels.Result, error) {
	return c.limiter.CheckLimit(ctx, sessionID)
}

func (c *Coordinator) session(id string) *models.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	sess, ok := c.sessions[id]
	if !ok {
		sess = models.NewSession(id)
		c.sessions[id] = sess
	}
	return sess
}

func (c *Coordinator) finishStep(ctx context.Context, sess *models.Session, step models.Step, outcome, reason string) {
	sess.Finish(step, outcome == analytics.OutcomeSucceeded)
	if c.metrics != nil {
		c.metrics.ObserveFunnelStep(string(step), outcome)
	}
	c.emit(ctx, sess.ID(), string(step), outcome, reason)
}

func (c *Coordinator) emit(ctx context.Context, sessionID, step, outcome, reason string) {
	event := analytics.Event{
		Timestamp: c.now().UTC(),
		SessionID: sessionID,
		Step:      step,
		Outcome:   outcome,
		Reason:    reason,
		Client:    analytics.ParseClientInfo(requestcontext.UserAgent(ctx)),
	}
	if err := c.sink.Emit(ctx, event); err != nil {
		c.logger.WarnContext(ctx, "failed to emit analytics event",
			"step", step,
			"error", err,
		)
	}
}

func (c *Coordinator) cacheOrderSnapshot(ctx context.Context, sessionID string, snapshot OrderSnapshot) {
	if c.store == nil {
		return
	}
	raw, err := json.Marshal(snapshot)
	if err == nil {
		err = c.store.Set(ctx, orderSnapshotKey(sessionID), raw, orderSnapshotTTL)
	}
	if err != nil {
		c.logger.WarnContext(ctx, "failed to cache order snapshot",
			"session_id", sessionID,
			"error", err,
		)
	}
}

func orderSnapshotKey(sessionID string) string {
	return "order:snapshot:" + sessionID
}

func validEmail(email string) bool {
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1
}
