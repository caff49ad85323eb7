package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"careergate/internal/analytics"
	"careergate/internal/ratelimit/limiter"
	rlmodels "careergate/internal/ratelimit/models"
	"careergate/internal/upstream"
	dErrors "careergate/pkg/domain-errors"
	"careergate/pkg/kvstore"
	"careergate/pkg/requestcontext"
)

type fakeBackend struct {
	mu               sync.Mutex
	analyzeCalls     int
	personalizeCalls int
	ticketCalls      int
	orderCalls       int
	leadCalls        int

	lastPersonalizeReq upstream.PersonalizationRequest
	lastTicketReq      upstream.TicketRequest
	lastOrderReq       upstream.OrderRequest

	analyzeResp upstream.AnalyzeResponse
	ticket      upstream.Ticket

	analyzeErr     error
	personalizeErr error
	ticketErr      error
	orderErr       error
	leadErr        error

	// When set, AnalyzeResume blocks until the channel is closed.
	analyzeGate chan struct{}
}

func (b *fakeBackend) AnalyzeResume(ctx context.Context, sessionID string, file upstream.File) (*upstream.AnalyzeResponse, error) {
	b.mu.Lock()
	b.analyzeCalls++
	gate := b.analyzeGate
	b.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if b.analyzeErr != nil {
		return nil, b.analyzeErr
	}
	resp := b.analyzeResp
	return &resp, nil
}

func (b *fakeBackend) CreatePersonalization(ctx context.Context, req upstream.PersonalizationRequest) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.personalizeCalls++
	b.lastPersonalizeReq = req
	if b.personalizeErr != nil {
		return "", b.personalizeErr
	}
	return "p1", nil
}

func (b *fakeBackend) GenerateTicket(ctx context.Context, req upstream.TicketRequest) (*upstream.Ticket, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ticketCalls++
	b.lastTicketReq = req
	if b.ticketErr != nil {
		return nil, b.ticketErr
	}
	ticket := b.ticket
	return &ticket, nil
}

func (b *fakeBackend) CreateOrder(ctx context.Context, req upstream.OrderRequest) (*upstream.OrderResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.orderCalls++
	b.lastOrderReq = req
	if b.orderErr != nil {
		return nil, b.orderErr
	}
	return &upstream.OrderResponse{OrderID: "o1", UserID: "u1"}, nil
}

func (b *fakeBackend) SubmitLead(ctx context.Context, req upstream.LeadRequest) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.leadCalls++
	return b.leadErr
}

type fakeLimiter struct {
	mu       sync.Mutex
	result   rlmodels.Result
	checkErr error
	checks   int
	recorded int
}

func (l *fakeLimiter) CheckLimit(ctx context.Context, clientID string) (*rlmodels.Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.checks++
	if l.checkErr != nil {
		return nil, l.checkErr
	}
	result := l.result
	return &result, nil
}

func (l *fakeLimiter) RecordRequest(ctx context.Context, clientID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recorded++
	return nil
}

const testSessionID = "session_1700000000000_abc123"

var pdfUpload = upstream.File{
	Name:        "resume.pdf",
	ContentType: "application/pdf",
	Data:        []byte("%PDF-1.4 test resume"),
}

type CoordinatorSuite struct {
	suite.Suite
	backend *fakeBackend
	limiter *fakeLimiter
	sink    *analytics.MemorySink
	store   *kvstore.Memory
	coord   *Coordinator
	ctx     context.Context
}

func TestCoordinatorSuite(t *testing.T) {
	suite.Run(t, new(CoordinatorSuite))
}

func (s *CoordinatorSuite) SetupTest() {
	s.backend = &fakeBackend{
		analyzeResp: upstream.AnalyzeResponse{
			AnalysisID: "a1",
			Results: upstream.AnalysisResult{
				CandidateName:   "Jordan Reyes",
				PotentialTitles: []string{"Senior Engineer"},
				Strengths:       []string{"Shipped a platform"},
				KeywordGaps:     []string{"Kubernetes", "system design"},
				Strategy:        "Lead with platform impact.",
			},
		},
		ticket: upstream.Ticket{
			StrategySummary: "Target senior IC roles.",
			ClientInfo: upstream.ClientInfo{
				Email:                "jordan@example.com",
				LinkedinURL:          "https://linkedin.com/in/jordan",
				TargetRoles:          []string{"Senior Engineer"},
				SuggestedSalaryRange: "120k-150k",
			},
		},
	}
	s.limiter = &fakeLimiter{result: rlmodels.Result{Allowed: true, Limit: 20, Remaining: 20}}
	s.sink = analytics.NewMemorySink()
	s.store = kvstore.NewMemory()

	var err error
	s.coord, err = New(s.backend, s.limiter,
		WithAnalytics(s.sink),
		WithOrderStore(s.store),
		WithPaymentPageURL("https://pay.example.com/checkout"),
	)
	s.Require().NoError(err)

	s.ctx = requestcontext.WithUserAgent(context.Background(),
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
}

func (s *CoordinatorSuite) lastEvent() analytics.Event {
	events := s.sink.Events()
	s.Require().NotEmpty(events)
	return events[len(events)-1]
}

func (s *CoordinatorSuite) TestNewRequiresDependencies() {
	_, err := New(nil, s.limiter)
	s.Error(err)
	_, err = New(s.backend, nil)
	s.Error(err)
}

func (s *CoordinatorSuite) TestAnalyzeHappyPath() {
	resp, err := s.coord.Analyze(s.ctx, testSessionID, pdfUpload)
	s.Require().NoError(err)
	s.Equal("a1", resp.AnalysisID)
	s.Equal(1, s.backend.analyzeCalls)
	s.Equal(1, s.limiter.recorded, "a delivered analysis consumes quota")

	event := s.lastEvent()
	s.Equal("analyze", event.Step)
	s.Equal(analytics.OutcomeSucceeded, event.Outcome)
	s.Equal("Chrome", event.Client.Browser)
}

func (s *CoordinatorSuite) TestAnalyzeRejectsInvalidUploads() {
	cases := []struct {
		name string
		file upstream.File
	}{
		{"unsupported extension", upstream.File{Name: "resume.txt", Data: []byte("plain text")}},
		{"empty file", upstream.File{Name: "resume.pdf"}},
		{"oversized file", upstream.File{Name: "resume.pdf", Data: append([]byte("%PDF"), make([]byte, MaxResumeBytes)...)}},
		{"magic mismatch", upstream.File{Name: "resume.pdf", Data: []byte("not a pdf at all")}},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, err := s.coord.Analyze(s.ctx, testSessionID, tc.file)
			s.Require().Error(err)
			s.True(dErrors.Is(err, dErrors.CodeValidation))
			s.Equal("resume", dErrors.AsError(err).Field)
		})
	}

	s.Equal(0, s.backend.analyzeCalls, "rejected uploads must not reach the backend")
	s.Equal(0, s.limiter.checks, "rejected uploads must not consume quota")
	s.Equal(analytics.OutcomeRejected, s.lastEvent().Outcome)
}

func (s *CoordinatorSuite) TestAnalyzeDeniedWhenLimitExhausted() {
	s.limiter.result = rlmodels.Result{Allowed: false, Limit: 20, Remaining: 0, TimeLeftSeconds: 3600}

	_, err := s.coord.Analyze(s.ctx, testSessionID, pdfUpload)
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeRateLimited))
	s.Equal(3600, dErrors.AsError(err).TimeLeftSeconds)

	s.Equal(0, s.backend.analyzeCalls, "a denied request must not reach the backend")
	s.Equal(0, s.limiter.recorded)
	s.Equal(analytics.OutcomeRateLimited, s.lastEvent().Outcome)
}

func (s *CoordinatorSuite) TestAnalyzeBackendFailureDoesNotConsumeQuota() {
	s.backend.analyzeErr = dErrors.New(dErrors.CodeRemoteCall, "backend exploded")

	_, err := s.coord.Analyze(s.ctx, testSessionID, pdfUpload)
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeRemoteCall))
	s.Equal(0, s.limiter.recorded)
	s.Equal(analytics.OutcomeFailed, s.lastEvent().Outcome)
}

func (s *CoordinatorSuite) TestAnalyzeRejectsDuplicateInFlight() {
	gate := make(chan struct{})
	s.backend.analyzeGate = gate

	done := make(chan error, 1)
	go func() {
		_, err := s.coord.Analyze(s.ctx, testSessionID, pdfUpload)
		done <- err
	}()

	// Wait for the first call to reach the backend.
	s.Require().Eventually(func() bool {
		s.backend.mu.Lock()
		defer s.backend.mu.Unlock()
		return s.backend.analyzeCalls == 1
	}, time.Second, time.Millisecond)

	_, err := s.coord.Analyze(s.ctx, testSessionID, pdfUpload)
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeConflict))

	close(gate)
	s.NoError(<-done)
	s.Equal(1, s.backend.analyzeCalls, "the duplicate must not trigger a second call")

	// Once the first finished, a re-run is allowed.
	s.backend.analyzeGate = nil
	_, err = s.coord.Analyze(s.ctx, testSessionID, pdfUpload)
	s.NoError(err)
}

func (s *CoordinatorSuite) TestPersonalizeFallsBackToSampleProfile() {
	id, err := s.coord.Personalize(s.ctx, testSessionID)
	s.Require().NoError(err)
	s.Equal("p1", id)

	req := s.backend.lastPersonalizeReq
	s.Empty(req.ResumeAnalysisID)
	s.Equal(personalizationColumns, req.Columns)
	s.Equal("Alex Morgan", req.Data["name"], "skipping analyze still yields a believable demo")
}

func (s *CoordinatorSuite) TestPersonalizeUsesAnalysisData() {
	_, err := s.coord.Analyze(s.ctx, testSessionID, pdfUpload)
	s.Require().NoError(err)

	_, err = s.coord.Personalize(s.ctx, testSessionID)
	s.Require().NoError(err)

	req := s.backend.lastPersonalizeReq
	s.Equal("a1", req.ResumeAnalysisID)
	s.Equal("Jordan Reyes", req.Data["name"])
	s.Equal("Senior Engineer", req.Data["target_role"])
	s.Equal("Kubernetes, system design", req.Data["keyword_gaps"])
}

func (s *CoordinatorSuite) TestGenerateTicketFailsFastWithoutPrerequisites() {
	_, err := s.coord.GenerateTicket(s.ctx, testSessionID)
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeMissingPrerequisite))
	s.Equal(0, s.backend.ticketCalls, "missing prerequisites must not trigger a network call")
}

func (s *CoordinatorSuite) TestGenerateTicketSendsStepIDs() {
	_, err := s.coord.Analyze(s.ctx, testSessionID, pdfUpload)
	s.Require().NoError(err)
	_, err = s.coord.Personalize(s.ctx, testSessionID)
	s.Require().NoError(err)

	ticket, err := s.coord.GenerateTicket(s.ctx, testSessionID)
	s.Require().NoError(err)
	s.Equal("Target senior IC roles.", ticket.StrategySummary)

	s.Equal("a1", s.backend.lastTicketReq.ResumeAnalysisID)
	s.Equal("p1", s.backend.lastTicketReq.PersonalizationID)
}

func (s *CoordinatorSuite) TestRegenerationPreservesUserEdits() {
	_, err := s.coord.Personalize(s.ctx, testSessionID)
	s.Require().NoError(err)

	_, err = s.coord.GenerateTicket(s.ctx, testSessionID)
	s.Require().NoError(err)

	goals := s.coord.Goals(s.ctx, testSessionID)
	s.Equal("jordan@example.com", goals.Email, "first ticket seeds the goal sheet")
	s.Equal("120k-150k", goals.SalaryGoal)

	edited := "edited@example.com"
	s.coord.UpdateGoals(s.ctx, testSessionID, GoalsPatch{Email: &edited})

	// Regenerate with revised server suggestions.
	s.backend.ticket.ClientInfo.Email = "revised@example.com"
	s.backend.ticket.ClientInfo.SuggestedSalaryRange = "130k-160k"
	_, err = s.coord.GenerateTicket(s.ctx, testSessionID)
	s.Require().NoError(err)

	goals = s.coord.Goals(s.ctx, testSessionID)
	s.Equal("edited@example.com", goals.Email, "user edit survives regeneration")
	s.Equal("130k-160k", goals.SalaryGoal, "untouched field follows the new ticket")
}

func (s *CoordinatorSuite) TestGoalListEditing() {
	s.coord.AddTargetRole(s.ctx, testSessionID, "Senior Engineer")
	s.coord.AddTargetRole(s.ctx, testSessionID, "Senior Engineer")
	s.coord.AddTargetRole(s.ctx, testSessionID, "  ")
	goals := s.coord.AddTargetLocation(s.ctx, testSessionID, "Berlin")
	s.Equal([]string{"Senior Engineer"}, goals.TargetRoles)
	s.Equal([]string{"Berlin"}, goals.TargetLocations)

	goals = s.coord.RemoveTargetRole(s.ctx, testSessionID, "Senior Engineer")
	s.Empty(goals.TargetRoles)
	goals = s.coord.RemoveTargetLocation(s.ctx, testSessionID, "Paris")
	s.Equal([]string{"Berlin"}, goals.TargetLocations)
}

func (s *CoordinatorSuite) TestCheckoutValidatesContactDetails() {
	_, err := s.coord.Checkout(s.ctx, testSessionID)
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeValidation))
	s.Equal("email", dErrors.AsError(err).Field)

	email := "jordan@example.com"
	s.coord.UpdateGoals(s.ctx, testSessionID, GoalsPatch{Email: &email})

	_, err = s.coord.Checkout(s.ctx, testSessionID)
	s.Require().Error(err)
	s.Equal("linkedin_url", dErrors.AsError(err).Field)

	s.Equal(0, s.backend.orderCalls)
}

func (s *CoordinatorSuite) TestCheckoutCreatesOrderAndRedirect() {
	email := "jordan@example.com"
	linkedin := "https://linkedin.com/in/jordan"
	s.coord.UpdateGoals(s.ctx, testSessionID, GoalsPatch{Email: &email, LinkedinURL: &linkedin})

	result, err := s.coord.Checkout(s.ctx, testSessionID)
	s.Require().NoError(err)
	s.Equal("o1", result.OrderID)
	s.Equal("u1", result.UserID)
	s.NotEmpty(result.ClientReferenceID)
	s.Equal("https://pay.example.com/checkout?client_reference_id="+result.ClientReferenceID, result.RedirectURL)

	s.Equal(result.ClientReferenceID, s.backend.lastOrderReq.ClientReferenceID)
	s.Equal(email, s.backend.lastOrderReq.Email)

	snapshot, ok, err := s.coord.LastOrder(s.ctx, testSessionID)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal("o1", snapshot.OrderID)
	s.Equal(result.ClientReferenceID, snapshot.ClientReferenceID)
}

func (s *CoordinatorSuite) TestCheckoutReferenceIDsAreUnique() {
	email := "jordan@example.com"
	linkedin := "https://linkedin.com/in/jordan"
	s.coord.UpdateGoals(s.ctx, testSessionID, GoalsPatch{Email: &email, LinkedinURL: &linkedin})

	first, err := s.coord.Checkout(s.ctx, testSessionID)
	s.Require().NoError(err)
	second, err := s.coord.Checkout(s.ctx, testSessionID)
	s.Require().NoError(err)
	s.NotEqual(first.ClientReferenceID, second.ClientReferenceID)
}

func (s *CoordinatorSuite) TestSubmitLeadSoftFailure() {
	s.backend.leadErr = dErrors.New(dErrors.CodeRemoteCall, "backend exploded")

	err := s.coord.SubmitLead(s.ctx, testSessionID, upstream.LeadRequest{
		Name:  "Jordan Reyes",
		Email: "jordan@example.com",
	})
	s.NoError(err, "a delivery failure must read as success to the caller")
	s.Equal(analytics.OutcomeSoftFailed, s.lastEvent().Outcome)
}

func (s *CoordinatorSuite) TestSubmitLeadValidation() {
	err := s.coord.SubmitLead(s.ctx, testSessionID, upstream.LeadRequest{Name: "Jordan"})
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeValidation))
	s.Equal(0, s.backend.leadCalls)

	err = s.coord.SubmitLead(s.ctx, testSessionID, upstream.LeadRequest{
		Email:  "jordan@example.com",
		Resume: &upstream.File{Name: "resume.exe", Data: []byte("MZ")},
	})
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeValidation))
}

func (s *CoordinatorSuite) TestCheckLimitDoesNotConsumeQuota() {
	result, err := s.coord.CheckLimit(s.ctx, testSessionID)
	s.Require().NoError(err)
	s.True(result.Allowed)
	s.Equal(0, s.limiter.recorded)
}

// TestQuotaExhaustionScenario drives the coordinator against the real
// limiter: every successful analysis consumes quota until the window denies
// further requests with a positive wait.
func TestQuotaExhaustionScenario(t *testing.T) {
	backend := &fakeBackend{analyzeResp: upstream.AnalyzeResponse{AnalysisID: "a1"}}
	store := kvstore.NewMemory()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	rl, err := limiter.New(store,
		limiter.WithLimits(3, time.Hour),
		limiter.WithClock(func() time.Time { return now }),
	)
	if err != nil {
		t.Fatal(err)
	}

	coord, err := New(backend, rl, WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := coord.Analyze(ctx, testSessionID, pdfUpload); err != nil {
			t.Fatalf("analysis %d: %v", i+1, err)
		}
	}

	_, err = coord.Analyze(ctx, testSessionID, pdfUpload)
	if !dErrors.Is(err, dErrors.CodeRateLimited) {
		t.Fatalf("expected rate_limited, got %v", err)
	}
	if left := dErrors.AsError(err).TimeLeftSeconds; left != 3600 {
		t.Fatalf("expected 3600s left, got %d", left)
	}
	if backend.analyzeCalls != 3 {
		t.Fatalf("expected 3 backend calls, got %d", backend.analyzeCalls)
	}
}
