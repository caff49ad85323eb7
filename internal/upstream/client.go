// Package upstream is the typed HTTP client for the opaque backend API the
// funnel steps call. Response defaulting happens here, once, so the rest of
// the service never touches duck-typed payloads. No retries, no backoff:
// failures surface as remote_call_failure errors and retries are always
// user-initiated.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"careergate/internal/platform/metrics"
	dErrors "careergate/pkg/domain-errors"
)

const (
	sessionHeader = "X-Session-Id"

	// Error bodies are truncated before logging so a misbehaving backend
	// cannot flood the logs.
	maxErrorBodyBytes = 512
)

type Client struct {
	baseURL      string
	demoEntityID string
	httpClient   *http.Client
	logger       *slog.Logger
	metrics      *metrics.Metrics
	tracer       trace.Tracer
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// New creates a backend client. demoEntityID selects the personalization
// record collection on the backend.
func New(baseURL, demoEntityID string, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		demoEntityID: demoEntityID,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		logger:       slog.Default(),
		tracer:       otel.Tracer("careergate/upstream"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AnalyzeResume uploads the resume for analysis. The anonymous session id
// travels in a custom header so the backend can correlate without accounts.
func (c *Client) AnalyzeResume(ctx context.Context, sessionID string, file File) (*AnalyzeResponse, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("resume", file.Name)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build multipart body")
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to write resume into multipart body")
	}
	if err := writer.Close(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to finalize multipart body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/resume-analysis", &body)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build analyze request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set(sessionHeader, sessionID)

	var resp AnalyzeResponse
	if err := c.do(ctx, "resume-analysis", req, &resp); err != nil {
		return nil, err
	}
	resp.Results.applyDefaults()
	return &resp, nil
}

// CreatePersonalization creates a demo personalization record and returns
// its unique id.
func (c *Client) CreatePersonalization(ctx context.Context, request PersonalizationRequest) (string, error) {
	path := fmt.Sprintf("/brdges/%s/personalization/demo-record", c.demoEntityID)
	req, err := c.newJSONRequest(ctx, path, request)
	if err != nil {
		return "", err
	}

	var resp personalizationResponse
	if err := c.do(ctx, "personalization", req, &resp); err != nil {
		return "", err
	}
	if resp.UniqueID == "" {
		return "", dErrors.New(dErrors.CodeRemoteCall, "personalization response missing unique_id")
	}
	return resp.UniqueID, nil
}

// GenerateTicket asks the backend to generate a career strategy ticket.
func (c *Client) GenerateTicket(ctx context.Context, request TicketRequest) (*Ticket, error) {
	req, err := c.newJSONRequest(ctx, "/generate-ticket", request)
	if err != nil {
		return nil, err
	}

	var resp ticketResponse
	if err := c.do(ctx, "generate-ticket", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, dErrors.New(dErrors.CodeRemoteCall, "backend reported ticket generation failure")
	}
	resp.Ticket.applyDefaults()
	return &resp.Ticket, nil
}

// CreateOrder creates the remote order record that the external payment page
// is correlated with via the client reference id.
func (c *Client) CreateOrder(ctx context.Context, request OrderRequest) (*OrderResponse, error) {
	req, err := c.newJSONRequest(ctx, "/career-accelerator/create-order", request)
	if err != nil {
		return nil, err
	}

	var resp OrderResponse
	if err := c.do(ctx, "create-order", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SubmitLead submits a lead-capture record, as multipart when a resume file
// is attached and plain JSON otherwise.
func (c *Client) SubmitLead(ctx context.Context, request LeadRequest) error {
	var req *http.Request
	var err error

	if request.Resume != nil {
		req, err = c.newLeadMultipartRequest(ctx, request)
	} else {
		req, err = c.newJSONRequest(ctx, "/leads", request)
	}
	if err != nil {
		return err
	}

	return c.do(ctx, "leads", req, nil)
}

func (c *Client) newJSONRequest(ctx context.Context, path string, payload any) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode request body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) newLeadMultipartRequest(ctx context.Context, request LeadRequest) (*http.Request, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	fields := map[string]string{
		"name":  request.Name,
		"email": request.Email,
		"notes": request.Notes,
	}
	for key, value := range fields {
		if value == "" {
			continue
		}
		if err := writer.WriteField(key, value); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to write lead field")
		}
	}

	part, err := writer.CreateFormFile("resume", request.Resume.Name)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to attach resume to lead")
	}
	if _, err := part.Write(request.Resume.Data); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to write resume into lead body")
	}
	if err := writer.Close(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to finalize lead body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/leads", &body)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build lead request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req, nil
}

// do executes the request, decodes a 2xx JSON response into out (when out is
// non-nil), and converts everything else into a remote_call_failure error.
func (c *Client) do(ctx context.Context, endpoint string, req *http.Request, out any) error {
	ctx, span := c.tracer.Start(ctx, "upstream."+endpoint, trace.WithAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("http.url", req.URL.String()),
	))
	defer span.End()
	req = req.WithContext(ctx)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.metrics != nil {
		c.metrics.ObserveUpstreamLatency(endpoint, time.Since(start))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return dErrors.Wrap(err, dErrors.CodeRemoteCall, endpoint+" request failed")
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		span.SetStatus(codes.Error, "non-2xx response")
		c.logger.WarnContext(ctx, "upstream call failed",
			"endpoint", endpoint,
			"status", resp.StatusCode,
			"body", strings.TrimSpace(string(snippet)),
		)
		return dErrors.Newf(dErrors.CodeRemoteCall, "%s returned status %d", endpoint, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		span.RecordError(err)
		return dErrors.Wrap(err, dErrors.CodeRemoteCall, endpoint+" returned malformed JSON")
	}
	return nil
}
