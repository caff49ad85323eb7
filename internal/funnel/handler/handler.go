// Package handler exposes the funnel over HTTP. Every route runs behind the
// session middleware, so handlers can assume a session id in the context.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"careergate/internal/funnel/service"
	"careergate/internal/platform/middleware"
	"careergate/internal/session"
	"careergate/internal/upstream"
	dErrors "careergate/pkg/domain-errors"
	"careergate/pkg/platform/httputil"
	"careergate/pkg/requestcontext"
)

// uploadFormLimit caps multipart parsing just above the resume size limit so
// oversized files fail validation with a clear message instead of a parse
// error.
const uploadFormLimit = service.MaxResumeBytes + 1<<20

type Handler struct {
	coordinator *service.Coordinator
	sessions    *session.Manager
	logger      *slog.Logger
}

func New(coordinator *service.Coordinator, sessions *session.Manager, logger *slog.Logger) *Handler {
	return &Handler{
		coordinator: coordinator,
		sessions:    sessions,
		logger:      logger,
	}
}

// Register mounts the funnel routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/funnel", func(r chi.Router) {
		r.Use(h.sessions.Middleware)
		r.Use(clientMetadata)

		r.Get("/limit", h.handleLimit)
		r.Post("/analyze", h.handleAnalyze)
		r.Post("/personalize", h.handlePersonalize)
		r.Post("/ticket", h.handleTicket)

		r.Get("/goals", h.handleGetGoals)
		r.Put("/goals", h.handleUpdateGoals)
		r.Post("/goals/roles", h.handleGoalList(h.coordinator.AddTargetRole))
		r.Delete("/goals/roles", h.handleGoalList(h.coordinator.RemoveTargetRole))
		r.Post("/goals/locations", h.handleGoalList(h.coordinator.AddTargetLocation))
		r.Delete("/goals/locations", h.handleGoalList(h.coordinator.RemoveTargetLocation))

		r.Post("/checkout", h.handleCheckout)
		r.Get("/order", h.handleOrder)
		r.Post("/leads", h.handleLead)
	})
}

// clientMetadata captures the caller's user agent and IP for analytics.
func clientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithUserAgent(r.Context(), r.UserAgent())
		ctx = requestcontext.WithClientIP(ctx, r.RemoteAddr)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) handleLimit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	result, err := h.coordinator.CheckLimit(ctx, session.FromContext(ctx))
	if err != nil {
		h.logError(r, "limit check failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, uploadFormLimit)
	if err := r.ParseMultipartForm(uploadFormLimit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "resume exceeds the 10MB size limit").
				WithField("resume"))
			return
		}
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "expected a multipart form upload"))
		return
	}

	file, err := readUpload(r, "resume")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp, err := h.coordinator.Analyze(ctx, session.FromContext(ctx), file)
	if err != nil {
		h.logError(r, "analysis failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handlePersonalize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := h.coordinator.Personalize(ctx, session.FromContext(ctx))
	if err != nil {
		h.logError(r, "personalization failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"personalization_id": id})
}

func (h *Handler) handleTicket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ticket, err := h.coordinator.GenerateTicket(ctx, session.FromContext(ctx))
	if err != nil {
		h.logError(r, "ticket generation failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handleGetGoals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	httputil.WriteJSON(w, http.StatusOK, h.coordinator.Goals(ctx, session.FromContext(ctx)))
}

func (h *Handler) handleUpdateGoals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var patch service.GoalsPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}

	goals := h.coordinator.UpdateGoals(ctx, session.FromContext(ctx), patch)
	httputil.WriteJSON(w, http.StatusOK, goals)
}

type goalListRequest struct {
	Value string `json:"value"`
}

type goalListOp func(ctx context.Context, sessionID, value string) upstream.GoalsPayload

func (h *Handler) handleGoalList(op goalListOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req goalListRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
			return
		}

		goals := op(ctx, session.FromContext(ctx), req.Value)
		httputil.WriteJSON(w, http.StatusOK, goals)
	}
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	result, err := h.coordinator.Checkout(ctx, session.FromContext(ctx))
	if err != nil {
		h.logError(r, "checkout failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	snapshot, ok, err := h.coordinator.LastOrder(ctx, session.FromContext(ctx))
	if err != nil {
		h.logError(r, "order lookup failed", err)
		httputil.WriteError(w, err)
		return
	}
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no order on record for this session"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) handleLead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	lead, err := readLead(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.coordinator.SubmitLead(ctx, session.FromContext(ctx), lead); err != nil {
		h.logError(r, "lead rejected", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "received"})
}

// readLead accepts either a JSON body or a multipart form with an optional
// resume attachment.
func readLead(r *http.Request) (upstream.LeadRequest, error) {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "multipart/form-data") {
		var lead upstream.LeadRequest
		if err := json.NewDecoder(r.Body).Decode(&lead); err != nil {
			return upstream.LeadRequest{}, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body")
		}
		return lead, nil
	}

	r.Body = http.MaxBytesReader(nil, r.Body, uploadFormLimit)
	if err := r.ParseMultipartForm(uploadFormLimit); err != nil {
		return upstream.LeadRequest{}, dErrors.New(dErrors.CodeBadRequest, "expected a multipart form upload")
	}

	lead := upstream.LeadRequest{
		Name:  r.FormValue("name"),
		Email: r.FormValue("email"),
		Notes: r.FormValue("notes"),
	}
	if _, _, err := r.FormFile("resume"); err == nil {
		file, err := readUpload(r, "resume")
		if err != nil {
			return upstream.LeadRequest{}, err
		}
		lead.Resume = &file
	}
	return lead, nil
}

func readUpload(r *http.Request, field string) (upstream.File, error) {
	part, header, err := r.FormFile(field)
	if err != nil {
		return upstream.File{}, dErrors.New(dErrors.CodeValidation, "a resume file is required").
			WithField(field)
	}
	defer part.Close()

	data, err := io.ReadAll(part)
	if err != nil {
		return upstream.File{}, dErrors.New(dErrors.CodeBadRequest, "failed to read the uploaded file")
	}

	return upstream.File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func (h *Handler) logError(r *http.Request, msg string, err error) {
	ctx := r.Context()
	code := dErrors.CodeOf(err)
	if code == dErrors.CodeValidation || code == dErrors.CodeMissingPrerequisite || code == dErrors.CodeRateLimited {
		// Expected client outcomes; keep them out of the error log.
		return
	}
	h.logger.ErrorContext(ctx, msg,
		"request_id", middleware.GetRequestID(ctx),
		"session_id", session.FromContext(ctx),
		"error", err.Error(),
	)
}
