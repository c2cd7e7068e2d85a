package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/atvirokodosprendimai/ruleapi/internal/core/domain"
	"github.com/atvirokodosprendimai/ruleapi/internal/core/usecase"
	"github.com/atvirokodosprendimai/ruleapi/rule"
)

type ctxKey string

const (
	timeFormat             = "2006-01-02T15:04:05.999999999Z07:00"
	apiActorCtxKey  ctxKey = "api_actor"
	maxJSONBodySize        = 1 << 20
)

type Handler struct {
	ruleSets    *usecase.RuleSetService
	validations *usecase.ValidationService
	authService *usecase.AuthService
	logger      *zap.Logger
	metrics     *Metrics
}

func NewHandler(ruleSets *usecase.RuleSetService, validations *usecase.ValidationService, authService *usecase.AuthService, logger *zap.Logger, metrics *Metrics) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Handler{
		ruleSets:    ruleSets,
		validations: validations,
		authService: authService,
		logger:      logger.Named("http"),
		metrics:     metrics,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)
	r.Use(h.metrics.instrument)

	r.Get("/healthz", h.healthz)
	r.Get("/openapi.json", h.openapi)
	r.Method(http.MethodGet, "/metrics", h.metrics.handler())

	r.Group(func(pr chi.Router) {
		pr.Use(h.requireAPIKey)
		pr.Get("/v1/rulesets", h.listRuleSets)
		pr.Put("/v1/rulesets/{name}", h.upsertRuleSet)
		pr.Get("/v1/rulesets/{name}", h.getRuleSet)
		pr.Delete("/v1/rulesets/{name}", h.deleteRuleSet)
		pr.Get("/v1/rulesets/{name}/schema", h.schema)
		pr.Post("/v1/rulesets/{name}/validate", h.validate)
		pr.Get("/v1/rulesets/{name}/runs", h.listRuns)
	})

	return r
}

type ruleSetResponse struct {
	Name       string          `json:"name"`
	Definition json.RawMessage `json:"definition"`
	CreatedAt  string          `json:"created_at"`
	UpdatedAt  string          `json:"updated_at"`
}

type runResponse struct {
	ID         string           `json:"id"`
	RuleSet    string           `json:"rule_set"`
	Valid      bool             `json:"valid"`
	Violations []rule.Violation `json:"violations,omitempty"`
	Actor      string           `json:"actor"`
	At         string           `json:"at"`
}

type validateResponse struct {
	Valid      bool             `json:"valid"`
	RunID      string           `json:"run_id"`
	Value      json.RawMessage  `json:"value,omitempty"`
	Violations []rule.Violation `json:"violations,omitempty"`
}

func (h *Handler) upsertRuleSet(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)

	decoder := json.NewDecoder(r.Body)
	var definition json.RawMessage
	if err := decoder.Decode(&definition); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := ensureEOF(decoder); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	set, err := h.ruleSets.Upsert(r.Context(), name, definition)
	if err != nil {
		h.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRuleSetResponse(set))
}

func (h *Handler) getRuleSet(w http.ResponseWriter, r *http.Request) {
	set, err := h.ruleSets.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRuleSetResponse(set))
}

func (h *Handler) deleteRuleSet(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.ruleSets.Delete(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

func (h *Handler) listRuleSets(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	sets, err := h.ruleSets.List(r.Context(), domain.RuleSetFilter{
		Prefix:    r.URL.Query().Get("prefix"),
		AfterName: r.URL.Query().Get("after"),
		Limit:     limit,
	})
	if err != nil {
		h.handleDomainError(w, err)
		return
	}

	result := make([]ruleSetResponse, 0, len(sets))
	for _, set := range sets {
		result = append(result, toRuleSetResponse(set))
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": result})
}

func (h *Handler) schema(w http.ResponseWriter, r *http.Request) {
	doc, err := h.ruleSets.Schema(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) validate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)

	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	result, err := h.validations.Validate(r.Context(), name, data, actorFromContext(r.Context()))
	if err != nil {
		var violation *domain.ErrRuleViolation
		if errors.As(err, &violation) {
			h.metrics.observeValidation(name, result.Run.Outcome())
		}
		h.handleDomainError(w, err)
		return
	}
	h.metrics.observeValidation(name, result.Run.Outcome())

	writeJSON(w, http.StatusOK, validateResponse{
		Valid: true,
		RunID: result.Run.ID,
		Value: result.Value,
	})
}

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	runs, err := h.validations.ListRuns(r.Context(), domain.RunFilter{
		RuleSet: chi.URLParam(r, "name"),
		Limit:   limit,
	})
	if err != nil {
		h.handleDomainError(w, err)
		return
	}

	result := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		result = append(result, toRunResponse(run))
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": result})
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) openapi(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, openapiSpec())
}

func (h *Handler) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(r.Header.Get("X-API-Key"))
		if token == "" {
			auth := strings.TrimSpace(r.Header.Get("Authorization"))
			if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
				token = strings.TrimSpace(auth[7:])
			}
		}

		apiKey, err := h.authService.Authenticate(r.Context(), token)
		if err != nil {
			if errors.Is(err, usecase.ErrUnauthorized) {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			h.logger.Error("authenticate", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		ctx := context.WithValue(r.Context(), apiActorCtxKey, apiKey.Name)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.Debug("request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (h *Handler) handleDomainError(w http.ResponseWriter, err error) {
	var violation *domain.ErrRuleViolation
	switch {
	case errors.As(err, &violation):
		writeJSON(w, http.StatusUnprocessableEntity, validateResponse{
			Valid:      false,
			RunID:      violation.RunID,
			Violations: violation.Violations,
		})
	case errors.Is(err, domain.ErrInvalidName),
		errors.Is(err, domain.ErrInvalidDefinition),
		errors.Is(err, domain.ErrInvalidFilter):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		h.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func toRuleSetResponse(set domain.RuleSet) ruleSetResponse {
	return ruleSetResponse{
		Name:       set.Name,
		Definition: set.Definition,
		CreatedAt:  set.CreatedAt.UTC().Format(timeFormat),
		UpdatedAt:  set.UpdatedAt.UTC().Format(timeFormat),
	}
}

func toRunResponse(run domain.ValidationRun) runResponse {
	return runResponse{
		ID:         run.ID,
		RuleSet:    run.RuleSet,
		Valid:      run.Valid,
		Violations: run.Violations,
		Actor:      run.Actor,
		At:         run.At.UTC().Format(timeFormat),
	}
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be integer")
			return 0, false
		}
		limit = parsed
	}
	return limit, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

func ensureEOF(decoder *json.Decoder) error {
	var extra json.RawMessage
	if err := decoder.Decode(&extra); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	return errors.New("extra json tokens")
}

func actorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(apiActorCtxKey).(string)
	if actor == "" {
		return "api"
	}
	return actor
}

func openapiSpec() map[string]any {
	return map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":   "ruleapi",
			"version": "1.0.0",
		},
		"paths": map[string]any{
			"/v1/rulesets": map[string]any{
				"get": map[string]any{"summary": "List rule sets"},
			},
			"/v1/rulesets/{name}": map[string]any{
				"put":    map[string]any{"summary": "Upsert rule set"},
				"get":    map[string]any{"summary": "Get rule set"},
				"delete": map[string]any{"summary": "Delete rule set"},
			},
			"/v1/rulesets/{name}/schema": map[string]any{
				"get": map[string]any{"summary": "Export rule set as JSON Schema"},
			},
			"/v1/rulesets/{name}/validate": map[string]any{
				"post": map[string]any{"summary": "Validate a document"},
			},
			"/v1/rulesets/{name}/runs": map[string]any{
				"get": map[string]any{"summary": "List validation runs"},
			},
		},
	}
}
