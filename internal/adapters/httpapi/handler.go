package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/atvirokodosprendimai/tabcheck/internal/core/domain"
	"github.com/atvirokodosprendimai/tabcheck/internal/core/usecase"
)

type ctxKey string

const (
	timeFormat                = "2006-01-02T15:04:05.999999999Z07:00"
	tenantIDCtxKey     ctxKey = "tenant_id"
	apiActorCtxKey     ctxKey = "api_actor"
	maxJSONBodySize           = 1 << 20
	maxDatasetBodySize        = 16 << 20
)

type Handler struct {
	schemaService     *usecase.SchemaService
	validationService *usecase.ValidationService
	runService        *usecase.RunService
	authService       *usecase.AuthService
	metrics           http.Handler
}

// NewHandler wires the HTTP surface. metrics may be nil, in which case
// /metrics is not served.
func NewHandler(schemaService *usecase.SchemaService, validationService *usecase.ValidationService, runService *usecase.RunService, authService *usecase.AuthService, metrics http.Handler) *Handler {
	return &Handler{
		schemaService:     schemaService,
		validationService: validationService,
		runService:        runService,
		authService:       authService,
		metrics:           metrics,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", h.healthz)
	r.Get("/openapi.json", h.openapi)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	r.Group(func(pr chi.Router) {
		pr.Use(h.requireAPIKey)
		pr.Get("/v1/schemas", h.listSchemas)
		pr.Put("/v1/schemas/{name}", h.upsertSchema)
		pr.Get("/v1/schemas/{name}", h.getSchema)
		pr.Delete("/v1/schemas/{name}", h.deleteSchema)
		pr.Post("/v1/schemas/{name}/validations", h.validate)

		pr.Get("/v1/validations", h.listRuns)
		pr.Get("/v1/validations/{id}", h.getRun)
	})

	return r
}

type schemaResponse struct {
	Name      string          `json:"name"`
	Columns   []domain.Column `json:"columns"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
}

type validateRequest struct {
	Session string          `json:"session"`
	Records []domain.Record `json:"records"`
}

type runResponse struct {
	ID           string           `json:"id"`
	Schema       string           `json:"schema"`
	Session      string           `json:"session,omitempty"`
	Actor        string           `json:"actor"`
	Status       domain.RunStatus `json:"status"`
	Passed       bool             `json:"passed"`
	Decision     domain.Decision  `json:"decision"`
	Summary      domain.Summary   `json:"summary"`
	ErrorCount   int              `json:"error_count"`
	WarningCount int              `json:"warning_count"`
	InfoCount    int              `json:"info_count"`
	StartedAt    string           `json:"started_at"`
	FinishedAt   string           `json:"finished_at"`
	DurationMS   int64            `json:"duration_ms"`
	Cursor       int64            `json:"cursor"`
}

type validateResponse struct {
	Run      runResponse          `json:"run"`
	Passed   bool                 `json:"passed"`
	Decision domain.Decision      `json:"decision"`
	Report   domain.Report        `json:"report"`
	Grouped  domain.GroupedReport `json:"grouped"`
}

func (h *Handler) upsertSchema(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)

	doc, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	stored, err := h.schemaService.UpsertDocument(r.Context(), tenantIDFromContext(r.Context()), name, doc)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSchemaResponse(stored))
}

func (h *Handler) getSchema(w http.ResponseWriter, r *http.Request) {
	stored, err := h.schemaService.Get(r.Context(), tenantIDFromContext(r.Context()), chi.URLParam(r, "name"))
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSchemaResponse(stored))
}

func (h *Handler) deleteSchema(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.schemaService.Delete(r.Context(), tenantIDFromContext(r.Context()), chi.URLParam(r, "name"))
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

func (h *Handler) listSchemas(w http.ResponseWriter, r *http.Request) {
	schemas, err := h.schemaService.List(r.Context(), tenantIDFromContext(r.Context()))
	if err != nil {
		handleDomainError(w, err)
		return
	}

	resp := make([]schemaResponse, 0, len(schemas))
	for _, s := range schemas {
		resp = append(resp, toSchemaResponse(s))
	}
	writeJSON(w, http.StatusOK, map[string]any{"schemas": resp})
}

func (h *Handler) validate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxDatasetBodySize)

	var req validateRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := ensureEOF(decoder); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	pending, err := h.validationService.ValidateAsync(r.Context(), usecase.ValidationRequest{
		TenantID:   tenantIDFromContext(r.Context()),
		SchemaName: chi.URLParam(r, "name"),
		Session:    req.Session,
		Actor:      actorFromContext(r.Context()),
		Records:    req.Records,
	})
	if err != nil {
		handleDomainError(w, err)
		return
	}

	result, err := pending.Wait(r.Context())
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, validateResponse{
		Run:      toRunResponse(result.Run),
		Passed:   result.Report.Passed(),
		Decision: result.Report.Decision(),
		Report:   result.Report,
		Grouped:  result.Report.Grouped(),
	})
}

func (h *Handler) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.runService.Get(r.Context(), tenantIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRunResponse(run))
}

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	var before int64
	if raw := r.URL.Query().Get("before"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "before must be a non-negative integer")
			return
		}
		before = parsed
	}

	runs, err := h.runService.List(r.Context(), domain.RunFilter{
		TenantID:   tenantIDFromContext(r.Context()),
		SchemaName: r.URL.Query().Get("schema"),
		Session:    r.URL.Query().Get("session"),
		BeforeID:   before,
		Limit:      limit,
	})
	if err != nil {
		handleDomainError(w, err)
		return
	}

	resp := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		resp = append(resp, toRunResponse(run))
	}
	out := map[string]any{"runs": resp}
	if len(runs) > 0 && len(runs) == limit {
		out["next_before"] = runs[len(runs)-1].Seq
	}
	writeJSON(w, http.StatusOK, out)
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
			slog.Error("authenticate api key", "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		ctx := context.WithValue(r.Context(), tenantIDCtxKey, apiKey.TenantID)
		ctx = context.WithValue(ctx, apiActorCtxKey, apiKey.Name)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func toSchemaResponse(s domain.StoredSchema) schemaResponse {
	return schemaResponse{
		Name:      s.Schema.Name,
		Columns:   s.Schema.Columns,
		CreatedAt: s.CreatedAt.UTC().Format(timeFormat),
		UpdatedAt: s.UpdatedAt.UTC().Format(timeFormat),
	}
}

func toRunResponse(run domain.ValidationRun) runResponse {
	return runResponse{
		ID:           run.ID,
		Schema:       run.SchemaName,
		Session:      run.Session,
		Actor:        run.Actor,
		Status:       run.Status,
		Passed:       run.Passed,
		Decision:     run.Decision,
		Summary:      run.Summary,
		ErrorCount:   run.ErrorCount,
		WarningCount: run.WarningCount,
		InfoCount:    run.InfoCount,
		StartedAt:    run.StartedAt.UTC().Format(timeFormat),
		FinishedAt:   run.FinishedAt.UTC().Format(timeFormat),
		DurationMS:   run.Duration().Milliseconds(),
		Cursor:       run.Seq,
	}
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	limit := 50
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
		slog.Error("encode json response", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(data, '\n')); err != nil {
		slog.Warn("write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

func handleDomainError(w http.ResponseWriter, err error) {
	var defErr *domain.SchemaDefinitionError
	switch {
	case errors.As(err, &defErr):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": domain.ErrInvalidSchema.Error(), "problems": defErr.Problems})
	case errors.Is(err, domain.ErrInvalidKey), errors.Is(err, domain.ErrInvalidName),
		errors.Is(err, domain.ErrInvalidSchema), errors.Is(err, domain.ErrEmptyDataset):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrSuperseded):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
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

func tenantIDFromContext(ctx context.Context) string {
	tenant, _ := ctx.Value(tenantIDCtxKey).(string)
	return tenant
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
			"title":   "tabcheck",
			"version": "1.0.0",
		},
		"paths": map[string]any{
			"/v1/schemas": map[string]any{
				"get": map[string]any{"summary": "List column schemas"},
			},
			"/v1/schemas/{name}": map[string]any{
				"put":    map[string]any{"summary": "Register or replace a column schema"},
				"get":    map[string]any{"summary": "Get column schema"},
				"delete": map[string]any{"summary": "Delete column schema"},
			},
			"/v1/schemas/{name}/validations": map[string]any{
				"post": map[string]any{"summary": "Validate records against a schema"},
			},
			"/v1/validations": map[string]any{
				"get": map[string]any{"summary": "List validation runs, newest first"},
			},
			"/v1/validations/{id}": map[string]any{
				"get": map[string]any{"summary": "Get validation run summary"},
			},
		},
	}
}
