package assessment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/de-tools/estate-atlas/pkg/adapters"
	"github.com/de-tools/estate-atlas/pkg/models/api"
	"github.com/de-tools/estate-atlas/pkg/models/domain"
	"github.com/de-tools/estate-atlas/pkg/services/assessment"
)

const (
	headerOrgID    = "X-Org-ID"
	headerClientID = "X-Client-ID"

	defaultFindingsLimit = 50
	maxFindingsLimit     = 500
)

type Handler struct {
	orchestrator assessment.Orchestrator
}

func NewHandler(orchestrator assessment.Orchestrator) *Handler {
	return &Handler{orchestrator: orchestrator}
}

// identity resolves the caller's org scope from the gateway-injected headers.
func identity(r *http.Request) (assessment.Identity, bool) {
	orgID := r.Header.Get(headerOrgID)
	if orgID == "" {
		return assessment.Identity{}, false
	}
	id := assessment.Identity{OrgID: orgID}
	if clientID := r.Header.Get(headerClientID); clientID != "" {
		id.ClientID = &clientID
	}
	return id, true
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := identity(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing_org", "X-Org-ID header is required")
		return
	}

	var req api.StartAssessmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body is not valid JSON")
		return
	}
	if req.EnvironmentID == "" {
		writeError(w, http.StatusBadRequest, "missing_environment", "environment_id is required")
		return
	}

	started, err := h.orchestrator.StartAssessment(ctx, id, assessment.StartRequest{
		EnvironmentID: req.EnvironmentID,
		Type:          domain.AssessmentType(req.Type),
		Preferences:   adapters.MapPreferencesApiToDomain(req.Preferences),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	encode(ctx, w, api.StartAssessmentResponse{ID: started.ID})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := identity(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing_org", "X-Org-ID header is required")
		return
	}

	assessments, err := h.orchestrator.ListAssessments(ctx, id)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	response := make([]api.Assessment, 0, len(assessments))
	for _, a := range assessments {
		response = append(response, adapters.MapAssessmentDomainToApi(a))
	}
	writeJSON(ctx, w, response)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := identity(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing_org", "X-Org-ID header is required")
		return
	}

	a, err := h.orchestrator.GetStatus(ctx, id, chi.URLParam(r, "assessment"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, adapters.MapAssessmentDomainToApi(a))
}

func (h *Handler) GetResult(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := identity(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing_org", "X-Org-ID header is required")
		return
	}

	result, err := h.orchestrator.GetResult(ctx, id, chi.URLParam(r, "assessment"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, adapters.MapResultDomainToApi(result))
}

func (h *Handler) ListFindings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := identity(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing_org", "X-Org-ID header is required")
		return
	}
	assessmentID := chi.URLParam(r, "assessment")

	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", defaultFindingsLimit)
	if limit > maxFindingsLimit {
		limit = maxFindingsLimit
	}

	findings, total, err := h.orchestrator.GetFindings(ctx, id, assessmentID, offset, limit)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	page := api.FindingsPage{
		AssessmentID: assessmentID,
		Findings:     make([]api.Finding, 0, len(findings)),
		Total:        total,
		Offset:       offset,
		Limit:        limit,
	}
	for _, f := range findings {
		page.Findings = append(page.Findings, adapters.MapFindingDomainToApi(f))
	}
	writeJSON(ctx, w, page)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := identity(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing_org", "X-Org-ID header is required")
		return
	}

	if err := h.orchestrator.Cancel(ctx, id, chi.URLParam(r, "assessment")); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := identity(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing_org", "X-Org-ID header is required")
		return
	}

	if err := h.orchestrator.Delete(ctx, id, chi.URLParam(r, "assessment")); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) TestEnvironment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := identity(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing_org", "X-Org-ID header is required")
		return
	}

	status, err := h.orchestrator.TestEnvironment(ctx, id, chi.URLParam(r, "environment"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, api.ConnectionTestResponse{
		OK:           status == domain.AccessStatusValid,
		AccessStatus: string(status),
	})
}

// writeServiceError maps the orchestrator's typed errors to HTTP responses.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	var admission *assessment.AdmissionError
	if errors.As(err, &admission) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		encode(ctx, w, api.AdmissionError{
			Code:         admission.Admission.ReasonCode,
			Message:      admission.Error(),
			CurrentUsage: admission.Admission.CurrentUsage,
			MaxAllowed:   admission.Admission.MaxAllowed,
		})
		return
	}

	var notReady *assessment.NotReadyError
	if errors.As(err, &notReady) {
		writeError(w, http.StatusConflict, "not_ready", notReady.Error())
		return
	}

	switch {
	case errors.Is(err, assessment.ErrNotFound), errors.Is(err, assessment.ErrEnvironmentNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, assessment.ErrNoSubscriptions):
		writeError(w, http.StatusBadRequest, "no_subscriptions", err.Error())
	case errors.Is(err, assessment.ErrAssessmentRunning):
		writeError(w, http.StatusConflict, "assessment_running", err.Error())
	default:
		zerolog.Ctx(ctx).Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func writeJSON(ctx context.Context, w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	encode(ctx, w, payload)
}

func encode(ctx context.Context, w http.ResponseWriter, payload any) {
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(api.Error{Code: code, Message: message})
}
