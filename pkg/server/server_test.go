package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/de-tools/estate-atlas/pkg/models/api"
	"github.com/de-tools/estate-atlas/pkg/models/domain"
	"github.com/de-tools/estate-atlas/pkg/services/assessment"
)

type mockOrchestrator struct {
	mock.Mock
}

func (m *mockOrchestrator) StartAssessment(ctx context.Context, id assessment.Identity, req assessment.StartRequest) (domain.Assessment, error) {
	args := m.Called(ctx, id, req)
	return args.Get(0).(domain.Assessment), args.Error(1)
}

func (m *mockOrchestrator) GetStatus(ctx context.Context, id assessment.Identity, assessmentID string) (domain.Assessment, error) {
	args := m.Called(ctx, id, assessmentID)
	return args.Get(0).(domain.Assessment), args.Error(1)
}

func (m *mockOrchestrator) GetResult(ctx context.Context, id assessment.Identity, assessmentID string) (domain.AssessmentResult, error) {
	args := m.Called(ctx, id, assessmentID)
	return args.Get(0).(domain.AssessmentResult), args.Error(1)
}

func (m *mockOrchestrator) GetFindings(ctx context.Context, id assessment.Identity, assessmentID string, offset, limit int) ([]domain.Finding, int, error) {
	args := m.Called(ctx, id, assessmentID, offset, limit)
	return args.Get(0).([]domain.Finding), args.Int(1), args.Error(2)
}

func (m *mockOrchestrator) ListAssessments(ctx context.Context, id assessment.Identity) ([]domain.Assessment, error) {
	args := m.Called(ctx, id)
	return args.Get(0).([]domain.Assessment), args.Error(1)
}

func (m *mockOrchestrator) Cancel(ctx context.Context, id assessment.Identity, assessmentID string) error {
	args := m.Called(ctx, id, assessmentID)
	return args.Error(0)
}

func (m *mockOrchestrator) Delete(ctx context.Context, id assessment.Identity, assessmentID string) error {
	args := m.Called(ctx, id, assessmentID)
	return args.Error(0)
}

func (m *mockOrchestrator) TestEnvironment(ctx context.Context, id assessment.Identity, environmentID string) (domain.AccessStatus, error) {
	args := m.Called(ctx, id, environmentID)
	return args.Get(0).(domain.AccessStatus), args.Error(1)
}

func TestWebAPI_Endpoints(t *testing.T) {
	logger := zerolog.New(zerolog.NewTestWriter(t))

	mockOrch := new(mockOrchestrator)
	config := Config{
		Addr:            ":8080",
		ShutdownTimeout: 10 * time.Second,
		Dependencies: Dependencies{
			Orchestrator: mockOrch,
			Logger:       logger,
		},
	}
	router := ConfigureRouter(config)
	testServer := httptest.NewServer(router)
	defer testServer.Close()

	orgID := "org-1"
	identity := assessment.Identity{OrgID: orgID}
	createdAt := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		method         string
		path           string
		body           string
		headers        map[string]string
		setupMocks     func()
		expectedStatus int
		check          func(t *testing.T, body []byte)
	}{
		{
			name:    "StartAssessment",
			method:  http.MethodPost,
			path:    "/api/v1/assessments",
			body:    `{"environment_id":"env-1","type":"governance"}`,
			headers: map[string]string{"X-Org-ID": orgID},
			setupMocks: func() {
				mockOrch.On("StartAssessment", mock.Anything, identity, assessment.StartRequest{
					EnvironmentID: "env-1",
					Type:          domain.AssessmentTypeGovernance,
				}).Return(domain.Assessment{ID: "a-1", Status: domain.AssessmentStatusPending}, nil).Once()
			},
			expectedStatus: http.StatusAccepted,
			check: func(t *testing.T, body []byte) {
				var resp api.StartAssessmentResponse
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, "a-1", resp.ID)
			},
		},
		{
			name:    "StartAssessment_WithPreferences",
			method:  http.MethodPost,
			path:    "/api/v1/assessments",
			body:    `{"environment_id":"env-1","type":"governance","preferences":{"tagging":{"required_tags":["env","owner"]},"weights":{"naming":1}}}`,
			headers: map[string]string{"X-Org-ID": orgID},
			setupMocks: func() {
				mockOrch.On("StartAssessment", mock.Anything, identity, assessment.StartRequest{
					EnvironmentID: "env-1",
					Type:          domain.AssessmentTypeGovernance,
					Preferences: domain.PolicyPreferences{
						Tagging: domain.TagRules{RequiredTags: []string{"env", "owner"}},
						Weights: map[domain.Category]float64{domain.CategoryNaming: 1},
					},
				}).Return(domain.Assessment{ID: "a-2", Status: domain.AssessmentStatusPending}, nil).Once()
			},
			expectedStatus: http.StatusAccepted,
			check: func(t *testing.T, body []byte) {
				var resp api.StartAssessmentResponse
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, "a-2", resp.ID)
			},
		},
		{
			name:           "StartAssessment_MissingOrgHeader",
			method:         http.MethodPost,
			path:           "/api/v1/assessments",
			body:           `{"environment_id":"env-1"}`,
			setupMocks:     func() {},
			expectedStatus: http.StatusBadRequest,
			check: func(t *testing.T, body []byte) {
				var resp api.Error
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, "missing_org", resp.Code)
			},
		},
		{
			name:    "StartAssessment_LimitReached",
			method:  http.MethodPost,
			path:    "/api/v1/assessments",
			body:    `{"environment_id":"env-1"}`,
			headers: map[string]string{"X-Org-ID": orgID},
			setupMocks: func() {
				mockOrch.On("StartAssessment", mock.Anything, identity, mock.Anything).
					Return(domain.Assessment{}, &assessment.AdmissionError{Admission: domain.Admission{
						ReasonCode:   domain.AdmissionReasonLimitReached,
						CurrentUsage: 5,
						MaxAllowed:   5,
					}}).Once()
			},
			expectedStatus: http.StatusPaymentRequired,
			check: func(t *testing.T, body []byte) {
				var resp api.AdmissionError
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, domain.AdmissionReasonLimitReached, resp.Code)
				assert.Equal(t, 5, resp.CurrentUsage)
				assert.Equal(t, 5, resp.MaxAllowed)
			},
		},
		{
			name:    "GetAssessment",
			method:  http.MethodGet,
			path:    "/api/v1/assessments/a-1",
			headers: map[string]string{"X-Org-ID": orgID},
			setupMocks: func() {
				mockOrch.On("GetStatus", mock.Anything, identity, "a-1").
					Return(domain.Assessment{
						ID:        "a-1",
						OrgID:     orgID,
						Status:    domain.AssessmentStatusInProgress,
						CreatedAt: createdAt,
					}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var resp api.Assessment
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, "in_progress", resp.Status)
			},
		},
		{
			name:    "GetAssessment_NotFound",
			method:  http.MethodGet,
			path:    "/api/v1/assessments/a-unknown",
			headers: map[string]string{"X-Org-ID": orgID},
			setupMocks: func() {
				mockOrch.On("GetStatus", mock.Anything, identity, "a-unknown").
					Return(domain.Assessment{}, assessment.ErrNotFound).Once()
			},
			expectedStatus: http.StatusNotFound,
			check: func(t *testing.T, body []byte) {
				var resp api.Error
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, "not_found", resp.Code)
			},
		},
		{
			name:    "GetResult_NotReady",
			method:  http.MethodGet,
			path:    "/api/v1/assessments/a-1/result",
			headers: map[string]string{"X-Org-ID": orgID},
			setupMocks: func() {
				mockOrch.On("GetResult", mock.Anything, identity, "a-1").
					Return(domain.AssessmentResult{}, &assessment.NotReadyError{
						Status: domain.AssessmentStatusInProgress,
					}).Once()
			},
			expectedStatus: http.StatusConflict,
			check: func(t *testing.T, body []byte) {
				var resp api.Error
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, "not_ready", resp.Code)
			},
		},
		{
			name:    "ListFindings",
			method:  http.MethodGet,
			path:    "/api/v1/assessments/a-1/findings?offset=10&limit=2",
			headers: map[string]string{"X-Org-ID": orgID},
			setupMocks: func() {
				mockOrch.On("GetFindings", mock.Anything, identity, "a-1", 10, 2).
					Return([]domain.Finding{{
						ID:           "f-1",
						AssessmentID: "a-1",
						Category:     domain.CategoryTagging,
						Severity:     domain.SeverityHigh,
						Issue:        "missing_required_tag: owner",
					}}, 12, nil).Once()
			},
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var resp api.FindingsPage
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, 12, resp.Total)
				require.Len(t, resp.Findings, 1)
				assert.Equal(t, api.SeverityHigh, resp.Findings[0].Severity)
			},
		},
		{
			name:    "CancelAssessment",
			method:  http.MethodPost,
			path:    "/api/v1/assessments/a-1/cancel",
			headers: map[string]string{"X-Org-ID": orgID},
			setupMocks: func() {
				mockOrch.On("Cancel", mock.Anything, identity, "a-1").Return(nil).Once()
			},
			expectedStatus: http.StatusNoContent,
			check:          func(t *testing.T, body []byte) {},
		},
		{
			name:    "DeleteAssessment_Running",
			method:  http.MethodDelete,
			path:    "/api/v1/assessments/a-1",
			headers: map[string]string{"X-Org-ID": orgID},
			setupMocks: func() {
				mockOrch.On("Delete", mock.Anything, identity, "a-1").
					Return(assessment.ErrAssessmentRunning).Once()
			},
			expectedStatus: http.StatusConflict,
			check: func(t *testing.T, body []byte) {
				var resp api.Error
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, "assessment_running", resp.Code)
			},
		},
		{
			name:    "TestEnvironment",
			method:  http.MethodPost,
			path:    "/api/v1/environments/env-1/test",
			headers: map[string]string{"X-Org-ID": orgID},
			setupMocks: func() {
				mockOrch.On("TestEnvironment", mock.Anything, identity, "env-1").
					Return(domain.AccessStatusInsufficient, nil).Once()
			},
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var resp api.ConnectionTestResponse
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.False(t, resp.OK)
				assert.Equal(t, "insufficient_permission", resp.AccessStatus)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.setupMocks()

			req, err := http.NewRequest(tc.method, testServer.URL+tc.path, strings.NewReader(tc.body))
			require.NoError(t, err, "Failed to build request")
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err, "Failed to send request")
			defer resp.Body.Close()

			assert.Equal(t, tc.expectedStatus, resp.StatusCode, "Status code mismatch")

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err, "Failed to read response body")
			tc.check(t, body)
		})
	}

	mockOrch.AssertExpectations(t)
}
