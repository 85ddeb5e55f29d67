package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/eventiq/eventiq/pkg/engine"
	"github.com/eventiq/eventiq/pkg/models"
	"github.com/eventiq/eventiq/pkg/notifier"
	"github.com/eventiq/eventiq/pkg/persistence/file"
	"github.com/eventiq/eventiq/pkg/services"
	"github.com/eventiq/eventiq/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T) (*fiber.App, *services.Template) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := file.NewPersistence(t.TempDir())
	identity := engine.NewStaticIdentityProvider(map[string][]string{
		"bob": {"ops-lead"},
	})

	eng := engine.New(engine.Config{DefaultSLAHours: 72}, store, identity,
		engine.SystemClock(), notifier.NewSlogNotifier(logger), nil, logger)

	templateService := services.NewTemplate(store)
	requestService := services.NewRequest(eng, store)
	backofficeService := services.NewBackoffice(services.BackofficeConfig{}, store, eng)
	validate := validator.New(validator.WithRequiredStructEnabled())

	handlers := web.NewAPIHandlers(templateService, requestService, backofficeService, identity, validate)

	app := fiber.New()

	r := app.Group("/requests")
	r.Get("/", handlers.GetRequests)
	r.Post("/", handlers.SubmitRequest)
	r.Get("/:id", handlers.GetRequest)
	r.Post("/:id/decisions", handlers.DecideRequest)
	r.Post("/:id/resubmit", handlers.ResubmitRequest)
	r.Post("/:id/cancel", handlers.CancelRequest)
	r.Get("/:id/history", handlers.GetRequestHistory)

	tpl := app.Group("/templates")
	tpl.Get("/", handlers.GetTemplates)
	tpl.Post("/", handlers.CreateTemplate)
	tpl.Get("/:id", handlers.GetTemplate)
	tpl.Patch("/:id", handlers.UpdateTemplate)
	tpl.Delete("/:id", handlers.DeleteTemplate)
	tpl.Post("/:id/publish", handlers.PublishTemplate)
	tpl.Post("/groups/:groupId/create-draft", handlers.CreateDraftFromPublished)

	handlers.RegisterBackofficeRoutes(app)
	app.Get("/health", handlers.HealthCheck)

	return app, templateService
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	return resp, data
}

func publishedTemplate(t *testing.T, app *fiber.App) models.WorkflowTemplate {
	t.Helper()

	resp, body := doJSON(t, app, http.MethodPost, "/templates", web.CreateTemplateRequest{
		Name:     "Venue booking",
		Category: "operations",
		SLAHours: 72,
		Levels: []models.ApprovalLevelSpec{
			{Level: 1, RequiredRole: "ops-lead", SLAHours: 24},
		},
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var template models.WorkflowTemplate
	require.NoError(t, json.Unmarshal(body, &template))

	resp, body = doJSON(t, app, http.MethodPost, "/templates/"+template.ID+"/publish", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &template))

	return template
}

func TestCreateTemplateValidation(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	tests := []struct {
		name           string
		requestBody    any
		expectedStatus int
	}{
		{
			name: "successful creation",
			requestBody: web.CreateTemplateRequest{
				Name:     "Expense approval",
				Category: "finance",
				SLAHours: 48,
				Levels: []models.ApprovalLevelSpec{
					{Level: 1, RequiredRole: "manager", SLAHours: 24},
				},
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "missing name",
			requestBody: web.CreateTemplateRequest{
				Category: "finance",
				SLAHours: 48,
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "no levels and no auto-approval rule",
			requestBody: web.CreateTemplateRequest{
				Name:     "Empty chain",
				Category: "finance",
				SLAHours: 48,
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "levels not contiguous",
			requestBody: web.CreateTemplateRequest{
				Name:     "Bad chain",
				Category: "finance",
				SLAHours: 48,
				Levels: []models.ApprovalLevelSpec{
					{Level: 2, RequiredRole: "manager", SLAHours: 24},
				},
			},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doJSON(t, app, http.MethodPost, "/templates", tt.requestBody, nil)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode, string(body))

			if tt.expectedStatus == http.StatusCreated {
				var template models.WorkflowTemplate
				require.NoError(t, json.Unmarshal(body, &template))
				assert.Equal(t, models.TemplateStatusDraft, template.Status)
				assert.NotEmpty(t, template.ID)
				assert.NotEmpty(t, template.TemplateGroupID)
			}
		})
	}
}

func TestPublishedTemplateRejectsEdits(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)
	template := publishedTemplate(t, app)

	resp, body := doJSON(t, app, http.MethodPatch, "/templates/"+template.ID,
		web.UpdateTemplateRequest{Name: "Renamed"}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, string(body))

	resp, body = doJSON(t, app, http.MethodPost,
		"/templates/groups/"+template.TemplateGroupID+"/create-draft", nil, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var draft models.WorkflowTemplate
	require.NoError(t, json.Unmarshal(body, &draft))
	assert.Equal(t, models.TemplateStatusDraft, draft.Status)
	assert.Equal(t, template.TemplateGroupID, draft.TemplateGroupID)
	assert.NotEqual(t, template.ID, draft.ID)
}

func TestSubmitAndReadRequest(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)
	template := publishedTemplate(t, app)

	resp, body := doJSON(t, app, http.MethodPost, "/requests", web.SubmitRequestRequest{
		TemplateID: template.ID,
		Title:      "Book the main hall",
		Priority:   "high",
	}, map[string]string{"X-Actor": "alice"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var request models.WorkflowRequest
	require.NoError(t, json.Unmarshal(body, &request))
	assert.Equal(t, "alice", request.Requester)
	assert.Equal(t, models.RequestStatusInReview, request.Status)
	assert.Regexp(t, `^WF-[0-9A-F]{8}$`, request.ReferenceNumber)

	resp, body = doJSON(t, app, http.MethodGet, "/requests/"+request.ID, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var detail services.RequestDetail
	require.NoError(t, json.Unmarshal(body, &detail))
	assert.Equal(t, request.ID, detail.Request.ID)
	assert.Len(t, detail.Approvals, 1)
	assert.False(t, detail.Overdue)

	resp, body = doJSON(t, app, http.MethodGet, "/requests/?limit=10", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var list struct {
		Requests   []*models.WorkflowRequest `json:"requests"`
		TotalCount int64                     `json:"total_count"`
	}
	require.NoError(t, json.Unmarshal(body, &list))
	assert.EqualValues(t, 1, list.TotalCount)
}

func TestSubmitRequestWithoutActor(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)
	template := publishedTemplate(t, app)

	resp, body := doJSON(t, app, http.MethodPost, "/requests", web.SubmitRequestRequest{
		TemplateID: template.ID,
		Title:      "Book the main hall",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))
}

func TestDecisionFlowOverHTTP(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)
	template := publishedTemplate(t, app)

	resp, body := doJSON(t, app, http.MethodPost, "/requests", web.SubmitRequestRequest{
		TemplateID: template.ID,
		Title:      "Book the main hall",
	}, map[string]string{"X-Actor": "alice"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var request models.WorkflowRequest
	require.NoError(t, json.Unmarshal(body, &request))

	// carol holds no role for level 1
	resp, body = doJSON(t, app, http.MethodPost, "/requests/"+request.ID+"/decisions",
		web.DecideRequestRequest{Level: 1, Decision: "approve"},
		map[string]string{"X-Actor": "carol"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, string(body))

	// roles from the X-Actor-Roles header authorize the caller
	resp, body = doJSON(t, app, http.MethodPost, "/requests/"+request.ID+"/decisions",
		web.DecideRequestRequest{Level: 1, Decision: "approve", Comment: "go ahead"},
		map[string]string{"X-Actor": "dana", "X-Actor-Roles": "ops-lead"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var decided models.WorkflowRequest
	require.NoError(t, json.Unmarshal(body, &decided))
	assert.Equal(t, models.RequestStatusApproved, decided.Status)

	// the request is terminal now, further decisions are conflicts
	resp, body = doJSON(t, app, http.MethodPost, "/requests/"+request.ID+"/decisions",
		web.DecideRequestRequest{Level: 1, Decision: "reject"},
		map[string]string{"X-Actor": "bob"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode, string(body))

	resp, body = doJSON(t, app, http.MethodGet, "/requests/"+request.ID+"/history", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var history struct {
		History []*models.HistoryEvent `json:"history"`
	}
	require.NoError(t, json.Unmarshal(body, &history))
	assert.Len(t, history.History, 2)
}

func TestRequestChangesAndResubmitOverHTTP(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)
	template := publishedTemplate(t, app)

	resp, body := doJSON(t, app, http.MethodPost, "/requests", web.SubmitRequestRequest{
		TemplateID: template.ID,
		Title:      "Book the main hall",
	}, map[string]string{"X-Actor": "alice"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var request models.WorkflowRequest
	require.NoError(t, json.Unmarshal(body, &request))

	resp, body = doJSON(t, app, http.MethodPost, "/requests/"+request.ID+"/decisions",
		web.DecideRequestRequest{Level: 1, Decision: "request_changes", Comment: "need a date"},
		map[string]string{"X-Actor": "bob"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var held models.WorkflowRequest
	require.NoError(t, json.Unmarshal(body, &held))
	assert.Equal(t, models.RequestStatusOnHold, held.Status)

	// only the requester may resubmit
	resp, body = doJSON(t, app, http.MethodPost, "/requests/"+request.ID+"/resubmit",
		nil, map[string]string{"X-Actor": "bob"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, string(body))

	resp, body = doJSON(t, app, http.MethodPost, "/requests/"+request.ID+"/resubmit",
		nil, map[string]string{"X-Actor": "alice"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var resubmitted models.WorkflowRequest
	require.NoError(t, json.Unmarshal(body, &resubmitted))
	assert.Equal(t, models.RequestStatusInReview, resubmitted.Status)
}

func TestCancelRequestOverHTTP(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)
	template := publishedTemplate(t, app)

	resp, body := doJSON(t, app, http.MethodPost, "/requests", web.SubmitRequestRequest{
		TemplateID: template.ID,
		Title:      "Book the main hall",
	}, map[string]string{"X-Actor": "alice"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var request models.WorkflowRequest
	require.NoError(t, json.Unmarshal(body, &request))

	resp, body = doJSON(t, app, http.MethodPost, "/requests/"+request.ID+"/cancel",
		web.CancelRequestRequest{Reason: "venue changed"},
		map[string]string{"X-Actor": "mallory"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, string(body))

	resp, body = doJSON(t, app, http.MethodPost, "/requests/"+request.ID+"/cancel",
		web.CancelRequestRequest{Reason: "venue changed"},
		map[string]string{"X-Actor": "alice"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var cancelled models.WorkflowRequest
	require.NoError(t, json.Unmarshal(body, &cancelled))
	assert.Equal(t, models.RequestStatusCancelled, cancelled.Status)
}

func TestGetUnknownRequest(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	resp, body := doJSON(t, app, http.MethodGet, "/requests/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, string(body))
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	resp, body := doJSON(t, app, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, string(body))
}
