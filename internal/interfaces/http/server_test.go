package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/people-workflow/internal/application/service"
	"github.com/garyjia/people-workflow/internal/application/trigger"
	"github.com/garyjia/people-workflow/internal/application/workflow"
	"github.com/garyjia/people-workflow/internal/domain/entity"
	"github.com/garyjia/people-workflow/internal/domain/event"
	domainwf "github.com/garyjia/people-workflow/internal/domain/workflow"
	"github.com/garyjia/people-workflow/internal/infrastructure/persistence/repository"
	"github.com/garyjia/people-workflow/internal/infrastructure/persistence/sqlstore"
	"github.com/garyjia/people-workflow/internal/templates"
	"github.com/garyjia/people-workflow/pkg/database"
	"github.com/garyjia/people-workflow/pkg/utils"
)

type stubEvents struct {
	got []event.EntityEvent
}

func (s *stubEvents) HandleBatch(_ context.Context, events []event.EntityEvent) trigger.Result {
	s.got = append(s.got, events...)
	res := trigger.Result{Triggered: []trigger.InstanceRef{}, Errors: []string{}}
	for i, e := range events {
		res.Triggered = append(res.Triggered, trigger.InstanceRef{InstanceID: int64(i + 1), EntityType: e.Type.EntityType(), EntityID: e.EntityID})
	}
	return res
}

type observed struct {
	route, status string
}

type recordingObserver struct {
	calls []observed
}

func (o *recordingObserver) ObserveHTTP(_, route, status string, _ time.Duration) {
	o.calls = append(o.calls, observed{route, status})
}

type apiHarness struct {
	server   *Server
	events   *stubEvents
	observer *recordingObserver
}

func newAPI(t *testing.T) *apiHarness {
	t.Helper()
	logger := zap.NewNop()
	kv := utils.NewKVLogger(logger)

	db, err := database.New(database.Config{
		Driver: database.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "api.db"),
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.NewMigrator(db, logger).Up(context.Background()))

	store := sqlstore.NewDB(db, logger)
	tplRepo := repository.NewTemplateRepository(store, logger)
	instRepo := repository.NewInstanceRepository(store, logger)
	stepRepo := repository.NewInstanceStepRepository(store, logger)

	dirRepo := repository.NewDirectoryRepository(store, logger)

	tplSvc := service.NewTemplateService(tplRepo, store, kv)
	engine := workflow.NewEngine(tplSvc, instRepo, stepRepo, dirRepo, store)

	h := &apiHarness{events: &stubEvents{}, observer: &recordingObserver{}}
	h.server = NewServer(ServerConfig{Mode: gin.TestMode}, Services{
		Templates: tplSvc,
		Instances: service.NewInstanceQueryService(instRepo, stepRepo, kv),
		Settings:  service.NewSettingsService(repository.NewSettingsRepository(store, logger), tplRepo, nil, kv),
		Directory: service.NewDirectoryService(dirRepo, kv),
		Engine:    engine,
		Events:    h.events,
		Importer:  templates.NewImporter(tplSvc, logger),
	}, kv, WithMetrics(http.NotFoundHandler(), h.observer))
	return h
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (h *apiHarness) do(t *testing.T, method, path string, body interface{}) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.server.Router().ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec.Code, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

// activeTemplate creates an enabled template with two root steps
func (h *apiHarness) activeTemplate(t *testing.T) entity.Template {
	t.Helper()
	code, env := h.do(t, http.MethodPost, "/api/templates", map[string]interface{}{
		"org_id": "org-1", "name": "Onboarding", "module": "people",
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	tpl := decode[entity.Template](t, env)
	assert.Equal(t, entity.TemplateStatusDraft, tpl.Status)
	assert.True(t, tpl.Enabled)

	for i, name := range []string{"Contract", "Laptop"} {
		code, env = h.do(t, http.MethodPost, fmt.Sprintf("/api/templates/%d/steps", tpl.ID), map[string]interface{}{
			"name": name, "order_index": i, "due_offset_days": 2,
		})
		require.Equal(t, http.StatusCreated, code, env.Error)
	}

	code, env = h.do(t, http.MethodPut, fmt.Sprintf("/api/templates/%d/status", tpl.ID), map[string]string{"status": "active"})
	require.Equal(t, http.StatusOK, code, env.Error)
	return decode[entity.Template](t, env)
}

func (h *apiHarness) instantiate(t *testing.T, tplID int64, entityID string) entity.Instance {
	t.Helper()
	code, env := h.do(t, http.MethodPost, "/api/instances", map[string]interface{}{
		"template_id": tplID, "org_id": "org-1", "entity_type": "person", "entity_id": entityID,
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	return decode[entity.Instance](t, env)
}

func TestHealthCheck(t *testing.T) {
	h := newAPI(t)
	code, env := h.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)
	assert.Equal(t, "healthy", decode[HealthResponse](t, env).Status)
	require.NotEmpty(t, h.observer.calls)
	assert.Equal(t, observed{"/health", "200"}, h.observer.calls[len(h.observer.calls)-1])
}

func TestTemplateRoutes(t *testing.T) {
	h := newAPI(t)
	tpl := h.activeTemplate(t)
	assert.Equal(t, entity.TemplateStatusActive, tpl.Status)

	code, env := h.do(t, http.MethodGet, fmt.Sprintf("/api/templates/%d", tpl.ID), nil)
	require.Equal(t, http.StatusOK, code)
	detail := decode[service.TemplateDetail](t, env)
	require.Len(t, detail.Steps, 2)

	code, env = h.do(t, http.MethodPost, fmt.Sprintf("/api/templates/%d/edges", tpl.ID), map[string]interface{}{
		"from_step_id": detail.Steps[0].ID, "to_step_id": detail.Steps[1].ID,
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	assert.Equal(t, entity.EdgeAlways, decode[entity.TemplateEdge](t, env).Condition)

	code, env = h.do(t, http.MethodGet, "/api/templates?org_id=org-1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]entity.Template](t, env), 1)

	code, env = h.do(t, http.MethodPut, fmt.Sprintf("/api/templates/%d/enabled", tpl.ID), map[string]bool{"enabled": false})
	require.Equal(t, http.StatusOK, code)
	assert.False(t, decode[entity.Template](t, env).Enabled)

	code, _ = h.do(t, http.MethodGet, "/api/templates", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = h.do(t, http.MethodGet, "/api/templates/abc", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestTemplateRoutes_Errors(t *testing.T) {
	h := newAPI(t)
	tpl := h.activeTemplate(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
	}{
		{"missing template", http.MethodGet, "/api/templates/999", nil, http.StatusNotFound},
		{"invalid template", http.MethodPost, "/api/templates", map[string]string{"org_id": "org-1", "module": "people"}, http.StatusUnprocessableEntity},
		{"created active", http.MethodPost, "/api/templates", map[string]string{"org_id": "org-1", "name": "x", "module": "people", "status": "active"}, http.StatusUnprocessableEntity},
		{"backwards status", http.MethodPut, fmt.Sprintf("/api/templates/%d/status", tpl.ID), map[string]string{"status": "draft"}, http.StatusConflict},
		{"duplicate order", http.MethodPost, fmt.Sprintf("/api/templates/%d/steps", tpl.ID), map[string]interface{}{"name": "Again", "order_index": 0}, http.StatusConflict},
		{"malformed body", http.MethodPost, "/api/templates", "{", http.StatusBadRequest},
		{"enabled missing", http.MethodPut, fmt.Sprintf("/api/templates/%d/enabled", tpl.ID), map[string]string{}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := h.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, code)
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Error)
		})
	}

	h.instantiate(t, tpl.ID, "p-1")
	code, _ := h.do(t, http.MethodDelete, fmt.Sprintf("/api/templates/%d", tpl.ID), nil)
	assert.Equal(t, http.StatusConflict, code)
}

func TestImportTemplates(t *testing.T) {
	h := newAPI(t)
	doc := `
templates:
  - name: Offboarding
    module: people
    status: active
    steps:
      - name: Return laptop
`
	code, env := h.do(t, http.MethodPost, "/api/templates/import?org_id=org-9", doc)
	require.Equal(t, http.StatusCreated, code, env.Error)
	created := decode[[]entity.Template](t, env)
	require.Len(t, created, 1)
	assert.Equal(t, "org-9", created[0].OrgID)
	assert.Equal(t, entity.TemplateStatusActive, created[0].Status)

	code, _ = h.do(t, http.MethodPost, "/api/templates/import", "templates:\n  - module: x\n")
	assert.Equal(t, http.StatusUnprocessableEntity, code)
}

func TestInstanceRoutes(t *testing.T) {
	h := newAPI(t)
	tpl := h.activeTemplate(t)
	inst := h.instantiate(t, tpl.ID, "p-1")
	assert.Equal(t, entity.InstanceStatusInProgress, inst.Status)
	assert.Equal(t, 2, inst.TotalSteps)

	code, env := h.do(t, http.MethodGet, "/api/instances?entity_type=person&entity_id=p-1&org_id=org-1", nil)
	require.Equal(t, http.StatusOK, code)
	list := decode[[]InstanceSummary](t, env)
	require.Len(t, list, 1)
	assert.Equal(t, 0.0, list[0].Progress)

	code, env = h.do(t, http.MethodGet, fmt.Sprintf("/api/instances/%d", inst.ID), nil)
	require.Equal(t, http.StatusOK, code)
	detail := decode[service.InstanceDetail](t, env)
	require.Len(t, detail.Steps, 2)
	first := detail.Steps[0]
	assert.Equal(t, entity.StepStatusInProgress, first.Status)
	assert.False(t, first.Overdue)

	code, env = h.do(t, http.MethodPost, fmt.Sprintf("/api/steps/%d/advance", first.ID), map[string]string{
		"status": "completed", "actor_id": "u-1", "notes": "signed",
	})
	require.Equal(t, http.StatusOK, code, env.Error)
	adv := decode[workflow.AdvanceResult](t, env)
	require.NotNil(t, adv.Promoted)
	assert.Equal(t, "Laptop", adv.Promoted.Name)
	assert.Equal(t, 1, adv.Instance.CompletedSteps)

	code, env = h.do(t, http.MethodGet, "/api/instances?org_id=org-1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 50.0, decode[[]InstanceSummary](t, env)[0].Progress)

	code, _ = h.do(t, http.MethodPost, fmt.Sprintf("/api/steps/%d/advance", first.ID), map[string]string{"status": "in_progress"})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = h.do(t, http.MethodPost, fmt.Sprintf("/api/steps/%d/advance", first.ID), map[string]string{"status": "done"})
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, _ = h.do(t, http.MethodPost, "/api/steps/9999/advance", map[string]string{"status": "completed"})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestInstanceAdministration(t *testing.T) {
	h := newAPI(t)
	tpl := h.activeTemplate(t)
	inst := h.instantiate(t, tpl.ID, "p-1")
	base := fmt.Sprintf("/api/instances/%d", inst.ID)

	code, env := h.do(t, http.MethodPost, base+"/hold", map[string]string{"actor_id": "u-1", "reason": "leave"})
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Equal(t, entity.InstanceStatusOnHold, decode[entity.Instance](t, env).Status)

	code, env = h.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, code)
	stepID := decode[service.InstanceDetail](t, env).Steps[0].ID
	code, _ = h.do(t, http.MethodPost, fmt.Sprintf("/api/steps/%d/advance", stepID), map[string]string{"status": "completed"})
	assert.Equal(t, http.StatusConflict, code)

	// body is optional
	code, env = h.do(t, http.MethodPost, base+"/resume", nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Equal(t, entity.InstanceStatusInProgress, decode[entity.Instance](t, env).Status)

	code, _ = h.do(t, http.MethodPost, base+"/resume", nil)
	assert.Equal(t, http.StatusConflict, code)

	code, env = h.do(t, http.MethodPost, base+"/cancel", map[string]string{"reason": "withdrawn"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, entity.InstanceStatusCancelled, decode[entity.Instance](t, env).Status)

	code, _ = h.do(t, http.MethodPost, base+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, code)

	code, env = h.do(t, http.MethodGet, "/api/instances?org_id=org-1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decode[[]InstanceSummary](t, env))

	code, env = h.do(t, http.MethodGet, "/api/instances?org_id=org-1&status=cancelled,completed", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]InstanceSummary](t, env), 1)
}

func TestInstantiate_Rejected(t *testing.T) {
	h := newAPI(t)
	tpl := h.activeTemplate(t)

	tests := []struct {
		name string
		body map[string]interface{}
		want int
	}{
		{"missing entity", map[string]interface{}{"template_id": tpl.ID, "org_id": "org-1", "entity_type": "person"}, http.StatusUnprocessableEntity},
		{"unknown template", map[string]interface{}{"template_id": 999, "org_id": "org-1", "entity_type": "person", "entity_id": "p"}, http.StatusUnprocessableEntity},
		{"other org", map[string]interface{}{"template_id": tpl.ID, "org_id": "org-2", "entity_type": "person", "entity_id": "p"}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := h.do(t, http.MethodPost, "/api/instances", tt.body)
			assert.Equal(t, tt.want, code)
			assert.Contains(t, env.Error, "instantiation rejected")
		})
	}
}

func TestExportProgress(t *testing.T) {
	h := newAPI(t)
	tpl := h.activeTemplate(t)
	h.instantiate(t, tpl.ID, "p-1")

	rec := httptest.NewRecorder()
	h.server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/instances/export?org_id=org-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "workflow-progress-org-1-")
	// xlsx is a zip archive
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))

	code, _ := h.do(t, http.MethodGet, "/api/instances/export", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestIngestEvents(t *testing.T) {
	h := newAPI(t)

	code, env := h.do(t, http.MethodPost, "/api/events", `{"type":"person.created","entity_id":"p-1","org_id":"org-1"}`)
	require.Equal(t, http.StatusOK, code)
	res := decode[trigger.Result](t, env)
	assert.Len(t, res.Triggered, 1)

	code, env = h.do(t, http.MethodPost, "/api/events", `[{"type":"asset.created","entity_id":"a-1","org_id":"org-1"},{"type":"document.created","entity_id":"d-1","org_id":"org-1"}]`)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[trigger.Result](t, env).Triggered, 2)
	assert.Len(t, h.events.got, 3)

	for _, body := range []string{"", "{", "[1,2"} {
		code, _ = h.do(t, http.MethodPost, "/api/events", body)
		assert.Equal(t, http.StatusBadRequest, code, body)
	}
}

func TestSettingsRoutes(t *testing.T) {
	h := newAPI(t)
	tpl := h.activeTemplate(t)

	code, env := h.do(t, http.MethodGet, "/api/orgs/org-1/settings", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decode[entity.TriggerSettings](t, env).Rules)

	code, env = h.do(t, http.MethodPut, "/api/orgs/org-1/settings", map[string]interface{}{
		"rules": []map[string]interface{}{
			{"kind": "person.status_changed", "enabled": true, "template_id": tpl.ID, "on_statuses": []string{"terminated"}},
		},
	})
	require.Equal(t, http.StatusOK, code, env.Error)

	code, env = h.do(t, http.MethodGet, "/api/orgs/org-1/settings", nil)
	require.Equal(t, http.StatusOK, code)
	saved := decode[entity.TriggerSettings](t, env)
	require.Len(t, saved.Rules, 1)
	assert.Equal(t, []string{"terminated"}, saved.Rules[0].OnStatuses)

	code, _ = h.do(t, http.MethodPut, "/api/orgs/org-1/settings", map[string]interface{}{
		"rules": []map[string]interface{}{{"kind": "robot.created", "enabled": true, "template_id": tpl.ID}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
}

func TestDirectoryRoutes_FeedAssigneeResolution(t *testing.T) {
	h := newAPI(t)

	code, env := h.do(t, http.MethodPost, "/api/templates", map[string]interface{}{
		"org_id": "org-1", "name": "Onboarding", "module": "people",
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	tpl := decode[entity.Template](t, env)

	steps := []map[string]interface{}{
		{"name": "Welcome call", "order_index": 0, "assignment": map[string]string{"kind": "dynamic_manager"}},
		{"name": "Laptop", "order_index": 1, "assignment": map[string]string{"kind": "role", "role_id": "it-admin"}, "default_assignee_id": "u-it"},
	}
	for _, st := range steps {
		code, env = h.do(t, http.MethodPost, fmt.Sprintf("/api/templates/%d/steps", tpl.ID), st)
		require.Equal(t, http.StatusCreated, code, env.Error)
	}
	code, env = h.do(t, http.MethodPut, fmt.Sprintf("/api/templates/%d/status", tpl.ID), map[string]string{"status": "active"})
	require.Equal(t, http.StatusOK, code, env.Error)

	code, env = h.do(t, http.MethodPut, "/api/orgs/org-1/directory/people/p-7", map[string]string{
		"display_name": "Grace", "manager_id": "u-boss",
	})
	require.Equal(t, http.StatusOK, code, env.Error)
	code, env = h.do(t, http.MethodPut, "/api/orgs/org-1/directory/roles/it-admin/holders/u-it", nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	code, env = h.do(t, http.MethodPut, "/api/orgs/org-1/directory/roles/it-admin/holders/u-other", nil)
	require.Equal(t, http.StatusOK, code, env.Error)

	code, env = h.do(t, http.MethodGet, "/api/orgs/org-1/directory/roles/it-admin", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{"u-it", "u-other"}, decode[RoleHoldersResponse](t, env).Holders)

	inst := h.instantiate(t, tpl.ID, "p-7")
	code, env = h.do(t, http.MethodGet, fmt.Sprintf("/api/instances/%d", inst.ID), nil)
	require.Equal(t, http.StatusOK, code)
	detail := decode[service.InstanceDetail](t, env)
	require.Len(t, detail.Steps, 2)
	assert.Equal(t, "u-boss", detail.Steps[0].AssigneeID)
	assert.Equal(t, "u-it", detail.Steps[1].AssigneeID)
	assert.Equal(t, []string{"blocked", "completed", "skipped"}, detail.Steps[0].Transitions)

	code, _ = h.do(t, http.MethodDelete, "/api/orgs/org-1/directory/roles/it-admin/holders/u-it", nil)
	assert.Equal(t, http.StatusOK, code)
	code, env = h.do(t, http.MethodGet, "/api/orgs/org-1/directory/roles/it-admin", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{"u-other"}, decode[RoleHoldersResponse](t, env).Holders)

	code, _ = h.do(t, http.MethodPut, "/api/orgs/org-1/directory/people/p-7", map[string]string{"manager_id": "p-7"})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrap: %w", domainwf.ErrInstanceNotFound), http.StatusNotFound},
		{domainwf.ErrInstanceTerminal, http.StatusConflict},
		{domainwf.ErrInstanceOnHold, http.StatusConflict},
		{&workflow.RejectedError{Reason: "x", Err: domainwf.ErrTemplateNotFound}, http.StatusUnprocessableEntity},
		{service.ErrInvalidSettings, http.StatusUnprocessableEntity},
		{service.ErrInvalidDirectoryEntry, http.StatusUnprocessableEntity},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
