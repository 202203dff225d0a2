package container

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/people-workflow/internal/application/port"
	"github.com/garyjia/people-workflow/internal/application/workflow"
	"github.com/garyjia/people-workflow/internal/config"
	"github.com/garyjia/people-workflow/internal/domain/entity"
	"github.com/garyjia/people-workflow/internal/domain/event"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 18080, Mode: "test"},
		Database: config.DatabaseConfig{
			Driver: "sqlite3",
			Path:   filepath.Join(t.TempDir(), "container.db"),
		},
		Workflow: config.WorkflowConfig{
			Progression:     "linear",
			TriggerGuardTTL: time.Minute,
		},
		Telemetry: config.TelemetryConfig{ServiceName: "test", SampleRatio: 1},
		Metrics:   config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func startContainer(t *testing.T, cfg *config.Config) *Container {
	t.Helper()
	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNewContainer_Validation(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop())
	assert.Error(t, err)

	cfg := testConfig(t)
	_, err = NewContainer(cfg, nil)
	assert.Error(t, err)

	cfg.Workflow.Progression = "sideways"
	_, err = NewContainer(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestContainer_Lifecycle(t *testing.T) {
	c, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)

	assert.False(t, c.Health(context.Background()).Overall)

	require.NoError(t, c.Start(context.Background()))
	assert.True(t, c.IsReady())
	assert.Error(t, c.Start(context.Background()))

	health := c.Health(context.Background())
	assert.True(t, health.Overall)
	assert.True(t, health.Components["database"].Healthy)
	assert.NotContains(t, health.Components, "redis")

	// no NATS configured
	assert.NoError(t, c.StartSubscriber())

	require.NoError(t, c.Close())
	assert.False(t, c.IsReady())
	assert.Error(t, c.Close())
}

func TestProvideDatabase_MigrationsDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "001_local.sql"), []byte("CREATE TABLE local_marker (id INTEGER);"), 0644))

	cfg := testConfig(t)
	cfg.Database.MigrationsDir = dir
	bundle, err := ProvideDatabase(context.Background(), cfg.Database, zap.NewNop())
	require.NoError(t, err)
	defer bundle.DB.Close()

	var name string
	assert.NoError(t, bundle.DB.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'local_marker'").Scan(&name))
	err = bundle.DB.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'workflow_instances'").Scan(&name)
	assert.Error(t, err)
}

func TestContainer_EndToEnd(t *testing.T) {
	cfg := testConfig(t)
	c := startContainer(t, cfg)
	ctx := context.Background()
	svc := c.Services()

	tpl := &entity.Template{OrgID: "org-1", Name: "Onboarding", Module: entity.ModulePeople, Enabled: true}
	require.NoError(t, svc.Templates.CreateTemplate(ctx, tpl))
	require.NoError(t, svc.Templates.AddStep(ctx, &entity.TemplateStep{
		TemplateID: tpl.ID,
		Name:       "Contract",
		Assignment: entity.AssignmentPolicy{Kind: entity.AssignmentDynamicManager},
	}))
	_, err := svc.Templates.SetStatus(ctx, tpl.ID, entity.TemplateStatusActive)
	require.NoError(t, err)

	_, err = svc.Settings.Save(ctx, &entity.TriggerSettings{
		OrgID: "org-1",
		Rules: []entity.TriggerRule{{Kind: string(event.KindPersonCreated), Enabled: true, TemplateID: tpl.ID}},
	})
	require.NoError(t, err)

	// the manager arrives with the event that starts onboarding
	evt := event.EntityEvent{Type: event.KindPersonCreated, EntityID: "p-1", EntityName: "Ada", OrgID: "org-1", ManagerID: "u-boss"}
	res := svc.Triggers.Handle(ctx, evt)
	require.Empty(t, res.Errors)
	require.Len(t, res.Triggered, 1)
	instanceID := res.Triggered[0].InstanceID

	// the guard suppresses the replay
	replay := svc.Triggers.Handle(ctx, evt)
	assert.Empty(t, replay.Triggered)

	active, err := svc.Instances.ListInstances(ctx, port.InstanceFilter{OrgID: "org-1"})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, instanceID, active[0].ID)

	detail, err := svc.Instances.GetInstance(ctx, instanceID)
	require.NoError(t, err)
	require.Len(t, detail.Steps, 1)
	assert.Equal(t, "u-boss", detail.Steps[0].AssigneeID)

	adv, err := c.Engine().AdvanceStep(ctx, workflow.AdvanceRequest{
		StepID: detail.Steps[0].ID,
		Status: entity.StepStatusCompleted,
	})
	require.NoError(t, err)
	assert.True(t, adv.InstanceCompleted)
}

func TestContainer_HTTPServer(t *testing.T) {
	c := startContainer(t, testConfig(t))

	srv, err := c.HTTPServer()
	require.NoError(t, err)

	for _, path := range []string{"/health", "/metrics"} {
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}
