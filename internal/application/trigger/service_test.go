package trigger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/people-workflow/internal/domain/entity"
	"github.com/garyjia/people-workflow/internal/domain/event"
)

type mockSettingsSource struct {
	calls    map[string]int
	settings map[string]*entity.TriggerSettings
	err      error
}

func (m *mockSettingsSource) Get(_ context.Context, orgID string) (*entity.TriggerSettings, error) {
	m.calls[orgID]++
	if m.err != nil {
		return nil, m.err
	}
	return m.settings[orgID], nil
}

func TestService_LoadsSettingsPerOrganization(t *testing.T) {
	source := &mockSettingsSource{
		calls:    make(map[string]int),
		settings: map[string]*entity.TriggerSettings{"org-1": onboardingSettings()},
	}
	svc := NewService(NewProcessor(&mockEngine{}), source, nopLogger{})

	other := personCreated("p-9")
	other.OrgID = "org-2"

	res := svc.HandleBatch(context.Background(), []event.EntityEvent{
		personCreated("p-1"),
		personCreated("p-2"),
		other,
	})

	assert.Len(t, res.Triggered, 2, "org-2 has no rules")
	assert.Empty(t, res.Errors)
	assert.Equal(t, 1, source.calls["org-1"])
	assert.Equal(t, 1, source.calls["org-2"])
}

func TestService_SettingsFailure(t *testing.T) {
	source := &mockSettingsSource{calls: make(map[string]int), err: errors.New("db down")}
	svc := NewService(NewProcessor(&mockEngine{}), source, nopLogger{})

	res := svc.Handle(context.Background(), personCreated("p-1"))
	assert.Empty(t, res.Triggered)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "db down")
}

type mockDirectorySync struct {
	engine *mockEngine
	synced []string
	// instantiations already made when each sync ran
	seenRequests []int
	err          error
}

func (m *mockDirectorySync) SyncFromEvent(_ context.Context, evt event.EntityEvent) error {
	m.engine.mu.Lock()
	m.seenRequests = append(m.seenRequests, len(m.engine.requests))
	m.engine.mu.Unlock()
	m.synced = append(m.synced, evt.EntityID)
	return m.err
}

func TestService_SyncsDirectoryBeforeInstantiating(t *testing.T) {
	engine := &mockEngine{}
	dir := &mockDirectorySync{engine: engine}
	source := &mockSettingsSource{
		calls:    make(map[string]int),
		settings: map[string]*entity.TriggerSettings{"org-1": onboardingSettings()},
	}
	svc := NewService(NewProcessor(engine), source, nopLogger{}, WithDirectorySync(dir))

	invalid := personCreated("")
	res := svc.HandleBatch(context.Background(), []event.EntityEvent{personCreated("p-1"), invalid, personCreated("p-2")})

	assert.Len(t, res.Triggered, 2)
	assert.Equal(t, []string{"p-1", "p-2"}, dir.synced, "invalid events are not synced")
	assert.Equal(t, []int{0, 1}, dir.seenRequests)
}

func TestService_DirectorySyncFailureDoesNotBlock(t *testing.T) {
	engine := &mockEngine{}
	dir := &mockDirectorySync{engine: engine, err: errors.New("directory down")}
	source := &mockSettingsSource{
		calls:    make(map[string]int),
		settings: map[string]*entity.TriggerSettings{"org-1": onboardingSettings()},
	}
	svc := NewService(NewProcessor(engine), source, nopLogger{}, WithDirectorySync(dir))

	res := svc.Handle(context.Background(), personCreated("p-1"))
	assert.Len(t, res.Triggered, 1)
	assert.Empty(t, res.Errors)
}
