package service

import (
	"context"
	"sync"
	"time"

	"github.com/garyjia/people-workflow/internal/application/port"
	"github.com/garyjia/people-workflow/internal/domain/entity"
)

type mockLogger struct{}

func (mockLogger) Info(string, ...interface{})  {}
func (mockLogger) Warn(string, ...interface{})  {}
func (mockLogger) Error(string, ...interface{}) {}

type mockTxManager struct{}

func (mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// fakeTemplateRepo keeps templates, steps and edges in memory
type fakeTemplateRepo struct {
	mu        sync.Mutex
	nextID    int64
	templates map[int64]*entity.Template
	steps     map[int64]*entity.TemplateStep
	edges     []*entity.TemplateEdge
	instances map[int64]int
}

func newFakeTemplateRepo() *fakeTemplateRepo {
	return &fakeTemplateRepo{
		templates: make(map[int64]*entity.Template),
		steps:     make(map[int64]*entity.TemplateStep),
		instances: make(map[int64]int),
	}
}

func (r *fakeTemplateRepo) id() int64 {
	r.nextID++
	return r.nextID
}

func (r *fakeTemplateRepo) Create(_ context.Context, tpl *entity.Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tpl.ID = r.id()
	cp := *tpl
	r.templates[tpl.ID] = &cp
	return nil
}

func (r *fakeTemplateRepo) GetByID(_ context.Context, id int64) (*entity.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tpl, ok := r.templates[id]
	if !ok {
		return nil, nil
	}
	cp := *tpl
	return &cp, nil
}

func (r *fakeTemplateRepo) List(_ context.Context, orgID, module string) ([]*entity.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Template
	for _, tpl := range r.templates {
		if tpl.OrgID == orgID && (module == "" || tpl.Module == module) {
			cp := *tpl
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeTemplateRepo) UpdateStatus(_ context.Context, id int64, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[id].Status = status
	return nil
}

func (r *fakeTemplateRepo) SetEnabled(_ context.Context, id int64, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[id].Enabled = enabled
	return nil
}

func (r *fakeTemplateRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.templates, id)
	return nil
}

func (r *fakeTemplateRepo) CountInstances(_ context.Context, templateID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.instances[templateID], nil
}

func (r *fakeTemplateRepo) CreateStep(_ context.Context, step *entity.TemplateStep) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	step.ID = r.id()
	cp := *step
	r.steps[step.ID] = &cp
	return nil
}

func (r *fakeTemplateRepo) GetStep(_ context.Context, id int64) (*entity.TemplateStep, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.steps[id]
	if !ok {
		return nil, nil
	}
	cp := *st
	return &cp, nil
}

func (r *fakeTemplateRepo) ListSteps(_ context.Context, templateID int64) ([]*entity.TemplateStep, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.TemplateStep
	for _, st := range r.steps {
		if st.TemplateID == templateID {
			cp := *st
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeTemplateRepo) CreateEdge(_ context.Context, edge *entity.TemplateEdge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	edge.ID = r.id()
	r.edges = append(r.edges, edge)
	return nil
}

func (r *fakeTemplateRepo) ListEdges(_ context.Context, templateID int64) ([]*entity.TemplateEdge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.TemplateEdge
	for _, e := range r.edges {
		if e.TemplateID == templateID {
			out = append(out, e)
		}
	}
	return out, nil
}

type mockSettingsRepo struct {
	stored *entity.TriggerSettings
	saved  *entity.TriggerSettings
}

func (m *mockSettingsRepo) Get(_ context.Context, _ string) (*entity.TriggerSettings, error) {
	return m.stored, nil
}

func (m *mockSettingsRepo) Save(_ context.Context, settings *entity.TriggerSettings) error {
	m.saved = settings
	return nil
}

type mockInstanceRepo struct {
	getByIDFunc func(ctx context.Context, id int64) (*entity.Instance, error)
	listFunc    func(ctx context.Context, filter port.InstanceFilter) ([]*entity.Instance, error)
}

func (m *mockInstanceRepo) Create(context.Context, *entity.Instance) error { return nil }

func (m *mockInstanceRepo) GetByID(ctx context.Context, id int64) (*entity.Instance, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockInstanceRepo) GetForUpdate(ctx context.Context, id int64) (*entity.Instance, error) {
	return m.GetByID(ctx, id)
}

func (m *mockInstanceRepo) UpdateStatus(context.Context, int64, string, *time.Time) error { return nil }
func (m *mockInstanceRepo) UpdateProgress(context.Context, int64, int) error             { return nil }

func (m *mockInstanceRepo) List(ctx context.Context, filter port.InstanceFilter) ([]*entity.Instance, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, filter)
	}
	return nil, nil
}

type mockStepRepo struct {
	steps map[int64][]*entity.InstanceStep
}

func (m *mockStepRepo) Create(context.Context, *entity.InstanceStep) error { return nil }
func (m *mockStepRepo) GetByID(context.Context, int64) (*entity.InstanceStep, error) {
	return nil, nil
}
func (m *mockStepRepo) ListByInstance(_ context.Context, instanceID int64) ([]*entity.InstanceStep, error) {
	return m.steps[instanceID], nil
}
func (m *mockStepRepo) Update(context.Context, *entity.InstanceStep) error { return nil }
func (m *mockStepRepo) CountTerminal(context.Context, int64) (int, error)  { return 0, nil }

var (
	_ port.TemplateRepository     = (*fakeTemplateRepo)(nil)
	_ port.SettingsRepository     = (*mockSettingsRepo)(nil)
	_ port.InstanceRepository     = (*mockInstanceRepo)(nil)
	_ port.InstanceStepRepository = (*mockStepRepo)(nil)
)
