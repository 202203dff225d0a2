package messaging

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/people-workflow/internal/application/trigger"
	"github.com/garyjia/people-workflow/internal/domain/event"
)

type recordingHandler struct {
	batches [][]event.EntityEvent
	result  trigger.Result
}

func (h *recordingHandler) HandleBatch(_ context.Context, events []event.EntityEvent) trigger.Result {
	h.batches = append(h.batches, events)
	return h.result
}

func newTestSubscriber(h EventHandler) *Subscriber {
	return NewSubscriber(nil, h, "", zap.NewNop())
}

func TestSubscriber_Process(t *testing.T) {
	tests := []struct {
		name      string
		data      string
		wantErr   bool
		wantCount int
	}{
		{
			name:      "single event",
			data:      `{"type":"person.created","entity_id":"p1","org_id":"org1"}`,
			wantCount: 1,
		},
		{
			name:      "batch",
			data:      ` [{"type":"person.created","entity_id":"p1","org_id":"org1"},{"type":"asset.created","entity_id":"a1","org_id":"org1"}]`,
			wantCount: 2,
		},
		{name: "empty body", data: "   ", wantErr: true},
		{name: "malformed object", data: `{"type":`, wantErr: true},
		{name: "malformed batch", data: `[{"type":1}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &recordingHandler{result: trigger.Result{Triggered: []trigger.InstanceRef{}, Errors: []string{}}}
			s := newTestSubscriber(h)

			_, err := s.process(context.Background(), []byte(tt.data))
			if tt.wantErr {
				assert.Error(t, err)
				assert.Empty(t, h.batches)
				return
			}
			require.NoError(t, err)
			require.Len(t, h.batches, 1)
			assert.Len(t, h.batches[0], tt.wantCount)
		})
	}
}

func TestSubscriber_ProcessDecodesFields(t *testing.T) {
	h := &recordingHandler{result: trigger.Result{
		Triggered: []trigger.InstanceRef{{InstanceID: 7, TemplateID: 3, EntityType: "person", EntityID: "p1"}},
		Errors:    []string{},
	}}
	s := newTestSubscriber(h)

	data := `{"type":"person.status_changed","entity_id":"p1","entity_name":"Ada","previous_status":"candidate","new_status":"hired","org_id":"org1","triggered_by_user_id":"u9","manager_id":"u-boss"}`
	res, err := s.process(context.Background(), []byte(data))
	require.NoError(t, err)

	got := h.batches[0][0]
	assert.Equal(t, event.KindPersonStatusChanged, got.Type)
	assert.Equal(t, "Ada", got.EntityName)
	assert.Equal(t, "candidate", got.PreviousStatus)
	assert.Equal(t, "hired", got.NewStatus)
	assert.Equal(t, "u9", got.TriggeredByUserID)
	assert.Equal(t, "u-boss", got.ManagerID)
	assert.Equal(t, int64(7), res.Triggered[0].InstanceID)
}

func TestSubjects(t *testing.T) {
	assert.Equal(t, "workflow.lifecycle.step.started", LifecycleSubject(event.TypeStepStarted))
	assert.Equal(t, "workflow.events.asset.created", EventSubject(event.KindAssetCreated))
}

// Runs against a live server when NATS_URL is set
func TestRoundTrip_LiveServer(t *testing.T) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set")
	}

	nc, err := Connect(Config{URL: url, Timeout: 2 * time.Second}, zap.NewNop())
	require.NoError(t, err)
	defer nc.Close()

	h := &recordingHandler{result: trigger.Result{
		Triggered: []trigger.InstanceRef{{InstanceID: 1}},
		Errors:    []string{},
	}}
	sub := NewSubscriber(nc, h, "test-"+time.Now().Format("150405.000"), zap.NewNop())
	require.NoError(t, sub.Start())
	defer sub.Stop()

	msg, err := nc.Request(EventSubject(event.KindPersonCreated),
		[]byte(`{"type":"person.created","entity_id":"p1","org_id":"org1"}`), 2*time.Second)
	require.NoError(t, err)

	var res trigger.Result
	require.NoError(t, json.Unmarshal(msg.Data, &res))
	assert.Len(t, res.Triggered, 1)

	lifecycle := make(chan *nats.Msg, 1)
	ls, err := nc.ChanSubscribe(LifecycleSubjectPrefix+">", lifecycle)
	require.NoError(t, err)
	defer ls.Unsubscribe()

	pub := NewPublisher(nc)
	require.NoError(t, pub.Publish(context.Background(), event.NewEvent(event.TypeInstanceCreated, "org1", 1, nil)))

	select {
	case m := <-lifecycle:
		assert.Equal(t, "workflow.lifecycle.instance.created", m.Subject)
	case <-time.After(2 * time.Second):
		t.Fatal("lifecycle event not received")
	}
}
