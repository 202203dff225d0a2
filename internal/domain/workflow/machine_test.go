package workflow

import (
	"context"
	"errors"
	"testing"
)

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    State
		expected bool
	}{
		{StatePending, false},
		{StateInProgress, false},
		{StateBlocked, false},
		{StateCompleted, true},
		{StateSkipped, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.expected {
				t.Errorf("State.IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		expected bool
	}{
		{"pending", StatePending, true},
		{"blocked", StateBlocked, true},
		{"unknown", State("approved"), false},
		{"empty", State(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.expected {
				t.Errorf("State.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuilder_BuildRejectsUnknownState(t *testing.T) {
	_, err := NewBuilder().Build(State("nope"))
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("Build() error = %v, want ErrInvalidState", err)
	}
}

func TestBuilder_ConfigurePanicsOnInvalidState(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Configure() with invalid state should panic")
		}
	}()
	NewBuilder().Configure(State("nope"))
}

func TestBuilder_PermitConflictingTargetPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Permit() with a second target for the same trigger should panic")
		}
	}()
	NewBuilder().Configure(StatePending).
		Permit(TriggerStart, StateInProgress).
		Permit(TriggerStart, StateBlocked)
}

func TestStepLifecycle_Transitions(t *testing.T) {
	tests := []struct {
		from    State
		to      State
		allowed bool
	}{
		{StatePending, StateInProgress, true},
		{StatePending, StateBlocked, true},
		{StatePending, StateSkipped, true},
		{StatePending, StateCompleted, false},
		{StatePending, StatePending, false},
		{StateInProgress, StateCompleted, true},
		{StateInProgress, StateSkipped, true},
		{StateInProgress, StateBlocked, true},
		{StateInProgress, StatePending, false},
		{StateBlocked, StatePending, true},
		{StateBlocked, StateInProgress, true},
		{StateBlocked, StateCompleted, false},
		{StateCompleted, StateInProgress, false},
		{StateCompleted, StatePending, false},
		{StateSkipped, StateInProgress, false},
		{StateSkipped, StateCompleted, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m, err := NewStepMachine(string(tt.from))
			if err != nil {
				t.Fatalf("NewStepMachine() error = %v", err)
			}

			_, err = m.TransitionTo(context.Background(), tt.to)
			if tt.allowed {
				if err != nil {
					t.Fatalf("TransitionTo() error = %v", err)
				}
				if m.State() != tt.to {
					t.Errorf("State() = %v, want %v", m.State(), tt.to)
				}
				return
			}

			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("TransitionTo() error = %v, want ErrInvalidTransition", err)
			}
			if m.State() != tt.from {
				t.Errorf("State() changed to %v after rejected transition", m.State())
			}
		})
	}
}

func TestStepMachine_TransitionToReturnsTrigger(t *testing.T) {
	m, _ := NewStepMachine(string(StateBlocked))

	trigger, err := m.TransitionTo(context.Background(), StateInProgress)
	if err != nil {
		t.Fatalf("TransitionTo() error = %v", err)
	}
	if trigger != TriggerResume {
		t.Errorf("trigger = %v, want %v", trigger, TriggerResume)
	}
}

func TestStepMachine_TransitionToUnknownTarget(t *testing.T) {
	m, _ := NewStepMachine(string(StatePending))

	_, err := m.TransitionTo(context.Background(), State("done"))
	if !errors.Is(err, ErrInvalidTransition) || !errors.Is(err, ErrInvalidState) {
		t.Errorf("TransitionTo() error = %v, want ErrInvalidTransition and ErrInvalidState", err)
	}
}

func TestStepMachine_Fire(t *testing.T) {
	m, _ := NewStepMachine(string(StatePending))
	ctx := context.Background()

	if !m.CanFire(TriggerStart) {
		t.Fatal("CanFire(START) = false from pending")
	}
	if m.CanFire(TriggerComplete) {
		t.Error("CanFire(COMPLETE) = true from pending")
	}
	if err := m.Fire(ctx, TriggerStart); err != nil {
		t.Fatalf("Fire(START) error = %v", err)
	}
	if err := m.Fire(ctx, TriggerComplete); err != nil {
		t.Fatalf("Fire(COMPLETE) error = %v", err)
	}
	if err := m.Fire(ctx, TriggerStart); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Fire(START) from completed error = %v, want ErrInvalidTransition", err)
	}
}

func TestStepMachine_PermittedTargets(t *testing.T) {
	m, _ := NewStepMachine(string(StateInProgress))

	got := m.PermittedTargets()
	want := []State{StateBlocked, StateCompleted, StateSkipped}
	if len(got) != len(want) {
		t.Fatalf("PermittedTargets() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("PermittedTargets()[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	done, _ := NewStepMachine(string(StateSkipped))
	if len(done.PermittedTargets()) != 0 {
		t.Errorf("terminal state has targets %v", done.PermittedTargets())
	}
}

func TestCanTransition(t *testing.T) {
	if !CanTransition("pending", "skipped") {
		t.Error("CanTransition(pending, skipped) = false")
	}
	if CanTransition("pending", "completed") {
		t.Error("CanTransition(pending, completed) = true")
	}
	if CanTransition("bogus", "pending") {
		t.Error("CanTransition(bogus, pending) = true")
	}
}

func TestAllowedTransitions(t *testing.T) {
	tests := []struct {
		from string
		want []string
	}{
		{"pending", []string{"in_progress", "blocked", "skipped"}},
		{"in_progress", []string{"blocked", "completed", "skipped"}},
		{"blocked", []string{"pending", "in_progress"}},
		{"completed", []string{}},
		{"bogus", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.from, func(t *testing.T) {
			got := AllowedTransitions(tt.from)
			if len(got) != len(tt.want) {
				t.Fatalf("AllowedTransitions(%s) = %v, want %v", tt.from, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("AllowedTransitions(%s) = %v, want %v", tt.from, got, tt.want)
				}
			}
		})
	}
}
