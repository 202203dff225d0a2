package event

// Type identifies a lifecycle event emitted by the engine
type Type string

const (
	TypeInstanceCreated   Type = "instance.created"
	TypeInstanceCompleted Type = "instance.completed"
	TypeInstanceCancelled Type = "instance.cancelled"
	TypeInstanceOnHold    Type = "instance.on_hold"
	TypeInstanceResumed   Type = "instance.resumed"
	TypeStepStarted       Type = "step.started"
	TypeStepAdvanced      Type = "step.advanced"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeInstanceCreated,
		TypeInstanceCompleted,
		TypeInstanceCancelled,
		TypeInstanceOnHold,
		TypeInstanceResumed,
		TypeStepStarted,
		TypeStepAdvanced:
		return true
	default:
		return false
	}
}
