package workflow

// Trigger names the action that moves a step between states
type Trigger string

const (
	TriggerStart    Trigger = "START"
	TriggerComplete Trigger = "COMPLETE"
	TriggerSkip     Trigger = "SKIP"
	TriggerBlock    Trigger = "BLOCK"
	TriggerUnblock  Trigger = "UNBLOCK"
	TriggerResume   Trigger = "RESUME"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
