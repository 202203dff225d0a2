package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/people-workflow/internal/application/port"
)

// Notifier tells assignees over Lark IM that a step is waiting for them
type Notifier struct {
	sender        MessageSender
	receiveIDType string
	logger        *zap.Logger
}

// NewNotifier creates a Notifier. Assignee ids are sent as receiveIDType,
// user_id when empty.
func NewNotifier(sender MessageSender, receiveIDType string, logger *zap.Logger) *Notifier {
	if receiveIDType == "" {
		receiveIDType = ReceiveIDUserID
	}
	return &Notifier{
		sender:        sender,
		receiveIDType: receiveIDType,
		logger:        logger,
	}
}

// NotifyStepStarted sends a text message to the step's assignee
func (n *Notifier) NotifyStepStarted(ctx context.Context, note port.StepNotification) error {
	if note.AssigneeID == "" {
		return fmt.Errorf("assignee cannot be empty")
	}

	content, err := json.Marshal(map[string]string{"text": stepText(note)})
	if err != nil {
		return fmt.Errorf("failed to build message: %w", err)
	}

	messageID, err := n.sender.SendMessage(ctx, n.receiveIDType, note.AssigneeID, "text", string(content))
	if err != nil {
		return err
	}

	n.logger.Info("Step notification sent",
		zap.Int64("instance_id", note.InstanceID),
		zap.Int64("step_id", note.StepID),
		zap.String("assignee_id", note.AssigneeID),
		zap.String("message_id", messageID))
	return nil
}

func stepText(note port.StepNotification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New task: %s", note.StepName)
	if note.InstanceName != "" {
		fmt.Fprintf(&b, "\nWorkflow: %s", note.InstanceName)
	}
	if note.DueAt != nil {
		fmt.Fprintf(&b, "\nDue: %s", note.DueAt.Format("2006-01-02"))
	}
	return b.String()
}

var _ port.Notifier = (*Notifier)(nil)
