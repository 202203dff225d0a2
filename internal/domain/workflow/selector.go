package workflow

import (
	"fmt"
	"sort"

	"github.com/garyjia/people-workflow/internal/domain/entity"
)

// Progression policy names
const (
	ProgressionLinear = "linear"
	ProgressionGraph  = "graph"
)

// NextStepSelector picks the step to promote after done reaches a terminal status.
// It returns nil when nothing should be promoted. Implementations never mutate
// their inputs.
type NextStepSelector interface {
	Name() string
	Next(done *entity.InstanceStep, steps []*entity.InstanceStep, edges []*entity.TemplateEdge) *entity.InstanceStep
}

// NewSelector returns the selector for a progression policy name
func NewSelector(name string) (NextStepSelector, error) {
	switch name {
	case "", ProgressionLinear:
		return LinearSelector{}, nil
	case ProgressionGraph:
		return GraphSelector{Fallback: LinearSelector{}}, nil
	default:
		return nil, fmt.Errorf("unknown progression policy %q", name)
	}
}

// LinearSelector walks siblings in order index order. When no pending sibling
// follows done it climbs to the parent and repeats from there.
type LinearSelector struct{}

func (LinearSelector) Name() string { return ProgressionLinear }

func (s LinearSelector) Next(done *entity.InstanceStep, steps []*entity.InstanceStep, _ []*entity.TemplateEdge) *entity.InstanceStep {
	byID := make(map[int64]*entity.InstanceStep, len(steps))
	for _, st := range steps {
		byID[st.ID] = st
	}

	visited := make(map[int64]bool)
	for cur := done; cur != nil; {
		if visited[cur.ID] {
			return nil
		}
		visited[cur.ID] = true

		if next := nextPendingSibling(cur, steps); next != nil {
			return next
		}
		if cur.ParentStepID == nil {
			return nil
		}
		cur = byID[*cur.ParentStepID]
	}
	return nil
}

func nextPendingSibling(cur *entity.InstanceStep, steps []*entity.InstanceStep) *entity.InstanceStep {
	var best *entity.InstanceStep
	for _, st := range steps {
		if st.ID == cur.ID || st.Status != entity.StepStatusPending || !sameParent(st, cur) {
			continue
		}
		if st.OrderIndex <= cur.OrderIndex {
			continue
		}
		if best == nil || st.OrderIndex < best.OrderIndex {
			best = st
		}
	}
	return best
}

// Predecessor returns the nearest finished step ahead of step in sibling
// order, climbing through parents when no earlier sibling has finished.
func Predecessor(step *entity.InstanceStep, steps []*entity.InstanceStep) *entity.InstanceStep {
	byID := make(map[int64]*entity.InstanceStep, len(steps))
	for _, st := range steps {
		byID[st.ID] = st
	}

	visited := make(map[int64]bool)
	for cur := step; cur != nil; {
		if visited[cur.ID] {
			return nil
		}
		visited[cur.ID] = true

		var best *entity.InstanceStep
		for _, st := range steps {
			if st.ID == cur.ID || st.CompletedAt == nil || !sameParent(st, cur) || st.OrderIndex >= cur.OrderIndex {
				continue
			}
			if best == nil || st.OrderIndex > best.OrderIndex {
				best = st
			}
		}
		if best != nil {
			return best
		}
		if cur.ParentStepID == nil {
			return nil
		}
		cur = byID[*cur.ParentStepID]
	}
	return nil
}

func sameParent(a, b *entity.InstanceStep) bool {
	if a.ParentStepID == nil || b.ParentStepID == nil {
		return a.ParentStepID == nil && b.ParentStepID == nil
	}
	return *a.ParentStepID == *b.ParentStepID
}

// GraphSelector follows template edges out of the finished step. A step with
// no outgoing edges is handed to Fallback. Conditional edges need an
// evaluator and never match here.
type GraphSelector struct {
	Fallback NextStepSelector
}

func (GraphSelector) Name() string { return ProgressionGraph }

func (s GraphSelector) Next(done *entity.InstanceStep, steps []*entity.InstanceStep, edges []*entity.TemplateEdge) *entity.InstanceStep {
	outgoing := make([]*entity.TemplateEdge, 0)
	for _, e := range edges {
		if done.TemplateStepID != nil && e.FromStepID == *done.TemplateStepID {
			outgoing = append(outgoing, e)
		}
	}
	if len(outgoing) == 0 {
		if s.Fallback == nil {
			return nil
		}
		return s.Fallback.Next(done, steps, edges)
	}
	sort.Slice(outgoing, func(i, j int) bool { return outgoing[i].ID < outgoing[j].ID })

	byTemplateStep := make(map[int64]*entity.InstanceStep, len(steps))
	for _, st := range steps {
		if st.TemplateStepID != nil {
			byTemplateStep[*st.TemplateStepID] = st
		}
	}

	for _, e := range outgoing {
		if !edgeMatches(e.Condition, done.Status) {
			continue
		}
		if target, ok := byTemplateStep[e.ToStepID]; ok && target.Status == entity.StepStatusPending {
			return target
		}
	}
	return nil
}

// edgeMatches treats a completed step as approved and a skipped one as rejected
func edgeMatches(condition, status string) bool {
	switch condition {
	case "", entity.EdgeAlways:
		return true
	case entity.EdgeIfApproved:
		return status == entity.StepStatusCompleted
	case entity.EdgeIfRejected:
		return status == entity.StepStatusSkipped
	default:
		return false
	}
}
