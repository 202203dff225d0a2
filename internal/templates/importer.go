package templates

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/people-workflow/internal/domain/entity"
)

// TemplateWriter is the part of the template service the importer needs
type TemplateWriter interface {
	CreateTemplate(ctx context.Context, tpl *entity.Template) error
	AddStep(ctx context.Context, step *entity.TemplateStep) error
	AddEdge(ctx context.Context, edge *entity.TemplateEdge) error
	SetStatus(ctx context.Context, id int64, status string) (*entity.Template, error)
}

// Importer creates templates from definitions
type Importer struct {
	writer TemplateWriter
	logger *zap.Logger
}

// NewImporter creates an importer writing through writer
func NewImporter(writer TemplateWriter, logger *zap.Logger) *Importer {
	return &Importer{writer: writer, logger: logger}
}

// Import creates every definition. A non-empty orgID overrides the org of
// each definition. Templates are created as drafts and activated once their
// steps exist.
func (im *Importer) Import(ctx context.Context, defs []Definition, orgID string) ([]*entity.Template, error) {
	created := make([]*entity.Template, 0, len(defs))
	for _, def := range defs {
		tpl, err := im.importOne(ctx, def, orgID)
		if err != nil {
			return created, fmt.Errorf("template %q: %w", def.Name, err)
		}
		created = append(created, tpl)
	}
	return created, nil
}

func (im *Importer) importOne(ctx context.Context, def Definition, orgID string) (*entity.Template, error) {
	if orgID == "" {
		orgID = def.OrgID
	}
	enabled := true
	if def.Enabled != nil {
		enabled = *def.Enabled
	}
	triggerType := def.TriggerType
	if triggerType == "" {
		triggerType = entity.TriggerTypeManual
	}

	tpl := &entity.Template{
		OrgID:          orgID,
		Name:           def.Name,
		Description:    def.Description,
		Module:         def.Module,
		TriggerType:    triggerType,
		Status:         entity.TemplateStatusDraft,
		Enabled:        enabled,
		DefaultOwnerID: def.DefaultOwnerID,
		DefaultDueDays: def.DefaultDueDays,
	}
	if err := im.writer.CreateTemplate(ctx, tpl); err != nil {
		return nil, err
	}

	ids := make(map[string]int64)
	if err := im.addSteps(ctx, tpl.ID, nil, def.Steps, ids); err != nil {
		return nil, err
	}

	for _, e := range def.Edges {
		edge := &entity.TemplateEdge{
			TemplateID:      tpl.ID,
			FromStepID:      ids[e.From],
			ToStepID:        ids[e.To],
			Condition:       e.Condition,
			ConditionConfig: e.Config,
		}
		if err := im.writer.AddEdge(ctx, edge); err != nil {
			return nil, fmt.Errorf("edge %q -> %q: %w", e.From, e.To, err)
		}
	}

	if def.Status != "" && def.Status != entity.TemplateStatusDraft {
		updated, err := im.writer.SetStatus(ctx, tpl.ID, def.Status)
		if err != nil {
			return nil, err
		}
		tpl = updated
	}

	im.logger.Info("Imported template",
		zap.Int64("id", tpl.ID),
		zap.String("name", tpl.Name),
		zap.String("org_id", tpl.OrgID),
		zap.Int("steps", len(ids)),
		zap.Int("edges", len(def.Edges)))
	return tpl, nil
}

func (im *Importer) addSteps(ctx context.Context, templateID int64, parentID *int64, defs []StepDef, ids map[string]int64) error {
	for i, sd := range defs {
		required := true
		if sd.Required != nil {
			required = *sd.Required
		}
		step := &entity.TemplateStep{
			TemplateID:   templateID,
			ParentStepID: parentID,
			OrderIndex:   i,
			Kind:         sd.Kind,
			Name:         sd.Name,
			Description:  sd.Description,
			Assignment: entity.AssignmentPolicy{
				Kind:   sd.Assignment.Kind,
				UserID: sd.Assignment.UserID,
				RoleID: sd.Assignment.RoleID,
			},
			DefaultAssigneeID: sd.DefaultAssigneeID,
			DueOffsetDays:     sd.DueOffsetDays,
			DueAnchor:         sd.DueAnchor,
			Required:          required,
			AttachmentPolicy:  sd.AttachmentPolicy,
		}
		if err := im.writer.AddStep(ctx, step); err != nil {
			return fmt.Errorf("step %q: %w", sd.Name, err)
		}
		ids[sd.Name] = step.ID

		if len(sd.Children) > 0 {
			id := step.ID
			if err := im.addSteps(ctx, templateID, &id, sd.Children, ids); err != nil {
				return err
			}
		}
	}
	return nil
}
