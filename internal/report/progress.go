// Package report renders workflow progress as spreadsheets.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/garyjia/people-workflow/internal/domain/duedate"
	"github.com/garyjia/people-workflow/internal/domain/entity"
)

const (
	SheetInstances = "Instances"
	SheetSteps     = "Steps"

	// MaxRows caps the instances exported in one workbook
	MaxRows = 5000

	dateLayout = "2006-01-02"
)

var (
	instanceHeader = []interface{}{"Instance ID", "Name", "Template ID", "Entity Type", "Entity ID", "Entity Name",
		"Status", "Owner", "Started", "Due", "Completed", "Steps Done", "Steps Total", "Progress %", "Overdue Steps"}
	stepHeader = []interface{}{"Instance ID", "Step ID", "Parent Step ID", "Order", "Name", "Kind",
		"Status", "Assignee", "Due", "Started", "Completed", "Completed By", "Overdue"}
)

// InstanceRow is one instance with its steps
type InstanceRow struct {
	Instance *entity.Instance
	Steps    []*entity.InstanceStep
}

// WriteProgress writes a workbook with an instance summary sheet and a step
// detail sheet. Overdue flags are evaluated at now.
func WriteProgress(w io.Writer, rows []InstanceRow, now time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetInstances); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetSteps); err != nil {
		return fmt.Errorf("failed to add sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	if err := writeHeader(f, SheetInstances, instanceHeader, bold); err != nil {
		return err
	}
	if err := writeHeader(f, SheetSteps, stepHeader, bold); err != nil {
		return err
	}

	stepRow := 2
	for i, row := range rows {
		inst := row.Instance
		overdue := 0
		for _, st := range row.Steps {
			late := duedate.IsOverdue(st.DueAt, st.Status, now)
			if late {
				overdue++
			}
			values := []interface{}{inst.ID, st.ID, idOrBlank(st.ParentStepID), st.OrderIndex, st.Name, st.Kind,
				st.Status, st.AssigneeID, date(st.DueAt), date(st.StartedAt), date(st.CompletedAt), st.CompletedByID, yesNo(late)}
			if err := setRow(f, SheetSteps, stepRow, values); err != nil {
				return err
			}
			stepRow++
		}

		started := inst.StartedAt
		values := []interface{}{inst.ID, inst.Name, inst.TemplateID, inst.EntityType, inst.EntityID, inst.EntityName,
			inst.Status, inst.OwnerID, date(&started), date(inst.DueAt), date(inst.CompletedAt),
			inst.CompletedSteps, inst.TotalSteps, inst.Progress(), overdue}
		if err := setRow(f, SheetInstances, i+2, values); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeHeader(f *excelize.File, sheet string, header []interface{}, style int) error {
	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, style)
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func date(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

func idOrBlank(id *int64) interface{} {
	if id == nil {
		return ""
	}
	return *id
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
