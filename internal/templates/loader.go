// Package templates loads workflow template definitions from YAML and
// creates them through the template service.
package templates

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidDefinition is returned for a YAML document that cannot describe
// a template
var ErrInvalidDefinition = errors.New("invalid template definition")

// File is the top-level YAML document
type File struct {
	Templates []Definition `yaml:"templates"`
}

// Definition describes one template with its step tree and edges
type Definition struct {
	Name           string    `yaml:"name"`
	OrgID          string    `yaml:"org_id"`
	Description    string    `yaml:"description"`
	Module         string    `yaml:"module"`
	TriggerType    string    `yaml:"trigger_type"`
	Status         string    `yaml:"status"`
	Enabled        *bool     `yaml:"enabled"`
	DefaultOwnerID string    `yaml:"default_owner_id"`
	DefaultDueDays *int      `yaml:"default_due_days"`
	Steps          []StepDef `yaml:"steps"`
	Edges          []EdgeDef `yaml:"edges"`
}

// StepDef is a step with its nested children. Steps are referenced by name
// in edges, so names are unique within a template.
type StepDef struct {
	Name              string        `yaml:"name"`
	Kind              string        `yaml:"kind"`
	Description       string        `yaml:"description"`
	Assignment        AssignmentDef `yaml:"assignment"`
	DefaultAssigneeID string        `yaml:"default_assignee_id"`
	DueOffsetDays     *int          `yaml:"due_offset_days"`
	DueAnchor         string        `yaml:"due_anchor"`
	Required          *bool         `yaml:"required"`
	AttachmentPolicy  string        `yaml:"attachment_policy"`
	Children          []StepDef     `yaml:"children"`
}

// AssignmentDef mirrors the assignment policy of a step
type AssignmentDef struct {
	Kind   string `yaml:"kind"`
	UserID string `yaml:"user_id"`
	RoleID string `yaml:"role_id"`
}

// EdgeDef connects two steps by name
type EdgeDef struct {
	From      string `yaml:"from"`
	To        string `yaml:"to"`
	Condition string `yaml:"condition"`
	Config    string `yaml:"config"`
}

// Load decodes and checks a YAML document
func Load(r io.Reader) ([]Definition, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	for i := range f.Templates {
		if err := f.Templates[i].check(); err != nil {
			return nil, err
		}
	}
	return f.Templates, nil
}

// LoadFile reads definitions from a YAML file
func LoadFile(path string) ([]Definition, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open template file: %w", err)
	}
	defer file.Close()

	defs, err := Load(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return defs, nil
}

func (d *Definition) check() error {
	if d.Name == "" {
		return fmt.Errorf("%w: template without name", ErrInvalidDefinition)
	}
	names := make(map[string]bool)
	var walk func(steps []StepDef) error
	walk = func(steps []StepDef) error {
		for _, s := range steps {
			if s.Name == "" {
				return fmt.Errorf("%w: %s: step without name", ErrInvalidDefinition, d.Name)
			}
			if names[s.Name] {
				return fmt.Errorf("%w: %s: duplicate step name %q", ErrInvalidDefinition, d.Name, s.Name)
			}
			names[s.Name] = true
			if err := walk(s.Children); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(d.Steps); err != nil {
		return err
	}
	for _, e := range d.Edges {
		if !names[e.From] || !names[e.To] {
			return fmt.Errorf("%w: %s: edge %q -> %q references an unknown step", ErrInvalidDefinition, d.Name, e.From, e.To)
		}
	}
	return nil
}
