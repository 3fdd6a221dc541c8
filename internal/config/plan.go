package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/FingerLiu/django-supertube/internal/tube"
	"github.com/FingerLiu/django-supertube/pkg/typeconv"
)

// Plan is the JSON migration plan: an ordered list of tube definitions run
// as one set.
type Plan struct {
	Name string `json:"name,omitempty"`
	// StopOnError halts the whole set when a tube reports any failure.
	StopOnError bool       `json:"stop_on_error"`
	Tubes       []TubePlan `json:"tubes"`
}

// TubePlan defines one source-to-target migration.
type TubePlan struct {
	Name        string          `json:"name"`
	Source      SourcePlan      `json:"source"`
	Target      TargetPlan      `json:"target"`
	Mapping     []FieldRulePlan `json:"mapping,omitempty"`
	Defaults    map[string]any  `json:"defaults,omitempty"`
	AutoMap     bool            `json:"auto_map"`
	StopOnError bool            `json:"stop_on_error"`
	BatchSize   int             `json:"batch_size,omitempty"`
	IdentityKey string          `json:"identity_key,omitempty"`
}

// SourcePlan names the source table, its ordering key and an optional
// equality filter on the rows to migrate.
type SourcePlan struct {
	Table  string         `json:"table"`
	Key    string         `json:"key"`
	Filter map[string]any `json:"filter,omitempty"`
}

// TargetPlan names the target entity. Fields must be declared when the
// target store cannot describe the entity itself (MongoDB); for SQL targets
// they may be omitted and are introspected instead.
type TargetPlan struct {
	Entity string          `json:"entity"`
	Fields []tube.FieldDef `json:"fields,omitempty"`
	// ResetSequence names the serial column whose Postgres sequence should
	// be realigned after the whole set finishes. Empty disables the reset.
	ResetSequence string `json:"reset_sequence,omitempty"`
}

// FieldRulePlan is the JSON form of one field rule. Exactly one of From,
// Value and Func must be set. Type optionally coerces Value ("datetime",
// "int").
type FieldRulePlan struct {
	Field string `json:"field"`
	From  string `json:"from,omitempty"`
	Value any    `json:"value,omitempty"`
	Func  string `json:"func,omitempty"`
	Type  string `json:"type,omitempty"`
}

// Rule converts the plan entry into an engine rule. Func names resolve
// through the tube function registry.
func (p FieldRulePlan) Rule() (tube.Rule, error) {
	variants := 0
	if p.From != "" {
		variants++
	}
	if p.Func != "" {
		variants++
	}
	if p.Value != nil {
		variants++
	}
	if variants != 1 {
		return tube.Rule{}, fmt.Errorf("field %q: exactly one of from, value and func must be set", p.Field)
	}

	switch {
	case p.From != "":
		return tube.From(p.From), nil
	case p.Func != "":
		fn, ok := tube.LookupFunc(p.Func)
		if !ok {
			return tube.Rule{}, fmt.Errorf("field %q: no computed function registered as %q", p.Field, p.Func)
		}
		return tube.Compute(fn), nil
	default:
		v, err := coerceValue(p.Value, p.Type)
		if err != nil {
			return tube.Rule{}, fmt.Errorf("field %q: %w", p.Field, err)
		}
		return tube.Value(v), nil
	}
}

// ToMapping converts all of the plan's field rules into an engine mapping.
func (p TubePlan) ToMapping() (tube.Mapping, error) {
	var mapping tube.Mapping
	for _, fp := range p.Mapping {
		if fp.Field == "" {
			return nil, fmt.Errorf("tube %q: mapping entry missing field name", p.Name)
		}
		rule, err := fp.Rule()
		if err != nil {
			return nil, fmt.Errorf("tube %q: %w", p.Name, err)
		}
		mapping = append(mapping, tube.MappingEntry{Field: fp.Field, Rule: rule})
	}
	return mapping, nil
}

func coerceValue(v any, typ string) (any, error) {
	switch typ {
	case "":
		return v, nil
	case "datetime":
		return typeconv.ToTime(v)
	case "int":
		return typeconv.ToInt(v)
	default:
		return nil, fmt.Errorf("unsupported value type %q", typ)
	}
}

// LoadPlan reads and parses a migration plan file.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file '%s': %w", path, err)
	}

	var plan Plan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("failed to parse plan file '%s': %w", path, err)
	}
	if len(plan.Tubes) == 0 {
		return nil, fmt.Errorf("plan file '%s' defines no tubes", path)
	}
	for _, tp := range plan.Tubes {
		if tp.Name == "" || tp.Source.Table == "" || tp.Source.Key == "" || tp.Target.Entity == "" {
			return nil, fmt.Errorf("plan file '%s': every tube needs name, source.table, source.key and target.entity", path)
		}
	}
	return &plan, nil
}
