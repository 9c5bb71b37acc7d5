// Package pipeline defines the engine-facing model of a template's
// pipeline block: the orchestration steps that run against other,
// already-deployed resources when a resource of the template's type
// changes lifecycle state.
package pipeline

import (
	"github.com/davidthor/trectl/pkg/engine/patch"
	"github.com/davidthor/trectl/pkg/resource"
)

// SelfStepID is the reserved step marker meaning "act on the
// triggering resource itself". Self steps carry no target selector and
// no property patches.
const SelfStepID = "main"

// Definition holds the ordered steps for each lifecycle action.
type Definition struct {
	Install   []StepSpec `json:"install,omitempty"`
	Upgrade   []StepSpec `json:"upgrade,omitempty"`
	Uninstall []StepSpec `json:"uninstall,omitempty"`
}

// Steps returns the step list for a lifecycle action. The second
// return value is false for unknown actions.
func (d *Definition) Steps(action resource.Action) ([]StepSpec, bool) {
	switch action {
	case resource.ActionInstall:
		return d.Install, true
	case resource.ActionUpgrade:
		return d.Upgrade, true
	case resource.ActionUninstall:
		return d.Uninstall, true
	}
	return nil, false
}

// StepSpec is a single pipeline step as declared in a template.
type StepSpec struct {
	// ID is the template-declared step identifier. The reserved value
	// SelfStepID marks the step that acts on the trigger itself.
	ID string `json:"stepId"`

	// Target selects the dependent resource the step acts on. Nil for
	// the self step.
	Target *resource.Selector `json:"target,omitempty"`

	// Action is the lifecycle action to invoke on the target.
	Action resource.Action `json:"resourceAction,omitempty"`

	// Properties are the patches to apply to the target's properties
	// before the action is invoked.
	Properties []PropertyPatch `json:"properties,omitempty"`
}

// IsSelf reports whether the step acts on the triggering resource.
func (s StepSpec) IsSelf() bool {
	return s.ID == SelfStepID
}

// PropertyType declares how a patched property is valued.
type PropertyType string

const (
	PropertyTypeString PropertyType = "string"
	PropertyTypeArray  PropertyType = "array"
)

// PropertyPatch describes one property mutation carried by a step.
// Value is a template: strings may embed {{ resource.* }} placeholder
// expressions resolved against the trigger at plan time.
type PropertyPatch struct {
	Name string       `json:"name"`
	Type PropertyType `json:"type"`

	// Substitution is set for array-typed properties only.
	Substitution *patch.Substitution `json:"substitution,omitempty"`

	// Value is the element to insert/replace, or, for remove, the
	// fields needed to compute the match key.
	Value interface{} `json:"value"`
}
