// Package planner expands pipeline definitions into execution plans.
package planner

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/davidthor/trectl/pkg/engine/expression"
	"github.com/davidthor/trectl/pkg/engine/patch"
	"github.com/davidthor/trectl/pkg/errors"
	"github.com/davidthor/trectl/pkg/pipeline"
	"github.com/davidthor/trectl/pkg/resource"
)

// stepNamespace is the UUIDv5 namespace for deterministic step
// identifiers. Replanning the same lifecycle action for the same
// trigger yields the same ids, so callers can deduplicate dispatches
// across retries.
var stepNamespace = uuid.MustParse("8f3c6d2a-4b1e-4f7a-9c0d-2e5b8a714f69")

// Step is a fully resolved, dispatch-ready pipeline step. No
// placeholder expressions remain.
type Step struct {
	// ID is the deterministic identifier stamped by the planner.
	ID string `json:"id"`

	// StepID is the template-declared step identifier
	// (pipeline.SelfStepID for the self step).
	StepID string `json:"stepId"`

	// Target is the dependent resource the step acts on. Nil means
	// the step acts on the trigger itself.
	Target *resource.Selector `json:"target,omitempty"`

	// Action is the lifecycle action to invoke.
	Action resource.Action `json:"action"`

	// Patches are the resolved property patches to apply to the
	// target before the action is invoked.
	Patches []ResolvedPatch `json:"patches,omitempty"`
}

// IsSelf reports whether the step acts on the triggering resource.
func (s Step) IsSelf() bool {
	return s.Target == nil
}

// ResolvedPatch is a property patch with all expressions resolved.
type ResolvedPatch struct {
	Name         string                `json:"name"`
	Type         pipeline.PropertyType `json:"type"`
	Substitution *patch.Substitution   `json:"substitution,omitempty"`
	Value        interface{}           `json:"value"`
}

// Plan is the ordered, fully expanded list of concrete steps for one
// lifecycle event. Plans serialize cleanly for dry-run and audit
// output, independent of execution.
type Plan struct {
	Action          resource.Action `json:"action"`
	TriggerID       string          `json:"triggerId"`
	TriggerTemplate string          `json:"triggerTemplate"`
	TriggerType     resource.Type   `json:"triggerType"`
	Steps           []Step          `json:"steps"`
}

// Planner expands a pipeline definition for a lifecycle event into an
// execution plan. Planning either wholly succeeds or returns an error
// with no partial state; a single unresolved reference aborts before
// any side effect can occur.
type Planner struct {
	resolver *expression.Resolver
}

// NewPlanner creates a new step planner.
func NewPlanner() *Planner {
	return &Planner{resolver: expression.NewResolver()}
}

// Plan produces the ordered step list for the given lifecycle action.
//
// Ordering is direction-aware and is a hard contract: install and
// upgrade run the self step before dependent steps, because dependents
// reference properties that only exist once the self action completes.
// Uninstall runs dependent steps first and the self step last, so
// dependent state is cleaned up while the trigger's properties still
// exist for expression resolution.
func (p *Planner) Plan(action resource.Action, def *pipeline.Definition, trigger *resource.Instance) (*Plan, error) {
	if !action.IsValid() {
		return nil, errors.MalformedDefinitionError(string(action),
			fmt.Sprintf("unknown lifecycle action %q", action))
	}

	specs, _ := def.Steps(action)

	selfSpec, dependents, err := splitSteps(action, specs)
	if err != nil {
		return nil, err
	}

	ctx, err := expression.NewContext(trigger)
	if err != nil {
		return nil, err
	}

	selfStep := Step{
		ID:     p.stepID(trigger, action, selfSpec.ID),
		StepID: selfSpec.ID,
		Action: action,
	}

	dependentSteps := make([]Step, 0, len(dependents))
	for _, spec := range dependents {
		step, err := p.resolveStep(action, spec, trigger, ctx)
		if err != nil {
			return nil, err
		}
		dependentSteps = append(dependentSteps, step)
	}

	plan := &Plan{
		Action:          action,
		TriggerID:       trigger.ID,
		TriggerTemplate: trigger.TemplateName,
		TriggerType:     trigger.Type,
	}

	switch action {
	case resource.ActionInstall, resource.ActionUpgrade:
		plan.Steps = append(plan.Steps, selfStep)
		plan.Steps = append(plan.Steps, dependentSteps...)
	case resource.ActionUninstall:
		plan.Steps = append(plan.Steps, dependentSteps...)
		plan.Steps = append(plan.Steps, selfStep)
	}

	return plan, nil
}

// splitSteps separates the reserved self step from dependent steps and
// rejects definitions that cannot produce a valid plan.
func splitSteps(action resource.Action, specs []pipeline.StepSpec) (pipeline.StepSpec, []pipeline.StepSpec, error) {
	var self *pipeline.StepSpec
	var dependents []pipeline.StepSpec
	seen := make(map[string]bool)

	for i := range specs {
		spec := specs[i]
		if spec.ID == "" {
			return pipeline.StepSpec{}, nil, errors.MalformedDefinitionError(string(action),
				"pipeline step is missing a stepId")
		}
		if seen[spec.ID] {
			return pipeline.StepSpec{}, nil, errors.MalformedDefinitionError(string(action),
				fmt.Sprintf("duplicate stepId %q", spec.ID))
		}
		seen[spec.ID] = true

		if spec.IsSelf() {
			if self != nil {
				return pipeline.StepSpec{}, nil, errors.MalformedDefinitionError(string(action),
					fmt.Sprintf("more than one %q step", pipeline.SelfStepID))
			}
			if len(spec.Properties) > 0 {
				return pipeline.StepSpec{}, nil, errors.MalformedDefinitionError(string(action),
					fmt.Sprintf("the %q step cannot carry property patches", pipeline.SelfStepID))
			}
			self = &specs[i]
			continue
		}

		if spec.Target == nil || spec.Target.TemplateName == "" || spec.Target.Type == "" {
			return pipeline.StepSpec{}, nil, errors.MalformedDefinitionError(string(action),
				fmt.Sprintf("step %q does not identify a target resource", spec.ID))
		}
		if spec.Action == "" {
			return pipeline.StepSpec{}, nil, errors.MalformedDefinitionError(string(action),
				fmt.Sprintf("step %q does not declare a resource action", spec.ID))
		}
		dependents = append(dependents, spec)
	}

	if self == nil {
		return pipeline.StepSpec{}, nil, errors.MalformedDefinitionError(string(action),
			fmt.Sprintf("pipeline has no %q step", pipeline.SelfStepID))
	}

	return *self, dependents, nil
}

// resolveStep resolves every patch value of a dependent step against
// the trigger. Fail-fast: the first unresolved reference aborts.
func (p *Planner) resolveStep(action resource.Action, spec pipeline.StepSpec, trigger *resource.Instance, ctx *expression.Context) (Step, error) {
	step := Step{
		ID:     p.stepID(trigger, action, spec.ID),
		StepID: spec.ID,
		Target: spec.Target,
		Action: spec.Action,
	}

	for _, prop := range spec.Properties {
		value, err := p.resolver.ResolveValue(prop.Value, ctx)
		if err != nil {
			if e, ok := err.(*errors.Error); ok {
				e.WithDetail("step_id", spec.ID).WithDetail("property", prop.Name)
			}
			return Step{}, err
		}
		step.Patches = append(step.Patches, ResolvedPatch{
			Name:         prop.Name,
			Type:         prop.Type,
			Substitution: prop.Substitution,
			Value:        value,
		})
	}

	return step, nil
}

// stepID derives the deterministic identifier for a planned step.
func (p *Planner) stepID(trigger *resource.Instance, action resource.Action, stepID string) string {
	name := fmt.Sprintf("%s/%s/%s", trigger.ID, action, stepID)
	return uuid.NewSHA1(stepNamespace, []byte(name)).String()
}
