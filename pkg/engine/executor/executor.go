// Package executor runs execution plans against a dispatcher.
package executor

import (
	"context"
	"time"

	"github.com/davidthor/trectl/pkg/dispatch"
	"github.com/davidthor/trectl/pkg/engine/patch"
	"github.com/davidthor/trectl/pkg/engine/planner"
	"github.com/davidthor/trectl/pkg/errors"
	"github.com/davidthor/trectl/pkg/pipeline"
	"github.com/davidthor/trectl/pkg/resource"
)

// Status is the terminal outcome of a pipeline run.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Result reports the outcome of a pipeline run.
//
// A run walks Planned -> Executing(i) -> Completed | Failed(i). A step
// failure halts the remaining steps; already-applied steps are never
// rolled back. Operators retry the same lifecycle action, which is
// safe because planning and patching are idempotent.
type Result struct {
	Status Status `json:"status"`

	// CompletedSteps lists the template-declared step ids that
	// finished, in execution order.
	CompletedSteps []string `json:"completedSteps"`

	// FailedStep and FailedStepIndex identify the halting step when
	// Status is StatusFailed.
	FailedStep      string `json:"failedStep,omitempty"`
	FailedStepIndex int    `json:"failedStepIndex,omitempty"`

	// Cause is the failing step's error.
	Cause error `json:"-"`

	Duration    time.Duration `json:"duration"`
	StepResults []StepResult  `json:"stepResults,omitempty"`
}

// StepResult records one step's execution.
type StepResult struct {
	ID       string        `json:"id"`
	StepID   string        `json:"stepId"`
	Success  bool          `json:"success"`
	Duration time.Duration `json:"duration"`
	Error    error         `json:"-"`
}

// Executor dispatches plan steps strictly in order. Each step blocks
// until the dispatcher reports a terminal outcome; there is no
// parallel dispatch and no retry inside the engine.
type Executor struct {
	dispatcher dispatch.Dispatcher
}

// NewExecutor creates an executor backed by the given dispatcher.
func NewExecutor(dispatcher dispatch.Dispatcher) *Executor {
	return &Executor{dispatcher: dispatcher}
}

// Execute runs the plan. Steps after a failed step are never
// attempted.
func (e *Executor) Execute(ctx context.Context, plan *planner.Plan) *Result {
	startTime := time.Now()

	result := &Result{
		Status:         StatusCompleted,
		CompletedSteps: []string{},
	}

	for i, step := range plan.Steps {
		stepStart := time.Now()
		err := e.executeStep(ctx, plan, step)

		stepResult := StepResult{
			ID:       step.ID,
			StepID:   step.StepID,
			Success:  err == nil,
			Duration: time.Since(stepStart),
			Error:    err,
		}
		result.StepResults = append(result.StepResults, stepResult)

		if err != nil {
			result.Status = StatusFailed
			result.FailedStep = step.StepID
			result.FailedStepIndex = i
			result.Cause = err
			break
		}

		result.CompletedSteps = append(result.CompletedSteps, step.StepID)
	}

	result.Duration = time.Since(startTime)
	return result
}

// executeStep applies the step's patches and invokes its action.
// Array-typed patches are read-then-patch-then-write: the current
// collection is fetched from the dispatcher and patched before the
// update is sent, so unrelated entries added by other triggers are not
// clobbered as long as the dispatcher keeps each Invoke transactional
// per target.
func (e *Executor) executeStep(ctx context.Context, plan *planner.Plan, step planner.Step) error {
	properties := make([]dispatch.PropertyValue, 0, len(step.Patches))

	for _, p := range step.Patches {
		if p.Type == pipeline.PropertyTypeArray && p.Substitution != nil {
			value, err := e.applyArrayPatch(ctx, step, p)
			if err != nil {
				return err
			}
			properties = append(properties, dispatch.PropertyValue{Name: p.Name, Value: value})
			continue
		}
		properties = append(properties, dispatch.PropertyValue{Name: p.Name, Value: p.Value})
	}

	req := dispatch.Request{
		StepID:    step.ID,
		TriggerID: plan.TriggerID,
		Trigger: resource.Selector{
			TemplateName: plan.TriggerTemplate,
			Type:         plan.TriggerType,
		},
		Target:     step.Target,
		Action:     step.Action,
		Properties: properties,
	}

	if _, err := e.dispatcher.Invoke(ctx, req); err != nil {
		if _, ok := err.(*errors.Error); ok {
			return err
		}
		return errors.DispatchError(step.StepID, err)
	}
	return nil
}

func (e *Executor) applyArrayPatch(ctx context.Context, step planner.Step, p planner.ResolvedPatch) ([]interface{}, error) {
	if step.Target == nil {
		return nil, errors.New(errors.ErrCodePatchConflict,
			"array patches require a target resource").
			WithDetail("step_id", step.StepID).
			WithDetail("property", p.Name)
	}

	element, ok := p.Value.(map[string]interface{})
	if !ok {
		return nil, errors.New(errors.ErrCodePatchConflict,
			"array patch value must resolve to an object").
			WithDetail("step_id", step.StepID).
			WithDetail("property", p.Name)
	}

	current, err := e.dispatcher.FetchProperty(ctx, *step.Target, p.Name)
	if err != nil {
		if _, ok := err.(*errors.Error); ok {
			return nil, err
		}
		return nil, errors.DispatchError(step.StepID, err)
	}

	return patch.Apply(current, *p.Substitution, element, p.Name)
}
