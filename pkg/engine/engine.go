// Package engine provides the core orchestration for trectl pipeline
// runs: load a template, expand its pipeline into a plan, and drive
// the plan against a dispatcher.
package engine

import (
	"context"

	"github.com/davidthor/trectl/pkg/dispatch"
	"github.com/davidthor/trectl/pkg/engine/executor"
	"github.com/davidthor/trectl/pkg/engine/planner"
	"github.com/davidthor/trectl/pkg/errors"
	"github.com/davidthor/trectl/pkg/resource"
	"github.com/davidthor/trectl/pkg/schema/template"
)

// Engine orchestrates pipeline runs.
type Engine struct {
	loader     *template.Loader
	planner    *planner.Planner
	dispatcher dispatch.Dispatcher
}

// NewEngine creates an engine backed by the given dispatcher.
func NewEngine(dispatcher dispatch.Dispatcher) *Engine {
	return &Engine{
		loader:     template.NewLoader(),
		planner:    planner.NewPlanner(),
		dispatcher: dispatcher,
	}
}

// RunOptions configures a pipeline run.
type RunOptions struct {
	// TemplatePath points at a single template document. Takes
	// precedence over CatalogDir + TemplateName.
	TemplatePath string

	// CatalogDir and TemplateName select a template from a catalog
	// directory.
	CatalogDir   string
	TemplateName string

	// Action is the lifecycle action that triggered the run.
	Action resource.Action

	// Trigger is the snapshot of the triggering resource.
	Trigger *resource.Instance

	// DryRun stops after planning.
	DryRun bool
}

// RunResult contains the results of a pipeline run.
type RunResult struct {
	Plan      *planner.Plan
	Execution *executor.Result
}

// Plan loads the template and expands its pipeline for the lifecycle
// action. No dispatch occurs; the plan is suitable for audit output.
func (e *Engine) Plan(opts RunOptions) (*planner.Plan, error) {
	tmpl, err := e.loadTemplate(opts)
	if err != nil {
		return nil, err
	}
	return e.planner.Plan(opts.Action, tmpl.Definition, opts.Trigger)
}

// Run plans and, unless DryRun is set, executes the pipeline.
func (e *Engine) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	plan, err := e.Plan(opts)
	if err != nil {
		return nil, err
	}

	result := &RunResult{Plan: plan}
	if opts.DryRun {
		return result, nil
	}

	result.Execution = executor.NewExecutor(e.dispatcher).Execute(ctx, plan)
	return result, nil
}

func (e *Engine) loadTemplate(opts RunOptions) (*template.Template, error) {
	if opts.TemplatePath != "" {
		return e.loader.Load(opts.TemplatePath)
	}
	if opts.CatalogDir != "" && opts.TemplateName != "" {
		return e.loader.Find(opts.CatalogDir, opts.TemplateName)
	}
	return nil, errors.New(errors.ErrCodeValidation,
		"either a template path or a catalog directory and template name is required")
}
