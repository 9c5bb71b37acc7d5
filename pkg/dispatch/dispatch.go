// Package dispatch defines the capability interface between the
// pipeline engine and the provisioning backend.
//
// The engine never creates or destroys resources itself; it asks a
// Dispatcher to invoke an action on a resource with a set of property
// values applied. Implementations register themselves by name so the
// CLI can select one via configuration.
package dispatch

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/davidthor/trectl/pkg/resource"
)

// PropertyValue is a final property value carried by a dispatch
// request. Array patches have already been applied; no placeholder
// expressions remain.
type PropertyValue struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value"`
}

// Request asks the provisioning backend to invoke an action on a
// resource with the given property values applied.
type Request struct {
	// StepID is the planner's deterministic step identifier, for
	// idempotency tracking on the backend side.
	StepID string `json:"stepId"`

	// TriggerID identifies the resource whose lifecycle event
	// produced this request.
	TriggerID string `json:"triggerId"`

	// Trigger is the template name and type of the triggering
	// resource, for backends that create it on first install.
	Trigger resource.Selector `json:"trigger"`

	// Target selects the resource to act on. Nil means the trigger
	// itself.
	Target *resource.Selector `json:"target,omitempty"`

	// Action is the lifecycle action to invoke.
	Action resource.Action `json:"action"`

	// Properties are the property values to apply before the action
	// runs.
	Properties []PropertyValue `json:"properties,omitempty"`
}

// Result is the outcome of a successful invocation.
type Result struct {
	// Outputs are backend-reported outputs of the action, if any.
	Outputs map[string]interface{} `json:"outputs,omitempty"`
}

// Dispatcher is the engine's only path to resource state.
//
// Concurrent pipeline runs may patch the same target property.
// Implementations must either serialize read-modify-write per target
// resource or fail a conflicting Invoke with a CONFLICT error, which
// callers retry with a fresh plan.
type Dispatcher interface {
	// FetchProperty returns the current value of an array-typed
	// property on a dependent resource.
	FetchProperty(ctx context.Context, target resource.Selector, property string) ([]interface{}, error)

	// Invoke performs an action on a resource. It blocks until the
	// backend reports a terminal outcome.
	Invoke(ctx context.Context, req Request) (*Result, error)
}

// Factory creates a dispatcher from configuration.
type Factory func(config map[string]string) (Dispatcher, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a dispatcher factory available by name. Called from
// implementation packages' init functions.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// New creates a dispatcher by registered name.
func New(name string, config map[string]string) (Dispatcher, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown dispatcher type %q (available: %v)", name, Names())
	}
	return factory(config)
}

// Names lists the registered dispatcher names.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
