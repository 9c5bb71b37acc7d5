// Package memory implements an in-memory dispatcher.
//
// It models just enough of a provisioning backend for tests and dry
// runs: resource instances live in a map, property updates are applied
// verbatim, and all operations are serialized by a mutex, which gives
// the read-modify-write atomicity the engine's contract requires.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/davidthor/trectl/pkg/dispatch"
	"github.com/davidthor/trectl/pkg/errors"
	"github.com/davidthor/trectl/pkg/resource"
)

func init() {
	dispatch.Register("memory", func(config map[string]string) (dispatch.Dispatcher, error) {
		return New(), nil
	})
}

// Dispatcher is an in-memory dispatch.Dispatcher.
type Dispatcher struct {
	mu        sync.Mutex
	resources map[string]*resource.Instance

	// Invocations records every Invoke in order, for assertions.
	Invocations []dispatch.Request
}

// New creates an empty in-memory dispatcher.
func New() *Dispatcher {
	return &Dispatcher{
		resources: make(map[string]*resource.Instance),
	}
}

// Seed adds a resource instance to the backing store.
func (d *Dispatcher) Seed(inst *resource.Instance) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if inst.Etag == "" {
		inst.Etag = uuid.NewString()
	}
	d.resources[inst.ID] = inst
}

// Get returns the stored instance with the given id.
func (d *Dispatcher) Get(id string) (*resource.Instance, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	inst, ok := d.resources[id]
	return inst, ok
}

// FetchProperty implements dispatch.Dispatcher.
func (d *Dispatcher) FetchProperty(ctx context.Context, target resource.Selector, property string) ([]interface{}, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	inst, err := d.bySelector(target)
	if err != nil {
		return nil, err
	}

	value, ok := inst.Properties[property]
	if !ok {
		return nil, nil
	}
	array, ok := value.([]interface{})
	if !ok {
		return nil, errors.ValidationError(
			fmt.Sprintf("property %q of %s is not an array", property, target), nil)
	}
	return array, nil
}

// Invoke implements dispatch.Dispatcher.
func (d *Dispatcher) Invoke(ctx context.Context, req dispatch.Request) (*dispatch.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.Invocations = append(d.Invocations, req)

	inst, err := d.resolveTarget(req)
	if err != nil {
		return nil, err
	}

	for _, prop := range req.Properties {
		inst.Properties[prop.Name] = prop.Value
	}
	inst.Etag = uuid.NewString()

	// Uninstalling the trigger itself removes it from the store.
	if req.Target == nil && req.Action == resource.ActionUninstall {
		delete(d.resources, inst.ID)
	}

	return &dispatch.Result{}, nil
}

func (d *Dispatcher) resolveTarget(req dispatch.Request) (*resource.Instance, error) {
	if req.Target != nil {
		return d.bySelector(*req.Target)
	}

	inst, ok := d.resources[req.TriggerID]
	if ok {
		return inst, nil
	}
	if req.Action != resource.ActionInstall {
		return nil, errors.NotFoundError("resource", req.TriggerID)
	}

	// First install of the trigger: create its instance.
	inst = &resource.Instance{
		ID:           req.TriggerID,
		TemplateName: req.Trigger.TemplateName,
		Type:         req.Trigger.Type,
		Properties:   make(map[string]interface{}),
	}
	d.resources[inst.ID] = inst
	return inst, nil
}

func (d *Dispatcher) bySelector(sel resource.Selector) (*resource.Instance, error) {
	for _, inst := range d.resources {
		if inst.TemplateName == sel.TemplateName && inst.Type == sel.Type {
			return inst, nil
		}
	}
	return nil, errors.NotFoundError("resource", sel.String())
}
