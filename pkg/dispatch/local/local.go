// Package local implements a dispatcher backed by a local filesystem
// resource store.
//
// Resource instances are JSON documents under a base path, written via
// temp-file + atomic rename. Every save rotates the document's etag
// and compares the on-disk etag against the snapshot the mutation was
// computed from, so a concurrent writer surfaces as a CONFLICT the
// caller retries with a fresh plan.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/davidthor/trectl/pkg/dispatch"
	"github.com/davidthor/trectl/pkg/errors"
	"github.com/davidthor/trectl/pkg/resource"
)

func init() {
	dispatch.Register("local", func(config map[string]string) (dispatch.Dispatcher, error) {
		return NewDispatcher(config["path"])
	})
}

// Store reads and writes resource instance documents on disk. One
// document per instance, named by id.
type Store struct {
	basePath string
	mu       sync.Mutex
}

// NewStore opens (creating if needed) a resource store at path. An
// empty path defaults to ~/.trectl/resources.
func NewStore(path string) (*Store, error) {
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, ".trectl", "resources")
	}

	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create resource directory: %w", err)
	}

	return &Store{basePath: path}, nil
}

// Load returns the instance with the given id.
func (s *Store) Load(id string) (*resource.Instance, error) {
	data, err := os.ReadFile(s.docPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFoundError("resource", id)
		}
		return nil, errors.BackendError("local", "read", err)
	}

	var inst resource.Instance
	if err := json.Unmarshal(data, &inst); err != nil {
		return nil, errors.BackendError("local", "decode", err)
	}
	return &inst, nil
}

// LoadBySelector returns the single instance matching the selector.
// Dependent resources addressed by selector are singletons per
// template; more than one match is an error.
func (s *Store) LoadBySelector(sel resource.Selector) (*resource.Instance, error) {
	instances, err := s.List()
	if err != nil {
		return nil, err
	}

	var found *resource.Instance
	for _, inst := range instances {
		if inst.TemplateName == sel.TemplateName && inst.Type == sel.Type {
			if found != nil {
				return nil, errors.ValidationError(
					fmt.Sprintf("selector %s matches more than one resource", sel), nil)
			}
			found = inst
		}
	}
	if found == nil {
		return nil, errors.NotFoundError("resource", sel.String())
	}
	return found, nil
}

// List returns every stored instance.
func (s *Store) List() ([]*resource.Instance, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, errors.BackendError("local", "list", err)
	}

	var instances []*resource.Instance
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		inst, err := s.Load(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			return nil, err
		}
		instances = append(instances, inst)
	}
	return instances, nil
}

// Save writes the instance, rotating its etag. When expectedEtag is
// non-empty and the on-disk document carries a different etag, Save
// fails with CONFLICT and writes nothing.
func (s *Store) Save(inst *resource.Instance, expectedEtag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expectedEtag != "" {
		current, err := s.Load(inst.ID)
		if err != nil && !errors.Is(err, errors.ErrCodeNotFound) {
			return err
		}
		if current != nil && current.Etag != expectedEtag {
			return errors.ConflictError(inst.ID)
		}
	}

	inst.Etag = uuid.NewString()

	data, err := json.MarshalIndent(inst, "", "  ")
	if err != nil {
		return errors.BackendError("local", "encode", err)
	}

	// Write to a temp file first, then rename for atomicity.
	tempFile, err := os.CreateTemp(s.basePath, ".trectl-resource-*")
	if err != nil {
		return errors.BackendError("local", "write", err)
	}
	tempPath := tempFile.Name()

	_, err = tempFile.Write(data)
	if closeErr := tempFile.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempPath)
		return errors.BackendError("local", "write", err)
	}

	if err := os.Rename(tempPath, s.docPath(inst.ID)); err != nil {
		os.Remove(tempPath)
		return errors.BackendError("local", "write", err)
	}
	return nil
}

// Delete removes the instance document. Missing documents are not an
// error.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.docPath(id)); err != nil && !os.IsNotExist(err) {
		return errors.BackendError("local", "delete", err)
	}
	return nil
}

func (s *Store) docPath(id string) string {
	return filepath.Join(s.basePath, id+".json")
}

// Dispatcher implements dispatch.Dispatcher over a Store.
type Dispatcher struct {
	store *Store
}

// NewDispatcher creates a local dispatcher rooted at path.
func NewDispatcher(path string) (*Dispatcher, error) {
	store, err := NewStore(path)
	if err != nil {
		return nil, err
	}
	return &Dispatcher{store: store}, nil
}

// Store exposes the underlying resource store.
func (d *Dispatcher) Store() *Store {
	return d.store
}

// FetchProperty implements dispatch.Dispatcher.
func (d *Dispatcher) FetchProperty(ctx context.Context, target resource.Selector, property string) ([]interface{}, error) {
	inst, err := d.store.LoadBySelector(target)
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

// Invoke implements dispatch.Dispatcher. Property updates are applied
// read-modify-write under the store's etag check.
func (d *Dispatcher) Invoke(ctx context.Context, req dispatch.Request) (*dispatch.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	inst, err := d.resolveTarget(req)
	if err != nil {
		return nil, err
	}

	if req.Target == nil && req.Action == resource.ActionUninstall {
		if err := d.store.Delete(inst.ID); err != nil {
			return nil, err
		}
		return &dispatch.Result{}, nil
	}

	for _, prop := range req.Properties {
		inst.Properties[prop.Name] = prop.Value
	}

	if err := d.store.Save(inst, inst.Etag); err != nil {
		return nil, err
	}
	return &dispatch.Result{}, nil
}

func (d *Dispatcher) resolveTarget(req dispatch.Request) (*resource.Instance, error) {
	if req.Target != nil {
		return d.store.LoadBySelector(*req.Target)
	}

	inst, err := d.store.Load(req.TriggerID)
	if err == nil {
		return inst, nil
	}
	if !errors.Is(err, errors.ErrCodeNotFound) || req.Action != resource.ActionInstall {
		return nil, err
	}

	// First install of the trigger: create its instance.
	return &resource.Instance{
		ID:           req.TriggerID,
		TemplateName: req.Trigger.TemplateName,
		Type:         req.Trigger.Type,
		Properties:   make(map[string]interface{}),
	}, nil
}
