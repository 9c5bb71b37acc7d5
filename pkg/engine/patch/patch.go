// Package patch computes new values for array-typed resource
// properties under replace/remove semantics.
//
// Array elements are identified by a caller-declared match field, never
// by position or deep equality. Multiple triggers patch the same target
// collection (e.g. every workspace owns one rule in a shared firewall's
// rule collection), so the applier must not inspect or reorder elements
// it does not own.
package patch

import (
	"fmt"

	"github.com/davidthor/trectl/pkg/errors"
)

// Action selects the substitution behavior for an array patch.
type Action string

const (
	// Replace swaps the element with the same match key in place, or
	// appends when no element carries the key.
	Replace Action = "replace"

	// Remove deletes the element with the same match key. A missing
	// key is a no-op.
	Remove Action = "remove"
)

// Substitution describes how a resolved value is merged into an
// array property.
type Substitution struct {
	Action     Action `json:"action"`
	MatchField string `json:"matchField"`
}

// Apply computes the new array value. The current slice is not
// modified. Apply is idempotent: replaying the same substitution
// yields the same result.
func Apply(current []interface{}, sub Substitution, value map[string]interface{}, property string) ([]interface{}, error) {
	switch sub.Action {
	case Replace:
		return applyReplace(current, sub, value, property)
	case Remove:
		return applyRemove(current, sub, value, property)
	default:
		return nil, errors.ValidationError(
			fmt.Sprintf("unknown array substitution action %q for property %q", sub.Action, property), nil)
	}
}

func applyReplace(current []interface{}, sub Substitution, value map[string]interface{}, property string) ([]interface{}, error) {
	key, err := valueKey(value, sub, property)
	if err != nil {
		return nil, err
	}

	result := make([]interface{}, len(current))
	copy(result, current)

	for i, elem := range result {
		if k, ok := matchKey(elem, sub.MatchField); ok && k == key {
			// Same logical element: replace in place, keep position.
			result[i] = value
			return result, nil
		}
	}

	return append(result, value), nil
}

func applyRemove(current []interface{}, sub Substitution, value map[string]interface{}, property string) ([]interface{}, error) {
	key, err := valueKey(value, sub, property)
	if err != nil {
		return nil, err
	}

	for i, elem := range current {
		if k, ok := matchKey(elem, sub.MatchField); ok && k == key {
			result := make([]interface{}, 0, len(current)-1)
			result = append(result, current[:i]...)
			result = append(result, current[i+1:]...)
			return result, nil
		}
	}

	// Absent element: nothing to remove.
	result := make([]interface{}, len(current))
	copy(result, current)
	return result, nil
}

// valueKey extracts the incoming value's match key. The key must be
// present and scalar; structured keys cannot identify an element.
func valueKey(value map[string]interface{}, sub Substitution, property string) (interface{}, error) {
	key, ok := value[sub.MatchField]
	if !ok {
		return nil, errors.PatchConflictError(property, sub.MatchField)
	}
	if !scalar(key) {
		return nil, errors.New(errors.ErrCodePatchConflict,
			fmt.Sprintf("match field %q of property %q must be a scalar", sub.MatchField, property))
	}
	return key, nil
}

// matchKey extracts the match field from an element. Elements that are
// not objects, lack the field, or carry a structured key never match.
func matchKey(elem interface{}, field string) (interface{}, bool) {
	obj, ok := elem.(map[string]interface{})
	if !ok {
		return nil, false
	}
	key, ok := obj[field]
	if !ok || !scalar(key) {
		return nil, false
	}
	return key, true
}

func scalar(v interface{}) bool {
	switch v.(type) {
	case nil, string, bool, int, int64, float64:
		return true
	}
	return false
}
