// Package expression resolves {{ resource.* }} placeholder expressions
// against the triggering resource instance.
package expression

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/davidthor/trectl/pkg/errors"
	"github.com/davidthor/trectl/pkg/resource"
)

// exprPattern matches {{ ... }} placeholder expressions.
var exprPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_\-.]+)\s*\}\}`)

// Context is a resolution context built from the triggering resource.
// Resolution is strictly against the trigger; placeholders can never
// reference the target resource.
type Context struct {
	doc string
}

// triggerDoc is the JSON shape placeholder paths are resolved against.
type triggerDoc struct {
	Resource *resource.Instance `json:"resource"`
}

// NewContext builds a resolution context from a trigger snapshot.
func NewContext(trigger *resource.Instance) (*Context, error) {
	data, err := json.Marshal(triggerDoc{Resource: trigger})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeValidation, "failed to snapshot trigger resource", err)
	}
	return &Context{doc: string(data)}, nil
}

// Resolver substitutes placeholder expressions with concrete values
// from a resolution context. Pure; no side effects.
type Resolver struct{}

// NewResolver creates a new expression resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve substitutes every placeholder in the template string and
// returns the result. A placeholder whose path is absent on the
// trigger fails with an UNRESOLVED_REFERENCE error; a required field
// is never silently replaced with an empty string. Placeholders that
// resolve to an object or array cannot interpolate into a string; a
// structured value substitutes whole via ResolveValue.
func (r *Resolver) Resolve(template string, ctx *Context) (string, error) {
	var resolveErr error

	result := exprPattern.ReplaceAllStringFunc(template, func(match string) string {
		if resolveErr != nil {
			return match
		}
		path := exprPattern.FindStringSubmatch(match)[1]
		value, err := r.lookup(path, ctx)
		if err != nil {
			resolveErr = err
			return match
		}
		if value.IsObject() || value.IsArray() {
			resolveErr = errors.New(errors.ErrCodeValidation,
				fmt.Sprintf("expression %q resolves to a structured value and cannot interpolate into a string", path)).
				WithDetail("path", path)
			return match
		}
		return value.String()
	})

	if resolveErr != nil {
		return "", resolveErr
	}
	return result, nil
}

// ResolveValue resolves a template value of any shape. A string that is
// exactly one placeholder substitutes the whole referenced value,
// preserving its structure (used for values such as an address-space
// list); other strings interpolate. Maps and lists resolve
// recursively.
func (r *Resolver) ResolveValue(value interface{}, ctx *Context) (interface{}, error) {
	switch v := value.(type) {
	case string:
		if path, ok := wholeExpression(v); ok {
			result, err := r.lookup(path, ctx)
			if err != nil {
				return nil, err
			}
			return result.Value(), nil
		}
		return r.Resolve(v, ctx)

	case map[string]interface{}:
		resolved := make(map[string]interface{}, len(v))
		for key, val := range v {
			rv, err := r.ResolveValue(val, ctx)
			if err != nil {
				return nil, err
			}
			resolved[key] = rv
		}
		return resolved, nil

	case []interface{}:
		resolved := make([]interface{}, len(v))
		for i, val := range v {
			rv, err := r.ResolveValue(val, ctx)
			if err != nil {
				return nil, err
			}
			resolved[i] = rv
		}
		return resolved, nil

	default:
		return value, nil
	}
}

func (r *Resolver) lookup(path string, ctx *Context) (gjson.Result, error) {
	if path != "resource" && !strings.HasPrefix(path, "resource.") {
		return gjson.Result{}, errors.New(errors.ErrCodeUnresolvedReference,
			"expression path must reference the trigger resource").WithDetail("path", path)
	}

	result := gjson.Get(ctx.doc, path)
	if !result.Exists() {
		return gjson.Result{}, errors.UnresolvedReferenceError(path)
	}
	return result, nil
}

// wholeExpression reports whether the string is exactly one
// placeholder, returning its path.
func wholeExpression(s string) (string, bool) {
	match := exprPattern.FindStringSubmatch(strings.TrimSpace(s))
	if match == nil || match[0] != strings.TrimSpace(s) {
		return "", false
	}
	return match[1], true
}
