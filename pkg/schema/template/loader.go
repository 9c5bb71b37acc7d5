// Package template provides loading and validation for resource
// template documents.
package template

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/davidthor/trectl/pkg/errors"
	"github.com/davidthor/trectl/pkg/pipeline"
	v1 "github.com/davidthor/trectl/pkg/schema/template/v1"
)

// Template is a parsed and validated resource template together with
// its transformed pipeline definition.
type Template struct {
	// Schema is the raw template document.
	Schema *v1.TemplateV1

	// Definition is the engine-facing pipeline model.
	Definition *pipeline.Definition

	// SourcePath is the file the template was loaded from.
	SourcePath string
}

// Loader loads template documents from files or catalog directories.
type Loader struct {
	parser      *v1.Parser
	validator   *v1.Validator
	transformer *v1.Transformer
}

// NewLoader creates a new template loader.
func NewLoader() *Loader {
	return &Loader{
		parser:      v1.NewParser(),
		validator:   v1.NewValidator(),
		transformer: v1.NewTransformer(),
	}
}

// Load parses, validates, and transforms a template file.
func (l *Loader) Load(path string) (*Template, error) {
	schema, err := l.parser.ParseFile(path)
	if err != nil {
		return nil, errors.ParseError(path, err)
	}

	if validationErrors := l.validator.Validate(schema); len(validationErrors) > 0 {
		messages := make([]string, len(validationErrors))
		for i, ve := range validationErrors {
			messages[i] = ve.Error()
		}
		return nil, errors.ValidationError(
			fmt.Sprintf("template %s is invalid", path),
			map[string]interface{}{"errors": messages},
		)
	}

	return &Template{
		Schema:     schema,
		Definition: l.transformer.Transform(schema),
		SourcePath: path,
	}, nil
}

// Validate parses and validates a template file without transforming.
func (l *Loader) Validate(path string) error {
	_, err := l.Load(path)
	return err
}

// LoadDir loads every template document (*.yml, *.yaml) in a catalog
// directory.
func (l *Loader) LoadDir(dir string) ([]*Template, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, fmt.Sprintf("failed to read catalog directory %s", dir), err)
	}

	var templates []*Template
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yml") && !strings.HasSuffix(name, ".yaml") {
			continue
		}
		tmpl, err := l.Load(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		templates = append(templates, tmpl)
	}
	return templates, nil
}

// Find loads the template with the given name from a catalog
// directory.
func (l *Loader) Find(dir, name string) (*Template, error) {
	templates, err := l.LoadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, tmpl := range templates {
		if tmpl.Schema.Name == name {
			return tmpl, nil
		}
	}
	return nil, errors.NotFoundError("template", name)
}
