package v1

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Parser parses v1 template documents.
type Parser struct{}

// NewParser creates a new v1 template parser.
func NewParser() *Parser {
	return &Parser{}
}

// ParseBytes parses a template document from raw YAML. Unknown fields
// are rejected so typos in pipeline blocks fail loudly at catalog
// time instead of silently dropping steps.
func (p *Parser) ParseBytes(data []byte) (*TemplateV1, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var schema TemplateV1
	if err := decoder.Decode(&schema); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("empty template document")
		}
		return nil, err
	}
	return &schema, nil
}

// ParseFile parses a template document from a file.
func (p *Parser) ParseFile(path string) (*TemplateV1, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return p.ParseBytes(data)
}
