// Package v1 implements the v1 resource template schema.
package v1

// TemplateV1 represents a v1 resource template document: the
// declarative description of a deployable workspace or shared service,
// with an optional pipeline block of orchestration steps.
type TemplateV1 struct {
	Version string `yaml:"version,omitempty" json:"version,omitempty"`

	// Name is the template (bundle) name resources reference.
	Name string `yaml:"name" json:"name"`

	// TemplateVersion is the version of the template bundle.
	TemplateVersion string `yaml:"templateVersion,omitempty" json:"templateVersion,omitempty"`

	// ResourceType is the kind of resource the template deploys
	// (workspace, workspace-service, user-resource, shared-service).
	ResourceType string `yaml:"resourceType" json:"resourceType"`

	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Properties declares the template's deployment parameters.
	Properties map[string]PropertySchemaV1 `yaml:"properties,omitempty" json:"properties,omitempty"`

	// Pipeline declares the orchestration steps to run against other
	// deployed resources when a resource of this template changes
	// lifecycle state.
	Pipeline *PipelineV1 `yaml:"pipeline,omitempty" json:"pipeline,omitempty"`
}

// PropertySchemaV1 declares one deployment parameter.
type PropertySchemaV1 struct {
	Type        string      `yaml:"type,omitempty" json:"type,omitempty"`
	Title       string      `yaml:"title,omitempty" json:"title,omitempty"`
	Description string      `yaml:"description,omitempty" json:"description,omitempty"`
	Default     interface{} `yaml:"default,omitempty" json:"default,omitempty"`
	Required    bool        `yaml:"required,omitempty" json:"required,omitempty"`
}

// PipelineV1 holds the ordered steps per lifecycle action.
type PipelineV1 struct {
	Install   []StepV1 `yaml:"install,omitempty" json:"install,omitempty"`
	Upgrade   []StepV1 `yaml:"upgrade,omitempty" json:"upgrade,omitempty"`
	Uninstall []StepV1 `yaml:"uninstall,omitempty" json:"uninstall,omitempty"`
}

// StepV1 is one pipeline step. The reserved stepId "main" marks the
// step that acts on the triggering resource itself and carries no
// target fields.
type StepV1 struct {
	StepID string `yaml:"stepId" json:"stepId"`

	// Target resource, for dependent steps only.
	ResourceTemplateName string `yaml:"resourceTemplateName,omitempty" json:"resourceTemplateName,omitempty"`
	ResourceType         string `yaml:"resourceType,omitempty" json:"resourceType,omitempty"`
	ResourceAction       string `yaml:"resourceAction,omitempty" json:"resourceAction,omitempty"`

	Properties []PipelinePropertyV1 `yaml:"properties,omitempty" json:"properties,omitempty"`
}

// PipelinePropertyV1 describes one property patch carried by a step.
// String values may embed {{ resource.* }} expressions resolved
// against the triggering resource at plan time.
type PipelinePropertyV1 struct {
	Name string `yaml:"name" json:"name"`
	Type string `yaml:"type" json:"type"`

	// Array-typed properties only.
	ArraySubstitutionAction string `yaml:"arraySubstitutionAction,omitempty" json:"arraySubstitutionAction,omitempty"`
	ArrayMatchField         string `yaml:"arrayMatchField,omitempty" json:"arrayMatchField,omitempty"`

	Value interface{} `yaml:"value" json:"value"`
}
