// Package resource defines the resource instances the pipeline engine
// reads from and requests mutations on.
package resource

import (
	"fmt"
)

// Type identifies the kind of resource a template deploys.
type Type string

const (
	TypeWorkspace        Type = "workspace"
	TypeWorkspaceService Type = "workspace-service"
	TypeUserResource     Type = "user-resource"
	TypeSharedService    Type = "shared-service"
)

// Action is a lifecycle action applied to a resource.
type Action string

const (
	ActionInstall   Action = "install"
	ActionUpgrade   Action = "upgrade"
	ActionUninstall Action = "uninstall"
)

// IsValid reports whether the action is a known lifecycle action.
func (a Action) IsValid() bool {
	switch a {
	case ActionInstall, ActionUpgrade, ActionUninstall:
		return true
	}
	return false
}

// Instance is a snapshot of a deployed resource. The engine reads the
// triggering resource's instance and requests mutations on dependent
// resources through the dispatcher; it never mutates an Instance
// directly.
type Instance struct {
	// ID is the opaque identifier assigned by the provisioning backend.
	ID string `json:"id"`

	// TemplateName is the resource template (bundle) the resource was
	// deployed from.
	TemplateName string `json:"templateName"`

	// TemplateVersion is the version of that template.
	TemplateVersion string `json:"templateVersion,omitempty"`

	// Type is the resource type.
	Type Type `json:"resourceType"`

	// Properties holds the current structured properties: scalars,
	// objects, or ordered lists of objects.
	Properties map[string]interface{} `json:"properties"`

	// Etag is the backend's concurrency token for this snapshot.
	Etag string `json:"_etag,omitempty"`
}

// Selector identifies a dependent resource by template name and type.
// Dependent resources such as shared services are singletons per
// template, so the pair is sufficient to address them.
type Selector struct {
	TemplateName string `json:"resourceTemplateName"`
	Type         Type   `json:"resourceType"`
}

func (s Selector) String() string {
	return fmt.Sprintf("%s/%s", s.Type, s.TemplateName)
}
