package v1

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const workspaceTemplate = `
version: v1
name: workspace-base
templateVersion: 1.4.0
resourceType: workspace
description: Base research workspace
properties:
  display_name:
    type: string
    title: Display name
    required: true
  address_space:
    type: string
pipeline:
  install:
    - stepId: main
    - stepId: update-firewall
      resourceTemplateName: firewall-shared
      resourceType: shared-service
      resourceAction: upgrade
      properties:
        - name: rule_collections
          type: array
          arraySubstitutionAction: replace
          arrayMatchField: name
          value:
            name: "nrc_{{ resource.id }}"
            cidr: "{{ resource.properties.address_space }}"
  uninstall:
    - stepId: remove-firewall-rules
      resourceTemplateName: firewall-shared
      resourceType: shared-service
      resourceAction: upgrade
      properties:
        - name: rule_collections
          type: array
          arraySubstitutionAction: remove
          arrayMatchField: name
          value:
            name: "nrc_{{ resource.id }}"
    - stepId: main
`

func TestParser_ParseBytes(t *testing.T) {
	parser := NewParser()

	schema, err := parser.ParseBytes([]byte(workspaceTemplate))
	require.NoError(t, err)

	assert.Equal(t, "workspace-base", schema.Name)
	assert.Equal(t, "1.4.0", schema.TemplateVersion)
	assert.Equal(t, "workspace", schema.ResourceType)
	assert.Len(t, schema.Properties, 2)
	assert.True(t, schema.Properties["display_name"].Required)

	require.NotNil(t, schema.Pipeline)
	require.Len(t, schema.Pipeline.Install, 2)
	assert.Equal(t, "main", schema.Pipeline.Install[0].StepID)

	firewall := schema.Pipeline.Install[1]
	assert.Equal(t, "update-firewall", firewall.StepID)
	assert.Equal(t, "firewall-shared", firewall.ResourceTemplateName)
	assert.Equal(t, "shared-service", firewall.ResourceType)
	assert.Equal(t, "upgrade", firewall.ResourceAction)
	require.Len(t, firewall.Properties, 1)
	assert.Equal(t, "replace", firewall.Properties[0].ArraySubstitutionAction)
	assert.Equal(t, "name", firewall.Properties[0].ArrayMatchField)

	require.Len(t, schema.Pipeline.Uninstall, 2)
	assert.Equal(t, "main", schema.Pipeline.Uninstall[1].StepID)
	assert.Nil(t, schema.Pipeline.Upgrade)
}

func TestParser_ParseBytes_NoPipeline(t *testing.T) {
	parser := NewParser()

	schema, err := parser.ParseBytes([]byte(`
version: v1
name: guacamole
resourceType: workspace-service
`))
	require.NoError(t, err)
	assert.Equal(t, "guacamole", schema.Name)
	assert.Nil(t, schema.Pipeline)
}

func TestParser_ParseBytes_UnknownFieldRejected(t *testing.T) {
	parser := NewParser()

	_, err := parser.ParseBytes([]byte(`
version: v1
name: workspace-base
resourceType: workspace
pipeline:
  install:
    - stepId: main
      resorceAction: install
`))
	assert.Error(t, err)
}

func TestParser_ParseBytes_Empty(t *testing.T) {
	parser := NewParser()

	_, err := parser.ParseBytes([]byte(""))
	assert.Error(t, err)
}

func TestParser_ParseBytes_InvalidYAML(t *testing.T) {
	parser := NewParser()

	_, err := parser.ParseBytes([]byte("name: [unclosed"))
	assert.Error(t, err)
}
