package expression

import (
	"reflect"
	"testing"

	"github.com/davidthor/trectl/pkg/errors"
	"github.com/davidthor/trectl/pkg/resource"
)

func testContext(t *testing.T) *Context {
	t.Helper()
	ctx, err := NewContext(&resource.Instance{
		ID:           "ws-guid-1234",
		TemplateName: "workspace-base",
		Type:         resource.TypeWorkspace,
		Properties: map[string]interface{}{
			"display_name":  "Research Workspace",
			"address_space": "10.1.0.0/16",
			"address_spaces": []interface{}{
				"10.1.0.0/16",
				"10.2.0.0/16",
			},
			"client_id": "",
		},
	})
	if err != nil {
		t.Fatalf("NewContext() error = %v", err)
	}
	return ctx
}

func TestResolver_Resolve(t *testing.T) {
	resolver := NewResolver()
	ctx := testContext(t)

	tests := []struct {
		name     string
		template string
		want     string
		wantErr  errors.ErrorCode
	}{
		{
			name:     "literal string",
			template: "hello",
			want:     "hello",
		},
		{
			name:     "single placeholder",
			template: "{{ resource.properties.display_name }}",
			want:     "Research Workspace",
		},
		{
			name:     "placeholder without padding",
			template: "{{resource.properties.address_space}}",
			want:     "10.1.0.0/16",
		},
		{
			name:     "concatenation",
			template: "nrc_svc_{{ resource.id }}",
			want:     "nrc_svc_ws-guid-1234",
		},
		{
			name:     "multiple placeholders",
			template: "{{ resource.templateName }}/{{ resource.id }}",
			want:     "workspace-base/ws-guid-1234",
		},
		{
			name:     "empty value is still a value",
			template: "{{ resource.properties.client_id }}",
			want:     "",
		},
		{
			name:     "missing property",
			template: "{{ resource.properties.missing }}",
			wantErr:  errors.ErrCodeUnresolvedReference,
		},
		{
			name:     "path outside the trigger",
			template: "{{ environment.region }}",
			wantErr:  errors.ErrCodeUnresolvedReference,
		},
		{
			name:     "structured value inside a larger string",
			template: "spaces: {{ resource.properties.address_spaces }}",
			wantErr:  errors.ErrCodeValidation,
		},
		{
			name:     "object value inside a larger string",
			template: "props: {{ resource.properties }}",
			wantErr:  errors.ErrCodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolver.Resolve(tt.template, ctx)
			if tt.wantErr != "" {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Resolve() error = %v, want code %s", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolver_ResolveValue(t *testing.T) {
	resolver := NewResolver()
	ctx := testContext(t)

	tests := []struct {
		name  string
		value interface{}
		want  interface{}
	}{
		{
			name:  "whole expression preserves structure",
			value: "{{ resource.properties.address_spaces }}",
			want:  []interface{}{"10.1.0.0/16", "10.2.0.0/16"},
		},
		{
			name: "nested map",
			value: map[string]interface{}{
				"name": "nrc_{{ resource.id }}",
				"action": map[string]interface{}{
					"type": "Allow",
				},
			},
			want: map[string]interface{}{
				"name": "nrc_ws-guid-1234",
				"action": map[string]interface{}{
					"type": "Allow",
				},
			},
		},
		{
			name: "list of mixed values",
			value: []interface{}{
				"{{ resource.properties.address_space }}",
				42,
				true,
			},
			want: []interface{}{"10.1.0.0/16", 42, true},
		},
		{
			name:  "non-string scalar passes through",
			value: 8080,
			want:  8080,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolver.ResolveValue(tt.value, ctx)
			if err != nil {
				t.Fatalf("ResolveValue() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ResolveValue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolver_ResolveValue_UnresolvedInNestedValue(t *testing.T) {
	resolver := NewResolver()
	ctx := testContext(t)

	value := map[string]interface{}{
		"name": "nrc_{{ resource.id }}",
		"cidr": "{{ resource.properties.missing }}",
	}

	_, err := resolver.ResolveValue(value, ctx)
	if !errors.Is(err, errors.ErrCodeUnresolvedReference) {
		t.Fatalf("ResolveValue() error = %v, want code %s", err, errors.ErrCodeUnresolvedReference)
	}
	if e, ok := err.(*errors.Error); ok {
		if e.Details["path"] != "resource.properties.missing" {
			t.Errorf("error path detail = %v, want resource.properties.missing", e.Details["path"])
		}
	}
}
