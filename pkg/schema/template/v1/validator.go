package v1

import (
	"fmt"
	"regexp"
	"strings"
)

// validatorExprPattern matches {{ ... }} expressions.
var validatorExprPattern = regexp.MustCompile(`\{\{\s*(.+?)\s*\}\}`)

// selfStepID is the reserved marker for the act-on-self step.
const selfStepID = "main"

var knownResourceTypes = map[string]bool{
	"workspace":         true,
	"workspace-service": true,
	"user-resource":     true,
	"shared-service":    true,
}

var knownSubstitutionActions = map[string]bool{
	"replace": true,
	"remove":  true,
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validator validates v1 template schemas.
type Validator struct{}

// NewValidator creates a new v1 template validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate validates a template schema. All findings are returned, not
// just the first, so catalog authors can fix a document in one pass.
func (v *Validator) Validate(schema *TemplateV1) []ValidationError {
	var errors []ValidationError

	if schema.Name == "" {
		errors = append(errors, ValidationError{Field: "name", Message: "template name is required"})
	}
	if schema.ResourceType == "" {
		errors = append(errors, ValidationError{Field: "resourceType", Message: "resource type is required"})
	} else if !knownResourceTypes[schema.ResourceType] {
		errors = append(errors, ValidationError{
			Field:   "resourceType",
			Message: fmt.Sprintf("unknown resource type %q", schema.ResourceType),
		})
	}

	if schema.Pipeline != nil {
		errors = append(errors, v.validateSteps("pipeline.install", schema.Pipeline.Install)...)
		errors = append(errors, v.validateSteps("pipeline.upgrade", schema.Pipeline.Upgrade)...)
		errors = append(errors, v.validateSteps("pipeline.uninstall", schema.Pipeline.Uninstall)...)
	}

	return errors
}

func (v *Validator) validateSteps(prefix string, steps []StepV1) []ValidationError {
	if len(steps) == 0 {
		return nil
	}

	var errors []ValidationError
	selfCount := 0
	seen := make(map[string]bool)

	for i, step := range steps {
		field := fmt.Sprintf("%s[%d]", prefix, i)

		if step.StepID == "" {
			errors = append(errors, ValidationError{Field: field, Message: "stepId is required"})
			continue
		}
		if seen[step.StepID] {
			errors = append(errors, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate stepId %q", step.StepID),
			})
		}
		seen[step.StepID] = true

		if step.StepID == selfStepID {
			selfCount++
			errors = append(errors, v.validateSelfStep(field, step)...)
			continue
		}

		errors = append(errors, v.validateDependentStep(field, step)...)
	}

	if selfCount == 0 {
		errors = append(errors, ValidationError{
			Field:   prefix,
			Message: fmt.Sprintf("pipeline must include a %q step", selfStepID),
		})
	}

	return errors
}

func (v *Validator) validateSelfStep(field string, step StepV1) []ValidationError {
	var errors []ValidationError

	if step.ResourceTemplateName != "" || step.ResourceType != "" || step.ResourceAction != "" {
		errors = append(errors, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("the %q step cannot declare a target resource", selfStepID),
		})
	}
	if len(step.Properties) > 0 {
		errors = append(errors, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("the %q step cannot carry property patches", selfStepID),
		})
	}

	return errors
}

func (v *Validator) validateDependentStep(field string, step StepV1) []ValidationError {
	var errors []ValidationError

	if step.ResourceTemplateName == "" {
		errors = append(errors, ValidationError{Field: field, Message: "resourceTemplateName is required"})
	}
	if step.ResourceType == "" {
		errors = append(errors, ValidationError{Field: field, Message: "resourceType is required"})
	} else if !knownResourceTypes[step.ResourceType] {
		errors = append(errors, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("unknown resource type %q", step.ResourceType),
		})
	}
	if step.ResourceAction == "" {
		errors = append(errors, ValidationError{Field: field, Message: "resourceAction is required"})
	}

	for j, prop := range step.Properties {
		propField := fmt.Sprintf("%s.properties[%d]", field, j)
		errors = append(errors, v.validateProperty(propField, prop)...)
	}

	return errors
}

func (v *Validator) validateProperty(field string, prop PipelinePropertyV1) []ValidationError {
	var errors []ValidationError

	if prop.Name == "" {
		errors = append(errors, ValidationError{Field: field, Message: "property name is required"})
	}

	if prop.Type == "array" {
		if !knownSubstitutionActions[prop.ArraySubstitutionAction] {
			errors = append(errors, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("arraySubstitutionAction must be one of replace, remove (got %q)", prop.ArraySubstitutionAction),
			})
		}
		if prop.ArrayMatchField == "" {
			errors = append(errors, ValidationError{
				Field:   field,
				Message: "arrayMatchField is required for array properties",
			})
		}
		if value, ok := prop.Value.(map[string]interface{}); ok {
			if prop.ArrayMatchField != "" {
				if key, ok := value[prop.ArrayMatchField]; !ok {
					errors = append(errors, ValidationError{
						Field:   field,
						Message: fmt.Sprintf("value does not carry the match field %q", prop.ArrayMatchField),
					})
				} else if !scalarMatchKey(key) {
					errors = append(errors, ValidationError{
						Field:   field,
						Message: fmt.Sprintf("match field %q must hold a scalar value", prop.ArrayMatchField),
					})
				}
			}
		} else {
			errors = append(errors, ValidationError{
				Field:   field,
				Message: "array property value must be a mapping",
			})
		}
	} else {
		if prop.ArraySubstitutionAction != "" || prop.ArrayMatchField != "" {
			errors = append(errors, ValidationError{
				Field:   field,
				Message: "array substitution fields are only valid for array properties",
			})
		}
	}

	errors = append(errors, v.validateExpressions(field, prop.Value)...)

	return errors
}

// scalarMatchKey reports whether a match-key value can identify an
// element. Structured keys are rejected at catalog time; the applier
// cannot compare them.
func scalarMatchKey(v interface{}) bool {
	switch v.(type) {
	case nil, string, bool, int, int64, float64:
		return true
	}
	return false
}

// validateExpressions checks that every {{ ... }} placeholder in the
// value references the trigger resource. References into the target
// resource do not exist; catching the mistake here beats a plan-time
// failure on a live trigger.
func (v *Validator) validateExpressions(field string, value interface{}) []ValidationError {
	var errors []ValidationError

	switch val := value.(type) {
	case string:
		for _, match := range validatorExprPattern.FindAllStringSubmatch(val, -1) {
			expr := strings.TrimSpace(match[1])
			if expr != "resource" && !strings.HasPrefix(expr, "resource.") {
				errors = append(errors, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("expression %q must reference the trigger resource", expr),
				})
			}
		}
	case map[string]interface{}:
		for _, nested := range val {
			errors = append(errors, v.validateExpressions(field, nested)...)
		}
	case []interface{}:
		for _, nested := range val {
			errors = append(errors, v.validateExpressions(field, nested)...)
		}
	}

	return errors
}
