package v1

import (
	"github.com/davidthor/trectl/pkg/engine/patch"
	"github.com/davidthor/trectl/pkg/pipeline"
	"github.com/davidthor/trectl/pkg/resource"
)

// Transformer converts v1 template documents to the engine's pipeline
// model.
type Transformer struct{}

// NewTransformer creates a new v1 template transformer.
func NewTransformer() *Transformer {
	return &Transformer{}
}

// Transform converts the template's pipeline block. Templates without
// a pipeline block transform to a definition whose every action is a
// bare self step, so a lifecycle event still acts on the trigger.
func (t *Transformer) Transform(schema *TemplateV1) *pipeline.Definition {
	if schema.Pipeline == nil {
		return &pipeline.Definition{
			Install:   []pipeline.StepSpec{{ID: pipeline.SelfStepID}},
			Upgrade:   []pipeline.StepSpec{{ID: pipeline.SelfStepID}},
			Uninstall: []pipeline.StepSpec{{ID: pipeline.SelfStepID}},
		}
	}

	return &pipeline.Definition{
		Install:   t.transformSteps(schema.Pipeline.Install),
		Upgrade:   t.transformSteps(schema.Pipeline.Upgrade),
		Uninstall: t.transformSteps(schema.Pipeline.Uninstall),
	}
}

func (t *Transformer) transformSteps(steps []StepV1) []pipeline.StepSpec {
	if len(steps) == 0 {
		return []pipeline.StepSpec{{ID: pipeline.SelfStepID}}
	}

	specs := make([]pipeline.StepSpec, 0, len(steps))
	for _, step := range steps {
		spec := pipeline.StepSpec{ID: step.StepID}

		if step.StepID != pipeline.SelfStepID {
			spec.Target = &resource.Selector{
				TemplateName: step.ResourceTemplateName,
				Type:         resource.Type(step.ResourceType),
			}
			spec.Action = resource.Action(step.ResourceAction)
			spec.Properties = t.transformProperties(step.Properties)
		}

		specs = append(specs, spec)
	}
	return specs
}

func (t *Transformer) transformProperties(props []PipelinePropertyV1) []pipeline.PropertyPatch {
	patches := make([]pipeline.PropertyPatch, 0, len(props))
	for _, prop := range props {
		p := pipeline.PropertyPatch{
			Name:  prop.Name,
			Type:  pipeline.PropertyType(prop.Type),
			Value: prop.Value,
		}
		if prop.Type == string(pipeline.PropertyTypeArray) {
			p.Substitution = &patch.Substitution{
				Action:     patch.Action(prop.ArraySubstitutionAction),
				MatchField: prop.ArrayMatchField,
			}
		}
		patches = append(patches, p)
	}
	return patches
}
