package executor

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/davidthor/trectl/pkg/dispatch"
	"github.com/davidthor/trectl/pkg/engine/patch"
	"github.com/davidthor/trectl/pkg/engine/planner"
	"github.com/davidthor/trectl/pkg/errors"
	"github.com/davidthor/trectl/pkg/pipeline"
	"github.com/davidthor/trectl/pkg/resource"
)

// mockDispatcher scripts per-step failures and records invocations.
type mockDispatcher struct {
	properties map[string][]interface{}
	failSteps  map[string]error
	requests   []dispatch.Request
	fetches    []string
}

func newMockDispatcher() *mockDispatcher {
	return &mockDispatcher{
		properties: make(map[string][]interface{}),
		failSteps:  make(map[string]error),
	}
}

func (m *mockDispatcher) FetchProperty(ctx context.Context, target resource.Selector, property string) ([]interface{}, error) {
	m.fetches = append(m.fetches, fmt.Sprintf("%s.%s", target, property))
	return m.properties[property], nil
}

func (m *mockDispatcher) Invoke(ctx context.Context, req dispatch.Request) (*dispatch.Result, error) {
	m.requests = append(m.requests, req)
	if err, ok := m.failSteps[req.StepID]; ok {
		return nil, err
	}
	return &dispatch.Result{}, nil
}

func firewallTarget() *resource.Selector {
	return &resource.Selector{
		TemplateName: "firewall-shared",
		Type:         resource.TypeSharedService,
	}
}

func testPlan() *planner.Plan {
	return &planner.Plan{
		Action:          resource.ActionInstall,
		TriggerID:       "ws-guid-1234",
		TriggerTemplate: "workspace-base",
		TriggerType:     resource.TypeWorkspace,
		Steps: []planner.Step{
			{ID: "plan-id-1", StepID: pipeline.SelfStepID, Action: resource.ActionInstall},
			{
				ID:     "plan-id-2",
				StepID: "update-firewall",
				Target: firewallTarget(),
				Action: resource.ActionUpgrade,
				Patches: []planner.ResolvedPatch{
					{
						Name: "rule_collections",
						Type: pipeline.PropertyTypeArray,
						Substitution: &patch.Substitution{
							Action:     patch.Replace,
							MatchField: "name",
						},
						Value: map[string]interface{}{
							"name": "nrc_ws-guid-1234",
							"cidr": "10.1.0.0/16",
						},
					},
				},
			},
			{
				ID:     "plan-id-3",
				StepID: "update-gateway",
				Target: &resource.Selector{
					TemplateName: "gateway-shared",
					Type:         resource.TypeSharedService,
				},
				Action: resource.ActionUpgrade,
			},
		},
	}
}

func TestExecutor_Execute_Completes(t *testing.T) {
	mock := newMockDispatcher()
	mock.properties["rule_collections"] = []interface{}{
		map[string]interface{}{"name": "nrc_other", "cidr": "10.9.0.0/16"},
	}

	result := NewExecutor(mock).Execute(context.Background(), testPlan())

	if result.Status != StatusCompleted {
		t.Fatalf("Status = %s, want %s (cause: %v)", result.Status, StatusCompleted, result.Cause)
	}
	want := []string{pipeline.SelfStepID, "update-firewall", "update-gateway"}
	if !reflect.DeepEqual(result.CompletedSteps, want) {
		t.Errorf("CompletedSteps = %v, want %v", result.CompletedSteps, want)
	}
	if len(mock.requests) != 3 {
		t.Fatalf("expected 3 invocations, got %d", len(mock.requests))
	}
}

func TestExecutor_Execute_ReadThenPatchThenWrite(t *testing.T) {
	mock := newMockDispatcher()
	mock.properties["rule_collections"] = []interface{}{
		map[string]interface{}{"name": "nrc_other", "cidr": "10.9.0.0/16"},
	}

	result := NewExecutor(mock).Execute(context.Background(), testPlan())
	if result.Status != StatusCompleted {
		t.Fatalf("Status = %s, cause: %v", result.Status, result.Cause)
	}

	// The firewall step's update must carry the patched collection:
	// the pre-existing entry plus the trigger's own entry.
	req := mock.requests[1]
	if req.StepID != "plan-id-2" {
		t.Fatalf("second invocation = %s, want plan-id-2", req.StepID)
	}
	if len(req.Properties) != 1 {
		t.Fatalf("expected 1 property update, got %d", len(req.Properties))
	}
	got, ok := req.Properties[0].Value.([]interface{})
	if !ok {
		t.Fatalf("property value is %T, want []interface{}", req.Properties[0].Value)
	}
	want := []interface{}{
		map[string]interface{}{"name": "nrc_other", "cidr": "10.9.0.0/16"},
		map[string]interface{}{"name": "nrc_ws-guid-1234", "cidr": "10.1.0.0/16"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("patched collection = %v, want %v", got, want)
	}

	if len(mock.fetches) != 1 || mock.fetches[0] != "shared-service/firewall-shared.rule_collections" {
		t.Errorf("fetches = %v, want the firewall's rule_collections only", mock.fetches)
	}
}

func TestExecutor_Execute_HaltsOnFailure(t *testing.T) {
	mock := newMockDispatcher()
	mock.failSteps["plan-id-2"] = fmt.Errorf("ARM deployment failed")

	result := NewExecutor(mock).Execute(context.Background(), testPlan())

	if result.Status != StatusFailed {
		t.Fatalf("Status = %s, want %s", result.Status, StatusFailed)
	}
	if result.FailedStep != "update-firewall" {
		t.Errorf("FailedStep = %s, want update-firewall", result.FailedStep)
	}
	if result.FailedStepIndex != 1 {
		t.Errorf("FailedStepIndex = %d, want 1", result.FailedStepIndex)
	}
	if !reflect.DeepEqual(result.CompletedSteps, []string{pipeline.SelfStepID}) {
		t.Errorf("CompletedSteps = %v, want [%s]", result.CompletedSteps, pipeline.SelfStepID)
	}

	// The third step must never be attempted, and the first step's
	// effect is not rolled back.
	for _, req := range mock.requests {
		if req.StepID == "plan-id-3" {
			t.Error("step after the failure was dispatched")
		}
	}
	if len(mock.requests) != 2 {
		t.Errorf("expected 2 invocations, got %d", len(mock.requests))
	}

	if !errors.Is(result.Cause, errors.ErrCodeDispatch) {
		t.Errorf("Cause = %v, want code %s", result.Cause, errors.ErrCodeDispatch)
	}
}

func TestExecutor_Execute_StructuredDispatchErrorsPassThrough(t *testing.T) {
	mock := newMockDispatcher()
	mock.failSteps["plan-id-2"] = errors.ConflictError("firewall-shared")

	result := NewExecutor(mock).Execute(context.Background(), testPlan())

	if result.Status != StatusFailed {
		t.Fatalf("Status = %s, want %s", result.Status, StatusFailed)
	}
	if !errors.Is(result.Cause, errors.ErrCodeConflict) {
		t.Errorf("Cause = %v, want the dispatcher's CONFLICT to pass through", result.Cause)
	}
}

func TestExecutor_Execute_NonObjectArrayPatchValue(t *testing.T) {
	mock := newMockDispatcher()
	plan := testPlan()
	plan.Steps[1].Patches[0].Value = "not-an-object"

	result := NewExecutor(mock).Execute(context.Background(), plan)

	if result.Status != StatusFailed {
		t.Fatalf("Status = %s, want %s", result.Status, StatusFailed)
	}
	if !errors.Is(result.Cause, errors.ErrCodePatchConflict) {
		t.Errorf("Cause = %v, want code %s", result.Cause, errors.ErrCodePatchConflict)
	}
	if len(mock.requests) != 1 {
		t.Errorf("the failing step must not be dispatched; got %d invocations", len(mock.requests))
	}
}

func TestExecutor_Execute_StringPatchPassedVerbatim(t *testing.T) {
	mock := newMockDispatcher()
	plan := testPlan()
	plan.Steps[1].Patches = []planner.ResolvedPatch{
		{Name: "display_name", Type: pipeline.PropertyTypeString, Value: "Research Hub"},
	}

	result := NewExecutor(mock).Execute(context.Background(), plan)
	if result.Status != StatusCompleted {
		t.Fatalf("Status = %s, cause: %v", result.Status, result.Cause)
	}

	req := mock.requests[1]
	if len(req.Properties) != 1 || req.Properties[0].Value != "Research Hub" {
		t.Errorf("properties = %v, want display_name=Research Hub verbatim", req.Properties)
	}
	if len(mock.fetches) != 0 {
		t.Errorf("string patches must not read the target: fetches = %v", mock.fetches)
	}
}

func TestExecutor_Execute_RequestCarriesTriggerIdentity(t *testing.T) {
	mock := newMockDispatcher()
	plan := testPlan()
	plan.Steps = plan.Steps[:1]

	result := NewExecutor(mock).Execute(context.Background(), plan)
	if result.Status != StatusCompleted {
		t.Fatalf("Status = %s, cause: %v", result.Status, result.Cause)
	}

	req := mock.requests[0]
	if req.TriggerID != "ws-guid-1234" {
		t.Errorf("TriggerID = %s, want ws-guid-1234", req.TriggerID)
	}
	if req.Trigger.TemplateName != "workspace-base" || req.Trigger.Type != resource.TypeWorkspace {
		t.Errorf("Trigger selector = %v, want workspace-base/workspace", req.Trigger)
	}
	if req.Target != nil {
		t.Error("self step request must not carry a target")
	}
}
