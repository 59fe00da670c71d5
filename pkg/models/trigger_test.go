package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestTriggerMatches(t *testing.T) {
	tests := []struct {
		name    string
		trigger AutomationTrigger
		event   TriggerEvent
		want    bool
	}{
		{
			name:    "event key and workspace match, no scoping",
			trigger: AutomationTrigger{WorkspaceID: "ws1", EventKey: "workflow.stage_entered"},
			event:   TriggerEvent{WorkspaceID: "ws1", EventKey: "workflow.stage_entered"},
			want:    true,
		},
		{
			name:    "event key mismatch",
			trigger: AutomationTrigger{WorkspaceID: "ws1", EventKey: "workflow.stage_entered"},
			event:   TriggerEvent{WorkspaceID: "ws1", EventKey: "job.created"},
			want:    false,
		},
		{
			name:    "workspace mismatch",
			trigger: AutomationTrigger{WorkspaceID: "ws1", EventKey: "workflow.stage_entered"},
			event:   TriggerEvent{WorkspaceID: "ws2", EventKey: "workflow.stage_entered"},
			want:    false,
		},
		{
			name: "nil scoping fields are wildcards",
			trigger: AutomationTrigger{
				WorkspaceID: "ws1",
				EventKey:    "workflow.stage_entered",
			},
			event: TriggerEvent{
				WorkspaceID:     "ws1",
				EventKey:        "workflow.stage_entered",
				WorkflowID:      strPtr("wf1"),
				WorkflowStageID: strPtr("stage9"),
			},
			want: true,
		},
		{
			name: "stage scoping must match",
			trigger: AutomationTrigger{
				WorkspaceID:     "ws1",
				EventKey:        "workflow.stage_entered",
				WorkflowID:      strPtr("wf1"),
				WorkflowStageID: strPtr("stage1"),
			},
			event: TriggerEvent{
				WorkspaceID:     "ws1",
				EventKey:        "workflow.stage_entered",
				WorkflowID:      strPtr("wf1"),
				WorkflowStageID: strPtr("stage2"),
			},
			want: false,
		},
		{
			name: "scoped trigger does not match unscoped event",
			trigger: AutomationTrigger{
				WorkspaceID: "ws1",
				EventKey:    "workflow.stage_entered",
				WorkflowID:  strPtr("wf1"),
			},
			event: TriggerEvent{
				WorkspaceID: "ws1",
				EventKey:    "workflow.stage_entered",
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.trigger.Matches(&tt.event))
		})
	}
}

func TestConditionInterpreter(t *testing.T) {
	interpreter := ConditionInterpreter{}

	for _, tt := range []struct {
		in      any
		want    bool
		wantErr bool
	}{
		{in: true, want: true},
		{in: false, want: false},
		{in: nil, want: false},
		{in: "true", want: true},
		{in: "false", want: false},
		{in: "", want: false},
		{in: "banana", wantErr: true},
		{in: 1, want: true},
		{in: 0, want: false},
		{in: float64(3), want: true},
		{in: float64(0), want: false},
		{in: map[string]any{}, wantErr: true},
	} {
		got, err := interpreter.Evaluate(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %v", tt.in)

			continue
		}

		assert.NoError(t, err, "input %v", tt.in)
		assert.Equal(t, tt.want, got, "input %v", tt.in)
	}
}
