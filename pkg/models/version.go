package models

import "time"

// Built-in node types. The stage-entered trigger is the graph's seed
// node and is never executed by a worker.
const (
	NodeTypeStageEntered = "workflow.stage_entered"
	NodeTypeCondition    = "logic.condition"
	NodeTypeWebhook      = "http.webhook"
	NodeTypeTelegram     = "telegram.send_message"
	NodeTypeWhatsApp     = "whatsapp.send_message"
)

// IsTriggerType reports whether the node type is a recognized trigger
// type, i.e. one that may sit at the root of a definition graph.
func IsTriggerType(nodeType string) bool {
	return nodeType == NodeTypeStageEntered
}

// AutomationVersion is one immutable snapshot of an automation's
// definition. Editing always produces a new row; there is no update
// path anywhere in the codebase.
type AutomationVersion struct {
	ID           string     `json:"id"`
	AutomationID string     `json:"automation_id" validate:"required"`
	Version      int        `json:"version"       validate:"required,min=1"`
	Definition   Definition `json:"definition"`
	CreatedBy    string     `json:"created_by"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Definition is the persisted DAG: node and edge arrays, as authored
// by the graphical editor.
type Definition struct {
	Nodes []*Node `json:"nodes"`
	Edges []*Edge `json:"edges"`
}

// Node is one unit of work in an automation definition.
type Node struct {
	ID        string         `json:"id"     validate:"required"`
	Type      string         `json:"type"   validate:"required"`
	Name      string         `json:"name,omitempty"`
	PositionX int            `json:"position_x"`
	PositionY int            `json:"position_y"`
	Config    map[string]any `json:"config"`
}

// Edge connects two nodes. SourceHandle labels conditional branches
// ("true"/"false" on condition nodes); an empty handle is
// unconditional and always activates when the source node succeeds.
type Edge struct {
	From         string `json:"from" validate:"required"`
	To           string `json:"to"   validate:"required"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}
