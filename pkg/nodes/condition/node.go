// Package condition provides the branching node for automation runs.
package condition

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/luisscruza/optiflow-sub005/pkg/models"
	"github.com/luisscruza/optiflow-sub005/pkg/protocol"
	"github.com/luisscruza/optiflow-sub005/pkg/template"
)

// BranchTrue and BranchFalse are the output handles downstream edges
// match on.
const (
	BranchTrue  = "true"
	BranchFalse = "false"
)

var singleTokenPattern = regexp.MustCompile(`^\s*\{\{\s*([A-Za-z0-9_.\-]+)\s*\}\}\s*$`)

// ConditionNode evaluates a templated expression and routes the run
// down the "true" or "false" branch. A condition never retries; an
// unevaluable expression fails the node immediately.
type ConditionNode struct {
	id         string
	expression string
}

// NewConditionNode creates a new condition node from its raw
// definition configuration.
func NewConditionNode(id string, config map[string]any) (*ConditionNode, error) {
	expression, ok := config["expression"].(string)
	if !ok || expression == "" {
		return nil, errors.New("missing required field 'expression'")
	}

	return &ConditionNode{id: id, expression: expression}, nil
}

func (n *ConditionNode) ID() string {
	return n.id
}

func (n *ConditionNode) Type() string {
	return models.NodeTypeCondition
}

func (n *ConditionNode) Retryable() bool {
	return false
}

// Execute resolves the expression and evaluates its truthiness. A
// single-token expression is resolved to the raw payload value so
// booleans and numbers keep their type; anything else is rendered to
// a string first.
func (n *ConditionNode) Execute(_ context.Context, executionCtx models.ExecutionContext) (*protocol.NodeResult, error) {
	var value any

	if match := singleTokenPattern.FindStringSubmatch(n.expression); match != nil {
		value, _ = template.Lookup(template.Bag(&executionCtx), match[1])
	} else {
		value = template.RenderStringWithContext(n.expression, &executionCtx)
	}

	interpreter := models.ConditionInterpreter{}

	result, err := interpreter.Evaluate(value)
	if err != nil {
		return nil, fmt.Errorf("condition expression %q: %w", n.expression, err)
	}

	branch := BranchFalse
	if result {
		branch = BranchTrue
	}

	return &protocol.NodeResult{
		Output: map[string]any{"result": result},
		Branch: branch,
	}, nil
}
