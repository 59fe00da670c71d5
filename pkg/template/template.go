// Package template provides token substitution for node configuration.
//
// Tokens of the form {{path.to.value}} are resolved by dotted-path
// lookup into the execution context. Unresolved tokens render as an
// empty string rather than failing, so a delivery is never aborted by
// an optional field the author left out of the payload.
package template

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/luisscruza/optiflow-sub005/pkg/models"
)

var tokenPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.\-]+)\s*\}\}`)

// RenderWithContext renders a config value against the standard
// context bag: the trigger payload keys at the top level (job,
// contact, workflow, ...), plus "trigger", "nodes" and "run".
func RenderWithContext(value any, executionCtx *models.ExecutionContext) any {
	return Render(value, Bag(executionCtx))
}

// Bag builds the lookup map used for rendering. Condition nodes use
// it directly to resolve a token to its raw, untyped value.
func Bag(executionCtx *models.ExecutionContext) map[string]any {
	data := make(map[string]any, len(executionCtx.TriggerData)+3)

	for k, v := range executionCtx.TriggerData {
		data[k] = v
	}

	data["trigger"] = executionCtx.TriggerData
	data["nodes"] = nodeOutputsBag(executionCtx.NodeOutputs)
	data["run"] = map[string]any{
		"id":            executionCtx.RunID,
		"automation_id": executionCtx.AutomationID,
		"workspace_id":  executionCtx.WorkspaceID,
	}

	return data
}

// RenderStringWithContext renders a single string against the
// standard context bag.
func RenderStringWithContext(s string, executionCtx *models.ExecutionContext) string {
	rendered, _ := RenderWithContext(s, executionCtx).(string)

	return rendered
}

// Render substitutes tokens in value. Strings are rendered in place;
// maps and slices are rendered recursively; every other type is
// returned untouched so structural JSON keeps its non-string values.
func Render(value any, data map[string]any) any {
	switch v := value.(type) {
	case string:
		return RenderString(v, data)
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = Render(item, data)
		}

		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Render(item, data)
		}

		return out
	default:
		return value
	}
}

// RenderString replaces every token in s with the stringified value
// at its dotted path. Unresolved paths become the empty string.
func RenderString(s string, data map[string]any) string {
	return tokenPattern.ReplaceAllStringFunc(s, func(token string) string {
		path := tokenPattern.FindStringSubmatch(token)[1]

		value, ok := Lookup(data, path)
		if !ok {
			return ""
		}

		return stringify(value)
	})
}

// Lookup resolves a dotted path against nested maps. Numeric path
// segments index into slices.
func Lookup(data map[string]any, path string) (any, bool) {
	var current any = data

	for _, segment := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			value, ok := node[segment]
			if !ok {
				return nil, false
			}

			current = value
		case []any:
			index, err := strconv.Atoi(segment)
			if err != nil || index < 0 || index >= len(node) {
				return nil, false
			}

			current = node[index]
		default:
			return nil, false
		}
	}

	return current, true
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		// JSON numbers decode as float64; keep integral values clean.
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case map[string]any, []any:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}

		return string(encoded)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func nodeOutputsBag(outputs map[string]map[string]any) map[string]any {
	bag := make(map[string]any, len(outputs))
	for nodeID, output := range outputs {
		bag[nodeID] = output
	}

	return bag
}
