// Package models provides condition expression evaluation for branch nodes
package models

import (
	"fmt"
	"strconv"
)

// ConditionInterpreter converts a rendered expression value into a
// boolean. A value it cannot interpret is an error, which the
// executor treats as a fatal, non-retryable node failure.
type ConditionInterpreter struct{}

func (ConditionInterpreter) Evaluate(exp any) (bool, error) {
	switch v := exp.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		if v == "" {
			return false, nil
		}

		result, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("cannot convert string %q to boolean: %w", v, err)
		}

		return result, nil
	case int:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	default:
		return false, fmt.Errorf("cannot convert %T to boolean", exp)
	}
}
