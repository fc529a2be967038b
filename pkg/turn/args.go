package turn

import (
	"encoding/json"
	"fmt"
)

// parseArgs decodes a tool call's raw JSON arguments into a map, per spec
// §4.10's ToolArgParseError path: a malformed JSON payload is pushed as an
// is_error tool result rather than aborting the turn.
func parseArgs(argsJSON string) (map[string]any, error) {
	if argsJSON == "" {
		return map[string]any{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(argsJSON), &out); err != nil {
		return nil, fmt.Errorf("%w", err)
	}
	return out, nil
}
