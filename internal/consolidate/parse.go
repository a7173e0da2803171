package consolidate

import (
	"encoding/json"
	"strings"
)

type reconciliationResponse struct {
	Action  string `json:"action"`
	Content string `json:"content"`
}

// parseReconciliation extracts the JSON object the reconciliation prompt
// asked for, tolerating surrounding prose the model adds despite being
// told not to.
func parseReconciliation(raw string) (Action, string, bool) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start == -1 || end == -1 || end < start {
		return "", "", false
	}

	var resp reconciliationResponse
	if err := json.Unmarshal([]byte(raw[start:end+1]), &resp); err != nil {
		return "", "", false
	}

	switch Action(strings.ToLower(strings.TrimSpace(resp.Action))) {
	case ActionCreate, ActionUpdate, ActionMerge, ActionSkip:
		return Action(strings.ToLower(strings.TrimSpace(resp.Action))), resp.Content, true
	default:
		return "", "", false
	}
}
