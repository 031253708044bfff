package orchestrator

import "encoding/json"

// State is the shared blackboard a workflow run accumulates. Stages receive a
// deep snapshot and return updates; they never see each other's in-flight
// writes.
type State map[string]any

// Clone deep-copies the state via a JSON round-trip. Values must therefore be
// JSON-serializable, which the pipelines already guarantee since state is
// persisted into job_run.result.
func (s State) Clone() State {
	if s == nil {
		return State{}
	}
	b, err := json.Marshal(s)
	if err != nil {
		out := make(State, len(s))
		for k, v := range s {
			out[k] = v
		}
		return out
	}
	var out State
	if err := json.Unmarshal(b, &out); err != nil || out == nil {
		return State{}
	}
	return out
}

// Merge overlays updates onto the state, last writer wins per key.
func (s State) Merge(updates State) {
	for k, v := range updates {
		s[k] = v
	}
}

// GetString reads a string-valued key, returning "" when absent or mistyped.
func (s State) GetString(key string) string {
	if s == nil {
		return ""
	}
	v, ok := s[key].(string)
	if !ok {
		return ""
	}
	return v
}

// GetMap reads a map-valued key, returning nil when absent or mistyped.
func (s State) GetMap(key string) map[string]any {
	if s == nil {
		return nil
	}
	v, ok := s[key].(map[string]any)
	if !ok {
		return nil
	}
	return v
}
