package api

import (
	"bytes"
	"encoding/json"

	"voice-agent-console/internal/types"
)

// agentReply accepts either an agent object or a list holding one.
type agentReply struct {
	types.Agent
}

func (r *agentReply) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var list []types.Agent
		if err := json.Unmarshal(b, &list); err != nil {
			return err
		}
		if len(list) > 0 {
			r.Agent = list[0]
		}
		return nil
	}
	return json.Unmarshal(b, &r.Agent)
}
