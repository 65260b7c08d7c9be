package envelope

import "encoding/json"

// Typed payload shapes for the envelope kinds this subsystem itself produces.
// Move and state-sync payloads stay opaque — the router and controller never
// look inside them.

// JoinPayload accompanies player-join and peer-discovery.
type JoinPayload struct {
	Name string `json:"name"`
}

// ReadyPayload accompanies player-ready.
type ReadyPayload struct {
	Ready bool `json:"ready"`
}

// ActivityPayload accompanies activity-select and activity-start.
type ActivityPayload struct {
	ActivityID string `json:"activityId"`
}

// DescriptionPayload accompanies offer and answer envelopes. SDPType is
// "offer" or "answer" as reported by the underlying transport.
type DescriptionPayload struct {
	SDPType string `json:"sdpType"`
	SDP     string `json:"sdp"`
}

// FragmentPayload accompanies fragment envelopes. Candidate is the
// JSON-encoded connection-parameter fragment from the underlying transport.
type FragmentPayload struct {
	Candidate string `json:"candidate"`
}

// MarshalPayload encodes any typed payload for embedding in an Envelope.
func MarshalPayload(v any) []byte {
	data, _ := json.Marshal(v)
	return data
}

// UnmarshalPayload decodes an envelope payload into the given typed shape.
func UnmarshalPayload(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
