package envelope

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Two codecs share the Envelope struct: JSON on the signaling channel (easy
// to inspect, matches the relay's WriteJSON framing) and msgpack on direct
// data channels (compact binary, one message per datagram).

// EncodeJSON serializes an envelope for the signaling path.
func EncodeJSON(e *Envelope) ([]byte, error) {
	return json.Marshal(e)
}

// DecodeJSON deserializes a signaling-path envelope and validates it.
func DecodeJSON(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: decode json: %v", ErrMalformed, err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

// EncodeBinary serializes an envelope for a direct data channel.
func EncodeBinary(e *Envelope) ([]byte, error) {
	return msgpack.Marshal(e)
}

// DecodeBinary deserializes a direct-channel envelope and validates it.
func DecodeBinary(data []byte) (*Envelope, error) {
	var e Envelope
	if err := msgpack.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: decode binary: %v", ErrMalformed, err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}
