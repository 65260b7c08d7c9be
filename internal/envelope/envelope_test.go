package envelope_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/famkaliuzhnyi-web/Mini-games-sub000/internal/envelope"
)

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		env     *envelope.Envelope
		wantErr error
	}{
		{
			name: "complete envelope",
			env:  envelope.New(envelope.KindMove, "s1", "p1", envelope.RecipientAll, []byte(`{"x":1}`)),
		},
		{
			name:    "missing kind",
			env:     &envelope.Envelope{SessionID: "s1", SenderID: "p1"},
			wantErr: envelope.ErrMissingKind,
		},
		{
			name:    "missing session",
			env:     &envelope.Envelope{Kind: envelope.KindMove, SenderID: "p1"},
			wantErr: envelope.ErrMissingSession,
		},
		{
			name:    "missing sender",
			env:     &envelope.Envelope{Kind: envelope.KindMove, SessionID: "s1"},
			wantErr: envelope.ErrMissingSender,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.env.Validate()
			if err != tc.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tc.wantErr)
			}
			if err != nil && !errors.Is(err, envelope.ErrMalformed) {
				t.Errorf("Validate() = %v, does not classify as ErrMalformed", err)
			}
		})
	}
}

func TestAddressing(t *testing.T) {
	broadcast := envelope.New(envelope.KindMove, "s1", "p1", envelope.RecipientAll, nil)
	if !broadcast.Broadcast() || !broadcast.AddressedTo("p2") {
		t.Error("recipient 'all' should reach every participant")
	}

	unicast := envelope.New(envelope.KindOffer, "s1", "p1", "p2", nil)
	if unicast.Broadcast() {
		t.Error("unicast envelope reported as broadcast")
	}
	if !unicast.AddressedTo("p2") || unicast.AddressedTo("p3") {
		t.Error("unicast envelope misaddressed")
	}

	// Empty recipient behaves like a broadcast (legacy senders omit it).
	implicit := envelope.New(envelope.KindMove, "s1", "p1", "", nil)
	if !implicit.AddressedTo("p2") {
		t.Error("empty recipient should behave like a broadcast")
	}
}

func TestCodecsPreservePayloadBytes(t *testing.T) {
	payload := []byte(`{"board":[1,2,3],"raw":"éxact bytes"}`)
	env := envelope.New(envelope.KindMove, "s1", "p1", envelope.RecipientAll, payload)

	jsonData, err := envelope.EncodeJSON(env)
	if err != nil {
		t.Fatalf("EncodeJSON: %v", err)
	}
	fromJSON, err := envelope.DecodeJSON(jsonData)
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if !bytes.Equal(fromJSON.Payload, payload) {
		t.Errorf("JSON path mutated payload: got %q", fromJSON.Payload)
	}

	binData, err := envelope.EncodeBinary(env)
	if err != nil {
		t.Fatalf("EncodeBinary: %v", err)
	}
	fromBin, err := envelope.DecodeBinary(binData)
	if err != nil {
		t.Fatalf("DecodeBinary: %v", err)
	}
	if !bytes.Equal(fromBin.Payload, payload) {
		t.Errorf("binary path mutated payload: got %q", fromBin.Payload)
	}
	if fromBin.Kind != env.Kind || fromBin.SessionID != env.SessionID || fromBin.SenderID != env.SenderID {
		t.Error("binary path lost routing fields")
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := envelope.DecodeJSON([]byte("not json")); !errors.Is(err, envelope.ErrMalformed) {
		t.Errorf("DecodeJSON garbage = %v, want ErrMalformed", err)
	}
	if _, err := envelope.DecodeBinary([]byte{0xc1, 0xff}); !errors.Is(err, envelope.ErrMalformed) {
		t.Errorf("DecodeBinary garbage = %v, want ErrMalformed", err)
	}
	// Structurally valid but semantically empty envelopes are also rejected.
	if _, err := envelope.DecodeJSON([]byte(`{}`)); !errors.Is(err, envelope.ErrMalformed) {
		t.Errorf("DecodeJSON empty envelope = %v, want ErrMalformed", err)
	}
}
