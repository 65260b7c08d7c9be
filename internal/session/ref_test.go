package session_test

import (
	"testing"

	"github.com/famkaliuzhnyi-web/Mini-games-sub000/internal/session"
)

func TestRefRoundTrip(t *testing.T) {
	ref := session.ShareableRef("abcd1234")
	id, err := session.ParseRef(ref)
	if err != nil {
		t.Fatalf("ParseRef(%q): %v", ref, err)
	}
	if id != "abcd1234" {
		t.Fatalf("id = %q, want abcd1234", id)
	}
}

func TestParseRef(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"bare id", "abcd1234", "abcd1234", false},
		{"full reference", "minigames://session/abcd1234", "abcd1234", false},
		{"surrounding whitespace", "  abcd1234\n", "abcd1234", false},
		{"empty", "", "", true},
		{"blank", "   ", "", true},
		{"scheme without id", "minigames://session/", "", true},
		{"foreign scheme", "https://example.com/abcd1234", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := session.ParseRef(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ParseRef(%q) = %q, want error", tc.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRef(%q): %v", tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("ParseRef(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
