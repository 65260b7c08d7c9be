package session

import (
	"fmt"
	"strings"
)

// refScheme prefixes shareable session references. The reference is the only
// persisted/transmitted artifact this subsystem defines; it is meant to be
// embeddable in a join link or pasted verbatim into another client.
const refScheme = "minigames://session/"

// ShareableRef builds the shareable reference for a session id.
func ShareableRef(sessionID string) string {
	return refScheme + sessionID
}

// ParseRef extracts a session id from a shareable reference. A bare session
// id is accepted as-is, so users can paste either form.
func ParseRef(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("session: empty session reference")
	}
	if id, ok := strings.CutPrefix(ref, refScheme); ok {
		if id == "" {
			return "", fmt.Errorf("session: reference %q has no session id", ref)
		}
		return id, nil
	}
	if strings.Contains(ref, "://") {
		return "", fmt.Errorf("session: unrecognized reference %q", ref)
	}
	return ref, nil
}
