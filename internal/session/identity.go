package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// Prefix is the common prefix for every Legio-managed tmux session.
const Prefix = "legio-"

// TmuxName returns the terminal-multiplexer session name for an agent in a
// project, following the `legio-{project}-{agent}` convention required by
// spec §3.
func TmuxName(project, agentName string) string {
	return fmt.Sprintf("%s%s-%s", Prefix, project, agentName)
}

// ParseTmuxName recovers (project, agentName) from a session name produced
// by TmuxName. The project is the text up to the first hyphen after the
// prefix, so project names must not contain hyphens; the agent name is
// everything after that hyphen and may contain hyphens itself.
func ParseTmuxName(session string) (project, agentName string, err error) {
	if !strings.HasPrefix(session, Prefix) {
		return "", "", fmt.Errorf("session %q: missing %q prefix", session, Prefix)
	}
	rest := strings.TrimPrefix(session, Prefix)
	idx := strings.Index(rest, "-")
	if idx <= 0 || idx == len(rest)-1 {
		return "", "", fmt.Errorf("session %q: expected project-agent format", session)
	}
	return rest[:idx], rest[idx+1:], nil
}

// AllAddress is the group address that resolves to every active session
// (spec §4.E).
const AllAddress = "@all"

// IsGroupAddress reports whether addr is a group address (`@all` or a
// capability group such as `@builder`/`@builders`).
func IsGroupAddress(addr string) bool {
	return strings.HasPrefix(addr, "@")
}

// ParseCapabilityGroup parses a `@<capability>` or `@<capability>s` address
// into its capability, accepting the plural form. Returns false if addr is
// not a group address or does not name a known capability.
func ParseCapabilityGroup(addr string) (Capability, bool) {
	if !IsGroupAddress(addr) || addr == AllAddress {
		return "", false
	}
	name := strings.TrimPrefix(addr, "@")
	for _, c := range Capabilities {
		if name == string(c) || name == c.Plural() {
			return c, true
		}
	}
	return "", false
}

// mintSuffixBytes controls the length of the random suffix appended to
// minted agent names (4 bytes -> 8 hex characters).
const mintSuffixBytes = 4

// MintAgentName derives a unique agent name from a capability, following
// the "<capability>-<short random suffix>" convention used throughout the
// CLI (spec §4.L "mint a unique agent name derived from capability and a
// short random suffix").
func MintAgentName(capability Capability) (string, error) {
	buf := make([]byte, mintSuffixBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("minting agent name: %w", err)
	}
	return fmt.Sprintf("%s-%s", capability, hex.EncodeToString(buf)), nil
}
