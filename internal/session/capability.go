// Package session provides agent identity, naming, and staleness helpers
// shared by the lifecycle engine, the watchdog, and the mail router.
package session

import "fmt"

// Capability is the closed-set role tag governing an agent's tool scope and
// spawn rules (spec §3).
type Capability string

const (
	CapabilityScout       Capability = "scout"
	CapabilityBuilder     Capability = "builder"
	CapabilityReviewer    Capability = "reviewer"
	CapabilityLead        Capability = "lead"
	CapabilityMerger      Capability = "merger"
	CapabilityCoordinator Capability = "coordinator"
	CapabilitySupervisor  Capability = "supervisor"
	CapabilityMonitor     Capability = "monitor"
)

// Capabilities lists every valid capability, in the order the spec names
// them.
var Capabilities = []Capability{
	CapabilityScout, CapabilityBuilder, CapabilityReviewer, CapabilityLead,
	CapabilityMerger, CapabilityCoordinator, CapabilitySupervisor, CapabilityMonitor,
}

// Valid reports whether c is one of the closed set of capabilities.
func (c Capability) Valid() bool {
	for _, v := range Capabilities {
		if v == c {
			return true
		}
	}
	return false
}

// Plural returns the group-address plural form (builder -> builders),
// accepted by mail group-address resolution (spec §4.E).
func (c Capability) Plural() string {
	return fmt.Sprintf("%ss", c)
}
