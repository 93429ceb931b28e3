// Package events implements the Event Emitter: binding a Change Tracker
// diff to a save action under a configured EventPolicy, and persisting the
// resulting ItemEvent.
package events

// Policy governs whether and how an ItemEvent's Changes are populated.
type Policy int

const (
	// Disabled emits no event for any save action.
	Disabled Policy = iota
	// NoChanges emits an event for every save action with Changes always nil.
	NoChanges
	// AllChanges (the default) emits an event with the full diff for create
	// and update, and nil Changes for delete.
	AllChanges
)

// ParsePolicy parses the RBAC.EventPolicy configuration value. Unknown
// values are rejected so misconfiguration fails fast at startup rather than
// silently falling back to a default.
func ParsePolicy(s string) (Policy, bool) {
	switch s {
	case "Disabled":
		return Disabled, true
	case "NoChanges":
		return NoChanges, true
	case "AllChanges", "":
		return AllChanges, true
	default:
		return 0, false
	}
}

func (p Policy) String() string {
	switch p {
	case Disabled:
		return "Disabled"
	case NoChanges:
		return "NoChanges"
	default:
		return "AllChanges"
	}
}
