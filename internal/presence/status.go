// Package presence tracks our own availability state and a short-lived
// cache of peer agent availability, so replies are not wasted on agents
// that are busy or offline.
package presence

// Status is the availability of an agent as observed on the channel.
type Status int

const (
	// Unknown means no presence information was observed. It is never
	// cached: the next lookup asks the transport again.
	Unknown Status = iota
	Available
	// Idle peers are away but still reachable; mentions stay intact.
	Idle
	Busy
	Offline
)

func (s Status) String() string {
	switch s {
	case Available:
		return "available"
	case Idle:
		return "idle"
	case Busy:
		return "busy"
	case Offline:
		return "offline"
	default:
		return "unknown"
	}
}

// Reachable reports whether a direct @mention of an agent in this state
// is worth keeping.
func (s Status) Reachable() bool {
	return s == Available || s == Idle || s == Unknown
}

// ParseStatus maps transport status strings to a Status. Anything the
// transport reports that we do not recognize comes back Unknown.
func ParseStatus(raw string) Status {
	switch raw {
	case "online":
		return Available
	case "idle":
		return Idle
	case "dnd":
		return Busy
	case "offline", "invisible":
		return Offline
	default:
		return Unknown
	}
}
