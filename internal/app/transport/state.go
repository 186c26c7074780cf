// Package transport binds one audio resource at a time to the track being
// played and exposes its playback state.
package transport

// State represents the lifecycle state of the loaded resource.
type State int

const (
	StateEmpty   State = iota // No resource loaded
	StateLoading              // Resource created, metadata pending
	StateReady                // Duration known, not started
	StatePlaying              // Playback running
	StatePaused               // Playback paused
	StateEnded                // Playback completed
	StateError                // Load, decode or start failure
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateEnded:
		return "ended"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Loaded reports whether a resource is bound and can be started without a
// fresh load.
func (s State) Loaded() bool {
	switch s {
	case StateLoading, StateReady, StatePlaying, StatePaused:
		return true
	default:
		return false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unknown names decode
// to StateEmpty.
func (s *State) UnmarshalText(text []byte) error {
	*s = StateEmpty
	for candidate := StateEmpty; candidate <= StateError; candidate++ {
		if candidate.String() == string(text) {
			*s = candidate
			break
		}
	}
	return nil
}
