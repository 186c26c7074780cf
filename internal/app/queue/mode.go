package queue

import "github.com/cockroachdb/errors"

// PlayMode is the policy governing what "next" and "previous" mean.
type PlayMode int

const (
	ModeSequential PlayMode = iota // Play in queue order, stop at the end
	ModeRepeatOne                  // Restart the current track
	ModeShuffle                    // Pick a random other track
)

// String returns the string representation of the play mode.
func (m PlayMode) String() string {
	switch m {
	case ModeSequential:
		return "sequential"
	case ModeRepeatOne:
		return "repeat_one"
	case ModeShuffle:
		return "shuffle"
	default:
		return "unknown"
	}
}

// Next returns the mode that follows m in the toggle cycle
// sequential → repeat_one → shuffle → sequential.
func (m PlayMode) Next() PlayMode {
	switch m {
	case ModeSequential:
		return ModeRepeatOne
	case ModeRepeatOne:
		return ModeShuffle
	default:
		return ModeSequential
	}
}

// ParsePlayMode converts a string to a PlayMode. Unknown values yield
// ModeSequential and false.
func ParsePlayMode(s string) (PlayMode, bool) {
	switch s {
	case "sequential":
		return ModeSequential, true
	case "repeat_one":
		return ModeRepeatOne, true
	case "shuffle":
		return ModeShuffle, true
	default:
		return ModeSequential, false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m PlayMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *PlayMode) UnmarshalText(text []byte) error {
	mode, ok := ParsePlayMode(string(text))
	if !ok {
		return errors.Newf("unknown play mode: %q", text)
	}
	*m = mode
	return nil
}
