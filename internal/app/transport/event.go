package transport

// EventType represents a resource lifecycle event.
type EventType int

const (
	EventTimeUpdate     EventType = iota // Playback position moved
	EventProgress                        // More media was buffered
	EventLoadedMetadata                  // Duration became known
	EventWaiting                         // Playback stalled on the network
	EventCanPlay                         // Enough data to continue
	EventEnded                           // Playback completed
	EventError                           // Load or decode failure
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTimeUpdate:
		return "time_update"
	case EventProgress:
		return "progress"
	case EventLoadedMetadata:
		return "loaded_metadata"
	case EventWaiting:
		return "waiting"
	case EventCanPlay:
		return "can_play"
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is emitted by a Resource.
type Event struct {
	Type EventType
	Err  error // Set for EventError
}
