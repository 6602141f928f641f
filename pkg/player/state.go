package player

// State is the lifecycle phase of a playback session.
type State int32

const (
	StateNegotiating State = iota // option negotiation in progress
	StatePlaying                  // frames going out on schedule
	StateDraining                 // movie done, goodbye on the wire
	StateClosed                   // connection torn down
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateNegotiating:
		return "negotiating"
	case StatePlaying:
		return "playing"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
