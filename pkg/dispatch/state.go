package dispatch

// State is the dispatcher's position in its cycle.
type State int32

const (
	StateIdle State = iota
	StateCapturing
	StateClassifying
	StateDispatching
	StateShutdown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateClassifying:
		return "classifying"
	case StateDispatching:
		return "dispatching"
	case StateShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}
