package matching

// State is the lifecycle phase of an Engine.
type State int32

const (
	StateIdle State = iota
	StateLoading
	StateScoring
	StateRanking
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateScoring:
		return "scoring"
	case StateRanking:
		return "ranking"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// running reports whether a batch is in flight.
func (s State) running() bool {
	return s == StateLoading || s == StateScoring || s == StateRanking
}
