package cluster

// State is the lifecycle phase of a generator.
type State int32

const (
	StateNotStarted State = iota
	StateGeneratingCandidates
	StateCulling
	StateSorting
	StatePlacing
	StateCompleted
	StateTerminating
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not started"
	case StateGeneratingCandidates:
		return "generating candidates"
	case StateCulling:
		return "culling"
	case StateSorting:
		return "sorting"
	case StatePlacing:
		return "placing"
	case StateCompleted:
		return "completed"
	case StateTerminating:
		return "terminating"
	default:
		return "unknown"
	}
}

// Status is a point-in-time view of a generator. Unit is the shell or
// report window currently being placed.
type Status struct {
	State State
	Unit  int
}
