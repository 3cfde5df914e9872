package app

// State is the lifecycle state of the active flow
type State int

const (
	NoActiveFlow State = iota
	Loading
	Active
	Error
)

func (s State) String() string {
	switch s {
	case NoActiveFlow:
		return "no_active_flow"
	case Loading:
		return "loading"
	case Active:
		return "active"
	case Error:
		return "error"
	}
	return "unknown"
}

// User-facing error messages
const (
	MsgInvalidFlowCode = "Invalid flow code"
	MsgJoinFailed      = "Failed to join flow"
	MsgCreateFailed    = "Failed to create flow"
)

// Status is what a lifecycle listener observes
type Status struct {
	State  State
	FlowID string // id of the active flow, if any
	Error  string // user-facing message, set in the Error state
}
