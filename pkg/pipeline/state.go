package pipeline

// State is a step of the build state machine. States only move forward;
// StateFailed is terminal and reachable from every other non-terminal state.
type State int

const (
	StateInit State = iota
	StateResolved
	StateStaged
	StateCompiled
	StatePackaged
	StateArchived
	StateDirified
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateInit:     "init",
	StateResolved: "resolved",
	StateStaged:   "staged",
	StateCompiled: "compiled",
	StatePackaged: "packaged",
	StateArchived: "archived",
	StateDirified: "dirified",
	StateDone:     "done",
	StateFailed:   "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}
