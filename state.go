package strata

import "fmt"

// State is the readiness of the model after the last run.
type State uint8

const (
	// NoneReady means nothing has been analyzed yet.
	NoneReady State = iota
	// Error means the last run was aborted by an unreadable unit.
	Error
	// ManuallyStopped means the last run was cancelled; no batch of it was
	// merged.
	ManuallyStopped
	// PhysicalReady means the physical layer is complete.
	PhysicalReady
	// PhysicalError means merging a physical run failed part way.
	PhysicalError
	// AllReady means both layers are complete.
	AllReady
	// LogicalError means merging a full run failed part way.
	LogicalError
)

var stateNames = [...]string{
	NoneReady:       "none_ready",
	Error:           "error",
	ManuallyStopped: "manually_stopped",
	PhysicalReady:   "physical_ready",
	PhysicalError:   "physical_error",
	AllReady:        "all_ready",
	LogicalError:    "logical_error",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", s)
}

// ParseState is the inverse of State.String. The empty string is NoneReady.
func ParseState(s string) (State, error) {
	if s == "" {
		return NoneReady, nil
	}
	for i, name := range stateNames {
		if name == s {
			return State(i), nil
		}
	}
	return NoneReady, fmt.Errorf("unknown state %q", s)
}

// Ready reports whether the state permits reusing unchanged units.
func (s State) Ready() bool {
	return s == PhysicalReady || s == AllReady
}
