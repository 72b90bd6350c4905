package wecs

// Stage represents a scheduling stage for system execution.
// Systems are executed in stage order: First → Update → Last, with a
// command barrier between consecutive stages.
type Stage int

const (
	// StageFirst runs first. Use for event buffer rotation, input
	// sampling, and setup logic that other systems depend on.
	StageFirst Stage = iota

	// StageUpdate runs second. Use for the main simulation logic; most
	// systems belong here.
	StageUpdate

	// StageLast runs last. Use for cleanup, bookkeeping, and state
	// export that must observe the whole pass.
	StageLast

	// stageCount is the total number of stages.
	stageCount
)

// String returns the string representation of the stage.
func (s Stage) String() string {
	switch s {
	case StageFirst:
		return "First"
	case StageUpdate:
		return "Update"
	case StageLast:
		return "Last"
	default:
		return "Unknown"
	}
}
