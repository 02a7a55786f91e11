package loop

import "github.com/taskscheduler/core/internal/store"

// Action is the enumerated outcome of an overlap-policy decision, executed
// by the loop against the store (spec.md §9, "Overlap-policy variants").
type Action int

const (
	// DoNothingAdvance advances next_run_at only; no instance is created.
	DoNothingAdvance Action = iota
	// Materialize creates an instance unconditionally.
	Materialize
	// ReplaceThenMaterialize transitions live instances to skipped, then materializes.
	ReplaceThenMaterialize
)

func (a Action) String() string {
	switch a {
	case DoNothingAdvance:
		return "do_nothing_advance"
	case Materialize:
		return "materialize"
	case ReplaceThenMaterialize:
		return "replace_then_materialize"
	default:
		return "unknown"
	}
}

// Decide maps a schedule's overlap policy and current live-instance count to
// an Action. Each branch is a small pure function, kept separate so they
// can be tested and reasoned about independently (spec.md §4.3).
func Decide(policy store.OverlapPolicy, liveCount, maxInstances int) Action {
	switch policy {
	case store.OverlapSkip:
		return decideSkip(liveCount, maxInstances)
	case store.OverlapQueue:
		return decideQueue()
	case store.OverlapReplace:
		return decideReplace(liveCount, maxInstances)
	default:
		return decideSkip(liveCount, maxInstances)
	}
}

// decideSkip declines to materialize once live instances reach the cap.
func decideSkip(liveCount, maxInstances int) Action {
	if liveCount >= maxInstances {
		return DoNothingAdvance
	}
	return Materialize
}

// decideQueue always materializes; the executor enforces max_instances.
func decideQueue() Action {
	return Materialize
}

// decideReplace makes room by skipping live instances once the cap is reached.
func decideReplace(liveCount, maxInstances int) Action {
	if liveCount >= maxInstances {
		return ReplaceThenMaterialize
	}
	return Materialize
}
