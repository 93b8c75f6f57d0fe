package orchestrator

import (
	"sort"

	"github.com/threatmesh/threatmesh/core"
)

// ExecutionOrder produces the deterministic plugin sequence for one run:
// stpa-sec first when enabled (it derives the control structure the other
// frameworks reference), then the remaining primary frameworks in canonical
// order, then integration/cross-framework analyses strictly after all
// primaries. Duplicates are dropped. This is a fixed topological order, not a
// dependency solver: it encodes the single hard precedence edge and otherwise
// keeps a canonical ordering so token usage and timing stay reproducible.
func ExecutionOrder(enabled []core.FrameworkID) []core.FrameworkID {
	enabledSet := make(map[core.FrameworkID]bool, len(enabled))
	for _, id := range enabled {
		enabledSet[id] = true
	}

	out := make([]core.FrameworkID, 0, len(enabledSet))
	placed := make(map[core.FrameworkID]bool, len(enabledSet))

	if enabledSet[core.FrameworkSTPASec] {
		out = append(out, core.FrameworkSTPASec)
		placed[core.FrameworkSTPASec] = true
	}
	for _, id := range core.PrimaryFrameworks {
		if enabledSet[id] && !placed[id] {
			out = append(out, id)
			placed[id] = true
		}
	}

	// Everything else (integration analyses and unrecognized ids) runs
	// after the primaries, lexicographically for determinism.
	var rest []core.FrameworkID
	for id := range enabledSet {
		if !placed[id] {
			rest = append(rest, id)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	return append(out, rest...)
}
