package agent

// toolTurnRange is a half-open [Start,End) index range over a history slice
// covering one Assistant-with-tool_calls message plus its contiguous run of
// following Tool messages.
type toolTurnRange struct {
	Start, End int
}

// findToolTurns enumerates every tool-turn range in history, oldest first.
func findToolTurns(history []Message) []toolTurnRange {
	var ranges []toolTurnRange
	i := 0
	for i < len(history) {
		if history[i].HasToolCalls() {
			start := i
			j := i + 1
			for j < len(history) && history[j].Role == RoleTool {
				j++
			}
			ranges = append(ranges, toolTurnRange{Start: start, End: j})
			i = j
			continue
		}
		i++
	}
	return ranges
}

// PruneToolTurns deletes whole tool turns from oldest to newest until at
// most maxTurns remain. System/User messages and plain Assistant messages
// (no tool_calls) are never removed. maxTurns <= 0 is a no-op, matching the
// documented "0 or absent disables pruning" rule.
//
// The same function is shared by all three provider adapters: pruning the
// canonical uniform history once, before each wire translation, keeps the
// vendor-shape request and the mirrored history consistent with each other.
func PruneToolTurns(history []Message, maxTurns int) []Message {
	if maxTurns <= 0 {
		return history
	}
	ranges := findToolTurns(history)
	excess := len(ranges) - maxTurns
	if excess <= 0 {
		return history
	}

	result := make([]Message, len(history))
	copy(result, history)

	// Drain the leading `excess` ranges in reverse order so that removing
	// one range never invalidates the start/end indices of an earlier one.
	for k := excess - 1; k >= 0; k-- {
		r := ranges[k]
		result = append(result[:r.Start], result[r.End:]...)
	}
	return result
}

// CountToolTurns reports how many whole tool turns are present in history.
func CountToolTurns(history []Message) int {
	return len(findToolTurns(history))
}
