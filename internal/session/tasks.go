package session

import (
	"sort"

	"flowdesk/internal/types"
)

// PrioritySort orders tasks for display: unfinished before done, then by
// priority. Burnout inverts the priority order so the list leads with
// lighter work. The sort is stable, so insertion order breaks ties.
func PrioritySort(tasks []types.Task, state types.BehavioralState) []types.Task {
	out := make([]types.Task, len(tasks))
	copy(out, tasks)

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Done != out[j].Done {
			return !out[i].Done
		}
		ri, rj := out[i].Priority.Rank(), out[j].Priority.Rank()
		if state == types.StateBurnout {
			return ri > rj
		}
		return ri < rj
	})
	return out
}

// TopPick returns the task to suggest locking onto: the first unfinished
// task in sorted order, or nil when everything is done.
func TopPick(tasks []types.Task, state types.BehavioralState) *types.Task {
	sorted := PrioritySort(tasks, state)
	for i := range sorted {
		if !sorted[i].Done {
			return &sorted[i]
		}
	}
	return nil
}
