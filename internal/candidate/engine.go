// Package candidate holds the vocabulary shared between lift detection
// and move classification: a candidate's terminal Result. Both engines
// track several in-flight hypotheses per trajectory stretch and need
// the same three-way outcome for each: still live, conclusively
// finished, or conclusively failed. What each engine does with a
// finished or failed candidate differs enough (station-count bucketing
// and an abutment tie-break for lifts; rolling constraint windows and
// a longest-span tie-break for moves) that the rest of each engine
// lives in its own package rather than behind a shared abstraction.
package candidate

// Result is a candidate's terminal state. NotFinished is the only
// non-terminal value.
type Result int

const (
	NotFinished Result = iota
	Finished
	Failure
)

func (r Result) String() string {
	switch r {
	case Finished:
		return "Finished"
	case Failure:
		return "Failure"
	default:
		return "NotFinished"
	}
}
