package logic

// Classify applies one window average to the confirmation counters and
// returns the updated counters and the resulting state.
//
// A reading strictly below threshold counts toward occupied; anything else,
// including a reading exactly at threshold, counts toward free. A flip in
// direction zeroes the opposing counter, so confirmation restarts.
func (c Counters) Classify(avg, threshold float64, required int) (Counters, State) {
	if avg < threshold {
		c.Occupied++
		c.Free = 0
	} else {
		c.Free++
		c.Occupied = 0
	}

	switch {
	case c.Occupied >= required:
		return c, StateOccupied
	case c.Free >= required:
		return c, StateFree
	default:
		return c, StateUnknown
	}
}
