package logic

// Schedule decides whether the current window's state should be reported.
//
// loopsSincePost counts windows since the last report and includes the
// current one. A stable state is always reported. An unknown state is
// reported once the counter reaches heartbeat; heartbeat <= 0 disables that.
// The returned counter is 0 whenever a report is due.
func Schedule(loopsSincePost int, state State, heartbeat int) (int, bool) {
	loopsSincePost++
	if state != StateUnknown {
		return 0, true
	}
	if heartbeat > 0 && loopsSincePost >= heartbeat {
		return 0, true
	}
	return loopsSincePost, false
}
