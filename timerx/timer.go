package timerx

import "time"

// StopTimer stops timer and drains its channel if it already fired, so a pending value
// is never read by a later select.
func StopTimer(timer *time.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
}
