package workflow

import "time"

// ClassifyClosure picks the closed status for a field observation. The planned
// date counts until the end of its day and the closing date from the start of
// its day, so closing on the planned day is on time.
func ClassifyClosure(planned, closing time.Time) Status {
	if civilDate(closing).After(civilDate(planned)) {
		return StatusClosedLate
	}
	return StatusClosedOnTime
}

func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
