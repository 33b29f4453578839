package tracker

import "time"

// durationAnchor is the date both clock times are placed on. The session
// date takes no part in the arithmetic.
var durationAnchor = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// ComputeDuration returns the time elapsed between in and out. A time-out
// earlier than the time-in is taken to fall on the next day, so the result
// is always in [0, 24h). Equal times give zero.
func ComputeDuration(in, out TimeOfDay) Span {
	inTS := in.On(durationAnchor)
	outTS := out.On(durationAnchor)
	if outTS.Before(inTS) {
		outTS = outTS.Add(day)
	}
	return Span(outTS.Sub(inTS))
}

// DeriveStudyRecord overwrites the derived fields of r.
func DeriveStudyRecord(r *StudyRecord) {
	r.TotalDuration = ComputeDuration(r.TimeIn, r.TimeOut)
}
