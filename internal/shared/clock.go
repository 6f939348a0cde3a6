package shared

import "time"

// IST is the fixed offset all business-day arithmetic runs in. Snapshot
// timestamps may arrive in any zone; they are converted here before any
// day-boundary or "today" comparison.
var IST = time.FixedZone("IST", 5*3600+30*60)

// Clock lets services take wall-clock time as a dependency so tests can pin it.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().In(IST) }

// SystemClock returns the process clock, reporting IST times.
func SystemClock() Clock { return systemClock{} }

// FixedClock is a test clock stuck at a single instant.
type FixedClock struct{ T time.Time }

func (c FixedClock) Now() time.Time { return c.T.In(IST) }

// StartOfDayIST truncates t to midnight of its IST calendar day.
func StartOfDayIST(t time.Time) time.Time {
	it := t.In(IST)
	return time.Date(it.Year(), it.Month(), it.Day(), 0, 0, 0, 0, IST)
}

// SameISTDay reports whether two instants fall on the same IST calendar day.
func SameISTDay(a, b time.Time) bool {
	ia, ib := a.In(IST), b.In(IST)
	return ia.Year() == ib.Year() && ia.YearDay() == ib.YearDay()
}

// MonthKeyIST formats the IST year-month of t, e.g. "2026-08".
func MonthKeyIST(t time.Time) string {
	return t.In(IST).Format("2006-01")
}
