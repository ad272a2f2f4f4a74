package appointment

import (
	"fmt"
	"math"
	"time"
)

// AttendanceWindow is the span around an appointment during which a diagnosis
// may be recorded: it opens Early before the scheduled start and closes Late
// after the scheduled end. Both bounds are exclusive.
type AttendanceWindow struct {
	Early time.Duration
	Late  time.Duration
}

var DefaultAttendanceWindow = AttendanceWindow{
	Early: 30 * time.Minute,
	Late:  2 * time.Hour,
}

// Bounds returns the window for a in loc, the clinic's configured zone.
func (w AttendanceWindow) Bounds(a *Appointment, loc *time.Location) (opens, closes time.Time) {
	return a.StartsAt(loc).Add(-w.Early), a.EndsAt(loc).Add(w.Late)
}

func (w AttendanceWindow) CanBeAttended(a *Appointment, now time.Time, loc *time.Location) bool {
	if a.Status != StatusConfirmed {
		return false
	}
	opens, closes := w.Bounds(a, loc)
	return now.After(opens) && now.Before(closes)
}

// Closed reports whether the window has already shut at now.
func (w AttendanceWindow) Closed(a *Appointment, now time.Time, loc *time.Location) bool {
	_, closes := w.Bounds(a, loc)
	return !now.Before(closes)
}

// ExplainBlockReason describes why a cannot be attended at now, or returns ""
// when it can.
func (w AttendanceWindow) ExplainBlockReason(a *Appointment, now time.Time, loc *time.Location) string {
	switch a.Status {
	case StatusConfirmed:
	case StatusScheduled:
		return "the appointment must be confirmed before a diagnosis can be recorded"
	default:
		return fmt.Sprintf("the appointment is %s; only confirmed appointments can be attended", a.Status)
	}

	opens, closes := w.Bounds(a, loc)
	now = now.In(loc)
	switch {
	case !now.After(opens):
		return fmt.Sprintf("too early: attention opens in %s (at %s)",
			humanizeWait(opens.Sub(now)), opens.Format("15:04"))
	case !now.Before(closes):
		return fmt.Sprintf("the attention window closed at %s on %s",
			closes.Format("15:04"), closes.Format("2006-01-02"))
	}
	return ""
}

// humanizeWait renders d rounded up to whole minutes, e.g. "1 h 05 min" or "12 min".
func humanizeWait(d time.Duration) string {
	minutes := int(math.Ceil(d.Minutes()))
	if minutes < 1 {
		minutes = 1
	}
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	return fmt.Sprintf("%d h %02d min", minutes/60, minutes%60)
}
