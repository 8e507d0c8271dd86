// SPDX-License-Identifier: MIT

// Package channels owns the managed-channel lifecycle: creating upstream
// channels for matched streams when their create timing allows, keeping
// scheduled deletions in step with group settings, and sweeping channels
// whose time has come.
package channels

import (
	"time"

	"github.com/teamarr/teamarr/internal/domain"
)

// CreateAllowed reports whether a channel for an event starting at start
// may exist at now. Timings name the earliest allowed instant; day-based
// timings open at local midnight.
func CreateAllowed(timing domain.CreateTiming, start, now time.Time, loc *time.Location) bool {
	switch timing {
	case domain.CreateOnStreamAvailable:
		return true
	case domain.CreateSameDay:
		return !now.Before(dayStart(start, loc))
	case domain.CreateDayBefore:
		return !now.Before(dayStart(start, loc).AddDate(0, 0, -1))
	case domain.CreateTwoDaysBefore:
		return !now.Before(dayStart(start, loc).AddDate(0, 0, -2))
	default: // manual and unknown timings never auto-create
		return false
	}
}

// DeleteAt returns the scheduled deletion instant for an event ending at
// end, always 23:59:59 local on the computed day. The end time, not the
// start, anchors the day so late games crossing midnight defer deletion.
// Stream-removed and manual timings return nil.
func DeleteAt(timing domain.DeleteTiming, end time.Time, loc *time.Location) *time.Time {
	var days int
	switch timing {
	case domain.DeleteSameDay:
		days = 0
	case domain.DeleteDayAfter:
		days = 1
	case domain.DeleteTwoDaysAfter:
		days = 2
	default:
		return nil
	}
	at := dayStart(end, loc).AddDate(0, 0, days+1).Add(-time.Second)
	return &at
}

func dayStart(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}
