// Package compliance tracks the periodic headcount updates participants post
// in the monitored group and escalates when a reporting window is missed.
package compliance

import (
	"time"

	"github.com/rotisserie/eris"
)

// Reporting grids.
const (
	Grid15 = 15 * time.Minute
	Grid60 = 60 * time.Minute
)

// graceMinute is how long after a window closes the check fires.
const graceMinute = time.Minute

// ValidateGrid checks that grid is a whole number of minutes that divides a
// day evenly.
func ValidateGrid(grid time.Duration) error {
	if grid <= 0 || grid%time.Minute != 0 || (24*time.Hour)%grid != 0 {
		return eris.Errorf("compliance: invalid grid %s", grid)
	}
	return nil
}

// Snap floors t to the start of its grid window in loc.
func Snap(t time.Time, grid time.Duration, loc *time.Location) time.Time {
	t = t.In(loc)
	step := int(grid / time.Minute)
	mins := t.Hour()*60 + t.Minute()
	mins -= mins % step
	return time.Date(t.Year(), t.Month(), t.Day(), mins/60, mins%60, 0, 0, loc)
}

// CheckedWindow returns the start of the window that closed one grace minute
// before fire.
func CheckedWindow(fire time.Time, grid time.Duration, loc *time.Location) time.Time {
	return Snap(fire.Add(-graceMinute-grid), grid, loc)
}

// subWindows splits the window starting at start into report-grid windows.
// A report grid coarser than grid yields the snapped start alone.
func subWindows(start time.Time, grid, reportGrid time.Duration) []time.Time {
	if reportGrid >= grid {
		return []time.Time{start}
	}
	out := make([]time.Time, 0, int(grid/reportGrid))
	for w := start; w.Before(start.Add(grid)); w = w.Add(reportGrid) {
		out = append(out, w)
	}
	return out
}
