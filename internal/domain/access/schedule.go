package access

import (
	"fmt"
	"time"
)

// Window is a daily time range [Start, End) in minutes since midnight.
type Window struct {
	Start int
	End   int
}

// Contains reports whether the minute-of-day falls inside the window.
func (w Window) Contains(minute int) bool {
	return minute >= w.Start && minute < w.End
}

// Schedule maps weekdays to the windows during which access is permitted.
// A weekday with no entry denies access all day: absent means closed, never
// open.
type Schedule map[time.Weekday][]Window

// Permits reports whether t (already in zone-local time) falls inside one of
// the day's windows.
func (s Schedule) Permits(t time.Time) bool {
	windows, ok := s[t.Weekday()]
	if !ok {
		return false
	}
	minute := t.Hour()*60 + t.Minute()
	for _, w := range windows {
		if w.Contains(minute) {
			return true
		}
	}
	return false
}

// ParseWindow parses a "HH:MM-HH:MM" range into a Window.
func ParseWindow(s string) (Window, error) {
	var sh, sm, eh, em int
	if _, err := fmt.Sscanf(s, "%d:%d-%d:%d", &sh, &sm, &eh, &em); err != nil {
		return Window{}, fmt.Errorf("%w: %q", ErrMalformedWindow, s)
	}
	w := Window{Start: sh*60 + sm, End: eh*60 + em}
	if sh < 0 || sh > 23 || sm < 0 || sm > 59 || eh < 0 || eh > 24 || em < 0 || em > 59 || w.End <= w.Start {
		return Window{}, fmt.Errorf("%w: %q", ErrMalformedWindow, s)
	}
	return w, nil
}

// ParseWeekday maps a lowercase weekday name to time.Weekday.
func ParseWeekday(s string) (time.Weekday, error) {
	switch s {
	case "sunday":
		return time.Sunday, nil
	case "monday":
		return time.Monday, nil
	case "tuesday":
		return time.Tuesday, nil
	case "wednesday":
		return time.Wednesday, nil
	case "thursday":
		return time.Thursday, nil
	case "friday":
		return time.Friday, nil
	case "saturday":
		return time.Saturday, nil
	default:
		return 0, fmt.Errorf("%w: unknown weekday %q", ErrMalformedWindow, s)
	}
}
