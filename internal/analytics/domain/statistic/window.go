package statistic

import "time"

// Window selects which readings an aggregate covers.
type Window string

const (
	WindowLast7Days  Window = "7days"
	WindowLast30Days Window = "30days"
	WindowAll        Window = "all"
)

// ParseWindow validates a window name. Empty means all.
func ParseWindow(value string) (Window, error) {
	switch Window(value) {
	case "":
		return WindowAll, nil
	case WindowLast7Days, WindowLast30Days, WindowAll:
		return Window(value), nil
	default:
		return "", ErrInvalidWindow
	}
}

// Days returns the look-back length; 0 means unbounded.
func (w Window) Days() int {
	switch w {
	case WindowLast7Days:
		return 7
	case WindowLast30Days:
		return 30
	default:
		return 0
	}
}

// Start returns the first included calendar day relative to today.
func (w Window) Start(today time.Time) (time.Time, bool) {
	days := w.Days()
	if days == 0 {
		return time.Time{}, false
	}
	return today.AddDate(0, 0, -days), true
}
