package statistic

import "errors"

var (
	// ErrInvalidWindow is returned when a window name is unsupported.
	ErrInvalidWindow = errors.New("statistic: invalid window")
)
