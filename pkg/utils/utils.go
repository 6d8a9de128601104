package utils

import "fmt"

// FormatDuration renders milliseconds as "1h 23m", "4m 5s" or "7s".
func FormatDuration(ms int64) string {
	if ms < 0 {
		ms = -ms
	}
	seconds := ms / 1000
	switch {
	case seconds >= 3600:
		return fmt.Sprintf("%dh %dm", seconds/3600, (seconds%3600)/60)
	case seconds >= 60:
		return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// FormatRoundedUnit renders milliseconds in the largest whole unit.
func FormatRoundedUnit(ms int64) string {
	seconds := ms / 1000
	if seconds < 0 {
		seconds = -seconds
	}
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	if seconds >= 3600 {
		return fmt.Sprintf("%dh", seconds/3600)
	}
	return fmt.Sprintf("%dm", seconds/60)
}
