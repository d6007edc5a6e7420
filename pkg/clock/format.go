package clock

import (
	"fmt"
	"time"
)

// FormatClockTime formats a remaining time to a user-friendly string (e.g., "1:30").
// Below ten seconds tenths are shown ("9.4").
func FormatClockTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	timeMs := d.Milliseconds()
	totalSeconds := timeMs / 1000
	minutes := totalSeconds / 60
	seconds := totalSeconds % 60

	if timeMs < 10000 {
		tenths := (timeMs % 1000) / 100
		return fmt.Sprintf("%d.%d", totalSeconds, tenths)
	}

	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
