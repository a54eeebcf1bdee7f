// Package timing formats and logs the wall time of long-running jobs.
package timing

import (
	"fmt"
	"time"

	"github.com/OFFIS-RIT/listenkg/pkg/logger"
)

// FormatDuration renders d as hh:mm:ss. Hours are not wrapped.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

// Track starts a stopwatch. The returned func logs the elapsed time under
// message and returns it, e.g. defer timing.Track("Processing time")().
func Track(message string, keyvals ...any) func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		elapsed := time.Since(start)
		logger.Info(message, append(keyvals, "duration", FormatDuration(elapsed))...)
		return elapsed
	}
}
