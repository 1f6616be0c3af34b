// Package utils holds small helpers shared across the engine that don't
// belong to any one subsystem (the logger wraps go.uber.org/zap).
package utils

import "time"

// UnixMillis returns the current time as Unix milliseconds, the
// timestamp unit every wire format and internal tick uses.
func UnixMillis() int64 {
	return time.Now().UnixMilli()
}

// FromUnixMillis converts a Unix millisecond timestamp back to a
// time.Time in UTC.
func FromUnixMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// FormatDuration renders d as a compact human-readable string ("45s",
// "5m30s", "2h15m0s"; days fold into hours, so 3d5h is "77h0m0s"), used
// for the operator-facing uptime field. Seconds are dropped once d
// reaches an hour, and minutes once it reaches a day.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}

	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	switch {
	case days > 0:
		return (time.Duration(days*24+hours) * time.Hour).String()
	case hours > 0:
		return (time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute).String()
	case minutes > 0:
		return (time.Duration(minutes)*time.Minute + time.Duration(seconds)*time.Second).String()
	default:
		return (time.Duration(seconds) * time.Second).String()
	}
}
