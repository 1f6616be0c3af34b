package utils

import (
	"testing"
	"time"
)

func TestUnixMillisRoundtrip(t *testing.T) {
	ms := UnixMillis()
	back := FromUnixMillis(ms)
	if back.UnixMilli() != ms {
		t.Errorf("roundtrip mismatch: got %d, want %d", back.UnixMilli(), ms)
	}
	if back.Location() != time.UTC {
		t.Error("FromUnixMillis should return a UTC time")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{45 * time.Second, "45s"},
		{5*time.Minute + 30*time.Second, "5m30s"},
		{2*time.Hour + 15*time.Minute, "2h15m0s"},
		{3*24*time.Hour + 5*time.Hour, "77h0m0s"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.in); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatDurationNegativeIsAbsolute(t *testing.T) {
	if got := FormatDuration(-10 * time.Second); got != "10s" {
		t.Errorf("expected negative durations to format as their absolute value, got %q", got)
	}
}
