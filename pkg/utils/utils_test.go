package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFormatTimeLeft(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{-time.Second, "Ended"},
		{0, "Ended"},
		{45 * time.Second, "00:00:45"},
		{time.Hour + 2*time.Minute + 3*time.Second, "01:02:03"},
		{90*time.Minute + 400*time.Millisecond, "01:30:00"},
		{50*time.Hour + 5*time.Second, "2d 02:00:05"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			require.Equal(t, tt.want, FormatTimeLeft(tt.in))
		})
	}
}

func TestColorizeLogs(t *testing.T) {
	logs := []string{
		"12:00 INFO Bid accepted",
		"12:00 WARN Dropping slow client",
		"12:00 plain line",
		"12:00 \x1b[1mINFO\x1b[0m already styled",
	}
	original := append([]string(nil), logs...)

	out := ColorizeLogs(logs)
	require.Len(t, out, 4)
	require.Contains(t, out[0], "Bid accepted")
	require.Contains(t, out[1], "Dropping slow client")
	require.Equal(t, original[2], out[2])
	require.Equal(t, original[3], out[3])
	require.Equal(t, 1, strings.Count(out[0], "INFO"))
}
