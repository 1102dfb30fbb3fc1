package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var levelColors = []struct {
	level      string
	background string
	foreground string
}{
	{"DEBU", "63", "0"},
	{"INFO", "87", "16"},
	{"WARN", "192", "0"},
	{"ERRO", "204", "0"},
	{"FATA", "134", "0"},
}

func levelBadge(level, background, foreground string) string {
	return lipgloss.NewStyle().
		Padding(0, 1, 0, 1).
		Bold(true).
		MaxWidth(80).
		Background(lipgloss.Color(background)).
		Foreground(lipgloss.Color(foreground)).
		Render(level)
}

// ColorizeLogs highlights the level of each log line in place.
func ColorizeLogs(logs []string) []string {
	for i, log := range logs {
		// Only style if not already styled (check for ANSI codes)
		if strings.Contains(log, "\x1b[") {
			continue
		}
		for _, c := range levelColors {
			if strings.Contains(log, c.level) {
				logs[i] = strings.Replace(log, c.level, levelBadge(c.level, c.background, c.foreground), 1)
				break
			}
		}
	}
	return logs
}

// FormatTimeLeft renders a countdown as hh:mm:ss, prefixed with days when
// there are any. Anything not in the future is "Ended".
func FormatTimeLeft(d time.Duration) string {
	if d <= 0 {
		return "Ended"
	}
	d = d.Round(time.Second)
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if days > 0 {
		return fmt.Sprintf("%dd %02d:%02d:%02d", days, h, m, s)
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
