package detection

import (
	"strings"

	"github.com/dalemusser/anomalyhub/internal/domain/models"
)

// Color classes for log entries.
const (
	ColorRed    = "red"
	ColorPurple = "purple"
	ColorBlue   = "blue"
	ColorOrange = "orange"
	ColorPink   = "pink"
	ColorGray   = "gray"
)

// colorRules are checked in order; the first substring hit wins.
var colorRules = []struct {
	needles []string
	color   string
}{
	{[]string{"Fighting", "Pose"}, ColorRed},
	{[]string{"Stealing"}, ColorPurple},
	{[]string{"Loitering"}, ColorBlue},
	{[]string{"Pacing"}, ColorOrange},
	{[]string{"Scanning"}, ColorPink},
}

// ColorFor returns the color class for a detection category.
func ColorFor(category string) string {
	for _, rule := range colorRules {
		for _, n := range rule.needles {
			if strings.Contains(category, n) {
				return rule.color
			}
		}
	}
	return ColorGray
}

// ClockTime turns "YYYYMMDD_HHMMSS" into "HH:MM:SS". Anything it cannot
// parse is returned unchanged.
func ClockTime(ts string) string {
	_, after, ok := strings.Cut(ts, "_")
	if !ok {
		return ts
	}
	// Camera-prefixed stamps ("cam_YYYYMMDD_HHMMSS") keep the last segment.
	if i := strings.LastIndex(after, "_"); i >= 0 {
		after = after[i+1:]
	}
	if len(after) < 6 {
		return ts
	}
	for _, r := range after[:6] {
		if r < '0' || r > '9' {
			return ts
		}
	}
	return after[0:2] + ":" + after[2:4] + ":" + after[4:6]
}

// ViewEntry is a log entry prepared for the dashboard.
type ViewEntry struct {
	models.DetectionLogEntry
	Color string
	Clock string
}

// ViewEntries returns entries newest first with colors and clock times.
func ViewEntries(entries []models.DetectionLogEntry) []ViewEntry {
	out := make([]ViewEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		out = append(out, ViewEntry{
			DetectionLogEntry: e,
			Color:             ColorFor(e.Type),
			Clock:             ClockTime(e.Timestamp),
		})
	}
	return out
}
