package cli

import (
	"fmt"
	"time"

	"fno-signals/pkg/utils"
)

// FormatTime formats a time in IST.
func FormatTime(t time.Time) string {
	return t.In(utils.IndiaLocation).Format("15:04:05")
}

// FormatDateTime formats a datetime in IST.
func FormatDateTime(t time.Time) string {
	return t.In(utils.IndiaLocation).Format("02-Jan-2006 15:04")
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%dd %dh", days, hours)
}

// FormatConfidence formats a confidence percentage.
func FormatConfidence(conf float64) string {
	return fmt.Sprintf("%.0f%%", conf)
}

// TruncateString truncates a string to maxLen runes with ellipsis.
func TruncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 0 {
		return ""
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
