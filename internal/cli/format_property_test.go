package cli

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TruncateString never exceeds the limit in runes, never splits a rune and
// leaves short strings alone.
func TestPropertyTruncateString(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	fits := func(s string, maxLen int) bool {
		out := TruncateString(s, maxLen)
		if utf8.RuneCountInString(s) <= maxLen {
			return out == s
		}
		if !utf8.ValidString(out) || utf8.RuneCountInString(out) != maxLen {
			t.Logf("TruncateString(%q, %d) = %q", s, maxLen, out)
			return false
		}
		return maxLen <= 3 || strings.HasSuffix(out, "...")
	}

	properties.Property("ascii result fits in maxLen", prop.ForAll(fits,
		gen.AlphaString(),
		gen.IntRange(0, 40),
	))
	properties.Property("unicode result fits in maxLen", prop.ForAll(fits,
		gen.AnyString(),
		gen.IntRange(0, 40),
	))

	properties.TestingRun(t)
}

func TestTruncateStringMultiByte(t *testing.T) {
	tests := []struct {
		s      string
		maxLen int
		want   string
	}{
		{"₹18000 CE रुपये", 8, "₹1800..."},
		{"निफ्टी", 5, "नि..."},
		{"₹₹₹₹", 3, "₹₹₹"},
		{"₹₹₹₹", 4, "₹₹₹₹"},
		{"₹₹₹₹", 0, ""},
	}
	for _, tt := range tests {
		got := TruncateString(tt.s, tt.maxLen)
		if got != tt.want || !utf8.ValidString(got) {
			t.Errorf("TruncateString(%q, %d) = %q, want %q", tt.s, tt.maxLen, got, tt.want)
		}
	}
}

// FormatDuration picks the unit from the magnitude.
func TestPropertyFormatDuration(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("unit matches magnitude", prop.ForAll(
		func(secs int64) bool {
			d := time.Duration(secs) * time.Second
			out := FormatDuration(d)
			switch {
			case d < time.Minute:
				return strings.HasSuffix(out, "s") && !strings.Contains(out, "m")
			case d < time.Hour:
				return strings.Contains(out, "m ") && strings.HasSuffix(out, "s")
			case d < 24*time.Hour:
				return strings.Contains(out, "h ") && strings.HasSuffix(out, "m")
			default:
				return strings.Contains(out, "d ") && strings.HasSuffix(out, "h")
			}
		},
		gen.Int64Range(1, 10*24*3600),
	))

	properties.TestingRun(t)
}

func TestFormatDurationExamples(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{42 * time.Second, "42s"},
		{3*time.Minute + 5*time.Second, "3m 5s"},
		{2*time.Hour + 30*time.Minute, "2h 30m"},
		{50 * time.Hour, "2d 2h"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFormatDateTimeUsesIST(t *testing.T) {
	got := FormatDateTime(time.Date(2024, 1, 18, 9, 20, 0, 0, time.UTC))
	if got != "18-Jan-2024 14:50" {
		t.Errorf("FormatDateTime = %q", got)
	}
	if got := FormatTime(time.Date(2024, 1, 18, 3, 45, 0, 0, time.UTC)); got != "09:15:00" {
		t.Errorf("FormatTime = %q", got)
	}
}
