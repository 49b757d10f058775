// Package utils provides shared utility functions.
package utils

import (
	"fmt"
	"math"
	"strings"
)

// FormatPrice formats a price or strike in Indian digit grouping with two
// decimals, e.g. 1,23,456.50.
func FormatPrice(v float64) string {
	negative := v < 0
	if negative {
		v = -v
	}

	str := fmt.Sprintf("%.2f", v)
	parts := strings.Split(str, ".")
	result := formatIndianNumber(parts[0]) + "." + parts[1]
	if negative {
		result = "-" + result
	}
	return result
}

// formatIndianNumber groups an integer string as 3 digits then pairs.
func formatIndianNumber(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}

	result := s[n-3:]
	s = s[:n-3]

	for len(s) > 0 {
		if len(s) >= 2 {
			result = s[len(s)-2:] + "," + result
			s = s[:len(s)-2]
		} else {
			result = s + "," + result
			s = ""
		}
	}

	return result
}

// FormatPercent formats a percentage with sign.
func FormatPercent(value float64) string {
	sign := ""
	if value > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, value)
}

// FormatQuantity formats a contract or OI count with Indian grouping.
func FormatQuantity(qty int64) string {
	if qty < 0 {
		return "-" + formatIndianNumber(fmt.Sprintf("%d", -qty))
	}
	return formatIndianNumber(fmt.Sprintf("%d", qty))
}

// FormatOI formats open interest compactly in lakhs or crores.
func FormatOI(oi float64) string {
	abs := math.Abs(oi)
	switch {
	case abs >= 1e7:
		return fmt.Sprintf("%.2f Cr", oi/1e7)
	case abs >= 1e5:
		return fmt.Sprintf("%.2f L", oi/1e5)
	}
	return FormatQuantity(int64(math.Round(oi)))
}

// FormatScore formats a cycle score.
func FormatScore(score float64) string {
	return fmt.Sprintf("%.1f", score)
}
