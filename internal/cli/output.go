// Package cli provides the command-line interface for the signal engine.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"fno-signals/internal/analysis"
)

// Text styles used across commands.
var (
	StyleGood = []color.Attribute{color.FgGreen}
	StyleBad  = []color.Attribute{color.FgRed}
	StyleWarn = []color.Attribute{color.FgYellow}
	StyleInfo = []color.Attribute{color.FgCyan}
	StyleBold = []color.Attribute{color.Bold}
	StyleDim  = []color.Attribute{color.Faint}
	StyleHot  = []color.Attribute{color.Bold, color.FgRed}
)

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// Output writes command results either as indented JSON or as
// human-readable lines, coloured when stdout is a terminal.
type Output struct {
	w     io.Writer
	json  bool
	color bool
}

// NewOutput reads the --json flag from cmd and writes to its output stream.
func NewOutput(cmd *cobra.Command) *Output {
	asJSON, _ := cmd.Flags().GetBool("json")
	w := cmd.OutOrStdout()
	return &Output{
		w:     w,
		json:  asJSON,
		color: !asJSON && w == os.Stdout && !color.NoColor,
	}
}

// IsJSON reports whether --json was given.
func (o *Output) IsJSON() bool { return o.json }

// JSON encodes v with two-space indentation.
func (o *Output) JSON(v interface{}) error {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (o *Output) Println(args ...interface{}) { fmt.Fprintln(o.w, args...) }

func (o *Output) Printf(format string, args ...interface{}) { fmt.Fprintf(o.w, format, args...) }

func (o *Output) Success(format string, args ...interface{}) { o.line(StyleGood, format, args) }
func (o *Output) Error(format string, args ...interface{})   { o.line(StyleBad, format, args) }
func (o *Output) Warning(format string, args ...interface{}) { o.line(StyleWarn, format, args) }
func (o *Output) Info(format string, args ...interface{})    { o.line(StyleInfo, format, args) }
func (o *Output) Bold(format string, args ...interface{})    { o.line(StyleBold, format, args) }
func (o *Output) Dim(format string, args ...interface{})     { o.line(StyleDim, format, args) }

func (o *Output) line(style []color.Attribute, format string, args []interface{}) {
	fmt.Fprintln(o.w, o.Paint(style, fmt.Sprintf(format, args...)))
}

// Paint styles text when colour is on and returns it unchanged otherwise.
func (o *Output) Paint(style []color.Attribute, text string) string {
	if !o.color {
		return text
	}
	c := color.New(style...)
	c.EnableColor()
	return c.Sprint(text)
}

// Sentiment colours a sentiment label: green bullish, red bearish.
func (o *Output) Sentiment(s analysis.Sentiment) string {
	style := StyleWarn
	switch s {
	case analysis.Bullish:
		style = StyleGood
	case analysis.Bearish:
		style = StyleBad
	}
	return o.Paint(style, string(s))
}

// Priority colours a priority tier; HIGH and above are bold red.
func (o *Output) Priority(p analysis.Priority) string {
	style := StyleDim
	switch {
	case p >= analysis.PriorityHigh:
		style = StyleHot
	case p == analysis.PriorityMedium:
		style = StyleWarn
	case p == analysis.PriorityLow:
		style = StyleInfo
	}
	return o.Paint(style, p.String())
}

// Table buffers rows and prints them with padded columns.
type Table struct {
	out     *Output
	headers []string
	rows    [][]string
	right   map[int]bool
}

func NewTable(out *Output, headers ...string) *Table {
	return &Table{out: out, headers: headers, right: map[int]bool{}}
}

// AlignRight right-aligns the given zero-based columns, for numbers.
func (t *Table) AlignRight(cols ...int) *Table {
	for _, c := range cols {
		t.right[c] = true
	}
	return t
}

func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Render prints the header, a dashed rule and every row.
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}
	widths := make([]int, len(t.headers))
	for _, row := range append([][]string{t.headers}, t.rows...) {
		for i := 0; i < len(row) && i < len(widths); i++ {
			if n := visibleLen(row[i]); n > widths[i] {
				widths[i] = n
			}
		}
	}

	header := t.format(t.headers, widths)
	rule := make([]string, len(widths))
	for i, w := range widths {
		rule[i] = strings.Repeat("-", w)
	}
	t.out.Println(t.out.Paint(StyleBold, header))
	t.out.Println(t.out.Paint(StyleDim, strings.Join(rule, "  ")))
	for _, row := range t.rows {
		t.out.Println(t.format(row, widths))
	}
}

func (t *Table) format(cells []string, widths []int) string {
	parts := make([]string, 0, len(widths))
	for i, cell := range cells {
		if i >= len(widths) {
			break
		}
		pad := strings.Repeat(" ", max(0, widths[i]-visibleLen(cell)))
		if t.right[i] {
			parts = append(parts, pad+cell)
		} else {
			parts = append(parts, cell+pad)
		}
	}
	return strings.TrimRight(strings.Join(parts, "  "), " ")
}

func visibleLen(s string) int {
	return len(stripANSI(s))
}

func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}
