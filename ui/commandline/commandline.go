// Package commandline contains the rendering of results for the command line.
package commandline

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
)

var (
	normalStyle       = lipgloss.NewStyle().Padding(0, 1)
	rightAlignedStyle = lipgloss.NewStyle().Align(lipgloss.Right).Padding(0, 1)
	headerStyle       = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	tableBorderColor  = lipgloss.AdaptiveColor{Light: "#705090", Dark: "#B090D0"}
)

// Report is a two-column (name, value) table of results.
type Report struct {
	title string
	rows  [][]string
}

// NewReport creates an empty report with the given title.
func NewReport(title string) *Report {
	return &Report{title: title}
}

// Add a row. Floats are printed with 6 significant digits, durations with FormatDuration.
// It returns the report, so calls can be cascaded.
func (r *Report) Add(name string, value any) *Report {
	var s string
	switch v := value.(type) {
	case float64:
		s = fmt.Sprintf("%.6g", v)
	case float32:
		s = fmt.Sprintf("%.6g", v)
	case time.Duration:
		s = FormatDuration(v)
	default:
		s = fmt.Sprint(v)
	}
	r.rows = append(r.rows, []string{name, s})
	return r
}

// Len returns the number of rows.
func (r *Report) Len() int { return len(r.rows) }

// Render the report as a table with rounded borders.
func (r *Report) Render() string {
	table := lgtable.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(tableBorderColor)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == lgtable.HeaderRow {
				return headerStyle
			}
			if col == 0 {
				return rightAlignedStyle
			}
			return normalStyle
		}).
		Rows(r.rows...)
	if r.title != "" {
		table = table.Headers(r.title, "")
	}
	return table.String()
}

// FormatDuration pretty prints a duration with at most 2 decimal places, e.g.: "1.23s" or "12.5ms".
func FormatDuration(d time.Duration) string {
	switch {
	case d >= time.Second:
		return d.Round(10 * time.Millisecond).String()
	case d >= time.Millisecond:
		return d.Round(10 * time.Microsecond).String()
	case d >= time.Microsecond:
		return d.Round(10 * time.Nanosecond).String()
	default:
		return d.String()
	}
}
