package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorInk    = lipgloss.Color("#E5E9F0")
	colorDim    = lipgloss.Color("#7A8291")
	colorAccent = lipgloss.Color("#88C0D0")
	colorOK     = lipgloss.Color("#A3BE8C")
	colorWarn   = lipgloss.Color("#EBCB8B")
	colorError  = lipgloss.Color("#BF616A")
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	cellStyle   = lipgloss.NewStyle().Foreground(colorInk)
	dimStyle    = lipgloss.NewStyle().Foreground(colorDim)
	accentStyle = lipgloss.NewStyle().Foreground(colorAccent)
	okStyle     = lipgloss.NewStyle().Bold(true).Foreground(colorOK)
	warnStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorWarn)
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorError)
)

// renderTable lays rows out in padded columns under a header and a rule.
// Empty cells are shown as "-".
func renderTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i := range headers {
			if w := lipgloss.Width(cell(row, i)); w > widths[i] {
				widths[i] = w
			}
		}
	}

	lines := make([]string, 0, len(rows)+2)
	lines = append(lines, joinCells(headers, widths, func(i int, s string) string { return headerStyle.Render(s) }))

	total := 0
	for _, w := range widths {
		total += w
	}
	total += 2 * (len(widths) - 1)
	lines = append(lines, dimStyle.Render(strings.Repeat("-", total)))

	if len(rows) == 0 {
		lines = append(lines, dimStyle.Render("(none)"))
	}
	for _, row := range rows {
		cells := make([]string, len(headers))
		for i := range headers {
			cells[i] = cell(row, i)
		}
		lines = append(lines, joinCells(cells, widths, func(i int, s string) string {
			if cell(row, i) == "" {
				return dimStyle.Render(s)
			}
			return cellStyle.Render(s)
		}))
	}
	return strings.Join(lines, "\n")
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func joinCells(cells []string, widths []int, style func(int, string) string) string {
	parts := make([]string, len(cells))
	for i, c := range cells {
		if c == "" {
			c = "-"
		}
		if i < len(cells)-1 {
			c += strings.Repeat(" ", widths[i]-lipgloss.Width(c))
		}
		parts[i] = style(i, c)
	}
	return strings.TrimRight(strings.Join(parts, "  "), " ")
}
