package report

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type styles struct {
	title  lipgloss.Style
	header lipgloss.Style
	cell   lipgloss.Style
	muted  lipgloss.Style
	alert  lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title:  r.NewStyle().Bold(true).Underline(true),
		header: r.NewStyle().Bold(true).Padding(0, 1),
		cell:   r.NewStyle().Padding(0, 1),
		muted:  r.NewStyle().Faint(true),
		alert:  r.NewStyle().Foreground(lipgloss.Color("#e53935")),
	}
}

// table is a static grid rendered with a header row and a divider.
type table struct {
	title   string
	headers []string
	rows    [][]string
}

func newTable(title string, headers ...string) *table {
	return &table{title: title, headers: headers}
}

func (t *table) add(row ...string) {
	t.rows = append(t.rows, row)
}

func (t *table) render(st styles) string {
	var sb strings.Builder
	if t.title != "" {
		sb.WriteString(st.title.Render(t.title))
		sb.WriteString("\n")
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], lipgloss.Width(cell))
			}
		}
	}
	// room for the one-cell padding on each side
	total := len(widths) - 1
	for i := range widths {
		widths[i] += 2
		total += widths[i]
	}

	sep := st.muted.Render("|")
	for i, h := range t.headers {
		sb.WriteString(st.header.Width(widths[i]).Render(h))
		if i < len(t.headers)-1 {
			sb.WriteString(sep)
		}
	}
	sb.WriteString("\n")
	sb.WriteString(st.muted.Render(strings.Repeat("-", max(total, 0))))
	sb.WriteString("\n")

	for _, row := range t.rows {
		for i := range widths {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			sb.WriteString(st.cell.Width(widths[i]).Render(cell))
			if i < len(widths)-1 {
				sb.WriteString(sep)
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
