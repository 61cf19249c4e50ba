package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Column defines a table column. A zero Width sizes the column to its
// widest cell.
type Column struct {
	Title string
	Width int
	Right bool // right-align, for numbers
}

// Row is a slice of cell values. Cells may already carry styling.
type Row []string

// Table renders fixed-width text tables.
type Table struct {
	Columns []Column
	Rows    []Row
}

// NewTable creates a table with the given columns.
func NewTable(cols ...Column) *Table {
	return &Table{Columns: cols}
}

// AddRow appends a row. Missing trailing cells render empty.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, Row(cells))
}

// Render returns the table as a string. Widths are measured with
// lipgloss.Width so styled cells line up; plain cells longer than their
// column are cut with an ellipsis.
func (t *Table) Render() string {
	widths := t.widths()

	var sb strings.Builder
	header := make([]string, len(t.Columns))
	divider := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		header[i] = StyleHeader.Render(fit(col.Title, widths[i], false))
		divider[i] = StyleMeta.Render(strings.Repeat("─", widths[i]))
	}
	sb.WriteString(strings.Join(header, "  ") + "\n")
	sb.WriteString(strings.Join(divider, "  ") + "\n")

	for _, row := range t.Rows {
		cells := make([]string, len(t.Columns))
		for j, col := range t.Columns {
			var v string
			if j < len(row) {
				v = row[j]
			}
			cells[j] = fit(v, widths[j], col.Right)
		}
		sb.WriteString(strings.TrimRight(strings.Join(cells, "  "), " ") + "\n")
	}
	return sb.String()
}

func (t *Table) widths() []int {
	w := make([]int, len(t.Columns))
	for i, col := range t.Columns {
		if col.Width > 0 {
			w[i] = col.Width
			continue
		}
		w[i] = lipgloss.Width(col.Title)
		for _, row := range t.Rows {
			if i < len(row) {
				w[i] = max(w[i], lipgloss.Width(row[i]))
			}
		}
	}
	return w
}

// fit pads s to exactly width display cells.
func fit(s string, width int, right bool) string {
	n := lipgloss.Width(s)
	if n > width {
		r := []rune(s)
		if width <= 1 || len(r) != n {
			return s
		}
		return string(r[:width-1]) + "…"
	}
	pad := strings.Repeat(" ", width-n)
	if right {
		return pad + s
	}
	return s + pad
}

// KeyValueBlock renders key-value pairs in a bordered box. Keys are
// aligned to the longest one.
func KeyValueBlock(title string, pairs [][2]string) string {
	keyWidth := 0
	for _, p := range pairs {
		keyWidth = max(keyWidth, lipgloss.Width(p[0])+1)
	}
	var sb strings.Builder
	if title != "" {
		sb.WriteString(StyleTitle.Render(title) + "\n")
	}
	for i, p := range pairs {
		key := StyleMeta.Render(fmt.Sprintf("%-*s", keyWidth, p[0]+":"))
		sb.WriteString(key + " " + StyleValue.Render(p[1]))
		if i < len(pairs)-1 {
			sb.WriteString("\n")
		}
	}
	return StyleBorder.Render(sb.String())
}
