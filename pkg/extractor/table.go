package extractor

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/xhad/soilreport/internal/models"
)

// Average glyph advance as a fraction of the font size, used when the PDF
// library reports a run without a width.
const glyphAdvance = 0.5

const defaultFontSize = 10

// groupRows buckets glyphs sharing a baseline (to the nearest point) into
// rows ordered top to bottom, with each row sorted by X.
func groupRows(glyphs []pdf.Text) pdf.Rows {
	byLine := make(map[int64]*pdf.Row)
	for _, g := range glyphs {
		if g.S == "" {
			continue
		}
		y := int64(math.Round(g.Y))
		row, ok := byLine[y]
		if !ok {
			row = &pdf.Row{Position: y}
			byLine[y] = row
		}
		row.Content = append(row.Content, g)
	}

	rows := make(pdf.Rows, 0, len(byLine))
	for _, row := range byLine {
		sort.SliceStable(row.Content, func(i, j int) bool { return row.Content[i].X < row.Content[j].X })
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Position > rows[j].Position })
	return rows
}

// detectTables finds runs of consecutive rows that split into the same
// number of cells (at least two). A run of minRows or more rows is a table
// whose first row is the header.
func detectTables(rows pdf.Rows, columnGap float64, minRows int) []models.Table {
	var tables []models.Table
	var run [][]string

	flush := func() {
		if len(run) >= minRows {
			tables = append(tables, models.Table{Rows: run})
		}
		run = nil
	}

	for _, row := range rows {
		if row == nil {
			continue
		}
		cells := splitCells(row.Content, columnGap)
		if len(cells) < 2 {
			flush()
			continue
		}
		if len(run) > 0 && len(run[0]) != len(cells) {
			flush()
		}
		run = append(run, cells)
	}
	flush()

	return tables
}

// splitCells joins the text runs of one visual row, starting a new cell
// wherever the blank space before a run exceeds columnGap.
func splitCells(content pdf.TextHorizontal, columnGap float64) []string {
	runs := make([]pdf.Text, 0, len(content))
	for _, t := range content {
		if t.S != "" {
			runs = append(runs, t)
		}
	}
	if len(runs) == 0 {
		return nil
	}
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].X < runs[j].X })

	var cells []string
	var cell strings.Builder
	end := runEnd(runs[0])
	cell.WriteString(runs[0].S)

	for _, t := range runs[1:] {
		if t.X-end > columnGap {
			cells = appendCell(cells, cell.String())
			cell.Reset()
		}
		cell.WriteString(t.S)
		if e := runEnd(t); e > end {
			end = e
		}
	}
	cells = appendCell(cells, cell.String())

	return cells
}

func appendCell(cells []string, s string) []string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return cells
	}
	return append(cells, s)
}

func runEnd(t pdf.Text) float64 {
	if t.W > 0 {
		return t.X + t.W
	}
	size := t.FontSize
	if size <= 0 {
		size = defaultFontSize
	}
	return t.X + float64(utf8.RuneCountInString(t.S))*size*glyphAdvance
}

// RenderTable prints the header then one line per body row, each column
// right-aligned to its widest cell.
func RenderTable(t models.Table) string {
	if len(t.Rows) == 0 {
		return ""
	}

	cols := 0
	for _, row := range t.Rows {
		if len(row) > cols {
			cols = len(row)
		}
	}
	widths := make([]int, cols)
	for _, row := range t.Rows {
		for i, cell := range row {
			if n := utf8.RuneCountInString(cell); n > widths[i] {
				widths[i] = n
			}
		}
	}

	lines := make([]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		var b strings.Builder
		for i := 0; i < cols; i++ {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			b.WriteByte(' ')
			b.WriteString(strings.Repeat(" ", widths[i]-utf8.RuneCountInString(cell)))
			b.WriteString(cell)
		}
		lines = append(lines, b.String())
	}
	return strings.Join(lines, "\n")
}
