package models

// ReportDocument is the extracted content of a soil report PDF.
type ReportDocument struct {
	Name  string
	Pages []PageSection
}

// PageSection holds what was pulled off a single page. Number is 1-based.
type PageSection struct {
	Number int
	Text   string
	Tables []Table
}

// Table is an ordered list of rows. The first row is the header.
type Table struct {
	Rows [][]string
}

// Header returns the first row, or nil for an empty table.
func (t Table) Header() []string {
	if len(t.Rows) == 0 {
		return nil
	}
	return t.Rows[0]
}

// Body returns every row after the header.
func (t Table) Body() [][]string {
	if len(t.Rows) < 2 {
		return nil
	}
	return t.Rows[1:]
}

func (d ReportDocument) TableCount() int {
	n := 0
	for _, p := range d.Pages {
		n += len(p.Tables)
	}
	return n
}
