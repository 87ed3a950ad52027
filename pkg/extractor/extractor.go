// Package extractor turns a soil report PDF into page-marked text the
// summarizer can read.
package extractor

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"

	"github.com/xhad/soilreport/internal/models"
)

type Config struct {
	// ColumnGap is the horizontal distance, in points, that separates two
	// table cells on the same visual row.
	ColumnGap float64
	// MinTableRows is how many aligned rows (header included) make a table.
	MinTableRows int
}

type Extractor struct {
	config Config
}

func NewWithConfig(config Config) *Extractor {
	if config.ColumnGap <= 0 {
		config.ColumnGap = 12
	}
	if config.MinTableRows < 2 {
		config.MinTableRows = 2
	}

	return &Extractor{
		config: config,
	}
}

// Extract reads the PDF at path and returns the rendered document.
func (e *Extractor) Extract(path string) (string, error) {
	doc, err := e.Document(path)
	if err != nil {
		return "", err
	}
	return Render(doc), nil
}

func (e *Extractor) ExtractBytes(data []byte) (string, error) {
	doc, err := e.DocumentFromBytes("", data)
	if err != nil {
		return "", err
	}
	return Render(doc), nil
}

func (e *Extractor) Document(path string) (models.ReportDocument, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return models.ReportDocument{}, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	return e.read(filepath.Base(path), r)
}

func (e *Extractor) DocumentFromBytes(name string, data []byte) (models.ReportDocument, error) {
	if len(data) == 0 {
		return models.ReportDocument{}, fmt.Errorf("empty PDF content")
	}
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return models.ReportDocument{}, fmt.Errorf("failed to open PDF: %w", err)
	}
	return e.read(name, r)
}

// read walks every page in order. The PDF library panics on some malformed
// input, so that is turned into an error here.
func (e *Extractor) read(name string, r *pdf.Reader) (doc models.ReportDocument, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			doc = models.ReportDocument{}
			err = fmt.Errorf("failed to parse PDF: %v", rec)
		}
	}()

	doc.Name = name
	total := r.NumPage()
	for i := 1; i <= total; i++ {
		section := models.PageSection{Number: i}

		page := r.Page(i)
		if page.V.IsNull() {
			doc.Pages = append(doc.Pages, section)
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			return models.ReportDocument{}, fmt.Errorf("failed to read text on page %d: %w", i, err)
		}
		section.Text = cleanText(text)

		rows, err := textRows(page)
		if err != nil {
			log.Debug().Err(err).Int("page", i).Msg("Skipping table detection")
		} else {
			section.Tables = detectTables(rows, e.config.ColumnGap, e.config.MinTableRows)
		}

		doc.Pages = append(doc.Pages, section)
	}

	log.Debug().
		Str("name", name).
		Int("pages", len(doc.Pages)).
		Int("tables", doc.TableCount()).
		Msg("Extracted PDF")

	return doc, nil
}

// textRows groups the page's positioned glyphs into visual rows, top to
// bottom, each ordered left to right. Layout failures are isolated so the
// page still contributes its plain text.
func textRows(page pdf.Page) (rows pdf.Rows, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			rows, err = nil, fmt.Errorf("failed to read page layout: %v", rec)
		}
	}()
	return groupRows(page.Content().Text), nil
}

// cleanText collapses runs of spaces and tabs on each line and drops blank
// lines, keeping the line structure the model relies on to read samples.
func cleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")

	kept := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// Render lays the document out page by page:
//
//	--- Page N ---
//	<text>
//
//	Table T on Page N:
//	<table>
//
// Entries are separated by a newline.
func Render(doc models.ReportDocument) string {
	var entries []string
	for _, page := range doc.Pages {
		entries = append(entries, fmt.Sprintf("--- Page %d ---\n%s\n", page.Number, page.Text))
		for t, table := range page.Tables {
			entries = append(entries, fmt.Sprintf("\nTable %d on Page %d:\n%s\n", t+1, page.Number, RenderTable(table)))
		}
	}
	return strings.Join(entries, "\n")
}
