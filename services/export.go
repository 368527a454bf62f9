package services

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

var exportHeader = []string{
	"id", "year", "title", "authors", "source", "issn", "doi",
	"scopus_url", "citations", "quartile", "percentile_2024", "pdf_url",
}

func strOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func exportRow(p PublicationOut) []string {
	authors := make([]string, 0, len(p.Authors))
	for _, a := range p.Authors {
		authors = append(authors, a.DisplayName)
	}
	source, issn := "", ""
	if p.Source != nil {
		source = p.Source.Name
		issn = strOrEmpty(p.Source.ISSN)
	}
	percentile := ""
	if p.Percentile2024 != nil {
		percentile = strconv.Itoa(*p.Percentile2024)
	}
	return []string{
		strconv.FormatUint(uint64(p.ID), 10),
		strconv.Itoa(p.Year),
		p.Title,
		strings.Join(authors, "; "),
		source,
		issn,
		strOrEmpty(p.DOI),
		strOrEmpty(p.ScopusURL),
		strconv.Itoa(p.CitationsCount),
		strOrEmpty(p.Quartile),
		percentile,
		strOrEmpty(p.PDFURL),
	}
}

// PublicationsCSV renders the catalog export as CSV.
func PublicationsCSV(items []PublicationOut) ([]byte, error) {
	rows := make([][]string, 0, len(items)+1)
	rows = append(rows, exportHeader)
	for _, p := range items {
		rows = append(rows, exportRow(p))
	}
	return TableCSV(rows)
}

// PublicationsXLSX renders the catalog export as an xlsx workbook.
func PublicationsXLSX(items []PublicationOut) ([]byte, error) {
	rows := make([][]string, 0, len(items)+1)
	rows = append(rows, exportHeader)
	for _, p := range items {
		rows = append(rows, exportRow(p))
	}
	return TableXLSX("Publications", rows)
}

// TableCSV writes rows (header first) as CSV bytes.
func TableCSV(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// TableXLSX writes rows (header first) into a single-sheet workbook with
// columns sized to their content.
func TableXLSX(sheet string, rows [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	widths := map[int]int{}
	for i, row := range rows {
		for j, cell := range row {
			name, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, name, cell); err != nil {
				return nil, err
			}
			if n := len([]rune(cell)); n > widths[j] {
				widths[j] = n
			}
		}
	}

	for j, w := range widths {
		width := w + 2
		if width < 10 {
			width = 10
		}
		if width > 60 {
			width = 60
		}
		col, err := excelize.ColumnNumberToName(j + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(sheet, col, col, float64(width)); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportFilename builds the attachment name for a download.
func ExportFilename(base, ext string) string {
	return fmt.Sprintf("%s.%s", base, ext)
}
