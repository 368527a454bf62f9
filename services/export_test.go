package services

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"science-registry/models"
)

func samplePublication() PublicationOut {
	doi := "10.1000/xyz"
	issn := "1234-5678"
	q := "Q2"
	pct := 75
	return PublicationOut{
		Publication: models.Publication{
			ID:             7,
			Year:           2023,
			Title:          "例 Research, with commas",
			DOI:            &doi,
			CitationsCount: 12,
			Quartile:       &q,
			Percentile2024: &pct,
			Source:         &models.Source{Name: "Journal of Testing", ISSN: &issn},
			Authors: []models.Author{
				{DisplayName: "Иванов И.И."},
				{DisplayName: "Smith J."},
			},
		},
		Kind: KindScopus,
	}
}

func TestPublicationsCSV(t *testing.T) {
	data, err := PublicationsCSV([]PublicationOut{samplePublication()})
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, []string{
		"id", "year", "title", "authors", "source", "issn", "doi",
		"scopus_url", "citations", "quartile", "percentile_2024", "pdf_url",
	}, records[0])

	row := records[1]
	assert.Equal(t, "7", row[0])
	assert.Equal(t, "2023", row[1])
	assert.Equal(t, "Иванов И.И.; Smith J.", row[3])
	assert.Equal(t, "Journal of Testing", row[4])
	assert.Equal(t, "1234-5678", row[5])
	assert.Equal(t, "10.1000/xyz", row[6])
	assert.Equal(t, "12", row[8])
	assert.Equal(t, "Q2", row[9])
	assert.Equal(t, "75", row[10])
}

func TestPublicationsXLSX(t *testing.T) {
	data, err := PublicationsXLSX([]PublicationOut{samplePublication()})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Publications")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "id", rows[0][0])
	assert.Equal(t, "例 Research, with commas", rows[1][2])
}

func TestTableCSVEscapesCells(t *testing.T) {
	data, err := TableCSV([][]string{
		{"a", "b"},
		{"comma, inside", `quote "inside"`},
	})
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "comma, inside", records[1][0])
	assert.Equal(t, `quote "inside"`, records[1][1])
}

func TestExportFilename(t *testing.T) {
	assert.Equal(t, "users.csv", ExportFilename("users", "csv"))
	assert.Equal(t, "stati_zh.xlsx", ExportFilename("stati_zh", "xlsx"))
}
