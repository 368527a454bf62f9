package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAuthors(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Иванов И.И.; Петров П.П.", []string{"Иванов И.И.", "Петров П.П."}},
		{"Smith, J.; Brown, K.", []string{"Smith, J.", "Brown, K."}},
		{"Иванов И.И.\nПетров П.П.", []string{"Иванов И.И.", "Петров П.П."}},
		{"  ;  ; ", nil},
		{"", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseAuthors(tt.in), tt.in)
	}
}

func TestLooksLikePDF(t *testing.T) {
	assert.True(t, LooksLikePDF("https://host/files/paper.PDF"))
	assert.True(t, LooksLikePDF("https://host/download?format=pdf&id=1"))
	assert.True(t, LooksLikePDF("https://host/get?type=application/pdf"))
	assert.False(t, LooksLikePDF("https://host/article/123"))
	assert.False(t, LooksLikePDF(""))
}

func TestParsePublishedDate(t *testing.T) {
	d, ok := ParsePublishedDate("15.03.2023")
	require.True(t, ok)
	assert.Equal(t, time.Date(2023, 3, 15, 0, 0, 0, 0, time.UTC), d)

	d, ok = ParsePublishedDate("2023-03-15")
	require.True(t, ok)
	assert.Equal(t, 2023, d.Year())

	_, ok = ParsePublishedDate("март 2023")
	assert.False(t, ok)

	_, ok = ParsePublishedDate("")
	assert.False(t, ok)
}

func TestParseYearCell(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"2021", 2021},
		{"2021.0", 2021},
		{"15.06.2022", 2022},
		{"опубликовано в 2019 году", 2019},
		{"nan", 0},
		{"", 0},
		{"no year here", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseYearCell(tt.in), tt.in)
	}
}

func TestCleanCell(t *testing.T) {
	assert.Equal(t, "", cleanCell("nan"))
	assert.Equal(t, "", cleanCell("None"))
	assert.Equal(t, "value", cleanCell("  value "))
	assert.Equal(t, "a b", cleanCell("a"+nbsp+"b"))
}

func TestDocTypeFromFilename(t *testing.T) {
	assert.Equal(t, "Кітаптар", docTypeFromFilename("book_2023.xlsx"))
	assert.Equal(t, "Конференциялар жинағы", docTypeFromFilename("konferencii_2023.xlsx"))
	assert.Equal(t, "Конференциялар жинағы", docTypeFromFilename("conf-list.xlsx"))
	assert.Equal(t, "", docTypeFromFilename("report.xlsx"))
}
