package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind(t *testing.T) {
	tests := []struct {
		uploadSource string
		scopusURL    string
		want         string
	}{
		{"scopus", "", KindScopus},
		{"Scopus", "", KindScopus},
		{"article", "", KindKoks},
		{"kokson", "", KindKoks},
		{"", "https://www.scopus.com/record/1", KindScopus},
		{"", "", KindJournal},
		{"manual", "", KindJournal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Kind(tt.uploadSource, tt.scopusURL))
	}
}

func TestNormalizeDocType(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"book", "Кітаптар"},
		{"Учебное пособие", "Кітаптар"},
		{"кітап", "Кітаптар"},
		{"conference", "Конференциялар жинағы"},
		{"сборник конференции", "Конференциялар жинағы"},
		{"оқулық", "Оқу-әдістемелік құрал"},
		{"халықаралық", "Халықаралық"},
		{"международный", "Халықаралық"},
		{"", ""},
		{"Статья в журнале", "Статья в журнале"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeDocType(tt.in), tt.in)
	}
}
