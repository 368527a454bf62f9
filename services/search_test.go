package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"science-registry/models"
)

func TestClampPage(t *testing.T) {
	s := &SearchService{PageSizeDefault: 20, PageSizeMax: 100}

	tests := []struct {
		page, perPage         int
		wantPage, wantPerPage int
	}{
		{0, 0, 1, 20},
		{-3, -1, 1, 20},
		{2, 50, 2, 50},
		{1, 500, 1, 100},
	}
	for _, tt := range tests {
		page, perPage := s.ClampPage(tt.page, tt.perPage)
		assert.Equal(t, tt.wantPage, page)
		assert.Equal(t, tt.wantPerPage, perPage)
	}
}

func TestOrderClause(t *testing.T) {
	tests := []struct {
		sort string
		want string
	}{
		{"year_asc", "publications.year ASC, publications.id ASC"},
		{"year_desc", "publications.year DESC, publications.id ASC"},
		{"citations_desc", "publications.citations_count DESC, publications.year DESC, publications.id ASC"},
		{"title_asc", "publications.title ASC, publications.id ASC"},
		{"", "publications.year DESC, publications.id ASC"},
		{"drop table", "publications.year DESC, publications.id ASC"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, orderClause(tt.sort), tt.sort)
	}
}

func TestWrapKind(t *testing.T) {
	scopus := "scopus"
	article := "article"
	link := "https://www.scopus.com/record/1"

	assert.Equal(t, KindScopus, wrap(models.Publication{UploadSource: &scopus}).Kind)
	assert.Equal(t, KindKoks, wrap(models.Publication{UploadSource: &article}).Kind)
	assert.Equal(t, KindScopus, wrap(models.Publication{ScopusURL: &link}).Kind)
	assert.Equal(t, KindJournal, wrap(models.Publication{}).Kind)
}
