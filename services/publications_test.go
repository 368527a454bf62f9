package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"science-registry/models"
)

func TestPct(t *testing.T) {
	assert.Equal(t, 50.0, pct(1, 2))
	assert.Equal(t, 33.33, pct(1, 3))
	assert.Equal(t, 66.67, pct(2, 3))
	assert.Equal(t, 0.0, pct(0, 0))
	assert.Equal(t, 0.0, pct(5, 0))
	assert.Equal(t, 100.0, pct(4, 4))
}

func TestActorIsAdmin(t *testing.T) {
	assert.True(t, Actor{Role: RoleAdmin}.IsAdmin())
	assert.False(t, Actor{Role: RoleUser}.IsAdmin())
	assert.False(t, Actor{}.IsAdmin())
}

func TestUploadRejectsIncompleteSubmissions(t *testing.T) {
	svc := &PublicationService{}
	actor := Actor{Role: RoleTeacher, ClientID: "client-1"}

	tests := []struct {
		name string
		in   PublicationUpload
		want error
	}{
		{
			name: "missing year",
			in:   PublicationUpload{Title: "Работа", Authors: "Иванов И.И."},
			want: ErrYearRequired,
		},
		{
			name: "garbled year without published date",
			in:   PublicationUpload{Title: "Работа", Year: 0, Authors: "Иванов И.И.", PublishedDate: "not a date"},
			want: ErrYearRequired,
		},
		{
			name: "missing authors",
			in:   PublicationUpload{Title: "Работа", Year: 2023},
			want: ErrAuthorsRequired,
		},
		{
			name: "blank authors cell",
			in:   PublicationUpload{Title: "Работа", Year: 2023, Authors: " ; \n "},
			want: ErrAuthorsRequired,
		},
		{
			name: "article without url",
			in:   PublicationUpload{Title: "Статья", Year: 2023, Authors: "Иванов И.И.", UploadSource: "article", PDFLink: "https://cdn/x.pdf"},
			want: ErrArticleNeedsURL,
		},
		{
			name: "kokson alias without pdf",
			in:   PublicationUpload{Title: "Статья", Year: 2023, Authors: "Иванов И.И.", UploadSource: "kokson", URL: "https://example.kz/a"},
			want: ErrArticleNeedsPDF,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Upload(tc.in, actor)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestUploadYearFromPublishedDate(t *testing.T) {
	// A parsable published_date satisfies the year requirement, so the
	// next check to fire is the missing authors cell.
	svc := &PublicationService{}
	_, err := svc.Upload(PublicationUpload{Title: "Работа", PublishedDate: "2023-05-01"}, Actor{Role: RoleTeacher})
	assert.ErrorIs(t, err, ErrAuthorsRequired)
}

func TestOwnsPublication(t *testing.T) {
	client := "client-1"
	owner := uint(7)
	pub := models.Publication{UploaderID: &client, UserID: &owner}
	stranger := uint(8)

	tests := []struct {
		name  string
		actor Actor
		want  bool
	}{
		{"admin always passes", Actor{Role: RoleAdmin, ClientID: "other"}, true},
		{"uploading client", Actor{Role: RoleTeacher, ClientID: "client-1"}, true},
		{"linked account", Actor{Role: RoleTeacher, ClientID: "other", UserID: &owner}, true},
		{"other account and client", Actor{Role: RoleTeacher, ClientID: "other", UserID: &stranger}, false},
		{"anonymous other client", Actor{Role: RoleTeacher, ClientID: "other"}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ownsPublication(&pub, tc.actor))
		})
	}

	t.Run("unowned row rejects non-uploaders", func(t *testing.T) {
		bare := models.Publication{}
		assert.False(t, ownsPublication(&bare, Actor{Role: RoleTeacher, ClientID: "client-1", UserID: &owner}))
	})
}

func TestApplyOwnerEditResetsModeration(t *testing.T) {
	note := "отклонено: исправьте название"
	title := "Новое название"
	lang := "Русский"
	pub := models.Publication{
		Title:  "Старое название",
		Year:   2022,
		Status: models.StatusRejected,
		Note:   &note,
	}

	applyOwnerEdit(&pub, PublicationEdit{Title: &title, Language: &lang})

	assert.Equal(t, models.StatusPending, pub.Status)
	assert.Nil(t, pub.Note)
	assert.Equal(t, "Новое название", pub.Title)
	assert.Equal(t, 2022, pub.Year)
	if assert.NotNil(t, pub.Language) {
		assert.Equal(t, "ru", *pub.Language)
	}
}

func TestApplyOwnerEditEmptyEditStillResets(t *testing.T) {
	note := "требуется pdf"
	pub := models.Publication{Status: models.StatusApproved, Note: &note}
	empty := ""

	applyOwnerEdit(&pub, PublicationEdit{PDFLink: &empty})

	assert.Equal(t, models.StatusPending, pub.Status)
	assert.Nil(t, pub.Note)
	assert.Nil(t, pub.PDFURL)
}
