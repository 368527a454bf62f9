package models

import (
	"time"
)

// Publication statuses as stored in the database.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Upload sources. "kokson" is a legacy alias for "article" and is
// normalized on write.
const (
	SourceScopus  = "scopus"
	SourceArticle = "article"
	SourceManual  = "manual"
	SourceKokson  = "kokson"
)

// Publication is a single bibliographic record in the registry.
type Publication struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Year          int        `json:"year" gorm:"index;not null"`
	PublishedDate *time.Time `json:"published_date,omitempty"`
	Title         string     `json:"title" gorm:"type:text;not null"`
	DOI           *string    `json:"doi,omitempty" gorm:"column:doi;index"`
	PDFURL        *string    `json:"pdf_url,omitempty" gorm:"column:pdf_url"`
	URL           *string    `json:"url,omitempty"`
	ScopusURL     *string    `json:"scopus_url,omitempty"`

	// ru, kz or en after normalization.
	Language *string `json:"language,omitempty" gorm:"index"`

	CitationsCount int     `json:"citations_count" gorm:"default:0"`
	Quartile       *string `json:"quartile,omitempty" gorm:"index"`
	Percentile2024 *int    `json:"percentile_2024,omitempty" gorm:"column:percentile_2024"`
	DocType        *string `json:"doc_type,omitempty" gorm:"index"`

	// Main authors occupy positions < MainAuthorsCount in the ordered
	// author list.
	MainAuthorsCount *int `json:"main_authors_count,omitempty"`

	UploaderID     *string `json:"uploader_id,omitempty" gorm:"index"`
	UploadedByRole *string `json:"uploaded_by_role,omitempty"`
	UploadSource   *string `json:"upload_source,omitempty" gorm:"index"`
	Status         string  `json:"status" gorm:"index;default:pending"`
	Note           *string `json:"note,omitempty" gorm:"type:text"`

	SourceID *uint   `json:"source_id,omitempty" gorm:"index"`
	Source   *Source `json:"source,omitempty"`

	UserID *uint `json:"user_id,omitempty" gorm:"index"`
	User   *User `json:"-"`

	Authors    []Author   `json:"authors" gorm:"many2many:publication_authors;"`
	Categories []Category `json:"categories,omitempty" gorm:"many2many:publication_categories;"`
}

// PublicationAuthor is the explicit join table carrying author order.
type PublicationAuthor struct {
	PublicationID uint `json:"publication_id" gorm:"primaryKey"`
	AuthorID      uint `json:"author_id" gorm:"primaryKey"`
	AuthorOrder   int  `json:"author_order" gorm:"default:0"`
}

func (PublicationAuthor) TableName() string {
	return "publication_authors"
}
