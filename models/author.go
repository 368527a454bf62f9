package models

import (
	"time"
)

// Author is a distinct person appearing on publications. NormalizedName
// is the lowercase, punctuation-free form used for matching authors to
// registered users.
type Author struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	DisplayName    string  `json:"display_name" gorm:"not null"`
	NormalizedName *string `json:"normalized_name,omitempty" gorm:"index"`
	Faculty        *string `json:"faculty,omitempty"`
	Department     *string `json:"department,omitempty"`

	UserID *uint `json:"user_id,omitempty" gorm:"index"`

	Publications []Publication `json:"-" gorm:"many2many:publication_authors;"`
}
