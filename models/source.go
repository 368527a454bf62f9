package models

import (
	"time"
)

// Source is a journal or conference a publication appeared in.
type Source struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name        string  `json:"name" gorm:"not null;index"`
	Type        string  `json:"type" gorm:"default:journal"`
	ISSN        *string `json:"issn,omitempty" gorm:"column:issn;index"`
	SJRQuartile *string `json:"sjr_quartile,omitempty" gorm:"column:sjr_quartile"`
}
