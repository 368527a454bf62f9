package models

import (
	"time"
)

// User is a registry account. Users are created by admins or Excel
// imports, never by self-registration.
type User struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	FullName string  `json:"full_name" gorm:"not null"`
	Email    *string `json:"email,omitempty"`
	Role     *string `json:"role,omitempty"`

	Faculty    string `json:"faculty" gorm:"default:''"`
	Department string `json:"department" gorm:"default:''"`
	Position   string `json:"position" gorm:"default:''"`
	Degree     string `json:"degree" gorm:"default:''"`

	Login        string `json:"login" gorm:"uniqueIndex;not null"`
	PasswordHash string `json:"-" gorm:"not null"`

	// Deterministic password issued on creation; kept so admins can
	// export credential sheets.
	InitialPassword *string `json:"initial_password,omitempty"`

	// JSON array of alternative spellings, including transliterations.
	NameVariants *string `json:"name_variants,omitempty" gorm:"type:text"`

	Active        bool    `json:"active" gorm:"default:true"`
	CreatedSource *string `json:"created_source,omitempty"`
}
