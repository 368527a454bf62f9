package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeLanguage(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ru", "ru"},
		{"RU", "ru"},
		{"русский", "ru"},
		{" Русский ", "ru"},
		{"kz", "kz"},
		{"қазақша", "kz"},
		{"казахский", "kz"},
		{"en", "en"},
		{"English", "en"},
		{"английский", "en"},
		{"", ""},
		{"-", ""},
		{"н/д", ""},
		{"общий", ""},
		{"none", ""},
		{"français", "français"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeLanguage(tt.in), "input %q", tt.in)
	}
}

func TestLanguageVariants(t *testing.T) {
	v := LanguageVariants()
	assert.Contains(t, v["ru"], "русский")
	assert.Contains(t, v["kz"], "қаз")
	assert.Contains(t, v["en"], "eng")
}
