package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslit(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Иванов", "Ivanov"},
		{"Жумабаев", "Zhumabaev"},
		{"Щедрин", "Schedrin"},
		{"Smith", "Smith"},
		{"Юсупова Я.", "Yusupova Ya."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Translit(tt.in), tt.in)
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Иванов И.И.", "ивановии"},
		{"Иванов, И. И.", "ивановии"},
		{"  Smith J. ", "smithj"},
		{"Иванов" + nbsp + "И.И.", "ивановии"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeName(tt.in), tt.in)
	}
}

func TestNormalizeDisplay(t *testing.T) {
	assert.Equal(t, "иванов и.и.", NormalizeDisplay("  Иванов   И.И. "))
	assert.Equal(t, "", NormalizeDisplay("   "))
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		in        string
		wantLast  string
		wantInits string
	}{
		{"Иванов Иван Иванович", "иванов", "ии"},
		{"Smith John", "smith", "j"},
		{"Иванов", "иванов", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		last, inits := SplitName(tt.in)
		assert.Equal(t, tt.wantLast, last, tt.in)
		assert.Equal(t, tt.wantInits, inits, tt.in)
	}
}

func TestNameVariants(t *testing.T) {
	variants := NameVariants("Иванов Иван Иванович")
	require.NotEmpty(t, variants)

	set := map[string]bool{}
	for _, v := range variants {
		set[v] = true
	}
	assert.True(t, set["Иванов Иван Иванович"])
	assert.True(t, set["Иванов И.И."])
	assert.True(t, set["И.И. Иванов"])
	assert.True(t, set["Иванов И."])
	assert.True(t, set["Ivanov И.И."])
	assert.True(t, set["Иванов И. И."])

	assert.Nil(t, NameVariants("   "))
}

func TestDeterministicPassword(t *testing.T) {
	p1 := DeterministicPassword("Иванов Иван", 6)
	p2 := DeterministicPassword("Иванов Иван", 6)
	p3 := DeterministicPassword("иванов иван", 6)
	assert.Equal(t, p1, p2)
	assert.Equal(t, p1, p3, "case must not change the password")
	assert.Len(t, p1, 6)
	for _, ch := range p1 {
		assert.Contains(t, "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789", string(ch))
	}

	assert.NotEqual(t, p1, DeterministicPassword("Петров Петр", 6))
	assert.Len(t, DeterministicPassword("", 8), 8)
}

func TestHashPassword(t *testing.T) {
	h := HashPassword("secret", "salt1")
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashPassword("secret", "salt1"))
	assert.NotEqual(t, h, HashPassword("secret", "salt2"))
	assert.NotEqual(t, h, HashPassword("other", "salt1"))
	assert.Equal(t, strings.ToLower(h), h)
}

func TestDeriveLogin(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Иванов Иван Иванович", "ивановиваниванович"},
		{"Smith, J.", "smithj"},
		{"  ", "user"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DeriveLogin(tt.in), tt.in)
	}
}
