package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormDept(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Физика кафедрасы", "физика"},
		{"«Физика» кафедрасы", "физика"},
		{"  Физика   кафедра ", "физика"},
		{"Математика", "математика"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormDept(tt.in), tt.in)
	}
}

func TestFacultyMapperMap(t *testing.T) {
	m := NewFacultyMapper()

	// exact built-in key
	assert.Equal(t, "Физика-математика факультеті", m.Map("Физика кафедрасы", ""))
	// normalized lookup tolerates quotes and suffix variants
	assert.Equal(t, "Физика-математика факультеті", m.Map("«Физика» кафедра", ""))
	// unknown department falls back to the user's faculty when it is a
	// known faculty name
	assert.Equal(t, "Тарих факультеті", m.Map("Неизвестная кафедра", "Тарих факультеті"))
	// unknown department with unknown faculty goes to the unmapped bucket
	assert.Equal(t, UnmappedFaculty, m.Map("Неизвестная кафедра", "Что-то другое"))
	assert.Equal(t, UnmappedFaculty, m.Map("", ""))
}

func TestFacultyMapperMergeOverrides(t *testing.T) {
	m := NewFacultyMapper()

	merged := m.MergeOverrides(map[string]string{
		"Новая кафедра": "Техникалық факультет",
	})
	assert.Equal(t, 1, merged)
	assert.Equal(t, "Техникалық факультет", m.Map("Новая кафедра", ""))

	// re-merging the same pair changes nothing
	assert.Equal(t, 0, m.MergeOverrides(map[string]string{
		"Новая кафедра": "Техникалық факультет",
	}))
	// changing the target counts again
	assert.Equal(t, 1, m.MergeOverrides(map[string]string{
		"Новая кафедра": "Тарих факультеті",
	}))
	assert.Equal(t, "Тарих факультеті", m.Map("Новая кафедра", ""))
}

func TestFacultyMapperLookup(t *testing.T) {
	m := NewFacultyMapper()

	fac, ok := m.Lookup("Биология кафедрасы")
	assert.True(t, ok)
	assert.Equal(t, "Жаратылыстану факультеті", fac)

	_, ok = m.Lookup("Нет такой кафедры")
	assert.False(t, ok)
}

func TestFacultyMapperSnapshotAndLists(t *testing.T) {
	m := NewFacultyMapper()
	snap := m.Snapshot()
	assert.Equal(t, "Жаратылыстану факультеті", snap["Экология кафедрасы"])

	facs := m.Faculties()
	assert.Contains(t, facs, "Филология факультеті")
	assert.NotContains(t, facs, UnmappedFaculty)

	depts := m.Departments()
	assert.Contains(t, depts, "Математика кафедрасы")
}
