package services

import (
	"sort"
	"strings"
	"sync"
)

// UnmappedFaculty is the bucket for publications whose main authors do
// not map to any known faculty.
const UnmappedFaculty = "Без привязки"

// Built-in department to faculty mapping provided by the university.
// Keys must match users.department values exactly.
var deptToFac = map[string]string{
	// Шетел тілдері факультеті
	"Ағылшын және неміс тілдері кафедрасы":          "Шетел тілдері факультеті",
	"Аударма ісі кафедрасы":                         "Шетел тілдері факультеті",
	"Шетел филологиясы кафедрасы":                   "Шетел тілдері факультеті",
	"Әлем тілдері кафедрасы":                        "Шетел тілдері факультеті",
	"Шетел филологиясы және аударма ісі кафедрасы":  "Шетел тілдері факультеті",

	// Физика-математика факультеті
	"Информатика және есептеу техникасы кафедрасы":             "Физика-математика факультеті",
	"Ақпараттық жүйелер кафедрасы":                             "Физика-математика факультеті",
	"Конденсацияланған күй физикасы кафедрасы":                 "Физика-математика факультеті",
	"Эксперименттік және теориялық физика кафедрасы":           "Физика-математика факультеті",
	"Математика кафедрасы":                                     "Физика-математика факультеті",
	"Негізгі және қолданбалы математика кафедрасы":             "Физика-математика факультеті",
	"Информатика теориясы және оқыту технологиялары кафедрасы": "Физика-математика факультеті",
	"Информатика және ақпараттық технологиялар кафедрасы":      "Физика-математика факультеті",
	"Физика кафедрасы":                                         "Физика-математика факультеті",

	// Техникалық факультет
	"Мұнай-газ ісі кафедрасы":                                        "Техникалық факультет",
	"Дизайн кафедрасы":                                               "Техникалық факультет",
	"Металлургия және тау-кен ісі кафедрасы":                         "Техникалық факультет",
	"Автомобиль көлігі және жол қозғалысын ұйымдастыру кафедрасы":    "Техникалық факультет",
	"Жалпы техникалық пәндер кафедрасы":                              "Техникалық факультет",
	"Химиялық технология кафедрасы":                                  "Техникалық факультет",
	"Көлік техникасы, тасымалдауды ұйымдастыру және құрылыс кафедрасы": "Техникалық факультет",

	// Экономика және құқық факультеті
	"Қаржы және есеп кафедрасы":                          "Экономика және құқық факультеті",
	"Экономика және менеджмент кафедрасы":                "Экономика және құқық факультеті",
	"Мемлекеттік басқару, қаржы және маркетинг кафедрасы": "Экономика және құқық факультеті",
	"Юриспруденция кафедрасы":                            "Экономика және құқық факультеті",
	"Мемлекеттік-құқықтық пәндер кафедрасы":              "Экономика және құқық факультеті",

	// Жаратылыстану факультеті
	"Экология кафедрасы":                       "Жаратылыстану факультеті",
	"Химия және химиялық технология кафедрасы": "Жаратылыстану факультеті",
	"Биология кафедрасы":                       "Жаратылыстану факультеті",

	// Тарих факультеті
	"Тарих және аймақтану кафедрасы":                "Тарих факультеті",
	"Философия кафедрасы":                           "Тарих факультеті",
	"Қазақстан тарихы және тарихи пәндер кафедрасы": "Тарих факультеті",
	"География және туризм кафедрасы":               "Тарих факультеті",
	"Қазақстан халқы ассамблеясы және әлеуметтік-саяси пәндер кафедрасы": "Тарих факультеті",

	// Педагогикалық факультет
	"Теориялық және қолданбалы психология кафедрасы":        "Педагогикалық факультет",
	"Әлеуметтік педагогика және бастауыш оқыту кафедрасы":   "Педагогикалық факультет",
	"Мектепке дейінгі және арнайы білім беру кафедрасы":     "Педагогикалық факультет",
	"Педагогика және білім психологиясы кафедрасы":          "Педагогикалық факультет",
	"Психологиялық-педагогикалық және арнайы білім беру кафедрасы": "Педагогикалық факультет",
	"Педагогика, психология және бастауыш оқыту кафедрасы":  "Педагогикалық факультет",

	// Филология факультеті
	"Орыс тілі мен әдебиеті кафедрасы":                         "Филология факультеті",
	"Қазақ әдебиеті кафедрасы":                                 "Филология факультеті",
	"Қазақ тілінің теориялық және қолданбалы тіл білімі кафедрасы": "Филология факультеті",
	"Қазақ филологиясы кафедрасы":                              "Филология факультеті",
	"Орыс филологиясы және мәдениетаралық коммуникация кафедрасы": "Филология факультеті",

	// Кәсіби-шығармашылық факультет
	"Дене мәдениетінің теориялық негіздері кафедрасы":  "Кәсіби-шығармашылық факультет",
	"Музыкалық білім кафедрасы":                        "Кәсіби-шығармашылық факультет",
	"Бейнелеу өнері және кәсіби оқыту кафедрасы":       "Кәсіби-шығармашылық факультет",
	"Көркем еңбек және дизайн кафедрасы":               "Кәсіби-шығармашылық факультет",
	"Музыка және хореография кафедрасы":                "Кәсіби-шығармашылық факультет",
	"Дене тәрбиесі теориясы мен әдістемесі кафедрасы":  "Кәсіби-шығармашылық факультет",
	"Дене тәрбиесі кафедрасы":                          "Кәсіби-шығармашылық факультет",
}

// NormDept canonicalizes a department label for lookup: NBSP to space,
// quotes removed, whitespace collapsed, lowercased, trailing
// "кафедра"/"кафедрасы" stripped.
func NormDept(s string) string {
	x := strings.ReplaceAll(s, nbsp, " ")
	for _, ch := range []string{"«", "»", "“", "”", `"`, "'"} {
		x = strings.ReplaceAll(x, ch, "")
	}
	x = strings.Join(strings.Fields(x), " ")
	x = strings.ToLower(x)
	for _, suf := range []string{" кафедрасы", " кафедра"} {
		if strings.HasSuffix(x, suf) {
			x = strings.TrimSuffix(x, suf)
			break
		}
	}
	return strings.TrimSpace(x)
}

// FacultyMapper resolves departments to faculties. The built-in mapping
// can be extended at runtime by uploaded overrides; lookups fall back to
// normalized keys so quoting and suffix variants still match.
type FacultyMapper struct {
	mu        sync.RWMutex
	overrides map[string]string
	norm      map[string]string
	faculties map[string]struct{}
}

func NewFacultyMapper() *FacultyMapper {
	m := &FacultyMapper{}
	m.rebuild(nil)
	return m
}

func (m *FacultyMapper) rebuild(overrides map[string]string) {
	merged := make(map[string]string, len(deptToFac)+len(overrides))
	for k, v := range deptToFac {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	norm := make(map[string]string, len(merged))
	facs := make(map[string]struct{}, 16)
	for k, v := range merged {
		norm[NormDept(k)] = v
		facs[v] = struct{}{}
	}
	m.overrides = merged
	m.norm = norm
	m.faculties = facs
}

// SetOverrides replaces the uploaded department overrides and merges
// them over the built-in mapping.
func (m *FacultyMapper) SetOverrides(overrides map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rebuild(overrides)
}

// MergeOverrides adds pairs on top of the current mapping and returns
// how many were new or changed.
func (m *FacultyMapper) MergeOverrides(pairs map[string]string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	merged := 0
	next := make(map[string]string, len(m.overrides)+len(pairs))
	for k, v := range m.overrides {
		next[k] = v
	}
	for k, v := range pairs {
		if next[k] != v {
			next[k] = v
			merged++
		}
	}
	m.rebuild(next)
	return merged
}

// Map resolves the faculty for a department, falling back to the user's
// own faculty when it is a known faculty name, else UnmappedFaculty.
func (m *FacultyMapper) Map(department, userFaculty string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if department != "" {
		if fac, ok := m.overrides[department]; ok {
			return fac
		}
		if fac, ok := m.norm[NormDept(department)]; ok {
			return fac
		}
	}
	if userFaculty != "" {
		if _, ok := m.faculties[userFaculty]; ok {
			return userFaculty
		}
	}
	return UnmappedFaculty
}

// Lookup returns the mapped faculty for a known department, without the
// user-faculty fallback.
func (m *FacultyMapper) Lookup(department string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if fac, ok := m.overrides[department]; ok {
		return fac, true
	}
	fac, ok := m.norm[NormDept(department)]
	return fac, ok
}

// Snapshot returns a copy of the active department to faculty mapping.
func (m *FacultyMapper) Snapshot() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.overrides))
	for k, v := range m.overrides {
		out[k] = v
	}
	return out
}

// Faculties lists the known faculty names, sorted.
func (m *FacultyMapper) Faculties() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.faculties))
	for f := range m.faculties {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Departments lists the known department names, sorted.
func (m *FacultyMapper) Departments() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.overrides))
	for d := range m.overrides {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
