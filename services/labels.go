package services

import "strings"

// Kind values shown as badges in the catalog UI.
const (
	KindScopus  = "scopus"
	KindKoks    = "koks"
	KindJournal = "journal"
)

// Kind picks the badge label for a publication: Scopus-imported rows are
// "scopus", Article/ККСОН rows are "koks", everything else falls back to
// "journal".
func Kind(uploadSource, scopusURL string) string {
	switch strings.ToLower(strings.TrimSpace(uploadSource)) {
	case "scopus":
		return KindScopus
	case "article", "kokson":
		return KindKoks
	}
	if strings.TrimSpace(scopusURL) != "" {
		return KindScopus
	}
	return KindJournal
}

var docTypeCanonical = map[string]string{
	// books
	"book": "Кітаптар", "books": "Кітаптар", "книга": "Кітаптар",
	"книги": "Кітаптар", "кітап": "Кітаптар", "кітаптар": "Кітаптар",
	"монография (книга)": "Кітаптар", "учебник": "Кітаптар",
	"учебное пособие": "Кітаптар", "оқу-әдістемелік құрал": "Кітаптар",
	// conference proceedings
	"conference": "Конференциялар жинағы", "conf": "Конференциялар жинағы",
	"конференция": "Конференциялар жинағы", "конференции": "Конференциялар жинағы",
	"сборник конференции": "Конференциялар жинағы", "proceedings": "Конференциялар жинағы",
	"конференциялар жинағы": "Конференциялар жинағы",
	// book subtypes
	"оқу құралы":     "Оқу-әдістемелік құрал",
	"оқу қуралы":     "Оқу-әдістемелік құрал",
	"оқулық":         "Оқу-әдістемелік құрал",
	"танымдық жинақ": "Танымдық жинақ",
	"энциклопедия":   "Энциклопедия",
	// conference subtypes
	"халықаралық": "Халықаралық", "международный": "Халықаралық",
	"шетелдік": "Шетелдік", "иностранных": "Шетелдік", "иностранец": "Шетелдік",
	"республикалық": "Республикалық", "республиканец": "Республикалық",
	"аймақтық": "Аймақтық", "аимактык": "Аймақтық", "аймактык": "Аймақтық",
	"университетішілік": "Университетішілік", "университетский": "Университетішілік",
}

// NormalizeDocType maps free-form document-type cells to the canonical
// Kazakh labels used by the catalog filters. Unrecognized values are
// returned unchanged.
func NormalizeDocType(raw string) string {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return ""
	}
	if canon, ok := docTypeCanonical[v]; ok {
		return canon
	}
	return strings.TrimSpace(raw)
}
