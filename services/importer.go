package services

import (
	"encoding/json"
	"fmt"
	"io"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"science-registry/models"
)

// ImportReport summarizes one workbook import.
type ImportReport struct {
	Created        int            `json:"created"`
	Updated        int            `json:"updated"`
	Skipped        int            `json:"skipped"`
	SourcesCreated int            `json:"src_created,omitempty"`
	SourcesReused  int            `json:"src_reused,omitempty"`
	UsersCreated   int            `json:"users_created,omitempty"`
	UsersUpdated   int            `json:"users_updated,omitempty"`
	PairsMerged    int            `json:"pairs_merged,omitempty"`
	SkippedReasons map[string]int `json:"skipped_reasons,omitempty"`
	Ambiguous      []string       `json:"ambiguous,omitempty"`
	NotFound       []string       `json:"not_found,omitempty"`
}

func (r *ImportReport) skip(reason string) {
	r.Skipped++
	if r.SkippedReasons == nil {
		r.SkippedReasons = map[string]int{}
	}
	r.SkippedReasons[reason]++
}

// ImportService ports the university's Excel workbooks into the
// database. All imports are idempotent upserts.
type ImportService struct {
	DB   *gorm.DB
	Log  *zap.Logger
	Salt string
}

func NewImportService(db *gorm.DB, log *zap.Logger, salt string) *ImportService {
	return &ImportService{DB: db, Log: log, Salt: salt}
}

// Column aliases of the Scopus source sheet.
var sourceColAliases = map[string]string{
	"issn": "issn", "issn/isbn": "issn", "issn/e-issn": "issn", "issn/eissn": "issn",
	"source": "name", "journal": "name", "журнал": "name",
	"название журнала": "name", "издание": "name", "источник": "name",
	"quartile": "quartile", "sjr": "quartile", "sjr quartile": "quartile", "q": "quartile", "квартиль": "quartile",
	"type": "type", "источник тип": "type", "source type": "type", "вид": "type", "journal/conference": "type",
}

// Column aliases of the Scopus publications sheet.
var pubColAliases = map[string]string{
	"автор(ы)": "authors", "автор": "authors", "авторы": "authors",
	"author": "authors", "authors": "authors",
	"author full names": "authors", "authors full names": "authors",
	"author full name": "authors", "full names of authors": "authors",
	"полные имена авторов": "authors", "автор полные имена": "authors", "автор полное имя": "authors",
	"title": "title", "название": "title", "название документа": "title",
	"year": "year", "год": "year",
	"название источника": "source_name", "source name": "source_name",
	"issn": "issn", "issn/isbn": "issn", "issn/e-issn": "issn", "issn/eissn": "issn",
	"doi":       "doi",
	"citations": "citations", "цитирования": "citations",
	"pdf": "pdf_url", "pdf url": "pdf_url",
	"ссылка": "scopus_url", "link": "scopus_url", "scopus": "scopus_url", "scopus link": "scopus_url",
	"quartile": "quartile", "квартиль": "quartile",
	"percentile_2024": "percentile_2024", "процентиль 2024": "percentile_2024",
	"percentile": "percentile_2024", "percentile2024": "percentile_2024",
	"note": "note", "comment": "note", "comments": "note", "примечание": "note",
	"комментарий": "note", "ескерту": "note", "ескертуi": "note", "ескертуі": "note", "ескертулер": "note",
}

func normSourceCol(col string) string {
	c := strings.ToLower(strings.TrimSpace(col))
	if k, ok := sourceColAliases[c]; ok {
		return k
	}
	return c
}

func normPubCol(col string) string {
	c := strings.ToLower(strings.TrimSpace(col))
	if k, ok := pubColAliases[c]; ok {
		return k
	}
	// Fuzzy fallbacks for workbook variants.
	switch {
	case strings.Contains(c, "full") && strings.Contains(c, "author"),
		strings.Contains(c, "полные") && strings.Contains(c, "автор"):
		return "authors"
	case strings.Contains(c, "автор"):
		return "authors"
	case strings.Contains(c, "название источ"):
		return "source_name"
	case strings.Contains(c, "название") && strings.Contains(c, "документ"):
		return "title"
	case c == "год" || c == "year" || strings.Contains(c, " year"):
		return "year"
	case strings.Contains(c, "scopus") || strings.Contains(c, "ссылка") || strings.Contains(c, "link"):
		return "scopus_url"
	}
	return c
}

func cleanCell(s string) string {
	x := strings.TrimSpace(strings.ReplaceAll(s, nbsp, " "))
	switch strings.ToLower(x) {
	case "nan", "none":
		return ""
	}
	return x
}

var authorSplitStrict = regexp.MustCompile(`[;\n]+`)
var authorSplitLoose = regexp.MustCompile(`[;\n,]+`)

// ParseAuthors splits an authors cell by semicolons or newlines only,
// the way Scopus exports delimit full names that contain commas.
func ParseAuthors(cell string) []string {
	return splitNames(authorSplitStrict, cell)
}

func splitNames(re *regexp.Regexp, cell string) []string {
	var out []string
	for _, p := range re.Split(cell, -1) {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// LooksLikePDF reports whether a link plausibly points at a PDF file.
func LooksLikePDF(url string) bool {
	u := strings.ToLower(strings.TrimSpace(url))
	if u == "" {
		return false
	}
	return strings.HasSuffix(u, ".pdf") ||
		strings.Contains(u, "format=pdf") ||
		strings.Contains(u, "application/pdf")
}

func parseYearCell(s string) int {
	v := cleanCell(s)
	if v == "" {
		return 0
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return int(f)
	}
	if m := yearRe.FindString(v); m != "" {
		y, _ := strconv.Atoi(m)
		return y
	}
	return 0
}

var yearRe = regexp.MustCompile(`\b(19\d{2}|20\d{2}|21\d{2})\b`)

// ParsePublishedDate accepts dd.mm.yyyy and yyyy-mm-dd cell values.
func ParsePublishedDate(s string) (time.Time, bool) {
	v := cleanCell(s)
	if v == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{"02.01.2006", "2006-01-02", "01-02-06", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (s *ImportService) getOrCreateAuthor(tx *gorm.DB, name string) (*models.Author, error) {
	var a models.Author
	err := tx.Where("display_name = ?", name).First(&a).Error
	if err == nil {
		return &a, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	norm := NormalizeDisplay(name)
	a = models.Author{DisplayName: name, NormalizedName: &norm}
	if err := tx.Create(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *ImportService) replaceAuthors(tx *gorm.DB, pubID uint, authors []*models.Author) error {
	if err := tx.Where("publication_id = ?", pubID).Delete(&models.PublicationAuthor{}).Error; err != nil {
		return err
	}
	for i, a := range authors {
		row := models.PublicationAuthor{PublicationID: pubID, AuthorID: a.ID, AuthorOrder: i}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

// findSheet returns the rows of the first sheet whose header (after the
// given normalizer) contains all wanted keys, plus that normalized
// header.
func findSheet(f *excelize.File, norm func(string) string, wanted ...string) ([][]string, []string) {
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}
		header := make([]string, len(rows[0]))
		for i, c := range rows[0] {
			header[i] = norm(c)
		}
		found := 0
		for _, w := range wanted {
			for _, h := range header {
				if h == w {
					found++
					break
				}
			}
		}
		if found == len(wanted) {
			return rows, header
		}
	}
	return nil, nil
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return cleanCell(row[idx])
}

func colIndex(header []string, key string) int {
	for i, h := range header {
		if h == key {
			return i
		}
	}
	return -1
}

// ImportScopus loads the Scopus workbook: a sources sheet keyed by ISSN
// or name, and a publications sheet keyed by title+year+source. Every
// imported publication is approved with upload_source=scopus.
func (s *ImportService) ImportScopus(r io.Reader) (*ImportReport, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	report := &ImportReport{}
	if err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.importScopusSources(tx, f, report); err != nil {
			return err
		}
		return s.importScopusPublications(tx, f, report)
	}); err != nil {
		return nil, err
	}
	s.Log.Info("scopus import done",
		zap.Int("created", report.Created),
		zap.Int("updated", report.Updated),
		zap.Int("skipped", report.Skipped))
	return report, nil
}

func (s *ImportService) importScopusSources(tx *gorm.DB, f *excelize.File, report *ImportReport) error {
	rows, header := findSheet(f, normSourceCol, "issn")
	if rows == nil {
		rows, header = findSheet(f, normSourceCol, "name")
	}
	if rows == nil {
		return nil
	}
	cName := colIndex(header, "name")
	cISSN := colIndex(header, "issn")
	cType := colIndex(header, "type")

	for _, row := range rows[1:] {
		name := cellAt(row, cName)
		issn := cellAt(row, cISSN)
		srcType := strings.ToLower(cellAt(row, cType))
		if srcType == "" {
			srcType = "journal"
		}
		if name == "" && issn == "" {
			continue
		}

		var existing models.Source
		q := tx.Model(&models.Source{})
		if issn != "" {
			q = q.Where("issn = ?", issn)
		} else {
			q = q.Where("name = ?", name)
		}
		err := q.First(&existing).Error
		if err == nil {
			if existing.Type != srcType {
				existing.Type = srcType
				if err := tx.Save(&existing).Error; err != nil {
					return err
				}
			}
			continue
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}

		src := models.Source{Name: name, Type: srcType}
		if src.Name == "" {
			src.Name = issn
		}
		if issn != "" {
			src.ISSN = &issn
		}
		if err := tx.Create(&src).Error; err != nil {
			return err
		}
		report.SourcesCreated++
	}
	return nil
}

func (s *ImportService) importScopusPublications(tx *gorm.DB, f *excelize.File, report *ImportReport) error {
	rows, header := findSheet(f, normPubCol, "title", "year")
	if rows == nil {
		return fmt.Errorf("publications sheet not found: expected columns title and year")
	}
	cTitle := colIndex(header, "title")
	cYear := colIndex(header, "year")
	cDOI := colIndex(header, "doi")
	cISSN := colIndex(header, "issn")
	cSrcName := colIndex(header, "source_name")
	if cSrcName < 0 {
		cSrcName = colIndex(header, "name")
	}
	cPDF := colIndex(header, "pdf_url")
	cScopus := colIndex(header, "scopus_url")
	cNote := colIndex(header, "note")
	cQuartile := colIndex(header, "quartile")
	cPercentile := colIndex(header, "percentile_2024")
	cCitations := colIndex(header, "citations")
	cAuthors := colIndex(header, "authors")

	scopusTag := models.SourceScopus
	for _, row := range rows[1:] {
		title := cellAt(row, cTitle)
		if title == "" {
			continue
		}
		year := parseYearCell(cellAt(row, cYear))
		if year == 0 {
			continue
		}

		doi := cellAt(row, cDOI)
		issn := cellAt(row, cISSN)
		sourceName := strings.Join(strings.Fields(cellAt(row, cSrcName)), " ")
		pdfCell := cellAt(row, cPDF)
		pdfURL := ""
		if LooksLikePDF(pdfCell) {
			pdfURL = pdfCell
		}
		scopusURL := cellAt(row, cScopus)
		note := cellAt(row, cNote)

		quartile := strings.ToUpper(cellAt(row, cQuartile))
		switch quartile {
		case "Q1", "Q2", "Q3", "Q4":
		default:
			quartile = ""
		}
		var percentile *int
		if p, err := strconv.Atoi(cellAt(row, cPercentile)); err == nil {
			if p < 0 {
				p = 0
			}
			if p > 100 {
				p = 100
			}
			percentile = &p
		}
		citations := 0
		if c, err := strconv.Atoi(cellAt(row, cCitations)); err == nil {
			citations = c
		}

		var src *models.Source
		if sourceName != "" {
			var found models.Source
			err := tx.Where("name = ?", sourceName).First(&found).Error
			switch err {
			case nil:
				if issn != "" && (found.ISSN == nil || *found.ISSN != issn) {
					found.ISSN = &issn
					if err := tx.Save(&found).Error; err != nil {
						return err
					}
				}
				src = &found
			case gorm.ErrRecordNotFound:
				created := models.Source{Name: sourceName, Type: "journal"}
				if issn != "" {
					created.ISSN = &issn
				}
				if err := tx.Create(&created).Error; err != nil {
					return err
				}
				report.SourcesCreated++
				src = &created
			default:
				return err
			}
		}

		var authors []*models.Author
		for _, nm := range ParseAuthors(cellAt(row, cAuthors)) {
			a, err := s.getOrCreateAuthor(tx, nm)
			if err != nil {
				return err
			}
			authors = append(authors, a)
		}

		dup := tx.Where("title = ? AND year = ?", title, year)
		if src != nil {
			dup = dup.Where("source_id = ?", src.ID)
		}
		var existing models.Publication
		err := dup.First(&existing).Error
		if err == nil {
			changed := false
			if doi != "" && (existing.DOI == nil || *existing.DOI != doi) {
				existing.DOI = &doi
				changed = true
			}
			if pdfURL != "" && (existing.PDFURL == nil || *existing.PDFURL != pdfURL) {
				existing.PDFURL = &pdfURL
				changed = true
			}
			if scopusURL != "" && (existing.ScopusURL == nil || *existing.ScopusURL != scopusURL) {
				existing.ScopusURL = &scopusURL
				changed = true
			}
			if quartile != "" && (existing.Quartile == nil || *existing.Quartile != quartile) {
				existing.Quartile = &quartile
				changed = true
			}
			if existing.CitationsCount != citations {
				existing.CitationsCount = citations
				changed = true
			}
			if percentile != nil && (existing.Percentile2024 == nil || *existing.Percentile2024 != *percentile) {
				existing.Percentile2024 = percentile
				changed = true
			}
			if existing.UploadSource == nil || *existing.UploadSource != scopusTag {
				existing.UploadSource = &scopusTag
				changed = true
			}
			if note != "" && (existing.Note == nil || *existing.Note != note) {
				existing.Note = &note
				changed = true
			}
			if existing.Status != models.StatusApproved {
				existing.Status = models.StatusApproved
				changed = true
			}
			if changed {
				if err := tx.Save(&existing).Error; err != nil {
					return err
				}
				report.Updated++
			}
			continue
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}

		pub := models.Publication{
			Title:          title,
			Year:           year,
			CitationsCount: citations,
			Status:         models.StatusApproved,
			UploadSource:   &scopusTag,
			Percentile2024: percentile,
		}
		if doi != "" {
			pub.DOI = &doi
		}
		if pdfURL != "" {
			pub.PDFURL = &pdfURL
		}
		if scopusURL != "" {
			pub.ScopusURL = &scopusURL
		}
		if quartile != "" {
			pub.Quartile = &quartile
		}
		if note != "" {
			pub.Note = &note
		}
		if src != nil {
			pub.SourceID = &src.ID
		}
		if err := tx.Create(&pub).Error; err != nil {
			return err
		}
		if err := s.replaceAuthors(tx, pub.ID, authors); err != nil {
			return err
		}
		report.Created++
	}
	return nil
}

// Kokson workbook header aliases. Header position varies per file, so
// the header row itself is located by scanning for title+year aliases.
var (
	koksonTitleAliases = []string{
		"name", "название", "наименование", "название статьи", "название публикации",
		"название книги", "заглавие", "наименование публикации", "название работы",
		"наименование труда", "атауы", "атауы (еңбек)", "труд", "наименование документа", "namebook",
	}
	koksonYearAliases = []string{
		"year", "год", "год издания", "year of publication", "год публикации",
		"год выхода", "жылы", "шығарылған жыл",
	}
	koksonTypeAliases   = []string{"type", "тип", "тип публикации", "вид публикации"}
	koksonSourceAliases = []string{
		"rname", "источник", "журнал", "издание", "издательство", "сборник",
		"конференция", "источник/издание", "сборник материалов", "материалы конференции",
		"баспа", "басылым", "жарияланым", "издатель",
	}
	koksonAuthorAliases = []string{
		"author", "authors", "author(s)", "авторы", "авторы (фио)", "автор(ы)",
		"авторы статьи", "авторлар", "авторы (фио полностью)", "авторы (полностью)",
		"докладчик", "докладчики", "спикер", "спикеры", "баяндамашы", "докладшы",
		"тезис авторы", "автор тезиса", "presenter", "presenters",
	}
	koksonCoAuthorAliases = []string{
		"соавтор", "соавторы", "соавтор(ы)", "соавторы тезиса", "соавт.",
		"соавторлар", "бірлескен авторлар", "қоса авторлар",
		"coauthor", "co-authors",
	}
	koksonLinkAliases   = []string{"ссылка", "url", "ссылка на источник", "ссылка (url)"}
	koksonPDFAliases    = []string{"pdf", "файл", "пдф", "скан", "file"}
	koksonDateAliases   = []string{"data", "дата", "дата публикации", "дата выхода"}
	koksonStatusAliases = []string{"статус", "status", "статус публикации"}
	koksonNoteAliases   = []string{"комментарий", "ескерту", "примечание", "comment", "note"}
	koksonLangAliases   = []string{"язык", "language", "язык публикации"}
	koksonLoginAliases  = []string{"login", "логин"}
	koksonISSNAliases   = []string{"issn", "eissn", "issn/eissn"}
	koksonCityAliases   = []string{"city", "город", "қала"}
	koksonBaspaAliases  = []string{"baspa", "баспа", "издательство", "publisher"}
	koksonPlaceAliases  = []string{"otkenjer", "өткен жер", "otken jeri", "место проведения"}

	koksonApprovedSet = []string{"одобрено", "одобрен", "approved", "қабылданды", "accepted"}
	koksonRejectedSet = []string{"отклонено", "отклонен", "rejected", "қабылданбады", "қайтарылды", "return", "declined"}
)

const koksonPDFBase = "http://science.arsu.kz/"

func findAlias(header []string, aliases []string) int {
	for i, h := range header {
		hv := strings.ToLower(strings.TrimSpace(h))
		for _, a := range aliases {
			if hv == a {
				return i
			}
		}
	}
	return -1
}

// ImportKokson loads a ККСОН/Science workbook (articles, books,
// conference theses). It detects the header row, normalizes document
// types and languages, links or creates teacher users for the main
// author and upserts publications by title+year+source.
func (s *ImportService) ImportKokson(r io.Reader, filename string) (*ImportReport, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("empty workbook")
	}
	sheet := sheets[0]
	for _, name := range sheets {
		ln := strings.ToLower(name)
		for _, k := range []string{"publication", "стать", "журнал", "book", "конферен", "conf"} {
			if strings.Contains(ln, k) {
				sheet = name
				break
			}
		}
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &ImportReport{}, nil
	}

	headerIx := 0
	for i := 0; i < len(rows) && i < 15; i++ {
		hasTitle := findAlias(rows[i], koksonTitleAliases) >= 0
		hasYear := findAlias(rows[i], koksonYearAliases) >= 0
		if hasTitle && hasYear {
			headerIx = i
			break
		}
	}
	header := rows[headerIx]

	cType := findAlias(header, koksonTypeAliases)
	cName := findAlias(header, koksonTitleAliases)
	cRName := findAlias(header, koksonSourceAliases)
	cYear := findAlias(header, koksonYearAliases)
	cAuthor := findAlias(header, koksonAuthorAliases)
	cCo := findAlias(header, koksonCoAuthorAliases)
	cLink := findAlias(header, koksonLinkAliases)
	cPDF := findAlias(header, koksonPDFAliases)
	cDate := findAlias(header, koksonDateAliases)
	cStatus := findAlias(header, koksonStatusAliases)
	cNote := findAlias(header, koksonNoteAliases)
	cLang := findAlias(header, koksonLangAliases)
	cLogin := findAlias(header, koksonLoginAliases)
	cISSN := findAlias(header, koksonISSNAliases)
	cCity := findAlias(header, koksonCityAliases)
	cBaspa := findAlias(header, koksonBaspaAliases)
	cPlace := findAlias(header, koksonPlaceAliases)

	fallbackDocType := docTypeFromFilename(filename)

	report := &ImportReport{}
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		for _, row := range rows[headerIx+1:] {
			if err := s.importKoksonRow(tx, row, koksonCols{
				typ: cType, name: cName, rname: cRName, year: cYear,
				author: cAuthor, co: cCo, link: cLink, pdf: cPDF,
				date: cDate, status: cStatus, note: cNote, lang: cLang,
				login: cLogin, issn: cISSN, city: cCity, baspa: cBaspa, place: cPlace,
			}, fallbackDocType, report); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Log.Info("kokson import done",
		zap.String("file", filename),
		zap.Int("created", report.Created),
		zap.Int("updated", report.Updated),
		zap.Int("skipped", report.Skipped))
	return report, nil
}

type koksonCols struct {
	typ, name, rname, year, author, co, link, pdf             int
	date, status, note, lang, login, issn, city, baspa, place int
}

func docTypeFromFilename(filename string) string {
	fname := strings.ToLower(path.Base(filename))
	switch {
	case strings.Contains(fname, "book"):
		return NormalizeDocType("book")
	case strings.Contains(fname, "konfer"), strings.Contains(fname, "conf"):
		return NormalizeDocType("conference")
	case strings.Contains(fname, "author"), strings.Contains(fname, "article"):
		return NormalizeDocType("article")
	}
	return ""
}

func (s *ImportService) importKoksonRow(tx *gorm.DB, row []string, c koksonCols, fallbackDocType string, report *ImportReport) error {
	title := cellAt(row, c.name)
	if title == "" {
		report.skip("no_title")
		return nil
	}
	docType := NormalizeDocType(cellAt(row, c.typ))
	if docType == "" {
		docType = fallbackDocType
	}
	srcName := cellAt(row, c.rname)
	if srcName == "" {
		city := cellAt(row, c.city)
		baspa := cellAt(row, c.baspa)
		place := cellAt(row, c.place)
		switch {
		case baspa != "" || city != "":
			parts := []string{}
			if city != "" {
				parts = append(parts, city)
			}
			if baspa != "" {
				parts = append(parts, baspa)
			}
			srcName = strings.Join(parts, ": ")
		case place != "":
			srcName = "Конференция: " + place
		}
	}
	issn := cellAt(row, c.issn)
	language := NormalizeLanguage(cellAt(row, c.lang))

	stNorm := strings.ToLower(cellAt(row, c.status))
	status := models.StatusApproved
	if stNorm != "" {
		if inSet(stNorm, koksonRejectedSet) {
			status = models.StatusRejected
		} else if inSet(stNorm, koksonApprovedSet) {
			status = models.StatusApproved
		}
	}
	rawNote := cellAt(row, c.note)
	url := cellAt(row, c.link)
	pdfVal := cellAt(row, c.pdf)
	authorsMain := cellAt(row, c.author)
	authorsCo := cellAt(row, c.co)
	if authorsMain == "" && authorsCo == "" {
		report.skip("no_main_author")
		return nil
	}
	login := cellAt(row, c.login)

	var pubDate *time.Time
	year := 0
	if d, ok := ParsePublishedDate(cellAt(row, c.date)); ok {
		pubDate = &d
		year = d.Year()
	}
	if year == 0 {
		year = parseYearCell(cellAt(row, c.year))
	}
	if year == 0 {
		report.skip("no_year")
		return nil
	}

	// Source upsert, by ISSN first then by name.
	var src *models.Source
	if issn != "" {
		var found models.Source
		if err := tx.Where("issn = ?", issn).First(&found).Error; err == nil {
			src = &found
		} else if err != gorm.ErrRecordNotFound {
			return err
		}
	}
	if src == nil && srcName != "" {
		var found models.Source
		if err := tx.Where("name = ?", srcName).First(&found).Error; err == nil {
			src = &found
		} else if err != gorm.ErrRecordNotFound {
			return err
		}
	}
	if src != nil {
		report.SourcesReused++
	} else {
		srcType := "journal"
		lowerDoc := strings.ToLower(docType)
		lowerSrc := strings.ToLower(srcName)
		if strings.HasPrefix(lowerDoc, "conf") ||
			strings.Contains(lowerSrc, "конферен") ||
			strings.Contains(lowerSrc, "conference") ||
			strings.Contains(lowerSrc, "symposium") {
			srcType = "conference"
		}
		created := models.Source{Name: srcName, Type: srcType}
		if created.Name == "" {
			created.Name = issn
			if created.Name == "" {
				created.Name = "Unknown"
			}
		}
		if issn != "" {
			created.ISSN = &issn
		}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}
		report.SourcesCreated++
		src = &created
	}

	mainList := splitNames(authorSplitLoose, authorsMain)
	coList := splitNames(authorSplitLoose, authorsCo)
	mainMissingButCo := len(mainList) == 0 && len(coList) > 0
	var authors []*models.Author
	for _, nm := range append(append([]string{}, mainList...), coList...) {
		a, err := s.getOrCreateAuthor(tx, nm)
		if err != nil {
			return err
		}
		authors = append(authors, a)
	}

	// Link or create the owning teacher user from the main author.
	if login == "" && len(mainList) > 0 {
		login = mainList[0]
	}
	mainFullName := login
	if len(mainList) > 0 {
		mainFullName = mainList[0]
	}
	detPw := DeterministicPassword(mainFullName, 6)

	var userID *uint
	var u models.User
	found := false
	if login != "" {
		if err := tx.Where("login = ?", login).First(&u).Error; err == nil {
			found = true
		} else if err != gorm.ErrRecordNotFound {
			return err
		}
	}
	if !found && len(mainList) > 0 {
		if err := tx.Where("LOWER(full_name) = LOWER(?)", mainList[0]).First(&u).Error; err == nil {
			found = true
		} else if err != gorm.ErrRecordNotFound {
			return err
		}
	}
	switch {
	case !found && len(mainList) > 0 && login != "":
		role := RoleTeacher
		createdSource := "import"
		u = models.User{
			FullName:        mainList[0],
			Login:           login,
			Role:            &role,
			PasswordHash:    HashPassword(detPw, s.Salt),
			InitialPassword: &detPw,
			Active:          true,
			CreatedSource:   &createdSource,
		}
		if err := tx.Create(&u).Error; err != nil {
			return err
		}
		report.UsersCreated++
		userID = &u.ID
	case found:
		if u.InitialPassword == nil || *u.InitialPassword == "" {
			u.InitialPassword = &detPw
			u.PasswordHash = HashPassword(detPw, s.Salt)
			if err := tx.Save(&u).Error; err != nil {
				return err
			}
		}
		userID = &u.ID
	}

	pdfURL := ""
	if pdfVal != "" {
		v := strings.TrimLeft(pdfVal, " ")
		switch {
		case strings.HasPrefix(v, "http"):
			pdfURL = v
		case strings.HasPrefix(v, "/files/"):
			pdfURL = strings.TrimSuffix(koksonPDFBase, "/") + v
		case strings.HasPrefix(v, "files/"):
			pdfURL = koksonPDFBase + v
		default:
			pdfURL = koksonPDFBase + v
		}
	}

	// Rows with a bare comment, or with only one of url/pdf present, go
	// to moderation as rejected with an explanatory note.
	var noteParts []string
	if rawNote != "" {
		noteParts = append(noteParts, rawNote)
		if stNorm == "" {
			status = models.StatusRejected
		}
	}
	if url == "" && pdfVal != "" {
		noteParts = append(noteParts, "Надо вставить ссылку на источник")
		status = models.StatusRejected
	}
	if pdfVal == "" && url != "" {
		noteParts = append(noteParts, "Надо добавить ПДФ")
		status = models.StatusRejected
	}
	note := strings.Join(noteParts, "; ")

	var mainCount *int
	if mainMissingButCo {
		zero := 0
		mainCount = &zero
	} else if n := len(mainList); n > 0 {
		mainCount = &n
	}

	var existing models.Publication
	err := tx.Where("title = ? AND year = ? AND source_id = ?", title, year, src.ID).First(&existing).Error
	if err == nil {
		if docType != "" {
			existing.DocType = &docType
		}
		if language != "" {
			existing.Language = &language
		}
		if url != "" {
			existing.URL = &url
		}
		if pdfURL != "" {
			existing.PDFURL = &pdfURL
		}
		if pubDate != nil {
			existing.PublishedDate = pubDate
		}
		existing.Status = status
		if note != "" {
			existing.Note = &note
		}
		existing.MainAuthorsCount = mainCount
		if userID != nil {
			existing.UserID = userID
		}
		if err := tx.Save(&existing).Error; err != nil {
			return err
		}
		if err := s.replaceAuthors(tx, existing.ID, authors); err != nil {
			return err
		}
		report.Updated++
		return nil
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}

	uploaderID := "import"
	uploadedByRole := RoleAdmin
	uploadSource := models.SourceKokson
	pub := models.Publication{
		Title:            title,
		Year:             year,
		CitationsCount:   0,
		Status:           status,
		UploaderID:       &uploaderID,
		UploadedByRole:   &uploadedByRole,
		UploadSource:     &uploadSource,
		PublishedDate:    pubDate,
		MainAuthorsCount: mainCount,
		SourceID:         &src.ID,
		UserID:           userID,
	}
	if docType != "" {
		pub.DocType = &docType
	}
	if language != "" {
		pub.Language = &language
	}
	if url != "" {
		pub.URL = &url
	}
	if pdfURL != "" {
		pub.PDFURL = &pdfURL
	}
	if note != "" {
		pub.Note = &note
	}
	if err := tx.Create(&pub).Error; err != nil {
		return err
	}
	if err := s.replaceAuthors(tx, pub.ID, authors); err != nil {
		return err
	}
	report.Created++
	return nil
}

// Faculty roster header aliases (kaz/rus).
var (
	rosterNameAliases = []string{
		"оқытушының аты-жөні", "аты-жөні", "фио", "фамилия имя отчество", "fullname", "full name",
	}
	rosterPositionAliases = []string{"қызметі", "должность", "position"}
	rosterDegreeAliases   = []string{"ғылыми атағы", "ғылыми атағы, дәрежесі", "степень", "звание", "degree"}
	rosterFacultyAliases  = []string{
		"факультет(кафедра)", "факультет (кафедра)", "факультет", "faculty",
		"факультеті", "факультет атауы", "факультет/кафедра", "факультет, кафедра",
	}
	rosterDeptAliases = []string{"кафедра", "кафедрасы", "department", "кафедра атауы"}
)

func isDeptLabel(s string) bool {
	lod := strings.ToLower(s)
	return strings.Contains(lod, "кафедра") || strings.Contains(lod, "кафедрасы") || strings.Contains(lod, "каф.")
}

// ImportFacultyRoster loads the staff roster workbook and upserts
// teacher users by full name. Faculty sections stored as merged column
// labels are carried down to the rows beneath them.
func (s *ImportService) ImportFacultyRoster(r io.Reader) (*ImportReport, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("empty workbook")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &ImportReport{}, nil
	}
	header := rows[0]
	cName := findAlias(header, rosterNameAliases)
	cPosition := findAlias(header, rosterPositionAliases)
	cDegree := findAlias(header, rosterDegreeAliases)
	cFacDept := findAlias(header, rosterFacultyAliases)
	cDept := findAlias(header, rosterDeptAliases)
	if cName < 0 {
		return nil, fmt.Errorf("roster header not found: expected a full-name column")
	}
	known := map[int]bool{cName: true, cPosition: true, cDegree: true, cFacDept: true, cDept: true}

	report := &ImportReport{}
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		currentSection := ""
		for _, row := range rows[1:] {
			// Unrecognized columns may carry a merged faculty section label.
			for i := range row {
				if known[i] {
					continue
				}
				val := cellAt(row, i)
				if val != "" && len([]rune(strings.ReplaceAll(val, " ", ""))) >= 5 {
					currentSection = val
					break
				}
			}

			name := cellAt(row, cName)
			if name == "" {
				continue
			}
			position := cellAt(row, cPosition)
			degree := cellAt(row, cDegree)
			department := cellAt(row, cDept)
			faculty := ""
			if fd := cellAt(row, cFacDept); fd != "" {
				faculty = fd
				if isDeptLabel(fd) && department == "" {
					department = fd
				}
			}
			if faculty == "" && department == "" && currentSection != "" {
				if isDeptLabel(currentSection) {
					department = currentSection
				} else {
					faculty = currentSection
				}
			}

			var u models.User
			err := tx.Where("full_name = ?", name).First(&u).Error
			switch err {
			case gorm.ErrRecordNotFound:
				role := RoleTeacher
				variants, _ := json.Marshal(NameVariants(name))
				vs := string(variants)
				u = models.User{
					FullName:     name,
					Role:         &role,
					Faculty:      faculty,
					Department:   department,
					Position:     position,
					Degree:       degree,
					Login:        strings.ToLower(strings.ReplaceAll(name, " ", ".")),
					PasswordHash: "",
					NameVariants: &vs,
					Active:       true,
				}
				if err := tx.Create(&u).Error; err != nil {
					return err
				}
				report.Created++
			case nil:
				changed := false
				if u.Faculty != faculty {
					u.Faculty = faculty
					changed = true
				}
				if u.Department != department {
					u.Department = department
					changed = true
				}
				if u.Position != position {
					u.Position = position
					changed = true
				}
				if u.Degree != degree {
					u.Degree = degree
					changed = true
				}
				if u.NameVariants == nil || *u.NameVariants == "" {
					variants, _ := json.Marshal(NameVariants(name))
					vs := string(variants)
					u.NameVariants = &vs
					changed = true
				}
				if changed {
					if err := tx.Save(&u).Error; err != nil {
						return err
					}
					report.Updated++
				}
			default:
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Log.Info("faculty roster import done",
		zap.Int("created", report.Created),
		zap.Int("updated", report.Updated))
	return report, nil
}

var fioColAliases = []string{"фио", "ф.и.о", "фио авторы"}

// ImportFIOMap loads a ФИО/Кафедра/Факультет workbook: it updates each
// matched user's department and faculty and merges the department to
// faculty pairs into the mapper. Matching is by squashed full name
// first, then by unique last-name plus first-initial.
func (s *ImportService) ImportFIOMap(r io.Reader, mapper *FacultyMapper) (*ImportReport, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("empty workbook")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &ImportReport{}, nil
	}
	header := rows[0]
	cFIO := findAlias(header, fioColAliases)
	cDept := findAlias(header, []string{"кафедра"})
	cFac := findAlias(header, []string{"факультет"})
	if cFIO < 0 || cDept < 0 || cFac < 0 {
		return nil, fmt.Errorf("columns 'ФИО','Кафедра','Факультет' not found")
	}

	var users []models.User
	if err := s.DB.Find(&users).Error; err != nil {
		return nil, err
	}
	byNorm := make(map[string]*models.User, len(users))
	type fuzzyKey struct{ last, init string }
	fuzzy := make(map[fuzzyKey][]*models.User)
	for i := range users {
		u := &users[i]
		nm := strings.TrimSpace(strings.ReplaceAll(u.FullName, nbsp, " "))
		if nm == "" {
			continue
		}
		byNorm[NormalizeName(nm)] = u
		parts := strings.Fields(nm)
		last := strings.ToLower(parts[0])
		init := ""
		if len(parts) > 1 {
			init = strings.ToLower(string([]rune(parts[1])[0]))
		}
		fuzzy[fuzzyKey{last, init}] = append(fuzzy[fuzzyKey{last, init}], u)
	}

	report := &ImportReport{}
	pairs := map[string]string{}
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		for _, row := range rows[1:] {
			fio := cellAt(row, cFIO)
			dep := cellAt(row, cDept)
			fac := cellAt(row, cFac)
			if fio == "" || dep == "" || fac == "" {
				continue
			}
			pairs[dep] = fac

			u := byNorm[NormalizeName(fio)]
			if u == nil {
				parts := strings.Fields(strings.ReplaceAll(fio, nbsp, " "))
				if len(parts) > 0 {
					last := strings.ToLower(parts[0])
					init := ""
					if len(parts) > 1 {
						init = strings.ToLower(string([]rune(parts[1])[0]))
					}
					cands := fuzzy[fuzzyKey{last, init}]
					switch len(cands) {
					case 1:
						u = cands[0]
					case 0:
						if len(report.NotFound) < 10 {
							report.NotFound = append(report.NotFound, fio)
						}
					default:
						if len(report.Ambiguous) < 10 {
							report.Ambiguous = append(report.Ambiguous, fio)
						}
					}
				}
			}
			if u == nil {
				continue
			}
			changed := false
			if strings.TrimSpace(u.Department) != dep {
				u.Department = dep
				changed = true
			}
			if strings.TrimSpace(u.Faculty) != fac {
				u.Faculty = fac
				changed = true
			}
			if changed {
				if err := tx.Save(u).Error; err != nil {
					return err
				}
				report.UsersUpdated++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	report.PairsMerged = mapper.MergeOverrides(pairs)
	s.Log.Info("fio map import done",
		zap.Int("users_updated", report.UsersUpdated),
		zap.Int("pairs_merged", report.PairsMerged))
	return report, nil
}

// ParseDeptMap reads a two-column department/faculty workbook into a
// plain map. A header row with 'кафедра'/'факультет' is skipped when
// present.
func ParseDeptMap(r io.Reader) (map[string]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("empty workbook")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}

	out := map[string]string{}
	for i, row := range rows {
		dep := cellAt(row, 0)
		fac := cellAt(row, 1)
		if dep == "" || fac == "" {
			continue
		}
		if i == 0 && (strings.EqualFold(dep, "кафедра") || strings.EqualFold(fac, "факультет")) {
			continue
		}
		out[dep] = fac
	}
	return out, nil
}
