package services

import (
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"science-registry/models"
)

var ErrForbidden = errors.New("forbidden")

// Actor identifies the caller of an uploader endpoint: the token role,
// the client id header and an optional account id.
type Actor struct {
	Role     string
	ClientID string
	UserID   *uint
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// PublicationService backs the uploader endpoints and the article
// statistics views.
type PublicationService struct {
	DB        *gorm.DB
	Log       *zap.Logger
	Search    *SearchService
	Faculties *FacultyMapper
}

func NewPublicationService(db *gorm.DB, log *zap.Logger, search *SearchService, faculties *FacultyMapper) *PublicationService {
	return &PublicationService{DB: db, Log: log, Search: search, Faculties: faculties}
}

// ValidateSource looks a source up by ISSN or by name.
func (s *PublicationService) ValidateSource(issn, name string) (*models.Source, error) {
	q := s.DB.Model(&models.Source{})
	switch {
	case issn != "":
		q = q.Where("issn = ?", issn)
	case name != "":
		q = q.Where("name ILIKE ?", name)
	default:
		return nil, errors.New("provide issn or name")
	}
	var src models.Source
	err := q.First(&src).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &src, nil
}

func (s *PublicationService) findOrCreateSource(tx *gorm.DB, name, issn, srcType string) (*models.Source, error) {
	if name == "" && issn == "" {
		return nil, nil
	}
	var src models.Source
	if name != "" {
		if err := tx.Where("name = ?", name).First(&src).Error; err == nil {
			return &src, nil
		} else if err != gorm.ErrRecordNotFound {
			return nil, err
		}
	}
	if issn != "" {
		if err := tx.Where("issn = ?", issn).First(&src).Error; err == nil {
			return &src, nil
		} else if err != gorm.ErrRecordNotFound {
			return nil, err
		}
	}
	if srcType == "" {
		srcType = "journal"
	}
	src = models.Source{Name: name, Type: srcType}
	if src.Name == "" {
		src.Name = issn
		if src.Name == "" {
			src.Name = "Unknown"
		}
	}
	if issn != "" {
		src.ISSN = &issn
	}
	if err := tx.Create(&src).Error; err != nil {
		return nil, err
	}
	return &src, nil
}

func (s *PublicationService) findOrCreateAuthors(tx *gorm.DB, names []string) ([]*models.Author, error) {
	var out []*models.Author
	for _, name := range names {
		nm := strings.TrimSpace(name)
		if nm == "" {
			continue
		}
		var a models.Author
		err := tx.Where("display_name = ?", nm).First(&a).Error
		switch err {
		case nil:
		case gorm.ErrRecordNotFound:
			norm := NormalizeDisplay(nm)
			a = models.Author{DisplayName: nm, NormalizedName: &norm}
			if err := tx.Create(&a).Error; err != nil {
				return nil, err
			}
		default:
			return nil, err
		}
		out = append(out, &a)
	}
	return out, nil
}

func (s *PublicationService) setAuthors(tx *gorm.DB, pubID uint, authors []*models.Author) error {
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

// PublicationCreate is the JSON submission payload. Submissions always
// enter moderation as pending.
type PublicationCreate struct {
	Title          string   `json:"title" binding:"required"`
	Year           int      `json:"year" binding:"required"`
	Authors        []string `json:"authors" binding:"required"`
	SourceName     string   `json:"source_name"`
	SourceType     string   `json:"source_type"`
	ISSN           string   `json:"issn"`
	DOI            string   `json:"doi"`
	PDFURL         string   `json:"pdf_url"`
	CitationsCount int      `json:"citations_count"`
}

// Create stores a pending publication from a JSON submission, inferring
// the quartile from the source when it has one.
func (s *PublicationService) Create(p PublicationCreate) (*models.Publication, error) {
	var pub models.Publication
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		src, err := s.findOrCreateSource(tx, strings.TrimSpace(p.SourceName), strings.TrimSpace(p.ISSN), p.SourceType)
		if err != nil {
			return err
		}
		authors, err := s.findOrCreateAuthors(tx, p.Authors)
		if err != nil {
			return err
		}

		pub = models.Publication{
			Title:          strings.TrimSpace(p.Title),
			Year:           p.Year,
			CitationsCount: p.CitationsCount,
			Status:         models.StatusPending,
		}
		if p.DOI != "" {
			pub.DOI = &p.DOI
		}
		if p.PDFURL != "" {
			pub.PDFURL = &p.PDFURL
		}
		if src != nil {
			pub.SourceID = &src.ID
			if src.SJRQuartile != nil && pub.Quartile == nil {
				pub.Quartile = src.SJRQuartile
			}
		}
		if err := tx.Create(&pub).Error; err != nil {
			return err
		}
		return s.setAuthors(tx, pub.ID, authors)
	})
	if err != nil {
		return nil, err
	}
	return &pub, nil
}

// PublicationUpload is the multipart submission payload. PDFLink is the
// stored object link when a file was attached.
type PublicationUpload struct {
	Title          string
	Year           int
	Authors        string // semicolon-separated main authors
	Coauthors      string // semicolon-separated coauthors
	SourceName     string
	ISSN           string
	DOI            string
	CitationsCount int
	Quartile       string
	Percentile2024 *int
	Language       string
	URL            string
	ScopusURL      string
	UploadSource   string // scopus|article|manual, legacy kokson maps to article
	DocType        string
	PublishedDate  string // dd.mm.yyyy or yyyy-mm-dd
	UserID         *uint  // admin only
	UserLogin      string // admin only
	PDFLink        string
}

var ErrArticleNeedsURL = errors.New("url is required for article uploads")
var ErrArticleNeedsPDF = errors.New("pdf file is required for article uploads")
var ErrYearRequired = errors.New("a valid year or published_date is required")
var ErrAuthorsRequired = errors.New("at least one author is required")

// Upload stores a pending publication from a multipart submission.
// A resolvable year (explicit or via published_date) and at least one
// main author are required. Article uploads must carry both a source
// URL and a PDF.
func (s *PublicationService) Upload(p PublicationUpload, actor Actor) (*models.Publication, error) {
	us := strings.ToLower(strings.TrimSpace(p.UploadSource))
	if us == "" {
		us = models.SourceScopus
	}
	if us == models.SourceKokson {
		us = models.SourceArticle
	}
	if us == models.SourceArticle {
		if strings.TrimSpace(p.URL) == "" {
			return nil, ErrArticleNeedsURL
		}
		if p.PDFLink == "" {
			return nil, ErrArticleNeedsPDF
		}
	}

	year := p.Year
	var pubDate *time.Time
	if d, ok := ParsePublishedDate(p.PublishedDate); ok {
		pubDate = &d
		year = d.Year()
	}

	if year <= 0 {
		return nil, ErrYearRequired
	}

	mainList := splitNames(authorSplitStrict, p.Authors)
	coList := splitNames(authorSplitStrict, p.Coauthors)
	if len(mainList) == 0 {
		return nil, ErrAuthorsRequired
	}

	var pub models.Publication
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		src, err := s.findOrCreateSource(tx, strings.TrimSpace(p.SourceName), strings.TrimSpace(p.ISSN), "journal")
		if err != nil {
			return err
		}
		authors, err := s.findOrCreateAuthors(tx, append(append([]string{}, mainList...), coList...))
		if err != nil {
			return err
		}

		pub = models.Publication{
			Title:          strings.TrimSpace(p.Title),
			Year:           year,
			CitationsCount: p.CitationsCount,
			Status:         models.StatusPending,
			UploaderID:     &actor.ClientID,
			UploadedByRole: &actor.Role,
			UploadSource:   &us,
			PublishedDate:  pubDate,
			Percentile2024: p.Percentile2024,
		}
		if n := len(mainList); n > 0 {
			pub.MainAuthorsCount = &n
		}
		if p.DOI != "" {
			pub.DOI = &p.DOI
		}
		if p.PDFLink != "" {
			pub.PDFURL = &p.PDFLink
		}
		if p.URL != "" {
			pub.URL = &p.URL
		}
		if p.ScopusURL != "" {
			pub.ScopusURL = &p.ScopusURL
		}
		if p.Quartile != "" {
			pub.Quartile = &p.Quartile
		}
		if p.Language != "" {
			lang := NormalizeLanguage(p.Language)
			pub.Language = &lang
		}
		if p.DocType != "" {
			dt := NormalizeDocType(p.DocType)
			pub.DocType = &dt
		}
		if src != nil {
			pub.SourceID = &src.ID
		}
		if actor.IsAdmin() {
			switch {
			case p.UserID != nil:
				pub.UserID = p.UserID
			case strings.TrimSpace(p.UserLogin) != "":
				var u models.User
				if err := tx.Where("login = ?", strings.TrimSpace(p.UserLogin)).First(&u).Error; err == nil {
					pub.UserID = &u.ID
				} else if err != gorm.ErrRecordNotFound {
					return err
				}
			}
		}
		if err := tx.Create(&pub).Error; err != nil {
			return err
		}
		return s.setAuthors(tx, pub.ID, authors)
	})
	if err != nil {
		return nil, err
	}
	return &pub, nil
}

// Mine returns publications visible in the personal cabinet: everything
// for admins, otherwise rows uploaded by this client or owned by this
// account. Rejected rows come first, then approved, then pending.
func (s *PublicationService) Mine(actor Actor) ([]PublicationOut, error) {
	q := s.DB.Model(&models.Publication{})
	if !actor.IsAdmin() {
		if actor.UserID != nil {
			q = q.Where("uploader_id = ? OR user_id = ?", actor.ClientID, *actor.UserID)
		} else {
			q = q.Where("uploader_id = ?", actor.ClientID)
		}
	}
	var ids []uint
	err := q.Order("CASE status WHEN 'rejected' THEN 0 WHEN 'approved' THEN 1 ELSE 2 END, year DESC, id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return s.Search.LoadByIDs(ids)
}

// KoksonFilters narrows the public article catalog.
type KoksonFilters struct {
	Query     string
	YearMin   int
	YearMax   int
	ISSN      string
	Lang      string
	DocType   string
	AuthorIDs []uint
	Status    string
	Faculty   string
	Sort      string
}

// ListKokson lists article publications (upload_source article or the
// legacy kokson tag) with the catalog filters applied.
func (s *PublicationService) ListKokson(f KoksonFilters) ([]PublicationOut, error) {
	q := s.DB.Model(&models.Publication{}).
		Where("publications.upload_source IN ?", []string{models.SourceArticle, models.SourceKokson})

	switch f.Status {
	case models.StatusPending, models.StatusApproved, models.StatusRejected:
		q = q.Where("publications.status = ?", f.Status)
	}
	if f.YearMin > 0 {
		q = q.Where("publications.year >= ?", f.YearMin)
	}
	if f.YearMax > 0 {
		q = q.Where("publications.year <= ?", f.YearMax)
	}
	if f.Lang != "" {
		q = q.Where("publications.language = ?", f.Lang)
	}
	if dt := strings.TrimSpace(f.DocType); dt != "" {
		q = q.Where("LOWER(TRIM(publications.doc_type)) = LOWER(?)", dt)
	}
	joinedAuthors := false
	joinedSource := false
	if issn := strings.TrimSpace(f.ISSN); issn != "" {
		q = q.Joins("JOIN sources ON sources.id = publications.source_id").
			Where("sources.issn ILIKE ?", "%"+issn+"%")
		joinedSource = true
	}
	if len(f.AuthorIDs) > 0 {
		q = q.Joins("JOIN publication_authors ON publication_authors.publication_id = publications.id").
			Joins("JOIN authors ON authors.id = publication_authors.author_id").
			Where("authors.id IN ?", f.AuthorIDs)
		joinedAuthors = true
	}
	if term := strings.TrimSpace(f.Query); term != "" {
		if !joinedAuthors {
			q = q.Joins("LEFT JOIN publication_authors ON publication_authors.publication_id = publications.id").
				Joins("LEFT JOIN authors ON authors.id = publication_authors.author_id")
		}
		if !joinedSource {
			q = q.Joins("LEFT JOIN sources ON sources.id = publications.source_id")
		}
		like := "%" + term + "%"
		q = q.Where("publications.title ILIKE ? OR sources.name ILIKE ? OR authors.display_name ILIKE ?", like, like, like)
	}

	if fac := strings.TrimSpace(f.Faculty); fac != "" {
		if fac == UnmappedFaculty {
			ids, err := s.unmappedPublicationIDs()
			if err != nil {
				return nil, err
			}
			if len(ids) == 0 {
				return []PublicationOut{}, nil
			}
			q = q.Where("publications.id IN ?", ids)
		} else {
			q = q.Joins("JOIN users ON users.id = publications.user_id").
				Where("users.faculty = ?", fac)
		}
	}

	order := "publications.year DESC, publications.id"
	switch f.Sort {
	case "year_asc":
		order = "publications.year ASC, publications.id"
	case "title_asc":
		order = "publications.title ASC, publications.id"
	case "title_desc":
		order = "publications.title DESC, publications.id"
	case "type_asc":
		order = "publications.doc_type ASC NULLS LAST, publications.id"
	case "type_desc":
		order = "publications.doc_type DESC NULLS LAST, publications.id"
	case "author_asc", "author_desc":
		if !joinedAuthors && strings.TrimSpace(f.Query) == "" {
			q = q.Joins("LEFT JOIN publication_authors ON publication_authors.publication_id = publications.id").
				Joins("LEFT JOIN authors ON authors.id = publication_authors.author_id")
		}
		if f.Sort == "author_asc" {
			order = "MIN(authors.display_name) ASC, publications.id"
		} else {
			order = "MAX(authors.display_name) DESC, publications.id"
		}
	}

	// Joins can multiply rows; grouping by the PK dedupes while the
	// publication sort columns stay usable via functional dependency.
	var ids []uint
	if err := q.Group("publications.id").Order(order).Pluck("publications.id", &ids).Error; err != nil {
		return nil, err
	}
	return s.Search.LoadByIDs(ids)
}

// unmappedPublicationIDs selects article publications whose main
// authors all map to the unmapped-faculty bucket, or that have no
// linked main authors at all.
func (s *PublicationService) unmappedPublicationIDs() ([]uint, error) {
	type row struct {
		PublicationID uint
		Department    *string
		Faculty       *string
	}
	var rows []row
	err := s.DB.Model(&models.PublicationAuthor{}).
		Select("publication_authors.publication_id, users.department, users.faculty").
		Joins("JOIN publications ON publications.id = publication_authors.publication_id").
		Joins("JOIN authors ON authors.id = publication_authors.author_id").
		Joins("LEFT JOIN users ON users.id = authors.user_id").
		Where("publications.upload_source IN ?", []string{models.SourceArticle, models.SourceKokson}).
		Where("publication_authors.author_order < COALESCE(publications.main_authors_count, 999)").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	byPub := map[uint]bool{}
	for _, r := range rows {
		dept, fac := "", ""
		if r.Department != nil {
			dept = *r.Department
		}
		if r.Faculty != nil {
			fac = *r.Faculty
		}
		mapped := s.Faculties.Map(dept, fac)
		if linked, seen := byPub[r.PublicationID]; !seen {
			byPub[r.PublicationID] = mapped != UnmappedFaculty
		} else {
			byPub[r.PublicationID] = linked || mapped != UnmappedFaculty
		}
	}
	var ids []uint
	for pid, linked := range byPub {
		if !linked {
			ids = append(ids, pid)
		}
	}
	return ids, nil
}

// PublicationEdit is the personal-cabinet partial update. Nil fields
// stay unchanged.
type PublicationEdit struct {
	Title          *string
	Year           *int
	DOI            *string
	CitationsCount *int
	Quartile       *string
	Percentile2024 *int
	URL            *string
	Language       *string
	DocType        *string
	PDFLink        *string
}

// UpdateMine applies an owner's edit and sends the row back to
// moderation: status pending, note cleared. Ownership is the uploading
// client, the linked account, or any linked author's account; admins
// always pass.
func (s *PublicationService) UpdateMine(pubID uint, edit PublicationEdit, actor Actor) (*models.Publication, error) {
	var pub models.Publication
	if err := s.DB.First(&pub, pubID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}

	isOwner := ownsPublication(&pub, actor)
	if !isOwner && actor.UserID != nil {
		var cnt int64
		err := s.DB.Model(&models.Author{}).
			Joins("JOIN publication_authors ON publication_authors.author_id = authors.id").
			Where("publication_authors.publication_id = ?", pub.ID).
			Where("authors.user_id = ?", *actor.UserID).
			Count(&cnt).Error
		if err != nil {
			return nil, err
		}
		isOwner = cnt > 0
	}
	if !isOwner {
		return nil, ErrForbidden
	}

	applyOwnerEdit(&pub, edit)

	if err := s.DB.Save(&pub).Error; err != nil {
		return nil, err
	}
	return &pub, nil
}

// ownsPublication covers the checks that need no extra queries: admin,
// the uploading client, or the linked account. The linked-author case
// is resolved against the join table by UpdateMine.
func ownsPublication(pub *models.Publication, actor Actor) bool {
	if actor.IsAdmin() {
		return true
	}
	if pub.UploaderID != nil && *pub.UploaderID == actor.ClientID {
		return true
	}
	return actor.UserID != nil && pub.UserID != nil && *pub.UserID == *actor.UserID
}

// applyOwnerEdit copies the set fields onto the row and sends it back
// to moderation: status pending, note cleared.
func applyOwnerEdit(pub *models.Publication, edit PublicationEdit) {
	if edit.Title != nil {
		pub.Title = *edit.Title
	}
	if edit.Year != nil {
		pub.Year = *edit.Year
	}
	if edit.DOI != nil {
		pub.DOI = edit.DOI
	}
	if edit.CitationsCount != nil {
		pub.CitationsCount = *edit.CitationsCount
	}
	if edit.Quartile != nil {
		pub.Quartile = edit.Quartile
	}
	if edit.Percentile2024 != nil {
		pub.Percentile2024 = edit.Percentile2024
	}
	if edit.URL != nil {
		pub.URL = edit.URL
	}
	if edit.Language != nil {
		lang := NormalizeLanguage(*edit.Language)
		pub.Language = &lang
	}
	if edit.DocType != nil {
		dt := NormalizeDocType(*edit.DocType)
		pub.DocType = &dt
	}
	if edit.PDFLink != nil && *edit.PDFLink != "" {
		pub.PDFURL = edit.PDFLink
	}

	pub.Status = models.StatusPending
	pub.Note = nil
}

// DocTypes lists the distinct non-empty document types, optionally for
// one upload source.
func (s *PublicationService) DocTypes(uploadSource string) ([]string, error) {
	q := s.DB.Model(&models.Publication{}).
		Where("doc_type IS NOT NULL AND TRIM(doc_type) <> ''")
	if uploadSource != "" {
		q = q.Where("upload_source = ?", uploadSource)
	}
	var vals []string
	if err := q.Distinct("TRIM(doc_type)").Order("TRIM(doc_type)").Pluck("TRIM(doc_type)", &vals).Error; err != nil {
		return nil, err
	}
	return vals, nil
}

// LanguageShareRow is one year of the language share report.
type LanguageShareRow struct {
	Year  int     `json:"year"`
	Total int     `json:"total"`
	RU    int     `json:"ru"`
	KZ    int     `json:"kz"`
	EN    int     `json:"en"`
	RUPct float64 `json:"ru_pct"`
	KZPct float64 `json:"kz_pct"`
	ENPct float64 `json:"en_pct"`
}

func pct(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(part)*100*100/float64(total)) / 100
}

// LanguageShareFilters narrows the language share report.
type LanguageShareFilters struct {
	YearMin      int
	YearMax      int
	Faculty      string
	DocType      string
	ArticlesOnly bool
}

// LanguageShare returns per-year ru/kz/en shares. With ArticlesOnly it
// covers approved article publications, optionally narrowed to one
// faculty (including the unmapped bucket); otherwise all publications.
func (s *PublicationService) LanguageShare(f LanguageShareFilters) ([]LanguageShareRow, error) {
	if f.ArticlesOnly && strings.TrimSpace(f.Faculty) == UnmappedFaculty {
		return s.languageShareUnmapped(f)
	}

	q := s.DB.Model(&models.Publication{}).
		Select(`publications.year AS year,
			COUNT(publications.id) AS total,
			SUM(CASE WHEN publications.language = 'ru' THEN 1 ELSE 0 END) AS ru,
			SUM(CASE WHEN publications.language = 'kz' THEN 1 ELSE 0 END) AS kz,
			SUM(CASE WHEN publications.language = 'en' THEN 1 ELSE 0 END) AS en`)
	if f.ArticlesOnly {
		q = q.Where("publications.upload_source IN ?", []string{models.SourceArticle, models.SourceKokson})
	}
	if f.YearMin > 0 {
		q = q.Where("publications.year >= ?", f.YearMin)
	}
	if f.YearMax > 0 {
		q = q.Where("publications.year <= ?", f.YearMax)
	}
	if dt := strings.TrimSpace(f.DocType); dt != "" {
		v := strings.ToLower(dt)
		q = q.Where("LOWER(TRIM(publications.doc_type)) = ? OR LOWER(TRIM(publications.doc_type)) LIKE ?", v, "%"+v+"%")
	}
	if fac := strings.TrimSpace(f.Faculty); fac != "" {
		q = q.Joins("JOIN users ON users.id = publications.user_id").
			Where("users.faculty = ?", fac)
	}

	type rawRow struct {
		Year, Total, RU, KZ, EN int
	}
	var raw []rawRow
	if err := q.Group("publications.year").Order("year").Scan(&raw).Error; err != nil {
		return nil, err
	}
	out := make([]LanguageShareRow, 0, len(raw))
	for _, r := range raw {
		out = append(out, LanguageShareRow{
			Year: r.Year, Total: r.Total, RU: r.RU, KZ: r.KZ, EN: r.EN,
			RUPct: pct(r.RU, r.Total), KZPct: pct(r.KZ, r.Total), ENPct: pct(r.EN, r.Total),
		})
	}
	return out, nil
}

func (s *PublicationService) languageShareUnmapped(f LanguageShareFilters) ([]LanguageShareRow, error) {
	type row struct {
		Year       int
		Language   *string
		Department *string
		Faculty    *string
	}
	q := s.DB.Model(&models.Publication{}).
		Select("publications.year, publications.language, users.department, users.faculty").
		Joins("LEFT JOIN users ON users.id = publications.user_id").
		Where("publications.upload_source IN ?", []string{models.SourceArticle, models.SourceKokson}).
		Where("publications.status = ?", models.StatusApproved)
	if f.YearMin > 0 {
		q = q.Where("publications.year >= ?", f.YearMin)
	}
	if f.YearMax > 0 {
		q = q.Where("publications.year <= ?", f.YearMax)
	}
	if dt := strings.TrimSpace(f.DocType); dt != "" {
		q = q.Where("LOWER(TRIM(publications.doc_type)) = LOWER(?)", dt)
	}
	var rows []row
	if err := q.Order("publications.year").Scan(&rows).Error; err != nil {
		return nil, err
	}

	agg := map[int]*LanguageShareRow{}
	for _, r := range rows {
		dept, fac := "", ""
		if r.Department != nil {
			dept = *r.Department
		}
		if r.Faculty != nil {
			fac = *r.Faculty
		}
		if s.Faculties.Map(dept, fac) != UnmappedFaculty {
			continue
		}
		b := agg[r.Year]
		if b == nil {
			b = &LanguageShareRow{Year: r.Year}
			agg[r.Year] = b
		}
		b.Total++
		if r.Language != nil {
			switch strings.ToLower(*r.Language) {
			case "ru":
				b.RU++
			case "kz":
				b.KZ++
			case "en":
				b.EN++
			}
		}
	}
	years := make([]int, 0, len(agg))
	for y := range agg {
		years = append(years, y)
	}
	sort.Ints(years)
	out := make([]LanguageShareRow, 0, len(years))
	for _, y := range years {
		b := agg[y]
		b.RUPct = pct(b.RU, b.Total)
		b.KZPct = pct(b.KZ, b.Total)
		b.ENPct = pct(b.EN, b.Total)
		out = append(out, *b)
	}
	return out, nil
}

// FacultyCount is one faculty row of the articles summary.
type FacultyCount struct {
	Faculty string `json:"faculty"`
	Count   int    `json:"count"`
}

// DepartmentCount is one department row of a faculty breakdown.
type DepartmentCount struct {
	Department string `json:"department"`
	Count      int    `json:"count"`
}

// FacultySummary counts article publications per mapped faculty.
// Publications without user linkage land in the unmapped bucket. With
// authorIDs only main-author rows of those authors are counted.
func (s *PublicationService) FacultySummary(year int, docType string, authorIDs []uint) ([]FacultyCount, error) {
	type row struct {
		Faculty    *string
		Department *string
		Count      int
	}
	q := s.DB.Model(&models.Publication{}).
		Select("users.faculty, users.department, COUNT(*) AS count").
		Joins("LEFT JOIN users ON users.id = publications.user_id").
		Where("publications.upload_source IN ?", []string{models.SourceArticle, models.SourceKokson})
	if len(authorIDs) > 0 {
		q = q.Joins("JOIN publication_authors ON publication_authors.publication_id = publications.id").
			Joins("JOIN authors ON authors.id = publication_authors.author_id").
			Where("authors.id IN ?", authorIDs).
			Where("publication_authors.author_order < COALESCE(publications.main_authors_count, 999)")
	}
	if year > 0 {
		q = q.Where("publications.year = ?", year)
	}
	if dt := strings.TrimSpace(docType); dt != "" {
		v := strings.ToLower(dt)
		q = q.Where("LOWER(TRIM(publications.doc_type)) = ? OR LOWER(TRIM(publications.doc_type)) LIKE ?", v, "%"+v+"%")
	}
	var rows []row
	if err := q.Group("users.faculty, users.department").Scan(&rows).Error; err != nil {
		return nil, err
	}

	agg := map[string]int{}
	for _, r := range rows {
		dept, fac := "", ""
		if r.Department != nil {
			dept = *r.Department
		}
		if r.Faculty != nil {
			fac = *r.Faculty
		}
		agg[s.Faculties.Map(dept, fac)] += r.Count
	}
	keys := make([]string, 0, len(agg))
	for k := range agg {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]FacultyCount, 0, len(keys))
	for _, k := range keys {
		out = append(out, FacultyCount{Faculty: k, Count: agg[k]})
	}
	return out, nil
}

// FacultyBreakdown counts article publications per department within
// one mapped faculty.
func (s *PublicationService) FacultyBreakdown(faculty string, year int, docType string, authorIDs []uint) ([]DepartmentCount, error) {
	type row struct {
		Department *string
		Faculty    *string
		Count      int
	}
	q := s.DB.Model(&models.Publication{}).
		Select("users.department, users.faculty, COUNT(*) AS count").
		Joins("JOIN users ON users.id = publications.user_id").
		Where("publications.upload_source IN ?", []string{models.SourceArticle, models.SourceKokson})
	if len(authorIDs) > 0 {
		q = q.Joins("JOIN publication_authors ON publication_authors.publication_id = publications.id").
			Joins("JOIN authors ON authors.id = publication_authors.author_id").
			Where("authors.id IN ?", authorIDs)
	}
	if year > 0 {
		q = q.Where("publications.year = ?", year)
	}
	if dt := strings.TrimSpace(docType); dt != "" {
		v := strings.ToLower(dt)
		q = q.Where("LOWER(TRIM(publications.doc_type)) = ? OR LOWER(TRIM(publications.doc_type)) LIKE ?", v, "%"+v+"%")
	}
	var rows []row
	if err := q.Group("users.department, users.faculty").Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]DepartmentCount, 0, len(rows))
	for _, r := range rows {
		dept, fac := "", ""
		if r.Department != nil {
			dept = *r.Department
		}
		if r.Faculty != nil {
			fac = *r.Faculty
		}
		if s.Faculties.Map(dept, fac) != faculty {
			continue
		}
		label := dept
		if label == "" {
			label = "—"
		}
		out = append(out, DepartmentCount{Department: label, Count: r.Count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Department < out[j].Department })
	return out, nil
}

// Moderation: admin listing and status changes.

// ModerationFilters narrows the admin publications list.
type ModerationFilters struct {
	Status  string
	Page    int
	PerPage int
	Order   string // created_desc|year_desc|year_asc
}

// ListForModeration pages through publications for the admin panel.
func (s *PublicationService) ListForModeration(f ModerationFilters) ([]PublicationOut, error) {
	page := f.Page
	if page < 1 {
		page = 1
	}
	perPage := f.PerPage
	if perPage < 1 || perPage > 200 {
		perPage = 50
	}

	q := s.DB.Model(&models.Publication{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	order := "created_at DESC"
	switch f.Order {
	case "year_asc":
		order = "year ASC, id"
	case "year_desc":
		order = "year DESC, id"
	}
	var ids []uint
	err := q.Order(order).
		Limit(perPage).
		Offset((page - 1) * perPage).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return s.Search.LoadByIDs(ids)
}

// Approve marks a publication approved and clears its note.
func (s *PublicationService) Approve(pubID uint) error {
	res := s.DB.Model(&models.Publication{}).
		Where("id = ?", pubID).
		Updates(map[string]interface{}{"status": models.StatusApproved, "note": nil})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Reject marks a publication rejected with a moderator note.
func (s *PublicationService) Reject(pubID uint, note *string) error {
	res := s.DB.Model(&models.Publication{}).
		Where("id = ?", pubID).
		Updates(map[string]interface{}{"status": models.StatusRejected, "note": note})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AdminEdit is the admin partial update for a publication.
type AdminEdit struct {
	Title          *string `json:"title"`
	Year           *int    `json:"year"`
	DOI            *string `json:"doi"`
	ScopusURL      *string `json:"scopus_url"`
	PDFURL         *string `json:"pdf_url"`
	CitationsCount *int    `json:"citations_count"`
	Quartile       *string `json:"quartile"`
	Percentile2024 *int    `json:"percentile_2024"`
}

// AdminUpdate applies an admin edit without touching the status.
func (s *PublicationService) AdminUpdate(pubID uint, e AdminEdit) (*models.Publication, error) {
	var pub models.Publication
	if err := s.DB.First(&pub, pubID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if e.Title != nil {
		pub.Title = *e.Title
	}
	if e.Year != nil {
		pub.Year = *e.Year
	}
	if e.DOI != nil {
		pub.DOI = e.DOI
	}
	if e.ScopusURL != nil {
		pub.ScopusURL = e.ScopusURL
	}
	if e.PDFURL != nil {
		pub.PDFURL = e.PDFURL
	}
	if e.CitationsCount != nil {
		pub.CitationsCount = *e.CitationsCount
	}
	if e.Quartile != nil {
		pub.Quartile = e.Quartile
	}
	if e.Percentile2024 != nil {
		pub.Percentile2024 = e.Percentile2024
	}
	if err := s.DB.Save(&pub).Error; err != nil {
		return nil, err
	}
	return &pub, nil
}

// Get loads one publication.
func (s *PublicationService) Get(pubID uint) (*models.Publication, error) {
	var pub models.Publication
	if err := s.DB.First(&pub, pubID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &pub, nil
}

// Delete removes a publication row. The stored PDF object is removed
// by the caller, which owns the storage client.
func (s *PublicationService) Delete(pubID uint) (*models.Publication, error) {
	pub, err := s.Get(pubID)
	if err != nil {
		return nil, err
	}
	if err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("publication_id = ?", pubID).Delete(&models.PublicationAuthor{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Publication{}, pubID).Error
	}); err != nil {
		return nil, err
	}
	return pub, nil
}
