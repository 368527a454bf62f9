package services

import (
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"science-registry/models"
)

// SearchFilters carries every query parameter of the public catalog.
// Zero values mean "not filtered".
type SearchFilters struct {
	Query         string
	YearFrom      int
	YearTo        int
	Quartiles     []string
	AuthorIDs     []uint
	SourceIDs     []uint
	ISSN          string
	SourceType    string
	CitationsMin  *int
	CitationsMax  *int
	PercentileMin *int
	PercentileMax *int
	Sort          string
	Page          int
	PerPage       int
}

// PageMeta is the pagination block returned next to every list.
type PageMeta struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// PublicationOut is a catalog row: the stored record plus the computed
// badge kind and the authors in their stored order.
type PublicationOut struct {
	models.Publication
	Kind string `json:"kind"`
}

// FacetItem is one row of the author or source facet lists.
type FacetItem struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// SearchService runs the public catalog queries. Only approved
// publications are ever visible through it.
type SearchService struct {
	DB              *gorm.DB
	Log             *zap.Logger
	PageSizeDefault int
	PageSizeMax     int
}

func NewSearchService(db *gorm.DB, log *zap.Logger, pageDefault, pageMax int) *SearchService {
	return &SearchService{DB: db, Log: log, PageSizeDefault: pageDefault, PageSizeMax: pageMax}
}

// ClampPage normalizes page/per_page to sane bounds.
func (s *SearchService) ClampPage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = s.PageSizeDefault
	}
	if perPage > s.PageSizeMax {
		perPage = s.PageSizeMax
	}
	return page, perPage
}

// baseQuery applies every filter and joins authors/sources only when a
// filter actually needs them.
func (s *SearchService) baseQuery(f SearchFilters) *gorm.DB {
	q := s.DB.Model(&models.Publication{}).
		Where("publications.status = ?", models.StatusApproved)

	needAuthors := false
	needSource := false

	if term := strings.TrimSpace(f.Query); term != "" {
		like := "%" + term + "%"
		q = q.Where(
			"publications.title ILIKE ? OR publications.doi ILIKE ? OR authors.display_name ILIKE ? OR sources.name ILIKE ?",
			like, like, like, like,
		)
		needAuthors = true
		needSource = true
	}
	if f.YearFrom > 0 {
		q = q.Where("publications.year >= ?", f.YearFrom)
	}
	if f.YearTo > 0 {
		q = q.Where("publications.year <= ?", f.YearTo)
	}
	if len(f.Quartiles) > 0 {
		q = q.Where("publications.quartile IN ?", f.Quartiles)
	}
	if len(f.AuthorIDs) > 0 {
		q = q.Where("authors.id IN ?", f.AuthorIDs)
		needAuthors = true
	}
	if len(f.SourceIDs) > 0 {
		q = q.Where("publications.source_id IN ?", f.SourceIDs)
	}
	if issn := strings.TrimSpace(f.ISSN); issn != "" {
		q = q.Where("sources.issn = ?", issn)
		needSource = true
	}
	if st := strings.TrimSpace(f.SourceType); st != "" {
		q = q.Where("sources.type = ?", st)
		needSource = true
	}
	if f.CitationsMin != nil {
		q = q.Where("publications.citations_count >= ?", *f.CitationsMin)
	}
	if f.CitationsMax != nil {
		q = q.Where("publications.citations_count <= ?", *f.CitationsMax)
	}
	if f.PercentileMin != nil {
		q = q.Where("publications.percentile_2024 >= ?", *f.PercentileMin)
	}
	if f.PercentileMax != nil {
		q = q.Where("publications.percentile_2024 <= ?", *f.PercentileMax)
	}

	if needAuthors {
		q = q.Joins("LEFT JOIN publication_authors ON publication_authors.publication_id = publications.id").
			Joins("LEFT JOIN authors ON authors.id = publication_authors.author_id")
	}
	if needSource {
		q = q.Joins("LEFT JOIN sources ON sources.id = publications.source_id")
	}
	return q
}

func orderClause(sortKey string) string {
	switch sortKey {
	case "year_asc":
		return "publications.year ASC, publications.id ASC"
	case "citations_desc":
		return "publications.citations_count DESC, publications.year DESC, publications.id ASC"
	case "citations_asc":
		return "publications.citations_count ASC, publications.year DESC, publications.id ASC"
	case "title_asc":
		return "publications.title ASC, publications.id ASC"
	case "title_desc":
		return "publications.title DESC, publications.id ASC"
	default: // year_desc
		return "publications.year DESC, publications.id ASC"
	}
}

// Search returns one catalog page plus its pagination meta.
func (s *SearchService) Search(f SearchFilters) ([]PublicationOut, PageMeta, error) {
	page, perPage := s.ClampPage(f.Page, f.PerPage)

	var total int64
	if err := s.baseQuery(f).Distinct("publications.id").Count(&total).Error; err != nil {
		return nil, PageMeta{}, err
	}

	var rows []idRow
	err := s.baseQuery(f).
		Select("DISTINCT publications.id, publications.year, publications.citations_count, publications.title").
		Order(orderClause(f.Sort)).
		Limit(perPage).
		Offset((page - 1) * perPage).
		Scan(&rows).Error
	if err != nil {
		return nil, PageMeta{}, err
	}

	items, err := s.LoadByIDs(rowIDs(rows))
	if err != nil {
		return nil, PageMeta{}, err
	}

	meta := PageMeta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(perPage))),
	}
	return items, meta, nil
}

// LoadByIDs loads full publication rows preserving the given id order,
// with authors sorted by their stored author_order.
func (s *SearchService) LoadByIDs(ids []uint) ([]PublicationOut, error) {
	if len(ids) == 0 {
		return []PublicationOut{}, nil
	}

	var pubs []models.Publication
	err := s.DB.
		Preload("Authors").
		Preload("Source").
		Where("id IN ?", ids).
		Find(&pubs).Error
	if err != nil {
		return nil, err
	}

	if err := s.orderAuthors(pubs); err != nil {
		return nil, err
	}

	byID := make(map[uint]models.Publication, len(pubs))
	for _, p := range pubs {
		byID[p.ID] = p
	}
	out := make([]PublicationOut, 0, len(ids))
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			continue
		}
		out = append(out, wrap(p))
	}
	return out, nil
}

func wrap(p models.Publication) PublicationOut {
	src := ""
	if p.UploadSource != nil {
		src = *p.UploadSource
	}
	scopusURL := ""
	if p.ScopusURL != nil {
		scopusURL = *p.ScopusURL
	}
	return PublicationOut{Publication: p, Kind: Kind(src, scopusURL)}
}

// orderAuthors re-sorts each publication's Authors slice by the
// author_order column of the join table, which gorm's Preload drops.
func (s *SearchService) orderAuthors(pubs []models.Publication) error {
	if len(pubs) == 0 {
		return nil
	}
	ids := make([]uint, 0, len(pubs))
	for _, p := range pubs {
		ids = append(ids, p.ID)
	}

	var rows []models.PublicationAuthor
	if err := s.DB.Where("publication_id IN ?", ids).Find(&rows).Error; err != nil {
		return err
	}
	order := make(map[uint]map[uint]int, len(pubs))
	for _, r := range rows {
		if order[r.PublicationID] == nil {
			order[r.PublicationID] = make(map[uint]int)
		}
		order[r.PublicationID][r.AuthorID] = r.AuthorOrder
	}

	for i := range pubs {
		po := order[pubs[i].ID]
		sort.SliceStable(pubs[i].Authors, func(a, b int) bool {
			return po[pubs[i].Authors[a].ID] < po[pubs[i].Authors[b].ID]
		})
	}
	return nil
}

// FacetAuthors counts approved publications per author, optionally
// narrowed by a name substring, most published first.
func (s *SearchService) FacetAuthors(f SearchFilters, nameQuery string, limit int) ([]FacetItem, error) {
	if limit <= 0 {
		limit = 50
	}
	q := s.baseQuery(f).
		Joins("JOIN publication_authors pa ON pa.publication_id = publications.id").
		Joins("JOIN authors fa ON fa.id = pa.author_id").
		Select("fa.id AS id, fa.display_name AS name, COUNT(DISTINCT publications.id) AS count").
		Group("fa.id, fa.display_name").
		Order("count DESC, name ASC").
		Limit(limit)
	if nq := strings.TrimSpace(nameQuery); nq != "" {
		q = q.Where("fa.display_name ILIKE ?", "%"+nq+"%")
	}

	var items []FacetItem
	if err := q.Scan(&items).Error; err != nil {
		return nil, err
	}
	if items == nil {
		items = []FacetItem{}
	}
	return items, nil
}

// FacetSources counts approved publications per source.
func (s *SearchService) FacetSources(f SearchFilters, nameQuery string, limit int) ([]FacetItem, error) {
	if limit <= 0 {
		limit = 50
	}
	q := s.baseQuery(f).
		Joins("JOIN sources fs ON fs.id = publications.source_id").
		Select("fs.id AS id, fs.name AS name, COUNT(DISTINCT publications.id) AS count").
		Group("fs.id, fs.name").
		Order("count DESC, name ASC").
		Limit(limit)
	if nq := strings.TrimSpace(nameQuery); nq != "" {
		q = q.Where("fs.name ILIKE ?", "%"+nq+"%")
	}

	var items []FacetItem
	if err := q.Scan(&items).Error; err != nil {
		return nil, err
	}
	if items == nil {
		items = []FacetItem{}
	}
	return items, nil
}

// StatsKPI is the headline numbers block of the dashboard.
type StatsKPI struct {
	Publications int64   `json:"publications"`
	Authors      int64   `json:"authors"`
	Sources      int64   `json:"sources"`
	AvgPerAuthor float64 `json:"avg_per_author"`
}

type YearlyStat struct {
	Year         int   `json:"year"`
	Publications int64 `json:"publications"`
	Citations    int64 `json:"citations"`
}

type QuartileStat struct {
	Quartile string `json:"quartile"`
	Count    int64  `json:"count"`
}

type StatsOut struct {
	KPI        StatsKPI       `json:"kpi"`
	Yearly     []YearlyStat   `json:"yearly"`
	TopAuthors []FacetItem    `json:"top_authors"`
	TopSources []FacetItem    `json:"top_sources"`
	Quartiles  []QuartileStat `json:"quartiles"`
}

// Stats builds the dashboard payload over the filtered approved set.
func (s *SearchService) Stats(f SearchFilters) (*StatsOut, error) {
	out := &StatsOut{}

	if err := s.baseQuery(f).Distinct("publications.id").Count(&out.KPI.Publications).Error; err != nil {
		return nil, err
	}
	err := s.baseQuery(f).
		Joins("JOIN publication_authors spa ON spa.publication_id = publications.id").
		Distinct("spa.author_id").
		Count(&out.KPI.Authors).Error
	if err != nil {
		return nil, err
	}
	err = s.baseQuery(f).
		Where("publications.source_id IS NOT NULL").
		Distinct("publications.source_id").
		Count(&out.KPI.Sources).Error
	if err != nil {
		return nil, err
	}
	if out.KPI.Authors > 0 {
		out.KPI.AvgPerAuthor = math.Round(float64(out.KPI.Publications)/float64(out.KPI.Authors)*100) / 100
	}

	err = s.baseQuery(f).
		Select("publications.year AS year, COUNT(DISTINCT publications.id) AS publications, COALESCE(SUM(publications.citations_count), 0) AS citations").
		Group("publications.year").
		Order("year ASC").
		Scan(&out.Yearly).Error
	if err != nil {
		return nil, err
	}
	if out.Yearly == nil {
		out.Yearly = []YearlyStat{}
	}

	if out.TopAuthors, err = s.FacetAuthors(f, "", 10); err != nil {
		return nil, err
	}
	if out.TopSources, err = s.FacetSources(f, "", 10); err != nil {
		return nil, err
	}

	type quartileRow struct {
		Quartile *string
		Count    int64
	}
	var qrows []quartileRow
	err = s.baseQuery(f).
		Select("publications.quartile AS quartile, COUNT(DISTINCT publications.id) AS count").
		Group("publications.quartile").
		Order("count DESC").
		Scan(&qrows).Error
	if err != nil {
		return nil, err
	}
	out.Quartiles = make([]QuartileStat, 0, len(qrows))
	for _, r := range qrows {
		label := "-"
		if r.Quartile != nil && strings.TrimSpace(*r.Quartile) != "" {
			label = *r.Quartile
		}
		out.Quartiles = append(out.Quartiles, QuartileStat{Quartile: label, Count: r.Count})
	}
	return out, nil
}

// ExportRows loads every matching publication for CSV/XLSX export, in
// the requested sort order, without pagination.
func (s *SearchService) ExportRows(f SearchFilters) ([]PublicationOut, error) {
	var rows []idRow
	err := s.baseQuery(f).
		Select("DISTINCT publications.id, publications.year, publications.citations_count, publications.title").
		Order(orderClause(f.Sort)).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return s.LoadByIDs(rowIDs(rows))
}

// idRow carries the id plus the sort columns a DISTINCT select must
// include for the ORDER BY to be valid.
type idRow struct {
	ID uint
}

func rowIDs(rows []idRow) []uint {
	ids := make([]uint, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return ids
}
