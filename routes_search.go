package main

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"science-registry/services"
)

func intParam(c *gin.Context, name string) int {
	v, err := strconv.Atoi(strings.TrimSpace(c.Query(name)))
	if err != nil {
		return 0
	}
	return v
}

func intPtrParam(c *gin.Context, name string) *int {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &v
}

// multiParam reads repeated query keys and comma-separated values
// interchangeably: ?quartile=Q1&quartile=Q2 or ?quartile=Q1,Q2.
func multiParam(c *gin.Context, name string) []string {
	var out []string
	for _, raw := range c.QueryArray(name) {
		for _, part := range strings.Split(raw, ",") {
			if v := strings.TrimSpace(part); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func uintMultiParam(c *gin.Context, name string) []uint {
	var out []uint
	for _, raw := range multiParam(c, name) {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			out = append(out, uint(v))
		}
	}
	return out
}

func searchFiltersFromQuery(c *gin.Context) services.SearchFilters {
	return services.SearchFilters{
		Query:         strings.TrimSpace(c.Query("q")),
		YearFrom:      intParam(c, "year_from"),
		YearTo:        intParam(c, "year_to"),
		Quartiles:     multiParam(c, "quartile"),
		AuthorIDs:     uintMultiParam(c, "author_id"),
		SourceIDs:     uintMultiParam(c, "source_id"),
		ISSN:          strings.TrimSpace(c.Query("issn")),
		SourceType:    strings.TrimSpace(c.Query("source_type")),
		CitationsMin:  intPtrParam(c, "citations_min"),
		CitationsMax:  intPtrParam(c, "citations_max"),
		PercentileMin: intPtrParam(c, "percentile_min"),
		PercentileMax: intPtrParam(c, "percentile_max"),
		Sort:          strings.TrimSpace(c.Query("sort")),
		Page:          intParam(c, "page"),
		PerPage:       intParam(c, "per_page"),
	}
}

func writeExport(c *gin.Context, base, format string, data []byte) {
	switch format {
	case "xlsx":
		c.Header("Content-Disposition", "attachment; filename="+services.ExportFilename(base, "xlsx"))
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
	default:
		c.Header("Content-Disposition", "attachment; filename="+services.ExportFilename(base, "csv"))
		c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
	}
}

func setupSearchRoutes(router *gin.Engine, search *services.SearchService, log *zap.Logger) {
	rg := router.Group("/search")

	rg.GET("", func(c *gin.Context) {
		items, meta, err := search.Search(searchFiltersFromQuery(c))
		if err != nil {
			log.Error("Catalog search failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items, "meta": meta})
	})

	rg.GET("/facets/authors", func(c *gin.Context) {
		items, err := search.FacetAuthors(searchFiltersFromQuery(c), strings.TrimSpace(c.Query("name")), intParam(c, "limit"))
		if err != nil {
			log.Error("Author facet failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	})

	rg.GET("/facets/sources", func(c *gin.Context) {
		items, err := search.FacetSources(searchFiltersFromQuery(c), strings.TrimSpace(c.Query("name")), intParam(c, "limit"))
		if err != nil {
			log.Error("Source facet failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	})

	rg.GET("/stats", func(c *gin.Context) {
		out, err := search.Stats(searchFiltersFromQuery(c))
		if err != nil {
			log.Error("Catalog stats failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, out)
	})

	rg.GET("/export", func(c *gin.Context) {
		items, err := search.ExportRows(searchFiltersFromQuery(c))
		if err != nil {
			log.Error("Catalog export query failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		format := strings.ToLower(strings.TrimSpace(c.DefaultQuery("fmt", c.Query("format"))))
		var data []byte
		if format == "xlsx" {
			data, err = services.PublicationsXLSX(items)
		} else {
			format = "csv"
			data, err = services.PublicationsCSV(items)
		}
		if err != nil {
			log.Error("Catalog export render failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build export"})
			return
		}
		writeExport(c, "publications", format, data)
	})
}
