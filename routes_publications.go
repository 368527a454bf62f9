package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"science-registry/config"
	"science-registry/services"
	"science-registry/storage"
)

func koksonFiltersFromQuery(c *gin.Context) services.KoksonFilters {
	return services.KoksonFilters{
		Query:     strings.TrimSpace(c.Query("q")),
		YearMin:   intParam(c, "year_min"),
		YearMax:   intParam(c, "year_max"),
		ISSN:      strings.TrimSpace(c.Query("issn")),
		Lang:      strings.TrimSpace(c.Query("lang")),
		DocType:   strings.TrimSpace(c.Query("doc_type")),
		AuthorIDs: uintMultiParam(c, "author_id"),
		Status:    strings.TrimSpace(c.Query("status")),
		Faculty:   strings.TrimSpace(c.Query("faculty")),
		Sort:      strings.TrimSpace(c.Query("sort")),
	}
}

func readUploadedFile(c *gin.Context, field string) (string, []byte, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return "", nil, err
	}
	f, err := fh.Open()
	if err != nil {
		return "", nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return "", nil, err
	}
	return fh.Filename, data, nil
}

func setupPublicationRoutes(
	router *gin.Engine,
	pubs *services.PublicationService,
	mapper *services.FacultyMapper,
	tokens *services.TokenService,
	s3Client *s3.Client,
	cfg *config.Config,
	log *zap.Logger,
) {
	rg := router.Group("/publications")

	rg.GET("/doc_types", func(c *gin.Context) {
		items, err := pubs.DocTypes(strings.TrimSpace(c.Query("upload_source")))
		if err != nil {
			log.Error("Doc type listing failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	})

	rg.GET("/dept_map", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"map": mapper.Snapshot()})
	})

	rg.GET("/facdep", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"faculties":   mapper.Faculties(),
			"departments": mapper.Departments(),
			"map":         mapper.Snapshot(),
		})
	})

	rg.GET("/kokson", func(c *gin.Context) {
		items, err := pubs.ListKokson(koksonFiltersFromQuery(c))
		if err != nil {
			log.Error("Article catalog query failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	})

	rg.GET("/validate/source", requireUploader(tokens), func(c *gin.Context) {
		issn := strings.TrimSpace(c.Query("issn"))
		name := strings.TrimSpace(c.Query("name"))
		if issn == "" && name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "provide issn or name"})
			return
		}
		src, err := pubs.ValidateSource(issn, name)
		if err != nil {
			log.Error("Source validation failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		if src == nil {
			c.JSON(http.StatusOK, gin.H{"found": false, "message": "Источник не найден в базе"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"found": true, "source": src})
	})

	rg.GET("/mine", requireUploader(tokens), func(c *gin.Context) {
		items, err := pubs.Mine(currentActor(c))
		if err != nil {
			log.Error("Personal cabinet query failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	})

	rg.POST("", requireUploader(tokens), func(c *gin.Context) {
		var req services.PublicationCreate
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "title, year and authors are required"})
			return
		}
		pub, err := pubs.Create(req)
		if err != nil {
			log.Error("Publication create failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create publication"})
			return
		}
		uploadedPublicationsCounter.Inc()
		c.JSON(http.StatusCreated, pub)
	})

	rg.POST("/upload", requireUploader(tokens), func(c *gin.Context) {
		actor := currentActor(c)

		req := services.PublicationUpload{
			Title:          strings.TrimSpace(c.PostForm("title")),
			Authors:        c.PostForm("authors"),
			Coauthors:      c.PostForm("coauthors"),
			SourceName:     c.PostForm("source_name"),
			ISSN:           c.PostForm("issn"),
			DOI:            strings.TrimSpace(c.PostForm("doi")),
			Quartile:       strings.TrimSpace(c.PostForm("quartile")),
			Language:       c.PostForm("language"),
			URL:            strings.TrimSpace(c.PostForm("url")),
			ScopusURL:      strings.TrimSpace(c.PostForm("scopus_url")),
			UploadSource:   c.PostForm("upload_source"),
			DocType:        c.PostForm("doc_type"),
			PublishedDate:  c.PostForm("published_date"),
			UserLogin:      c.PostForm("user_login"),
			Year:           0,
			CitationsCount: 0,
		}
		if req.Title == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
			return
		}
		req.Year, _ = strconv.Atoi(strings.TrimSpace(c.PostForm("year")))
		req.CitationsCount, _ = strconv.Atoi(strings.TrimSpace(c.PostForm("citations_count")))
		if raw := strings.TrimSpace(c.PostForm("percentile_2024")); raw != "" {
			if v, err := strconv.Atoi(raw); err == nil {
				req.Percentile2024 = &v
			}
		}
		if actor.IsAdmin() {
			if raw := strings.TrimSpace(c.PostForm("user_id")); raw != "" {
				if v, err := strconv.Atoi(raw); err == nil && v > 0 {
					uid := uint(v)
					req.UserID = &uid
				}
			}
		}

		if filename, data, err := readUploadedFile(c, "file"); err == nil {
			link, err := storage.UploadPDF(c.Request.Context(), s3Client, cfg, filename, data)
			if err != nil {
				log.Error("PDF upload to storage failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store pdf"})
				return
			}
			req.PDFLink = link
		}

		pub, err := pubs.Upload(req, actor)
		switch {
		case errors.Is(err, services.ErrArticleNeedsURL), errors.Is(err, services.ErrArticleNeedsPDF),
			errors.Is(err, services.ErrYearRequired), errors.Is(err, services.ErrAuthorsRequired):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		case err != nil:
			log.Error("Publication upload failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save publication"})
			return
		}
		uploadedPublicationsCounter.Inc()
		c.JSON(http.StatusCreated, gin.H{
			"message":        "publication uploaded",
			"publication_id": pub.ID,
			"pdf_url":        pub.PDFURL,
		})
	})

	editMine := func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid publication id"})
			return
		}
		actor := currentActor(c)

		edit := services.PublicationEdit{}
		getStr := func(field string) *string {
			if v, ok := c.GetPostForm(field); ok {
				v = strings.TrimSpace(v)
				return &v
			}
			return nil
		}
		getInt := func(field string) *int {
			if v, ok := c.GetPostForm(field); ok {
				if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
					return &n
				}
			}
			return nil
		}
		edit.Title = getStr("title")
		edit.Year = getInt("year")
		edit.DOI = getStr("doi")
		edit.CitationsCount = getInt("citations_count")
		edit.Quartile = getStr("quartile")
		edit.Percentile2024 = getInt("percentile_2024")
		edit.URL = getStr("url")
		edit.Language = getStr("language")
		edit.DocType = getStr("doc_type")

		var oldLink string
		if filename, data, err := readUploadedFile(c, "file"); err == nil {
			if prev, err := pubs.Get(uint(id)); err == nil && prev.PDFURL != nil {
				oldLink = *prev.PDFURL
			}
			link, err := storage.UploadPDF(c.Request.Context(), s3Client, cfg, filename, data)
			if err != nil {
				log.Error("Replacement PDF upload failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store pdf"})
				return
			}
			edit.PDFLink = &link
		}

		pub, err := pubs.UpdateMine(uint(id), edit, actor)
		switch {
		case errors.Is(err, services.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "publication not found"})
			return
		case errors.Is(err, services.ErrForbidden):
			c.JSON(http.StatusForbidden, gin.H{"error": "not your publication"})
			return
		case err != nil:
			log.Error("Personal edit failed", zap.Int("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update publication"})
			return
		}
		if oldLink != "" && edit.PDFLink != nil && oldLink != *edit.PDFLink {
			if err := storage.DeleteByURL(c.Request.Context(), s3Client, cfg, oldLink); err != nil {
				log.Warn("Failed to delete replaced pdf", zap.String("link", oldLink), zap.Error(err))
			}
		}
		c.JSON(http.StatusOK, pub)
	}
	rg.PATCH("/mine/:id", requireUploader(tokens), editMine)
	rg.POST("/mine/:id", requireUploader(tokens), editMine)

	setupArticleStatsRoutes(router, pubs, log)
}

func languageShareFiltersFromQuery(c *gin.Context, articlesOnly bool) services.LanguageShareFilters {
	return services.LanguageShareFilters{
		YearMin:      intParam(c, "year_min"),
		YearMax:      intParam(c, "year_max"),
		Faculty:      strings.TrimSpace(c.Query("faculty")),
		DocType:      strings.TrimSpace(c.Query("doc_type")),
		ArticlesOnly: articlesOnly,
	}
}

func languageShareTable(rows []services.LanguageShareRow) [][]string {
	out := [][]string{{"year", "total", "ru", "kz", "en", "ru_pct", "kz_pct", "en_pct"}}
	for _, r := range rows {
		out = append(out, []string{
			strconv.Itoa(r.Year), strconv.Itoa(r.Total),
			strconv.Itoa(r.RU), strconv.Itoa(r.KZ), strconv.Itoa(r.EN),
			fmt.Sprintf("%.2f", r.RUPct), fmt.Sprintf("%.2f", r.KZPct), fmt.Sprintf("%.2f", r.ENPct),
		})
	}
	return out
}

func setupArticleStatsRoutes(router *gin.Engine, pubs *services.PublicationService, log *zap.Logger) {
	rg := router.Group("/publications/stats")

	rg.GET("/language_share", func(c *gin.Context) {
		rows, err := pubs.LanguageShare(languageShareFiltersFromQuery(c, false))
		if err != nil {
			log.Error("Language share query failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": rows})
	})

	rg.GET("/articles/language_share", func(c *gin.Context) {
		rows, err := pubs.LanguageShare(languageShareFiltersFromQuery(c, true))
		if err != nil {
			log.Error("Article language share query failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": rows})
	})

	rg.GET("/articles/language_share/export", func(c *gin.Context) {
		rows, err := pubs.LanguageShare(languageShareFiltersFromQuery(c, true))
		if err != nil {
			log.Error("Article language share export failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		data, err := services.TableXLSX("language_share", languageShareTable(rows))
		if err != nil {
			log.Error("Language share workbook failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build export"})
			return
		}
		writeExport(c, "stati_zh", "xlsx", data)
	})

	rg.GET("/articles/faculty_summary", func(c *gin.Context) {
		rows, err := pubs.FacultySummary(intParam(c, "year"), strings.TrimSpace(c.Query("doc_type")), uintMultiParam(c, "author_id"))
		if err != nil {
			log.Error("Faculty summary query failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": rows})
	})

	rg.GET("/articles/faculty_summary/export", func(c *gin.Context) {
		year := intParam(c, "year")
		rows, err := pubs.FacultySummary(year, strings.TrimSpace(c.Query("doc_type")), uintMultiParam(c, "author_id"))
		if err != nil {
			log.Error("Faculty summary export failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		table := [][]string{{"Факультет", "Количество"}}
		for _, r := range rows {
			table = append(table, []string{r.Faculty, strconv.Itoa(r.Count)})
		}
		base := "articles_faculty"
		if year > 0 {
			base = fmt.Sprintf("articles_faculty_%d", year)
		}
		format := strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", "xlsx")))
		var data []byte
		if format == "csv" {
			data, err = services.TableCSV(table)
		} else {
			format = "xlsx"
			data, err = services.TableXLSX("faculty_summary", table)
		}
		if err != nil {
			log.Error("Faculty summary workbook failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build export"})
			return
		}
		writeExport(c, base, format, data)
	})

	rg.GET("/articles/faculty_breakdown", func(c *gin.Context) {
		faculty := strings.TrimSpace(c.Query("faculty"))
		if faculty == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "faculty is required"})
			return
		}
		rows, err := pubs.FacultyBreakdown(faculty, intParam(c, "year"), strings.TrimSpace(c.Query("doc_type")), uintMultiParam(c, "author_id"))
		if err != nil {
			log.Error("Faculty breakdown query failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": rows})
	})
}
