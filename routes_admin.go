package main

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"science-registry/config"
	"science-registry/models"
	"science-registry/services"
	"science-registry/storage"
)

func bytesReader(b []byte) *bytes.Reader {
	return bytes.NewReader(b)
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

func setupAdminRoutes(
	router *gin.Engine,
	pubs *services.PublicationService,
	users *services.UserService,
	imports *services.ImportService,
	linker *services.Linker,
	mapper *services.FacultyMapper,
	tokens *services.TokenService,
	s3Client *s3.Client,
	cfg *config.Config,
	log *zap.Logger,
) {
	rg := router.Group("/admin", requireAdmin(tokens))

	// Moderation.

	rg.GET("/publications", func(c *gin.Context) {
		items, err := pubs.ListForModeration(services.ModerationFilters{
			Status:  strings.TrimSpace(c.Query("status")),
			Page:    intParam(c, "page"),
			PerPage: intParam(c, "per_page"),
			Order:   strings.TrimSpace(c.Query("order")),
		})
		if err != nil {
			log.Error("Moderation listing failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	})

	rg.POST("/publications/:id/approve", func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		if err := pubs.Approve(id); err != nil {
			if errors.Is(err, services.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "publication not found"})
				return
			}
			log.Error("Approve failed", zap.Uint("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "approved"})
	})

	rg.POST("/publications/:id/reject", func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		var body struct {
			Note *string `json:"note"`
		}
		_ = c.ShouldBindJSON(&body)
		if err := pubs.Reject(id, body.Note); err != nil {
			if errors.Is(err, services.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "publication not found"})
				return
			}
			log.Error("Reject failed", zap.Uint("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "rejected"})
	})

	rg.PATCH("/publications/:id", func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		var edit services.AdminEdit
		if err := c.ShouldBindJSON(&edit); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}
		pub, err := pubs.AdminUpdate(id, edit)
		if err != nil {
			if errors.Is(err, services.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "publication not found"})
				return
			}
			log.Error("Admin publication update failed", zap.Uint("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, pub)
	})

	rg.DELETE("/publications/:id", func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		pub, err := pubs.Delete(id)
		if err != nil {
			if errors.Is(err, services.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "publication not found"})
				return
			}
			log.Error("Publication delete failed", zap.Uint("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		if pub.PDFURL != nil {
			if err := storage.DeleteByURL(c.Request.Context(), s3Client, cfg, *pub.PDFURL); err != nil {
				log.Warn("Failed to delete stored pdf", zap.Uint("id", id), zap.Error(err))
			}
		}
		c.JSON(http.StatusOK, gin.H{"message": "deleted"})
	})

	// Users.

	rg.GET("/users", func(c *gin.Context) {
		items, total, err := users.ListUsers(services.UserListFilters{
			Query:         strings.TrimSpace(c.Query("q")),
			Role:          strings.TrimSpace(c.Query("role")),
			Faculty:       strings.TrimSpace(c.Query("faculty")),
			CreatedSource: strings.TrimSpace(c.Query("created_source")),
			Page:          intParam(c, "page"),
			PerPage:       intParam(c, "per_page"),
		})
		if err != nil {
			log.Error("User listing failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.Header("X-Total-Count", strconv.Itoa(total))
		c.JSON(http.StatusOK, gin.H{"items": items, "total": total})
	})

	rg.GET("/users/export", func(c *gin.Context) {
		rows, err := users.ExportRows(strings.TrimSpace(c.Query("created_source")))
		if err != nil {
			log.Error("User export failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		format := strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", "csv")))
		var data []byte
		if format == "xlsx" {
			data, err = services.TableXLSX("users", rows)
		} else {
			format = "csv"
			data, err = services.TableCSV(rows)
		}
		if err != nil {
			log.Error("User export render failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build export"})
			return
		}
		writeExport(c, "users", format, data)
	})

	rg.POST("/users", func(c *gin.Context) {
		var req services.UserCreate
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "full_name and password are required"})
			return
		}
		user, err := users.CreateUser(req)
		switch {
		case errors.Is(err, services.ErrLoginReserved), errors.Is(err, services.ErrEmailTaken):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		case err != nil:
			log.Error("User create failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
			return
		}
		c.JSON(http.StatusCreated, user)
	})

	rg.GET("/users/check_login", func(c *gin.Context) {
		login := strings.TrimSpace(c.Query("login"))
		if login == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "login is required"})
			return
		}
		free, err := users.LoginAvailable(login)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"available": free})
	})

	rg.GET("/users/match_preview", func(c *gin.Context) {
		fullName := strings.TrimSpace(c.Query("full_name"))
		if fullName == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "full_name is required"})
			return
		}
		ids, err := users.MatchPreviewIDs(fullName, 50)
		if err != nil {
			log.Error("Match preview failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		items, err := pubs.Search.LoadByIDs(ids)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	})

	rg.GET("/users/:id/publications", func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		match := strings.TrimSpace(c.DefaultQuery("match", services.MatchExact))
		ids, err := users.UserPublicationIDs(id, match)
		if err != nil {
			if errors.Is(err, services.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
				return
			}
			log.Error("User publications query failed", zap.Uint("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		items, err := pubs.Search.LoadByIDs(ids)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	})

	rg.PATCH("/users/:id/active", func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		var body struct {
			Active *bool `json:"active" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || body.Active == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "active is required"})
			return
		}
		if err := users.SetActive(id, *body.Active); err != nil {
			if errors.Is(err, services.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "updated"})
	})

	rg.PATCH("/users/:id/password", func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		var body struct {
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "password is required"})
			return
		}
		if err := users.SetPassword(id, body.Password); err != nil {
			if errors.Is(err, services.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "password changed"})
	})

	rg.PATCH("/users/:id", func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		var req services.UserUpdate
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}
		user, err := users.UpdateUser(id, req)
		switch {
		case errors.Is(err, services.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		case errors.Is(err, services.ErrLoginReserved), errors.Is(err, services.ErrLoginTaken):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		case err != nil:
			log.Error("User update failed", zap.Uint("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, user)
	})

	rg.DELETE("/users/:id", func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		if err := users.DeleteUser(id); err != nil {
			if errors.Is(err, services.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
				return
			}
			log.Error("User delete failed", zap.Uint("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "deleted"})
	})

	rg.POST("/users/backfill_passwords", func(c *gin.Context) {
		changed, err := users.BackfillPasswords()
		if err != nil {
			log.Error("Password backfill failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"updated": changed})
	})

	// Maintenance.

	rg.POST("/maintenance/normalize_languages", func(c *gin.Context) {
		changed, err := users.NormalizeLanguages()
		if err != nil {
			log.Error("Language normalization failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"updated": changed})
	})

	rg.POST("/maintenance/backfill-user-faculties", func(c *gin.Context) {
		updated, err := users.BackfillUserFaculties(mapper)
		if err != nil {
			log.Error("Faculty backfill failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"updated": updated})
	})

	rg.GET("/maintenance/unmapped-departments", func(c *gin.Context) {
		items, err := users.UnmappedDepartments(mapper)
		if err != nil {
			log.Error("Unmapped departments query failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	})

	rg.POST("/maintenance/link_kokson_publications", func(c *gin.Context) {
		res, err := linker.LinkPublications(models.SourceArticle, models.SourceKokson)
		if err != nil {
			log.Error("Publication linking failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, res)
	})

	rg.POST("/maintenance/link_authors", func(c *gin.Context) {
		res, err := linker.LinkAuthors()
		if err != nil {
			log.Error("Author linking failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		// backfill=1 additionally assigns publication owners from the
		// freshly linked authors.
		if v := strings.TrimSpace(c.Query("backfill")); v == "1" || strings.EqualFold(v, "true") {
			bf, err := linker.BackfillPublicationOwners(models.SourceArticle, models.SourceKokson)
			if err != nil {
				log.Error("Owner backfill failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"authors":        res,
				"owners_linked":  bf.Linked,
				"owners_scanned": bf.Scanned,
			})
			return
		}
		c.JSON(http.StatusOK, res)
	})

	rg.GET("/maintenance/dept_map", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"map": mapper.Snapshot()})
	})

	// Imports. Merged overrides are persisted so the mapping survives
	// restarts.

	saveDeptMap := func(c *gin.Context) {
		if err := storage.SaveDeptMap(c.Request.Context(), s3Client, cfg, mapper.Snapshot()); err != nil {
			log.Warn("Failed to persist department map", zap.Error(err))
		}
	}

	rg.POST("/import/publications", func(c *gin.Context) {
		_, data, err := readUploadedFile(c, "file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		report, err := imports.ImportScopus(bytesReader(data))
		if err != nil {
			log.Error("Scopus import failed", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, report)
	})

	rg.POST("/import/kokson", func(c *gin.Context) {
		filename, data, err := readUploadedFile(c, "file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		report, err := imports.ImportKokson(bytesReader(data), filename)
		if err != nil {
			log.Error("Article workbook import failed", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, report)
	})

	rg.POST("/import/faculty", func(c *gin.Context) {
		_, data, err := readUploadedFile(c, "file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		report, err := imports.ImportFacultyRoster(bytesReader(data))
		if err != nil {
			log.Error("Roster import failed", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, report)
	})

	rg.POST("/import/faculties_departments_fio", func(c *gin.Context) {
		_, data, err := readUploadedFile(c, "file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		report, err := imports.ImportFIOMap(bytesReader(data), mapper)
		if err != nil {
			log.Error("FIO map import failed", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		saveDeptMap(c)
		c.JSON(http.StatusOK, report)
	})

	rg.POST("/import/dept_map", func(c *gin.Context) {
		_, data, err := readUploadedFile(c, "file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		pairs, err := services.ParseDeptMap(bytesReader(data))
		if err != nil {
			log.Error("Department map import failed", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		merged := mapper.MergeOverrides(pairs)
		saveDeptMap(c)
		c.JSON(http.StatusOK, gin.H{"merged": merged, "total": len(mapper.Snapshot())})
	})

	rg.POST("/import/dept_map_json", func(c *gin.Context) {
		var pairs map[string]string
		if err := c.ShouldBindJSON(&pairs); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}
		merged := mapper.MergeOverrides(pairs)
		saveDeptMap(c)
		c.JSON(http.StatusOK, gin.H{"merged": merged, "total": len(mapper.Snapshot())})
	})
}
