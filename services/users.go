package services

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"science-registry/models"
)

var (
	ErrLoginReserved = errors.New("login is reserved")
	ErrLoginTaken    = errors.New("login already exists")
	ErrEmailTaken    = errors.New("email already exists")
	ErrNotFound      = errors.New("not found")
)

// normNameSQL builds the SQL expression matching NormalizeName: NBSP to
// space, commas, dots and spaces removed, lowercased.
func normNameSQL(col string) string {
	return fmt.Sprintf(
		"LOWER(REPLACE(REPLACE(REPLACE(REPLACE(%s, '%s', ' '), ',', ''), '.', ''), ' ', ''))",
		col, nbsp)
}

// UserService manages registry accounts and their links to publication
// authors.
type UserService struct {
	DB         *gorm.DB
	Log        *zap.Logger
	Salt       string
	AdminLogin string
}

func NewUserService(db *gorm.DB, log *zap.Logger, salt, adminLogin string) *UserService {
	return &UserService{DB: db, Log: log, Salt: salt, AdminLogin: adminLogin}
}

// BackfillPasswords assigns a deterministic initial password to every
// user missing one. Idempotent.
func (s *UserService) BackfillPasswords() (int, error) {
	var users []models.User
	if err := s.DB.Find(&users).Error; err != nil {
		return 0, err
	}
	changed := 0
	for i := range users {
		u := &users[i]
		if u.InitialPassword != nil && *u.InitialPassword != "" {
			continue
		}
		pw := DeterministicPassword(u.FullName, 6)
		u.InitialPassword = &pw
		u.PasswordHash = HashPassword(pw, s.Salt)
		if err := s.DB.Save(u).Error; err != nil {
			return changed, err
		}
		changed++
	}
	return changed, nil
}

// UserListFilters narrows the admin users list.
type UserListFilters struct {
	Query         string
	Role          string
	Faculty       string
	CreatedSource string
	Page          int
	PerPage       int
}

// UserWithCount is one admin users row: the account plus how many
// distinct publications carry an author with exactly its display name.
type UserWithCount struct {
	models.User
	PublicationsCount int64 `json:"publications_count"`
}

// ListUsers returns one page of users ordered by full name and the
// unpaged total. Missing initial passwords are backfilled on the way.
func (s *UserService) ListUsers(f UserListFilters) ([]UserWithCount, int, error) {
	if _, err := s.BackfillPasswords(); err != nil {
		return nil, 0, err
	}

	q := s.DB.Model(&models.User{})
	if term := strings.TrimSpace(f.Query); term != "" {
		like := "%" + term + "%"
		q = q.Where("full_name ILIKE ? OR login ILIKE ? OR email ILIKE ?", like, like, like)
	}
	if f.Role != "" {
		q = q.Where("role = ?", f.Role)
	}
	if f.Faculty != "" {
		q = q.Where("faculty = ?", f.Faculty)
	}
	if f.CreatedSource != "" {
		q = q.Where("created_source = ?", f.CreatedSource)
	}

	var users []models.User
	if err := q.Order("full_name").Find(&users).Error; err != nil {
		return nil, 0, err
	}
	total := len(users)

	page := f.Page
	if page < 1 {
		page = 1
	}
	perPage := f.PerPage
	if perPage < 1 || perPage > 200 {
		perPage = 50
	}
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}

	out := make([]UserWithCount, 0, end-start)
	for _, u := range users[start:end] {
		name := strings.TrimSpace(strings.ReplaceAll(u.FullName, nbsp, " "))
		var count int64
		if name != "" {
			err := s.DB.Model(&models.Publication{}).
				Joins("JOIN publication_authors ON publication_authors.publication_id = publications.id").
				Joins("JOIN authors ON authors.id = publication_authors.author_id").
				Where("authors.display_name = ?", name).
				Distinct("publications.id").
				Count(&count).Error
			if err != nil {
				return nil, 0, err
			}
		}
		out = append(out, UserWithCount{User: u, PublicationsCount: count})
	}
	return out, total, nil
}

// UserCreate is the admin create-user payload.
type UserCreate struct {
	FullName   string  `json:"full_name" binding:"required"`
	Login      string  `json:"login"`
	Email      *string `json:"email"`
	Password   string  `json:"password" binding:"required"`
	Role       string  `json:"role"`
	Faculty    string  `json:"faculty"`
	Department string  `json:"department"`
	Position   string  `json:"position"`
	Degree     string  `json:"degree"`
}

// CreateUser creates an account with a unique login, stores name
// variants and immediately links matching publications to it.
func (s *UserService) CreateUser(p UserCreate) (*models.User, error) {
	fullName := strings.TrimSpace(strings.ReplaceAll(p.FullName, nbsp, " "))
	if fullName == "" {
		return nil, errors.New("full_name is required")
	}
	if strings.TrimSpace(p.Password) == "" {
		return nil, errors.New("password is required")
	}

	desired := strings.TrimSpace(p.Login)
	if desired == "" {
		desired = DeriveLogin(fullName)
	}
	if desired == s.AdminLogin {
		return nil, ErrLoginReserved
	}
	if p.Email != nil && *p.Email != "" {
		var cnt int64
		if err := s.DB.Model(&models.User{}).Where("email = ?", *p.Email).Count(&cnt).Error; err != nil {
			return nil, err
		}
		if cnt > 0 {
			return nil, ErrEmailTaken
		}
	}

	login := desired
	for i := 0; ; i++ {
		var cnt int64
		if err := s.DB.Model(&models.User{}).Where("LOWER(login) = LOWER(?)", login).Count(&cnt).Error; err != nil {
			return nil, err
		}
		if cnt == 0 {
			break
		}
		if i >= 9999 {
			sum := sha1.Sum([]byte(desired))
			login = desired + "." + hex.EncodeToString(sum[:])[:6]
			break
		}
		login = desired + strconv.Itoa(i+1)
	}

	role := p.Role
	if role == "" {
		role = RoleTeacher
	}
	variants := NameVariants(fullName)
	variantsJSON, _ := json.Marshal(variants)
	vs := string(variantsJSON)
	createdSource := "admin"
	password := strings.TrimSpace(p.Password)

	u := models.User{
		FullName:        fullName,
		Login:           login,
		Email:           p.Email,
		Role:            &role,
		Faculty:         p.Faculty,
		Department:      p.Department,
		Position:        p.Position,
		Degree:          p.Degree,
		PasswordHash:    HashPassword(password, s.Salt),
		InitialPassword: &password,
		NameVariants:    &vs,
		Active:          true,
		CreatedSource:   &createdSource,
	}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&u).Error; err != nil {
			return err
		}
		return s.linkByVariants(tx, u.ID, variants)
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *UserService) linkByVariants(tx *gorm.DB, userID uint, variants []string) error {
	if len(variants) == 0 {
		return nil
	}
	conds := make([]string, 0, len(variants))
	args := make([]interface{}, 0, len(variants))
	for _, v := range variants {
		conds = append(conds, "authors.display_name ILIKE ?")
		args = append(args, "%"+v+"%")
	}
	var ids []uint
	err := tx.Model(&models.Publication{}).
		Joins("JOIN publication_authors ON publication_authors.publication_id = publications.id").
		Joins("JOIN authors ON authors.id = publication_authors.author_id").
		Where(strings.Join(conds, " OR "), args...).
		Distinct("publications.id").
		Pluck("publications.id", &ids).Error
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	return tx.Model(&models.Publication{}).
		Where("id IN ?", ids).
		Update("user_id", userID).Error
}

// LoginAvailable reports whether a login can still be taken.
func (s *UserService) LoginAvailable(login string) (bool, error) {
	if login == s.AdminLogin {
		return false, nil
	}
	var cnt int64
	if err := s.DB.Model(&models.User{}).Where("login = ?", login).Count(&cnt).Error; err != nil {
		return false, err
	}
	return cnt == 0, nil
}

// SetActive toggles an account.
func (s *UserService) SetActive(userID uint, active bool) error {
	res := s.DB.Model(&models.User{}).Where("id = ?", userID).Update("active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UserUpdate is the admin partial-update payload. Nil means unchanged.
type UserUpdate struct {
	FullName   *string `json:"full_name"`
	Login      *string `json:"login"`
	Email      *string `json:"email"`
	Role       *string `json:"role"`
	Faculty    *string `json:"faculty"`
	Department *string `json:"department"`
	Position   *string `json:"position"`
	Degree     *string `json:"degree"`
	Active     *bool   `json:"active"`
}

// UpdateUser applies a partial update. A full name change recomputes
// name variants and relinks matching publications.
func (s *UserService) UpdateUser(userID uint, p UserUpdate) (*models.User, error) {
	var u models.User
	if err := s.DB.First(&u, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if p.Login != nil {
		newLogin := strings.TrimSpace(*p.Login)
		if newLogin == "" {
			return nil, errors.New("login cannot be empty")
		}
		if newLogin != u.Login {
			if newLogin == s.AdminLogin {
				return nil, ErrLoginReserved
			}
			var cnt int64
			if err := s.DB.Model(&models.User{}).Where("login = ?", newLogin).Count(&cnt).Error; err != nil {
				return nil, err
			}
			if cnt > 0 {
				return nil, ErrLoginTaken
			}
			u.Login = newLogin
		}
	}
	if p.FullName != nil {
		u.FullName = *p.FullName
	}
	if p.Email != nil {
		u.Email = p.Email
	}
	if p.Role != nil {
		u.Role = p.Role
	}
	if p.Faculty != nil {
		u.Faculty = *p.Faculty
	}
	if p.Department != nil {
		u.Department = *p.Department
	}
	if p.Position != nil {
		u.Position = *p.Position
	}
	if p.Degree != nil {
		u.Degree = *p.Degree
	}
	if p.Active != nil {
		u.Active = *p.Active
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if p.FullName != nil {
			variants := NameVariants(u.FullName)
			variantsJSON, _ := json.Marshal(variants)
			vs := string(variantsJSON)
			u.NameVariants = &vs
			if err := s.linkByVariants(tx, u.ID, variants); err != nil {
				return err
			}
		}
		return tx.Save(&u).Error
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// SetPassword replaces the stored hash.
func (s *UserService) SetPassword(userID uint, password string) error {
	res := s.DB.Model(&models.User{}).
		Where("id = ?", userID).
		Update("password_hash", HashPassword(password, s.Salt))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser removes an account.
func (s *UserService) DeleteUser(userID uint) error {
	res := s.DB.Delete(&models.User{}, userID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MatchMode controls how strictly UserPublicationIDs matches names.
const (
	MatchExact    = "exact"
	MatchInitials = "initials"
	MatchBroad    = "broad"
)

// UserPublicationIDs collects the ids of publications attributable to a
// user, ordered year desc then id. exact applies normalized-name
// equality only; initials adds last name plus all initials; broad adds
// name-variant substrings and the explicit user_id link.
func (s *UserService) UserPublicationIDs(userID uint, match string) ([]uint, error) {
	var u models.User
	if err := s.DB.First(&u, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}

	nameExpr := normNameSQL("authors.display_name")
	joinPubs := func() *gorm.DB {
		return s.DB.Model(&models.Publication{}).
			Joins("JOIN publication_authors ON publication_authors.publication_id = publications.id").
			Joins("JOIN authors ON authors.id = publication_authors.author_id")
	}

	idSet := map[uint]struct{}{}
	collect := func(q *gorm.DB) error {
		var ids []uint
		if err := q.Distinct("publications.id").Pluck("publications.id", &ids).Error; err != nil {
			return err
		}
		for _, id := range ids {
			idSet[id] = struct{}{}
		}
		return nil
	}

	norm := NormalizeName(u.FullName)
	if err := collect(joinPubs().Where(nameExpr+" = ?", norm)); err != nil {
		return nil, err
	}

	if match == MatchInitials || match == MatchBroad {
		last, inits := SplitName(u.FullName)
		if last != "" {
			q := joinPubs().Where(nameExpr+" LIKE ?", "%"+last+"%")
			for _, ch := range inits {
				q = q.Where(nameExpr+" LIKE ?", "%"+string(ch)+"%")
			}
			if err := collect(q); err != nil {
				return nil, err
			}
		}
	}

	if match == MatchBroad {
		variants := NameVariants(u.FullName)
		if len(variants) > 0 {
			conds := make([]string, 0, len(variants))
			args := make([]interface{}, 0, len(variants))
			for _, v := range variants {
				conds = append(conds, "authors.display_name ILIKE ?")
				args = append(args, "%"+v+"%")
			}
			if err := collect(joinPubs().Where(strings.Join(conds, " OR "), args...)); err != nil {
				return nil, err
			}
		}
		if err := collect(s.DB.Model(&models.Publication{}).Where("user_id = ?", userID)); err != nil {
			return nil, err
		}
	}

	if len(idSet) == 0 {
		return nil, nil
	}
	all := make([]uint, 0, len(idSet))
	for id := range idSet {
		all = append(all, id)
	}
	var ordered []uint
	err := s.DB.Model(&models.Publication{}).
		Where("id IN ?", all).
		Order("year DESC, id").
		Pluck("id", &ordered).Error
	if err != nil {
		return nil, err
	}
	return ordered, nil
}

// MatchPreviewIDs previews which publications a full name would match,
// exact normalized equality first, then last name plus initials.
func (s *UserService) MatchPreviewIDs(fullName string, limit int) ([]uint, error) {
	raw := strings.TrimSpace(strings.ReplaceAll(fullName, nbsp, " "))
	if raw == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	nameExpr := normNameSQL("authors.display_name")
	joinPubs := func() *gorm.DB {
		return s.DB.Model(&models.Publication{}).
			Joins("JOIN publication_authors ON publication_authors.publication_id = publications.id").
			Joins("JOIN authors ON authors.id = publication_authors.author_id")
	}

	var ids []uint
	err := joinPubs().
		Where(nameExpr+" = ?", NormalizeName(raw)).
		Distinct("publications.id").
		Limit(limit).
		Pluck("publications.id", &ids).Error
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		return ids, nil
	}

	last, inits := SplitName(raw)
	if last == "" {
		return nil, nil
	}
	q := joinPubs().Where(nameExpr+" LIKE ?", "%"+last+"%")
	for _, ch := range inits {
		q = q.Where(nameExpr+" LIKE ?", "%"+string(ch)+"%")
	}
	err = q.Distinct("publications.id").Limit(limit).Pluck("publications.id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// NormalizeLanguages rewrites stored language values to ru/kz/en via a
// single SQL update per language.
func (s *UserService) NormalizeLanguages() (int64, error) {
	var updated int64
	for code, variants := range LanguageVariants() {
		res := s.DB.Model(&models.Publication{}).
			Where("language IS NOT NULL").
			Where("LOWER(TRIM(language)) IN ?", variants).
			Update("language", code)
		if res.Error != nil {
			return updated, res.Error
		}
		updated += res.RowsAffected
	}
	return updated, nil
}

// UnmappedDepartments lists distinct user departments absent from the
// faculty mapping.
func (s *UserService) UnmappedDepartments(mapper *FacultyMapper) ([]string, error) {
	var depts []string
	err := s.DB.Model(&models.User{}).
		Where("department IS NOT NULL AND department <> ''").
		Distinct("department").
		Order("department").
		Pluck("department", &depts).Error
	if err != nil {
		return nil, err
	}
	unknown := make([]string, 0)
	for _, d := range depts {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		if _, ok := mapper.Lookup(d); !ok {
			unknown = append(unknown, d)
		}
	}
	return unknown, nil
}

// BackfillUserFaculties fills User.Faculty from the department mapping
// where it is empty or out of date.
func (s *UserService) BackfillUserFaculties(mapper *FacultyMapper) (int, error) {
	var users []models.User
	if err := s.DB.Find(&users).Error; err != nil {
		return 0, err
	}
	updated := 0
	for i := range users {
		u := &users[i]
		dept := strings.TrimSpace(u.Department)
		if dept == "" {
			continue
		}
		fac, ok := mapper.Lookup(dept)
		if !ok {
			continue
		}
		if strings.TrimSpace(u.Faculty) == fac {
			continue
		}
		u.Faculty = fac
		if err := s.DB.Save(u).Error; err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}

// ExportRows renders the credential sheet for every user, ordered by
// full name. Initial passwords are backfilled first so the sheet is
// always complete.
func (s *UserService) ExportRows(createdSource string) ([][]string, error) {
	if _, err := s.BackfillPasswords(); err != nil {
		return nil, err
	}
	q := s.DB.Model(&models.User{})
	if createdSource != "" {
		q = q.Where("created_source = ?", createdSource)
	}
	var users []models.User
	if err := q.Order("full_name").Find(&users).Error; err != nil {
		return nil, err
	}

	rows := [][]string{{"ID", "ФИО", "Логин", "Начальный пароль", "Роль", "Факультет", "Кафедра", "Должность", "Степень", "Email", "Активен"}}
	for _, u := range users {
		initial, role, email := "", "", ""
		if u.InitialPassword != nil {
			initial = *u.InitialPassword
		}
		if u.Role != nil {
			role = *u.Role
		}
		if u.Email != nil {
			email = *u.Email
		}
		active := "0"
		if u.Active {
			active = "1"
		}
		rows = append(rows, []string{
			strconv.Itoa(int(u.ID)), u.FullName, u.Login, initial, role,
			u.Faculty, u.Department, u.Position, u.Degree, email, active,
		})
	}
	return rows, nil
}
