package services

import (
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"science-registry/models"
)

// Linker attaches publications and authors to registry users by name
// matching. It backs both the admin maintenance endpoints and the
// nightly job.
type Linker struct {
	DB  *gorm.DB
	Log *zap.Logger
}

func NewLinker(db *gorm.DB, log *zap.Logger) *Linker {
	return &Linker{DB: db, Log: log}
}

type userKey struct {
	id    uint
	norm  string
	last  string
	inits string
}

func (l *Linker) userIndex() ([]userKey, error) {
	var users []models.User
	if err := l.DB.Find(&users).Error; err != nil {
		return nil, err
	}
	out := make([]userKey, 0, len(users))
	for _, u := range users {
		raw := strings.TrimSpace(strings.ReplaceAll(u.FullName, nbsp, " "))
		if raw == "" {
			continue
		}
		last, inits := SplitName(raw)
		out = append(out, userKey{id: u.ID, norm: NormalizeName(raw), last: last, inits: inits})
	}
	return out, nil
}

// LinkResult reports one linking run.
type LinkResult struct {
	Linked  int `json:"linked"`
	Scanned int `json:"scanned"`
}

// LinkPublications assigns Publication.UserID for unlinked publications
// of the given upload sources. Per author, strict normalized equality
// wins; otherwise a user whose squashed name contains the author's last
// name and every initial. The first match becomes the owner.
func (l *Linker) LinkPublications(uploadSources ...string) (*LinkResult, error) {
	udata, err := l.userIndex()
	if err != nil {
		return nil, err
	}

	var pubs []models.Publication
	err = l.DB.
		Where("upload_source IN ?", uploadSources).
		Where("user_id IS NULL OR user_id = 0").
		Limit(5000).
		Find(&pubs).Error
	if err != nil {
		return nil, err
	}

	res := &LinkResult{Scanned: len(pubs)}
	for i := range pubs {
		p := &pubs[i]
		var names []string
		err := l.DB.Model(&models.Author{}).
			Joins("JOIN publication_authors ON publication_authors.author_id = authors.id").
			Where("publication_authors.publication_id = ?", p.ID).
			Pluck("authors.display_name", &names).Error
		if err != nil {
			return nil, err
		}

		var foundID uint
		for _, name := range names {
			raw := strings.TrimSpace(strings.ReplaceAll(name, nbsp, " "))
			if raw == "" {
				continue
			}
			norm := NormalizeName(raw)
			for _, u := range udata {
				if norm == u.norm {
					foundID = u.id
					break
				}
			}
			if foundID != 0 {
				break
			}
			last, inits := SplitName(raw)
			if last != "" {
				for _, u := range udata {
					if !strings.Contains(u.norm, last) {
						continue
					}
					ok := true
					for _, ch := range inits {
						if !strings.Contains(u.norm, string(ch)) {
							ok = false
							break
						}
					}
					if ok {
						foundID = u.id
						break
					}
				}
			}
			if foundID != 0 {
				break
			}
		}
		if foundID == 0 {
			continue
		}
		if err := l.DB.Model(p).Update("user_id", foundID).Error; err != nil {
			return nil, err
		}
		res.Linked++
	}
	l.Log.Info("publications linked to users",
		zap.Strings("upload_sources", uploadSources),
		zap.Int("linked", res.Linked),
		zap.Int("scanned", res.Scanned))
	return res, nil
}

// AuthorLinkResult reports an author to user linking run.
type AuthorLinkResult struct {
	MatchedExact   int      `json:"matched_exact"`
	MatchedFuzzy   int      `json:"matched_fuzzy"`
	UpdatedAuthors int      `json:"updated_authors"`
	Ambiguous      []string `json:"ambiguous_sample,omitempty"`
	NotFound       []string `json:"not_found_sample,omitempty"`
}

// LinkAuthors fills Author.UserID, Faculty and Department from matched
// users: exact normalized name first, then a unique last name plus
// first initial candidate.
func (l *Linker) LinkAuthors() (*AuthorLinkResult, error) {
	var users []models.User
	if err := l.DB.Find(&users).Error; err != nil {
		return nil, err
	}
	byNorm := make(map[string]*models.User, len(users))
	type fuzzyKey struct{ last, init string }
	fuzzy := make(map[fuzzyKey][]*models.User)
	for i := range users {
		u := &users[i]
		nm := strings.TrimSpace(u.FullName)
		if nm == "" {
			continue
		}
		byNorm[NormalizeName(nm)] = u
		last, inits := SplitName(nm)
		init := ""
		if inits != "" {
			init = string([]rune(inits)[0])
		}
		fuzzy[fuzzyKey{last, init}] = append(fuzzy[fuzzyKey{last, init}], u)
	}

	var authors []models.Author
	if err := l.DB.Find(&authors).Error; err != nil {
		return nil, err
	}

	res := &AuthorLinkResult{}
	for i := range authors {
		a := &authors[i]
		nm := strings.TrimSpace(a.DisplayName)
		if nm == "" {
			continue
		}
		if a.UserID != nil && (a.Faculty != nil || a.Department != nil) {
			continue
		}

		user := byNorm[NormalizeName(nm)]
		exact := true
		if user == nil {
			exact = false
			last, inits := SplitName(nm)
			init := ""
			if inits != "" {
				init = string([]rune(inits)[0])
			}
			cands := fuzzy[fuzzyKey{last, init}]
			switch len(cands) {
			case 1:
				user = cands[0]
			case 0:
				if len(res.NotFound) < 20 {
					res.NotFound = append(res.NotFound, nm)
				}
				continue
			default:
				if len(res.Ambiguous) < 20 {
					res.Ambiguous = append(res.Ambiguous, nm)
				}
				continue
			}
		}

		changed := false
		if a.UserID == nil || *a.UserID != user.ID {
			a.UserID = &user.ID
			changed = true
		}
		if user.Faculty != "" && (a.Faculty == nil || *a.Faculty != user.Faculty) {
			a.Faculty = &user.Faculty
			changed = true
		}
		if user.Department != "" && (a.Department == nil || *a.Department != user.Department) {
			a.Department = &user.Department
			changed = true
		}
		if changed {
			if err := l.DB.Save(a).Error; err != nil {
				return nil, err
			}
			res.UpdatedAuthors++
		}
		if exact {
			res.MatchedExact++
		} else {
			res.MatchedFuzzy++
		}
	}
	l.Log.Info("authors linked to users",
		zap.Int("exact", res.MatchedExact),
		zap.Int("fuzzy", res.MatchedFuzzy),
		zap.Int("updated", res.UpdatedAuthors))
	return res, nil
}

// BackfillPublicationOwners sets Publication.UserID from the first
// linked author, in stored author order, for unowned publications of
// the given upload sources. Run after LinkAuthors so author links are
// fresh.
func (l *Linker) BackfillPublicationOwners(uploadSources ...string) (*LinkResult, error) {
	var pubIDs []uint
	err := l.DB.Model(&models.Publication{}).
		Where("upload_source IN ?", uploadSources).
		Where("user_id IS NULL").
		Pluck("id", &pubIDs).Error
	if err != nil {
		return nil, err
	}

	res := &LinkResult{Scanned: len(pubIDs)}
	for _, pid := range pubIDs {
		var uids []*uint
		err := l.DB.Model(&models.Author{}).
			Joins("JOIN publication_authors ON publication_authors.author_id = authors.id").
			Where("publication_authors.publication_id = ?", pid).
			Order("publication_authors.author_order").
			Pluck("authors.user_id", &uids).Error
		if err != nil {
			return nil, err
		}
		owner := firstLinkedOwner(uids)
		if owner == nil {
			continue
		}
		err = l.DB.Model(&models.Publication{}).
			Where("id = ?", pid).
			Update("user_id", *owner).Error
		if err != nil {
			return nil, err
		}
		res.Linked++
	}
	l.Log.Info("publication owners backfilled",
		zap.Strings("upload_sources", uploadSources),
		zap.Int("linked", res.Linked),
		zap.Int("scanned", res.Scanned))
	return res, nil
}

// firstLinkedOwner picks the first non-empty user id from an ordered
// author list.
func firstLinkedOwner(uids []*uint) *uint {
	for _, uid := range uids {
		if uid != nil && *uid != 0 {
			return uid
		}
	}
	return nil
}
