package services

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

const nbsp = " "

var translitTable = map[rune]string{
	'А': "A", 'Б': "B", 'В': "V", 'Г': "G", 'Д': "D", 'Е': "E", 'Ё': "E",
	'Ж': "Zh", 'З': "Z", 'И': "I", 'Й': "Y", 'К': "K", 'Л': "L", 'М': "M",
	'Н': "N", 'О': "O", 'П': "P", 'Р': "R", 'С': "S", 'Т': "T", 'У': "U",
	'Ф': "F", 'Х': "Kh", 'Ц': "Ts", 'Ч': "Ch", 'Ш': "Sh", 'Щ': "Sch",
	'Ы': "Y", 'Э': "E", 'Ю': "Yu", 'Я': "Ya",
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d", 'е': "e", 'ё': "e",
	'ж': "zh", 'з': "z", 'и': "i", 'й': "y", 'к': "k", 'л': "l", 'м': "m",
	'н': "n", 'о': "o", 'п': "p", 'р': "r", 'с': "s", 'т': "t", 'у': "u",
	'ф': "f", 'х': "kh", 'ц': "ts", 'ч': "ch", 'ш': "sh", 'щ': "sch",
	'ы': "y", 'э': "e", 'ю': "yu", 'я': "ya",
}

// Translit converts Cyrillic letters to their Latin spelling, leaving
// everything else untouched.
func Translit(s string) string {
	var b strings.Builder
	for _, r := range s {
		if t, ok := translitTable[r]; ok {
			b.WriteString(t)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeName squashes a display name for matching: NBSP to space,
// commas, dots and spaces removed, lowercased.
func NormalizeName(s string) string {
	x := strings.ReplaceAll(s, nbsp, " ")
	x = strings.ReplaceAll(x, ",", "")
	x = strings.ReplaceAll(x, ".", "")
	x = strings.ReplaceAll(x, " ", "")
	return strings.ToLower(x)
}

// NormalizeDisplay lowercases and collapses inner whitespace, the form
// stored in Author.NormalizedName.
func NormalizeDisplay(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// SplitName returns the last name (first token in CIS ordering) and the
// concatenated initials of the remaining tokens, both lowercased.
func SplitName(fullName string) (last string, initials string) {
	raw := strings.TrimSpace(strings.ReplaceAll(fullName, nbsp, " "))
	parts := strings.Fields(raw)
	if len(parts) == 0 {
		return "", ""
	}
	last = strings.ToLower(parts[0])
	var b strings.Builder
	for _, p := range parts[1:] {
		r := []rune(p)
		if len(r) > 0 {
			b.WriteString(strings.ToLower(string(r[0])))
		}
	}
	return last, b.String()
}

// NameVariants generates the alternative spellings a person may appear
// under on a publication: last name with initials in both orders, plus
// the same set with the last name transliterated to Latin.
func NameVariants(fullName string) []string {
	raw := strings.TrimSpace(strings.ReplaceAll(fullName, nbsp, " "))
	parts := strings.Fields(raw)
	if len(parts) == 0 {
		return nil
	}
	last := parts[0]

	var initialsList []string
	for _, p := range parts[1:] {
		r := []rune(p)
		initialsList = append(initialsList, string(r[0])+".")
	}
	compact := strings.Join(initialsList, "")  // A.Z.
	spaced := strings.Join(initialsList, " ")  // A. Z.
	oneInit := ""
	if len(initialsList) > 0 {
		oneInit = initialsList[0]
	}

	set := map[string]struct{}{}
	add := func(v string) {
		v = strings.TrimSpace(v)
		if v != "" {
			set[v] = struct{}{}
		}
	}

	add(raw)
	for _, l := range []string{last, Translit(last)} {
		add(l)
		if oneInit != "" {
			add(l + " " + oneInit)
			add(oneInit + " " + l)
		}
		if compact != "" {
			add(l + " " + compact)
			add(compact + " " + l)
			add(spaced + " " + l)
			add(l + " " + spaced)
		}
	}
	if compact != "" {
		add(compact)
	}

	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// DeterministicPassword derives a stable A-Z0-9 password of the given
// length from a full name. The same name always yields the same
// password, which lets credential sheets be regenerated.
func DeterministicPassword(fullName string, length int) string {
	name := strings.ToUpper(strings.TrimSpace(strings.ReplaceAll(fullName, nbsp, " ")))
	if name == "" {
		name = "USER"
	}
	digest := sha256.Sum256([]byte(name))
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	out := make([]byte, length)
	for i := 0; i < length; i++ {
		out[i] = alphabet[int(digest[i])%len(alphabet)]
	}
	return string(out)
}

// HashPassword returns the hex SHA-256 of salt+password, the format
// stored in users.password_hash.
func HashPassword(password, salt string) string {
	sum := sha256.Sum256([]byte(salt + password))
	return hex.EncodeToString(sum[:])
}

// DeriveLogin builds a login candidate from a full name: lowercase with
// spaces, commas and dots removed.
func DeriveLogin(fullName string) string {
	x := strings.ReplaceAll(fullName, nbsp, " ")
	x = strings.TrimSpace(x)
	x = strings.ToLower(x)
	x = strings.ReplaceAll(x, " ", "")
	x = strings.ReplaceAll(x, ",", "")
	x = strings.ReplaceAll(x, ".", "")
	if x == "" {
		return "user"
	}
	return x
}
