// Package rules holds the consultation form's field business rules and the
// validity snapshot derived from them.
package rules

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MessageMinRunes = 10
	MessageMaxRunes = 2000
)

var (
	namePattern        = regexp.MustCompile(`^[\p{L}\s'\-]{2,}$`)
	emailLocalPattern  = regexp.MustCompile(`^[A-Za-z0-9!#$%&'*+/=?^_` + "`" + `{|}~.-]+$`)
	emailDomainPattern = regexp.MustCompile(`^[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	phonePattern       = regexp.MustCompile(`^\+?380\d{9}$`)
	phoneSeparators    = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", "\t", "")
)

// Name accepts two or more letters, spaces, apostrophes or hyphens.
func Name(value string) bool {
	return namePattern.MatchString(strings.TrimSpace(value))
}

// Email applies the structural checks on top of native type=email validity.
func Email(value string) bool {
	v := strings.TrimSpace(value)
	if v == "" || strings.ContainsAny(v, " \t\r\n") {
		return false
	}
	if strings.Count(v, "@") != 1 {
		return false
	}
	local, domain, _ := strings.Cut(v, "@")
	if local == "" || domain == "" {
		return false
	}
	for _, part := range []string{local, domain} {
		if strings.HasPrefix(part, ".") || strings.HasSuffix(part, ".") || strings.Contains(part, "..") {
			return false
		}
	}
	if !emailLocalPattern.MatchString(local) {
		return false
	}
	if strings.Contains(domain, "_") {
		return false
	}
	for _, label := range strings.Split(domain, ".") {
		if strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return false
		}
	}
	return emailDomainPattern.MatchString(domain)
}

// Message bounds the trimmed length from below and the raw length from
// above, both counted in characters.
func Message(value string) bool {
	trimmed := utf8.RuneCountInString(strings.TrimSpace(value))
	return trimmed >= MessageMinRunes && utf8.RuneCountInString(value) <= MessageMaxRunes
}

// NormalizePhone removes the formatting separators a user may type.
func NormalizePhone(value string) string {
	return phoneSeparators.Replace(strings.TrimSpace(value))
}

// Phone accepts a Ukrainian number: optional '+', then 380, then 9 digits.
func Phone(value string) bool {
	return phonePattern.MatchString(NormalizePhone(value))
}

// Digits keeps only ASCII digits.
func Digits(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
