package export

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Filename returns "rubric_<slug>_<yyyy-mm-dd>.pdf".
func Filename(title string, date time.Time) string {
	return "rubric_" + Slug(title) + "_" + date.Format("2006-01-02") + ".pdf"
}

// Slug folds accents, lowercases and joins words with underscores.
func Slug(title string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), title)
	if err != nil {
		folded = title
	}
	var b strings.Builder
	lastSep := true
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastSep = false
			continue
		}
		if !lastSep {
			b.WriteByte('_')
			lastSep = true
		}
	}
	slug := strings.Trim(b.String(), "_")
	if len(slug) > 60 {
		slug = strings.TrimRight(slug[:60], "_")
	}
	if slug == "" {
		return "script"
	}
	return slug
}
