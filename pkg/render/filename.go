package render

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/iancoleman/strcase"
)

// ExportFilename derives a filesystem-safe markdown filename from a
// conversation title and its start time, e.g.
// "2024-05-01_how_do_i_sort_a_slice.md".
func ExportFilename(title string, startedAt time.Time) string {
	slug := strcase.ToSnake(sanitizeForFilename(title))
	slug = strings.Trim(slug, "_")
	if slug == "" {
		slug = "conversation"
	}
	return fmt.Sprintf("%s_%s.md", startedAt.UTC().Format("2006-01-02"), slug)
}

// sanitizeForFilename keeps letters and digits, folds separators into
// single spaces, and drops everything else.
func sanitizeForFilename(s string) string {
	var b strings.Builder
	space := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteRune(' ')
			}
			space = false
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '_':
			space = true
		}
	}
	return b.String()
}
