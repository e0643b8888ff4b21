package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExportFilename(t *testing.T) {
	startedAt := time.Date(2024, 5, 1, 23, 30, 0, 0, time.UTC)

	cases := []struct {
		title string
		want  string
	}{
		{"How do I sort a slice?", "2024-05-01_how_do_i_sort_a_slice.md"},
		{"Fix DB-migration bug!", "2024-05-01_fix_db_migration_bug.md"},
		{"  spaced   out  ", "2024-05-01_spaced_out.md"},
		{"", "2024-05-01_conversation.md"},
		{"??!!", "2024-05-01_conversation.md"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ExportFilename(tc.title, startedAt), "title %q", tc.title)
	}
}
