package filecontext

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/go-go-golems/grillo/pkg/conversation"
)

func TestFormatEmptyMap(t *testing.T) {
	assert.Equal(t, "", Format(nil, conversation.NewPathSet("/some/root")))
	assert.Equal(t, "", Format(map[string]string{}, nil))
}

func TestFormatRelativeDisplayPaths(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a.go")
	b := filepath.Join(root, "sub", "b.go")

	got := Format(map[string]string{
		b: "package sub\n",
		a: "package main\n",
	}, conversation.NewPathSet(root))

	expected := fmt.Sprintf("%s--- File: %s ---\n```\n%s\n```\n\n--- File: %s ---\n```\n%s\n```\n\n%s",
		"--- Local File Context ---\n\n",
		"a.go", "package main\n",
		filepath.Join("sub", "b.go"), "package sub\n",
		"--- End Local File Context ---\n\n")
	assert.Equal(t, expected, got)
}

func TestFormatFileRootUsesBasename(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "single.go")

	got := Format(map[string]string{file: "package single\n"}, conversation.NewPathSet(file))
	assert.Contains(t, got, "--- File: single.go ---")
}

func TestFormatUnrelatedPathStaysAbsolute(t *testing.T) {
	root := t.TempDir()
	other := filepath.Join(t.TempDir(), "elsewhere.go")

	got := Format(map[string]string{other: "package elsewhere\n"}, conversation.NewPathSet(root))
	assert.Contains(t, got, fmt.Sprintf("--- File: %s ---", other))
}

func TestFormatPicksShortestRelativePath(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	file := filepath.Join(sub, "deep.go")

	got := Format(map[string]string{file: "package deep\n"}, conversation.NewPathSet(root, sub))
	assert.Contains(t, got, "--- File: deep.go ---")
}
