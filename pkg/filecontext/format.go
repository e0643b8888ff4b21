package filecontext

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-go-golems/grillo/pkg/conversation"
)

const (
	contextHeader = "--- Local File Context ---\n\n"
	contextFooter = "--- End Local File Context ---\n\n"
)

// Format renders the assembled contents into the prompt segment. The
// output is deterministic: entries are ordered by absolute path and
// displayed under the shortest path relative to any registered root.
// An empty content map formats to the empty string so callers can
// concatenate unconditionally.
func Format(contents map[string]string, roots conversation.PathSet) string {
	if len(contents) == 0 {
		return ""
	}

	keys := make([]string, 0, len(contents))
	for k := range contents {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rootList := make([]string, 0, roots.Len())
	for _, root := range roots.Sorted() {
		if abs, err := filepath.Abs(root); err == nil {
			rootList = append(rootList, abs)
		}
	}

	var sb strings.Builder
	sb.WriteString(contextHeader)
	for _, key := range keys {
		sb.WriteString(fmt.Sprintf("--- File: %s ---\n```\n%s\n```\n\n", displayPath(key, rootList), contents[key]))
	}
	sb.WriteString(contextFooter)
	return sb.String()
}

// displayPath prefers the shortest relative path against any root,
// then the bare filename when a root is the file itself, then the
// absolute path.
func displayPath(abs string, roots []string) string {
	shortest := ""
	for _, root := range roots {
		rel, err := filepath.Rel(root, abs)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		if rel == "." {
			rel = filepath.Base(abs)
		}
		if shortest == "" || len(rel) < len(shortest) {
			shortest = rel
		}
	}
	if shortest != "" {
		return shortest
	}
	return abs
}
