// Package filecontext assembles prompt context from user-registered
// filesystem paths: a pure allow/deny filter, a recursive walker that
// reads the allowed files, and a deterministic prompt formatter.
package filecontext

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MaxFileSize is the default per-file cap. Files above it are skipped
// rather than truncated.
const MaxFileSize = 5 * 1024 * 1024

// defaultAllowed mixes extensions and exact filenames; lookups match
// either the lowercased extension or the file's exact name.
var defaultAllowed = []string{
	".py", ".txt", ".md", ".json", ".yaml", ".yml", ".html", ".css", ".js",
	".sh", ".bash", ".zsh", ".java", ".c", ".cpp", ".h", ".hpp", ".cs",
	".go", ".rb", ".php", ".sql", ".rs", ".swift", ".kt", ".scala", ".pl",
	".pm", ".lua", ".toml", ".ini", ".cfg", ".conf", ".dockerfile",
	"docker-compose.yml", ".gitignore", ".gitattributes", ".csv", ".tsv",
	".xml", ".rst", ".tex", ".r",
}

var defaultExcludedExtensions = []string{
	".pyc", ".pyo", ".log", ".tmp", ".temp", ".bak", ".swp", ".swo",
	".dll", ".so", ".dylib", ".exe", ".o", ".a", ".obj", ".lib",
	".class", ".jar", ".war", ".ear", ".lock",
	".zip", ".tar", ".gz", ".bz2", ".7z", ".rar", ".iso", ".img",
	".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tiff", ".svg",
	".mp3", ".wav", ".ogg", ".flac", ".mp4", ".avi", ".mov", ".wmv", ".mkv",
	".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx",
	".odt", ".ods", ".odp",
}

var defaultExcludedDirs = []string{
	"__pycache__", "venv", ".venv", ".git", ".idea", ".vscode",
	"node_modules", "build", "dist", "target", "logs", ".pytest_cache",
	".mypy_cache", "site-packages", "migrations", "__MACOSX", ".DS_Store",
	"env",
}

// Verdict is the outcome of evaluating a single path. Size is only
// meaningful when Allowed is true.
type Verdict struct {
	Allowed bool
	Reason  string
	Size    int64
}

// Filter decides which files may contribute prompt context. It is a
// pure predicate over the filesystem: evaluating the same unchanged
// path twice yields the same verdict.
type Filter struct {
	allowed      map[string]struct{}
	excludedExts map[string]struct{}
	excludedDirs map[string]struct{}
	maxFileSize  int64
}

type FilterOption func(*Filter)

// WithMaxFileSize overrides the per-file byte cap.
func WithMaxFileSize(n int64) FilterOption {
	return func(f *Filter) {
		f.maxFileSize = n
	}
}

// WithAllowed adds extensions (leading dot) or exact filenames to the
// allow set.
func WithAllowed(names ...string) FilterOption {
	return func(f *Filter) {
		for _, n := range names {
			f.allowed[normalizeEntry(n)] = struct{}{}
		}
	}
}

// WithExcludedExtensions adds extensions to the exclude set.
func WithExcludedExtensions(exts ...string) FilterOption {
	return func(f *Filter) {
		for _, e := range exts {
			f.excludedExts[normalizeEntry(e)] = struct{}{}
		}
	}
}

// WithExcludedDirs adds directory names pruned from traversal.
func WithExcludedDirs(dirs ...string) FilterOption {
	return func(f *Filter) {
		for _, d := range dirs {
			f.excludedDirs[d] = struct{}{}
		}
	}
}

func NewFilter(options ...FilterOption) *Filter {
	f := &Filter{
		allowed:      make(map[string]struct{}),
		excludedExts: make(map[string]struct{}),
		excludedDirs: make(map[string]struct{}),
		maxFileSize:  MaxFileSize,
	}
	for _, n := range defaultAllowed {
		f.allowed[n] = struct{}{}
	}
	for _, e := range defaultExcludedExtensions {
		f.excludedExts[e] = struct{}{}
	}
	for _, d := range defaultExcludedDirs {
		f.excludedDirs[d] = struct{}{}
	}
	for _, o := range options {
		o(f)
	}
	return f
}

func normalizeEntry(s string) string {
	if strings.HasPrefix(s, ".") {
		return strings.ToLower(s)
	}
	return s
}

// fileExt returns the lowercased extension, treating dotfiles such as
// .gitignore as having no extension at all.
func fileExt(name string) string {
	ext := filepath.Ext(name)
	if ext == name {
		return ""
	}
	return strings.ToLower(ext)
}

// Evaluate applies the deny checks first: not a regular file, excluded
// extension or name, over the size cap. What survives is allowed only
// if its extension or exact filename is on the allow list.
func (f *Filter) Evaluate(path string) Verdict {
	info, err := os.Stat(path)
	if err != nil {
		return Verdict{Reason: "not a file"}
	}
	if !info.Mode().IsRegular() {
		return Verdict{Reason: "not a file"}
	}

	name := filepath.Base(path)
	ext := fileExt(name)
	if _, ok := f.excludedExts[ext]; ok {
		return Verdict{Reason: fmt.Sprintf("excluded extension (%s)", ext)}
	}
	if _, ok := f.excludedExts[name]; ok {
		return Verdict{Reason: fmt.Sprintf("excluded name (%s)", name)}
	}
	if info.Size() > f.maxFileSize {
		return Verdict{Reason: fmt.Sprintf("exceeds size limit (%dMB)", f.maxFileSize/(1024*1024))}
	}

	_, allowedByName := f.allowed[name]
	_, allowedByExt := f.allowed[ext]
	if !allowedByName && !allowedByExt {
		return Verdict{Reason: "extension/name not in allowed list"}
	}
	return Verdict{Allowed: true, Reason: "allowed by extension/name", Size: info.Size()}
}

// ExcludesDir reports whether a directory with the given base name is
// pruned from traversal entirely.
func (f *Filter) ExcludesDir(name string) bool {
	_, ok := f.excludedDirs[name]
	return ok
}
