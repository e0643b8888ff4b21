package filecontext

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/grillo/pkg/conversation"
)

const maxConcurrentReads = 8

type Status string

const (
	StatusIncluded       Status = "included"
	StatusSkipped        Status = "skipped"
	StatusError          Status = "error"
	StatusExcludedByUser Status = "excluded by user"
)

// Diagnostic records what happened to one path during assembly. Paths
// are absolute so entries can be matched against user exclusions.
type Diagnostic struct {
	Path   string `json:"path"`
	Status Status `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Assembler walks registered roots and collects the text of every
// allowed file.
type Assembler struct {
	filter *Filter
}

func NewAssembler(filter *Filter) *Assembler {
	if filter == nil {
		filter = NewFilter()
	}
	return &Assembler{filter: filter}
}

type candidate struct {
	path string
	size int64
}

// Build scans every root (files directly, directories recursively) and
// returns the content keyed by resolved absolute path, plus one
// diagnostic per considered path. Directories on the exclusion list
// are pruned without leaving a diagnostic. The userExcluded set is
// applied last: files it names lose their content and have their
// status rewritten, but automatic skip and error reasons stand.
func (a *Assembler) Build(
	ctx context.Context,
	roots conversation.PathSet,
	userExcluded conversation.PathSet,
) (map[string]string, []Diagnostic, error) {
	contents := map[string]string{}
	var diagnostics []Diagnostic
	var candidates []candidate

	for _, root := range roots.Sorted() {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		abs, err := filepath.Abs(root)
		if err != nil {
			diagnostics = append(diagnostics, Diagnostic{Path: root, Status: StatusError, Detail: err.Error()})
			continue
		}

		info, err := os.Stat(abs)
		switch {
		case err != nil:
			diagnostics = append(diagnostics, Diagnostic{
				Path:   abs,
				Status: StatusError,
				Detail: "path does not exist or is not a file or directory",
			})
		case info.IsDir():
			walked, skips, err := a.walk(ctx, abs)
			if err != nil {
				return nil, nil, err
			}
			candidates = append(candidates, walked...)
			diagnostics = append(diagnostics, skips...)
		default:
			v := a.filter.Evaluate(abs)
			if v.Allowed {
				candidates = append(candidates, candidate{path: abs, size: v.Size})
			} else {
				diagnostics = append(diagnostics, Diagnostic{Path: abs, Status: StatusSkipped, Detail: v.Reason})
			}
		}
	}

	read, err := a.readAll(ctx, candidates)
	if err != nil {
		return nil, nil, err
	}
	for i, c := range candidates {
		r := read[i]
		if r.err != nil {
			diagnostics = append(diagnostics, Diagnostic{Path: c.path, Status: StatusError, Detail: r.err.Error()})
			continue
		}
		contents[c.path] = r.content
		detail := fmt.Sprintf("%.1f KB", float64(c.size)/1024)
		if r.note != "" {
			detail = fmt.Sprintf("%s (%s)", detail, r.note)
		}
		diagnostics = append(diagnostics, Diagnostic{Path: c.path, Status: StatusIncluded, Detail: detail})
	}

	for i, d := range diagnostics {
		if !userExcluded.Contains(d.Path) {
			continue
		}
		delete(contents, d.Path)
		if d.Status == StatusIncluded {
			diagnostics[i].Status = StatusExcludedByUser
			diagnostics[i].Detail = ""
		}
	}

	sort.Slice(diagnostics, func(i, j int) bool {
		return diagnostics[i].Path < diagnostics[j].Path
	})

	log.Debug().
		Int("roots", roots.Len()).
		Int("included", len(contents)).
		Int("considered", len(diagnostics)).
		Msg("assembled file context")
	return contents, diagnostics, nil
}

// walk collects allowed files under dir, recording a skip diagnostic
// for every rejected file and silently pruning excluded directories.
func (a *Assembler) walk(ctx context.Context, dir string) ([]candidate, []Diagnostic, error) {
	var candidates []candidate
	var diagnostics []Diagnostic

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			diagnostics = append(diagnostics, Diagnostic{Path: path, Status: StatusError, Detail: err.Error()})
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != dir && a.filter.ExcludesDir(d.Name()) {
				return fs.SkipDir
			}
			return nil
		}

		v := a.filter.Evaluate(path)
		if v.Allowed {
			candidates = append(candidates, candidate{path: path, size: v.Size})
		} else {
			diagnostics = append(diagnostics, Diagnostic{Path: path, Status: StatusSkipped, Detail: v.Reason})
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return candidates, diagnostics, nil
}

type readResult struct {
	content string
	note    string
	err     error
}

func (a *Assembler) readAll(ctx context.Context, candidates []candidate) ([]readResult, error) {
	results := make([]readResult, len(candidates))

	g := errgroup.Group{}
	g.SetLimit(maxConcurrentReads)
	for i, c := range candidates {
		i, c := i, c
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			content, note, err := readFileWithFallback(c.path)
			results[i] = readResult{content: content, note: note, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// readFileWithFallback reads UTF-8 text, dropping to latin-1 when the
// bytes do not decode. latin-1 maps every byte to a rune, so only an
// I/O failure yields an error.
func readFileWithFallback(path string) (string, string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	if utf8.Valid(b) {
		return string(b), "", nil
	}

	log.Warn().Str("path", path).Msg("utf-8 decode failed, falling back to latin-1")
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes), "read with fallback encoding (latin-1)", nil
}
