// Package render turns stored conversations into markdown transcripts
// for export and terminal display.
package render

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/pkg/errors"

	"github.com/go-go-golems/grillo/pkg/conversation"
)

const transcriptTimeLayout = "2006-01-02 15:04:05"

const transcriptTemplate = `# {{ .Title }}

Started: {{ .StartedAt }}
Updated: {{ .UpdatedAt }}
{{- if .Instruction }}
Instruction: {{ .Instruction }}
{{- end }}
{{ range .Messages }}
---

**{{ .Role }}** ({{ .Time }}):

{{ .Content }}
{{- if .Meta }}

{{ .Meta | join "\n" }}
{{- end }}
{{ end -}}
`

var transcriptTmpl = template.Must(
	template.New("transcript").Funcs(sprig.FuncMap()).Parse(transcriptTemplate))

type transcriptView struct {
	Title       string
	StartedAt   string
	UpdatedAt   string
	Instruction string
	Messages    []messageView
}

type messageView struct {
	Role    string
	Time    string
	Content string
	Meta    []string
}

// Renderer turns a conversation into a markdown transcript.
type Renderer struct {
	// WithMetadata adds the system instruction to the header and a
	// quoted audit block (model used, context files) under each message
	// that carries one.
	WithMetadata bool
	// RenameRoles remaps role headings, e.g. assistant to the model's
	// display name.
	RenameRoles map[string]string
}

func (r *Renderer) Transcript(meta *conversation.Metadata, messages []*conversation.Message) (string, error) {
	data := transcriptView{
		Title:     meta.Title,
		StartedAt: meta.StartedAt.UTC().Format(transcriptTimeLayout),
		UpdatedAt: meta.LastUpdateAt.UTC().Format(transcriptTimeLayout),
	}
	if data.Title == "" {
		data.Title = conversation.PlaceholderTitle
	}
	if r.WithMetadata {
		data.Instruction = meta.SystemInstruction
	}

	for _, m := range messages {
		role := m.Role.Capitalized()
		if renamed, ok := r.RenameRoles[string(m.Role)]; ok {
			role = renamed
		}
		view := messageView{
			Role:    role,
			Time:    m.Time.UTC().Format(transcriptTimeLayout),
			Content: m.Content,
		}
		if r.WithMetadata {
			if m.ModelUsed != "" {
				view.Meta = append(view.Meta, "> model: "+m.ModelUsed)
			}
			if len(m.ContextFiles) > 0 {
				view.Meta = append(view.Meta, "> context: "+strings.Join(m.ContextFiles, ", "))
			}
		}
		data.Messages = append(data.Messages, view)
	}

	var buf bytes.Buffer
	if err := transcriptTmpl.Execute(&buf, data); err != nil {
		return "", errors.Wrap(err, "could not render transcript")
	}
	return buf.String(), nil
}
