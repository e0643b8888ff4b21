// Package doc embeds the built-in documentation topics served by the
// docs command.
package doc

import (
	"embed"
	"io/fs"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

//go:embed topics/*.md
var docFS embed.FS

// Topic is one embedded documentation page. The slug is the file name
// without extension, the title its first heading.
type Topic struct {
	Slug  string
	Title string
	Body  string
}

func Topics() ([]Topic, error) {
	entries, err := fs.ReadDir(docFS, "topics")
	if err != nil {
		return nil, errors.Wrap(err, "could not read embedded topics")
	}

	var topics []Topic
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		topic, err := load(entry.Name())
		if err != nil {
			return nil, err
		}
		topics = append(topics, topic)
	}
	sort.Slice(topics, func(i, j int) bool { return topics[i].Slug < topics[j].Slug })
	return topics, nil
}

func Get(slug string) (Topic, error) {
	topic, err := load(slug + ".md")
	if err != nil {
		return Topic{}, errors.Errorf("no documentation topic %s", slug)
	}
	return topic, nil
}

func load(name string) (Topic, error) {
	data, err := docFS.ReadFile("topics/" + name)
	if err != nil {
		return Topic{}, errors.Wrap(err, "could not read embedded topic")
	}

	body := string(data)
	title := ""
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "# ") {
			title = strings.TrimPrefix(line, "# ")
			break
		}
	}

	return Topic{
		Slug:  strings.TrimSuffix(name, ".md"),
		Title: title,
		Body:  body,
	}, nil
}
