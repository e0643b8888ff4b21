package render

import (
	"github.com/charmbracelet/glamour"
	"github.com/pkg/errors"
)

// DefaultStyle is the glamour style used for terminal display.
const DefaultStyle = "dark"

// Styled renders markdown into ANSI-styled terminal output. An empty
// style selects DefaultStyle.
func Styled(markdown string, style string) (string, error) {
	if style == "" {
		style = DefaultStyle
	}
	out, err := glamour.Render(markdown, style)
	if err != nil {
		return "", errors.Wrap(err, "could not style markdown")
	}
	return out, nil
}
