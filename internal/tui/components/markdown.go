package components

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// Theme supplies the ANSI style glamour should render markdown with; an
// empty GlamourStyle falls back to glamour's auto-detected style.
type Theme struct {
	GlamourStyle string // "dark", "light", "notty", "" for auto
}

// Markdown renders markdown source to ANSI respecting an injected theme
// (spec.md §4.D). Rendering is cached per width and redone only after
// SetSource or Invalidate (changing Theme alone does not), since glamour's renderer construction is not
// cheap enough to run on every render pass.
type Markdown struct {
	Source string
	Theme  Theme

	cachedWidth int
	cachedLines []string
	dirty       bool
}

func NewMarkdown(source string, theme Theme) *Markdown {
	return &Markdown{Source: source, Theme: theme, dirty: true}
}

func (m *Markdown) SetSource(source string) {
	m.Source = source
	m.dirty = true
}

func (m *Markdown) Render(width int) []string {
	if !m.dirty && width == m.cachedWidth {
		return m.cachedLines
	}

	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	switch m.Theme.GlamourStyle {
	case "":
		opts = append(opts, glamour.WithAutoStyle())
	default:
		opts = append(opts, glamour.WithStandardStyle(m.Theme.GlamourStyle))
	}

	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		m.cachedLines = strings.Split(m.Source, "\n")
	} else if rendered, err := r.Render(m.Source); err == nil {
		m.cachedLines = strings.Split(strings.TrimRight(rendered, "\n"), "\n")
	} else {
		m.cachedLines = strings.Split(m.Source, "\n")
	}

	m.cachedWidth = width
	m.dirty = false
	return m.cachedLines
}

func (m *Markdown) Invalidate() { m.dirty = true }
