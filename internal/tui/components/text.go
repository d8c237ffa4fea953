// Package components implements spec.md §4.D's Component Library: Text,
// Markdown, SelectList, Editor, and Loader, each satisfying
// internal/tui/render.Component.
package components

import "strings"

// Text is the wrap-free leaf component: the caller guarantees its content
// already fits the width it will be rendered at.
type Text struct {
	Value             string
	PadLeft, PadRight int
}

func NewText(value string) *Text { return &Text{Value: value} }

func (t *Text) Render(width int) []string {
	lines := strings.Split(t.Value, "\n")
	if t.PadLeft == 0 && t.PadRight == 0 {
		return lines
	}
	left := strings.Repeat(" ", t.PadLeft)
	right := strings.Repeat(" ", t.PadRight)
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = left + l + right
	}
	return out
}

func (t *Text) Invalidate() {}
