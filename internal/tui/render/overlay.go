package render

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// imageMarker prefixes a line that embeds a terminal image protocol
// sequence; such lines are never spliced with an overlay (spec.md §4.B).
const imageMarker = "\x1bforge:image:"

// sealSequence resets SGR attributes and clears any open OSC-8 hyperlink,
// so overlay/base segment boundaries never bleed style across each other.
const sealSequence = "\x1b[0m\x1b]8;;\x1b\\"

// Overlay is one entry in the overlay stack: a Component positioned at a
// fixed row/column, optionally constrained to a width.
type Overlay struct {
	Component  Component
	Row, Col   int
	Width      int // 0 means unconstrained: extend to the end of the line
	savedFocus Component
}

// OverlayStack is spec.md §4.B's "ordered list of {component, row?, col?,
// width?, savedFocus}".
type OverlayStack struct {
	stack      []*Overlay
	focus      Component
	hideCursor bool
}

func newOverlayStack() *OverlayStack {
	return &OverlayStack{}
}

// Show pushes an overlay, moves keyboard focus to it, hides the cursor,
// and requests a render.
func (s *OverlayStack) Show(o *Overlay, requestRender func()) {
	o.savedFocus = s.focus
	s.focus = o.Component
	s.hideCursor = true
	s.stack = append(s.stack, o)
	if requestRender != nil {
		requestRender()
	}
}

// Hide pops the topmost overlay and restores the focus it displaced.
func (s *OverlayStack) Hide(requestRender func()) {
	if len(s.stack) == 0 {
		return
	}
	top := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	s.focus = top.savedFocus
	if len(s.stack) == 0 {
		s.hideCursor = false
	}
	if requestRender != nil {
		requestRender()
	}
}

// Focus returns the Component that should currently receive key events:
// the topmost overlay if any is shown, else whatever held focus before the
// first overlay was shown (nil unless one was set).
func (s *OverlayStack) Focus() Component { return s.focus }

// HideCursor reports whether the cursor should be hidden because an
// overlay is active.
func (s *OverlayStack) HideCursor() bool { return s.hideCursor }

// Composite splices every active overlay into base at its position, per
// spec.md §4.B: extract the prefix up to Col, slice the overlay to its
// width, extract the suffix to fill the remaining columns, and reseal
// ANSI state at every boundary. Lines carrying an image marker are left
// untouched.
func (s *OverlayStack) Composite(base []string, columns int) []string {
	if len(s.stack) == 0 {
		return base
	}

	out := make([]string, len(base))
	copy(out, base)

	for _, o := range s.stack {
		overlayLines := o.Component.Render(overlayWidth(o, columns))
		for i, line := range overlayLines {
			row := o.Row + i
			if row < 0 || row >= len(out) {
				continue
			}
			if strings.HasPrefix(out[row], imageMarker) {
				continue
			}
			out[row] = spliceLine(out[row], line, o.Col, overlayWidth(o, columns), columns)
		}
	}
	return out
}

func overlayWidth(o *Overlay, columns int) int {
	if o.Width > 0 {
		return o.Width
	}
	return columns - o.Col
}

// spliceLine implements the prefix/overlay/suffix composition.
func spliceLine(base, overlay string, col, width, columns int) string {
	prefix := ansi.Cut(base, 0, col)
	overlaySlice := ansi.Cut(overlay, 0, width)

	suffixStart := col + width
	var suffix string
	if suffixStart < columns {
		suffix = ansi.Cut(base, suffixStart, columns)
	}

	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(sealSequence)
	b.WriteString(overlaySlice)
	b.WriteString(sealSequence)
	b.WriteString(suffix)
	return b.String()
}
