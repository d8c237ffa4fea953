// Package render implements spec.md §4.B's Differential Renderer: a tree of
// Components rendered to lines, diffed against the previously committed
// frame, and patched onto the terminal with the minimum number of cleared
// and rewritten lines, wrapped in synchronized-output markers.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/x/ansi"

	"github.com/forgecode/forge/internal/logging"
	"github.com/forgecode/forge/internal/terminal"
)

// Component is a node in the TUI tree: it renders itself to a fixed
// number of columns and can be told its cached output is stale.
type Component interface {
	Render(width int) []string
	Invalidate()
}

// Container composites child Components by stacking their rendered lines
// in order; it has no layout opinion of its own beyond vertical stacking.
type Container struct {
	Children []Component
}

func (c *Container) Render(width int) []string {
	var out []string
	for _, child := range c.Children {
		out = append(out, child.Render(width)...)
	}
	return out
}

func (c *Container) Invalidate() {
	for _, child := range c.Children {
		child.Invalidate()
	}
}

// Frame is one committed render pass.
type Frame struct {
	Lines   []string
	Columns int
}

// WidthViolationError is the fatal bug spec.md §4.B step 6 describes: a
// line wider than the terminal's column count.
type WidthViolationError struct {
	Line    int
	Width   int
	Columns int
}

func (e *WidthViolationError) Error() string {
	return fmt.Sprintf("render: line %d has visible width %d > %d columns", e.Line, e.Width, e.Columns)
}

// Renderer owns the previously committed Frame and the cursor's position
// relative to it, so it can compute and emit a minimal differential patch
// on every pass.
type Renderer struct {
	out io.Writer

	previous  Frame
	cursorRow int // row (0-indexed into previous.Lines) the cursor currently sits on
	rows      int // viewport height in rows

	overlays *OverlayStack
}

// New returns a Renderer with an empty previous frame, forcing a full
// first paint on the next pass.
func New(out io.Writer) *Renderer {
	return &Renderer{out: out, overlays: newOverlayStack()}
}

// Overlays exposes the renderer's overlay stack (spec.md §4.B "Overlay
// stack") for components that show/hide modal UI.
func (r *Renderer) Overlays() *OverlayStack { return r.overlays }

// Pass runs one render pass per spec.md §4.B steps 1-6: render the tree,
// composite overlays, diff against the previous frame, patch the
// terminal, and enforce the width invariant.
func (r *Renderer) Pass(root Component, columns, rows int) error {
	r.rows = rows

	newLines := root.Render(columns)
	finalLines := r.overlays.Composite(newLines, columns)

	for i, line := range finalLines {
		if w := ansi.StringWidth(line); w > columns {
			logging.Default().Error("render: width invariant violated, dumping frame",
				"line", i, "width", w, "columns", columns)
			r.dumpFrame(finalLines)
			return &WidthViolationError{Line: i, Width: w, Columns: columns}
		}
	}

	widthChanged := r.previous.Columns != 0 && r.previous.Columns != columns
	full := len(r.previous.Lines) == 0 || widthChanged

	var k int
	if !full {
		k = firstDiff(r.previous.Lines, finalLines)
		if k == len(r.previous.Lines) && k == len(finalLines) {
			// Identical frame; nothing to patch.
			return nil
		}
		if k < r.cursorRow-rows+1 {
			full = true
		}
	}

	var b strings.Builder
	b.WriteString(terminal.SeqSynchronizedOutputOn)

	if full {
		b.WriteString(seqClearScrollback)
		b.WriteString(seqCursorHome)
		r.writePatch(&b, finalLines, 0, 0)
	} else {
		r.writePatch(&b, finalLines, k, len(r.previous.Lines))
	}

	b.WriteString(terminal.SeqSynchronizedOutputOff)

	if _, err := io.WriteString(r.out, b.String()); err != nil {
		return fmt.Errorf("render: write patch: %w", err)
	}

	r.previous = Frame{Lines: finalLines, Columns: columns}
	r.cursorRow = len(finalLines) - 1
	return nil
}

// writePatch emits step 4's differential patch: move to line k, clear and
// rewrite every line from k through the end of newLines, then clear any
// extra trailing lines the previous frame had.
func (r *Renderer) writePatch(b *strings.Builder, newLines []string, k, prevLen int) {
	fmt.Fprintf(b, seqCursorToLine, k+1)

	for i := k; i < len(newLines); i++ {
		b.WriteString(terminal.SeqEraseLine)
		b.WriteString(newLines[i])
		if i < len(newLines)-1 {
			b.WriteString("\r\n")
		}
	}

	if extra := prevLen - len(newLines); extra > 0 {
		for i := 0; i < extra; i++ {
			b.WriteString("\r\n")
			b.WriteString(terminal.SeqEraseLine)
		}
		fmt.Fprintf(b, seqCursorUp, extra)
	}
}

func (r *Renderer) dumpFrame(lines []string) {
	logger := logging.Default()
	for i, line := range lines {
		logger.Error("render: frame dump", "line", i, "content", line)
	}
}

// firstDiff returns the first index where a and b differ, or the length of
// the shorter slice if one is a prefix of the other.
func firstDiff(a, b []string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}
