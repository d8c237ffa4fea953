package components

import (
	"time"

	"github.com/charmbracelet/lipgloss"
)

// loaderFrames mirrors the teacher's knight-rider-style scanning
// animation, generalized here to the standard dot spinner so it carries
// no hardcoded message and can be driven by the renderer's own clock
// instead of its own goroutine writing straight to stderr.
var loaderFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

// LoaderFPS is the fixed redraw schedule spec.md §4.D calls for.
const LoaderFPS = 100 * time.Millisecond

// Loader is an animated spinner with a caller-supplied label. Unlike the
// teacher's Spinner (its own goroutine ticking and writing to stderr
// directly), this Loader is a plain Component: the TUI's own render loop
// calls Render on a fixed schedule and the spinner advances based on
// elapsed wall-clock time, so it participates in the same differential
// render pass as everything else instead of racing it.
type Loader struct {
	Label string
	start time.Time
	style lipgloss.Style
}

func NewLoader(label string) *Loader {
	return &Loader{Label: label, start: time.Now(), style: lipgloss.NewStyle().Bold(true)}
}

func (l *Loader) Render(width int) []string {
	elapsed := time.Since(l.start)
	frame := loaderFrames[int(elapsed/LoaderFPS)%len(loaderFrames)]
	return []string{l.style.Render(frame) + " " + l.Label}
}

func (l *Loader) Invalidate() {}

// Reset restarts the animation clock, used when a Loader is reused for a
// new operation rather than constructed fresh.
func (l *Loader) Reset() { l.start = time.Now() }
