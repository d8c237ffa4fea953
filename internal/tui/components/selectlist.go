package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/forgecode/forge/internal/tui/keys"
)

// SelectItem is one candidate in a SelectList.
type SelectItem struct {
	ID    string
	Label string
}

// SelectList is spec.md §4.D's fuzzy-filtered list: arrows move the
// cursor, Enter emits the chosen item, Escape cancels.
type SelectList struct {
	Items  []SelectItem
	Width  int
	Height int

	query     string
	filtered  []scoredItem
	cursor    int
	done      bool
	chosen    *SelectItem
	cancelled bool
}

type scoredItem struct {
	item  SelectItem
	score int
}

func NewSelectList(items []SelectItem, width, height int) *SelectList {
	l := &SelectList{Items: items, Width: width, Height: height}
	l.refilter()
	return l
}

// HandleKey advances the list's state in response to a decoded key event
// and reports whether it consumed the key.
func (l *SelectList) HandleKey(ev keys.Event) bool {
	if l.done {
		return false
	}
	switch ev.ID {
	case "up":
		if l.cursor > 0 {
			l.cursor--
		}
		return true
	case "down":
		if l.cursor < len(l.filtered)-1 {
			l.cursor++
		}
		return true
	case "enter":
		if l.cursor < len(l.filtered) {
			item := l.filtered[l.cursor].item
			l.chosen = &item
		}
		l.done = true
		return true
	case "escape":
		l.cancelled = true
		l.done = true
		return true
	case "backspace":
		if l.query != "" {
			l.query = l.query[:len(l.query)-1]
			l.refilter()
		}
		return true
	}
	if len(ev.ID) == 1 {
		l.query += ev.ID
		l.refilter()
		return true
	}
	return false
}

// Done reports whether the list has a final outcome (Chosen or Cancelled).
func (l *SelectList) Done() bool { return l.done }

// Chosen returns the selected item, or nil if the list hasn't resolved or
// was cancelled.
func (l *SelectList) Chosen() *SelectItem { return l.chosen }

func (l *SelectList) Cancelled() bool { return l.cancelled }

func (l *SelectList) refilter() {
	l.filtered = l.filtered[:0]
	for _, item := range l.Items {
		if score, ok := fuzzyScore(l.query, item.Label); ok {
			l.filtered = append(l.filtered, scoredItem{item: item, score: score})
		}
	}
	sortByScoreDesc(l.filtered)
	if l.cursor >= len(l.filtered) {
		l.cursor = max(len(l.filtered)-1, 0)
	}
}

// fuzzyScore is a simple subsequence scorer: every rune of query must
// appear in order within target; consecutive matches and matches nearer
// the start score higher, following the same intent as the teacher's
// tree_selector.go search filter but generalized from substring
// containment to subsequence matching.
func fuzzyScore(query, target string) (int, bool) {
	if query == "" {
		return 0, true
	}
	q := []rune(strings.ToLower(query))
	t := []rune(strings.ToLower(target))

	score := 0
	qi := 0
	consecutive := 0
	for ti := 0; ti < len(t) && qi < len(q); ti++ {
		if t[ti] == q[qi] {
			score += 10
			if consecutive > 0 {
				score += 5
			}
			if ti == 0 {
				score += 15
			}
			consecutive++
			qi++
		} else {
			consecutive = 0
		}
	}
	if qi < len(q) {
		return 0, false
	}
	return score, true
}

func sortByScoreDesc(items []scoredItem) {
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && items[j].score > items[j-1].score; j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}

func (l *SelectList) Render(width int) []string {
	style := lipgloss.NewStyle()
	cursorStyle := lipgloss.NewStyle().Bold(true)

	var lines []string
	if l.query != "" {
		lines = append(lines, style.Render("> "+l.query))
	}

	visible := len(l.filtered)
	if l.Height > 0 && visible > l.Height {
		visible = l.Height
	}
	start := 0
	if l.cursor >= visible {
		start = l.cursor - visible + 1
	}
	end := min(start+visible, len(l.filtered))

	for i := start; i < end; i++ {
		label := l.filtered[i].item.Label
		if i == l.cursor {
			lines = append(lines, cursorStyle.Render("> "+label))
		} else {
			lines = append(lines, style.Render("  "+label))
		}
	}
	return lines
}

func (l *SelectList) Invalidate() {}
