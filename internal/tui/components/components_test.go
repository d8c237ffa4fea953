package components

import (
	"testing"

	"github.com/forgecode/forge/internal/tui/keys"
)

func TestTextRenderSplitsLines(t *testing.T) {
	txt := NewText("a\nb")
	got := txt.Render(10)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("got %v", got)
	}
}

func TestTextRenderAppliesPadding(t *testing.T) {
	txt := &Text{Value: "hi", PadLeft: 2, PadRight: 1}
	got := txt.Render(10)
	if got[0] != "  hi " {
		t.Fatalf("got %q", got[0])
	}
}

func TestMarkdownRenderCachesUntilInvalidated(t *testing.T) {
	md := NewMarkdown("# Title", Theme{})
	first := md.Render(40)
	if len(first) == 0 {
		t.Fatal("expected rendered lines")
	}

	// Mutating Source directly (bypassing SetSource) must not change the
	// next Render's output until the cache is explicitly invalidated.
	md.Source = "# Changed"
	stale := md.Render(40)
	if stale[0] != first[0] {
		t.Fatalf("expected cached render, got %q want %q", stale[0], first[0])
	}

	md.Invalidate()
	fresh := md.Render(40)
	if len(fresh) == 0 {
		t.Fatal("expected rendered lines after invalidate")
	}
}

func TestFuzzyScoreRequiresSubsequence(t *testing.T) {
	if _, ok := fuzzyScore("xyz", "hello"); ok {
		t.Fatal("expected no match")
	}
	if score, ok := fuzzyScore("hlo", "hello"); !ok || score <= 0 {
		t.Fatalf("expected subsequence match, got score=%d ok=%v", score, ok)
	}
}

func TestFuzzyScorePrefersEarlierAndConsecutiveMatches(t *testing.T) {
	early, _ := fuzzyScore("he", "hello")
	late, _ := fuzzyScore("he", "xxhello")
	if early <= late {
		t.Fatalf("expected earlier match to score higher: early=%d late=%d", early, late)
	}
}

func TestSelectListFiltersAndNavigates(t *testing.T) {
	items := []SelectItem{{ID: "1", Label: "apple"}, {ID: "2", Label: "banana"}, {ID: "3", Label: "apricot"}}
	l := NewSelectList(items, 20, 5)

	for _, r := range "ap" {
		l.HandleKey(keys.Event{ID: string(r)})
	}
	if len(l.filtered) != 2 {
		t.Fatalf("expected 2 matches for 'ap', got %d", len(l.filtered))
	}

	l.HandleKey(keys.Event{ID: "enter"})
	if !l.Done() {
		t.Fatal("expected list done after enter")
	}
	if l.Chosen() == nil {
		t.Fatal("expected a chosen item")
	}
}

func TestSelectListEscapeCancels(t *testing.T) {
	items := []SelectItem{{ID: "1", Label: "apple"}}
	l := NewSelectList(items, 20, 5)
	l.HandleKey(keys.Event{ID: "escape"})
	if !l.Done() || !l.Cancelled() {
		t.Fatal("expected cancelled")
	}
	if l.Chosen() != nil {
		t.Fatal("expected no chosen item on cancel")
	}
}

func TestLoaderRendersAFrame(t *testing.T) {
	l := NewLoader("loading")
	got := l.Render(20)
	if len(got) != 1 {
		t.Fatalf("got %v", got)
	}
}

func TestEditorInsertAndSubmit(t *testing.T) {
	e := NewEditor(40, nil, nil)
	for _, r := range "hello" {
		e.HandleKey(keys.Event{ID: string(r)})
	}
	if e.Value() != "hello" {
		t.Fatalf("got %q", e.Value())
	}

	text, ok := e.HandleKey(keys.Event{ID: "enter"})
	if !ok || text != "hello" {
		t.Fatalf("got text=%q ok=%v", text, ok)
	}
	if e.Value() != "" {
		t.Fatalf("expected buffer cleared after submit, got %q", e.Value())
	}
}

func TestEditorMultilineViaAltEnter(t *testing.T) {
	e := NewEditor(40, nil, nil)
	for _, r := range "one" {
		e.HandleKey(keys.Event{ID: string(r)})
	}
	e.HandleKey(keys.Event{ID: "alt+enter"})
	for _, r := range "two" {
		e.HandleKey(keys.Event{ID: string(r)})
	}
	if e.Value() != "one\ntwo" {
		t.Fatalf("got %q", e.Value())
	}
}

func TestEditorBackspaceJoinsLines(t *testing.T) {
	e := NewEditor(40, nil, nil)
	e.SetValue("one\ntwo")
	e.row, e.col = 1, 0
	e.HandleKey(keys.Event{ID: "backspace"})
	if e.Value() != "onetwo" {
		t.Fatalf("got %q", e.Value())
	}
}

func TestEditorWordMotionDeletesPriorWord(t *testing.T) {
	e := NewEditor(40, nil, nil)
	e.SetValue("hello world")
	e.row, e.col = 0, len("hello world")
	e.HandleKey(keys.Event{ID: "alt+backspace"})
	if e.Value() != "hello " {
		t.Fatalf("got %q", e.Value())
	}
}

func TestEditorHistoryNavigation(t *testing.T) {
	e := NewEditor(40, nil, nil)
	e.SetValue("first")
	e.HandleKey(keys.Event{ID: "enter"})
	e.SetValue("second")
	e.HandleKey(keys.Event{ID: "enter"})

	e.HandleKey(keys.Event{ID: "up"})
	if e.Value() != "second" {
		t.Fatalf("got %q", e.Value())
	}
	e.HandleKey(keys.Event{ID: "up"})
	if e.Value() != "first" {
		t.Fatalf("got %q", e.Value())
	}
	e.HandleKey(keys.Event{ID: "down"})
	if e.Value() != "second" {
		t.Fatalf("got %q", e.Value())
	}
}

type fakeAutocomplete struct {
	items []SelectItem
}

func (f *fakeAutocomplete) Suggest(trigger rune, query string) []SelectItem { return f.items }

func TestEditorSlashTriggersAutocompletePopup(t *testing.T) {
	ac := &fakeAutocomplete{items: []SelectItem{{ID: "help", Label: "/help"}}}
	e := NewEditor(40, ac, nil)
	e.HandleKey(keys.Event{ID: "/"})
	if e.popup == nil {
		t.Fatal("expected autocomplete popup to open")
	}
}
