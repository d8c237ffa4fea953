package render

import (
	"strings"
	"testing"
)

type fixedComponent struct {
	lines []string
}

func (f *fixedComponent) Render(width int) []string { return f.lines }
func (f *fixedComponent) Invalidate()                {}

func TestPassFullPaintOnFirstRender(t *testing.T) {
	var out strings.Builder
	r := New(&out)

	err := r.Pass(&fixedComponent{lines: []string{"hello", "world"}}, 20, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "hello") || !strings.Contains(out.String(), "world") {
		t.Fatalf("expected both lines written, got %q", out.String())
	}
	if !strings.Contains(out.String(), terminalSyncOn) {
		t.Fatalf("expected synchronized-output markers, got %q", out.String())
	}
}

func TestPassDifferentialPatchOnlyTouchesChangedLine(t *testing.T) {
	var out strings.Builder
	r := New(&out)

	if err := r.Pass(&fixedComponent{lines: []string{"one", "two", "three"}}, 20, 10); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	out.Reset()

	if err := r.Pass(&fixedComponent{lines: []string{"one", "TWO", "three"}}, 20, 10); err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if strings.Contains(out.String(), "one") {
		t.Fatalf("expected unchanged leading line not rewritten, got %q", out.String())
	}
	if !strings.Contains(out.String(), "TWO") {
		t.Fatalf("expected changed line rewritten, got %q", out.String())
	}
}

func TestPassDetectsWidthViolation(t *testing.T) {
	var out strings.Builder
	r := New(&out)

	err := r.Pass(&fixedComponent{lines: []string{strings.Repeat("x", 30)}}, 10, 10)
	if err == nil {
		t.Fatal("expected width violation error")
	}
	if _, ok := err.(*WidthViolationError); !ok {
		t.Fatalf("expected *WidthViolationError, got %T", err)
	}
}

func TestPassIdenticalFrameWritesNothing(t *testing.T) {
	var out strings.Builder
	r := New(&out)

	if err := r.Pass(&fixedComponent{lines: []string{"same"}}, 20, 10); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	out.Reset()

	if err := r.Pass(&fixedComponent{lines: []string{"same"}}, 20, 10); err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("expected no output for identical frame, got %q", out.String())
	}
}

func TestContainerStacksChildren(t *testing.T) {
	c := &Container{Children: []Component{
		&fixedComponent{lines: []string{"a"}},
		&fixedComponent{lines: []string{"b", "c"}},
	}}
	got := c.Render(10)
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

const terminalSyncOn = "\x1b[?2026h"
