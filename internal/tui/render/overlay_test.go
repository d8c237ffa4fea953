package render

import (
	"strings"
	"testing"
)

func TestOverlayStackShowSetsFocusAndHidesCursor(t *testing.T) {
	s := newOverlayStack()
	overlay := &fixedComponent{lines: []string{"modal"}}
	rendered := false

	s.Show(&Overlay{Component: overlay, Row: 0, Col: 0, Width: 10}, func() { rendered = true })

	if s.Focus() != overlay {
		t.Fatal("expected overlay to receive focus")
	}
	if !s.HideCursor() {
		t.Fatal("expected cursor hidden while overlay active")
	}
	if !rendered {
		t.Fatal("expected requestRender to be called")
	}
}

func TestOverlayStackHideRestoresFocus(t *testing.T) {
	s := newOverlayStack()
	base := &fixedComponent{lines: []string{"base"}}
	s.focus = base

	overlay := &fixedComponent{lines: []string{"modal"}}
	s.Show(&Overlay{Component: overlay, Row: 0, Col: 0, Width: 10}, nil)
	s.Hide(nil)

	if s.Focus() != base {
		t.Fatalf("expected focus restored to base, got %v", s.Focus())
	}
	if s.HideCursor() {
		t.Fatal("expected cursor visible once overlay stack empties")
	}
}

func TestCompositeSplicesOverlayIntoBaseLine(t *testing.T) {
	s := newOverlayStack()
	overlay := &fixedComponent{lines: []string{"XX"}}
	s.Show(&Overlay{Component: overlay, Row: 0, Col: 2, Width: 2}, nil)

	out := s.Composite([]string{"aaaaaa"}, 6)
	if !strings.Contains(out[0], "XX") {
		t.Fatalf("expected overlay spliced in, got %q", out[0])
	}
	if !strings.HasPrefix(out[0], "aa") {
		t.Fatalf("expected prefix preserved, got %q", out[0])
	}
}

func TestCompositeSkipsImageMarkerLines(t *testing.T) {
	s := newOverlayStack()
	overlay := &fixedComponent{lines: []string{"XX"}}
	s.Show(&Overlay{Component: overlay, Row: 0, Col: 0, Width: 2}, nil)

	base := []string{imageMarker + "some-image-payload"}
	out := s.Composite(base, 20)
	if out[0] != base[0] {
		t.Fatalf("expected image line untouched, got %q", out[0])
	}
}

func TestCompositeNoOverlaysReturnsBaseUnchanged(t *testing.T) {
	s := newOverlayStack()
	base := []string{"a", "b"}
	out := s.Composite(base, 10)
	if len(out) != 2 || out[0] != "a" || out[1] != "b" {
		t.Fatalf("expected unchanged base, got %v", out)
	}
}
