package keys

import "testing"

func decodeAll(t *testing.T, input []byte) []Event {
	t.Helper()
	d := NewDecoder()
	return d.Feed(input)
}

func TestDecodePlainCharacter(t *testing.T) {
	events := decodeAll(t, []byte("a"))
	if len(events) != 1 || events[0].ID != "a" || events[0].Kind != KindPress {
		t.Fatalf("got %+v", events)
	}
}

func TestDecodeCtrlC(t *testing.T) {
	events := decodeAll(t, []byte{0x03})
	if len(events) != 1 || events[0].ID != "ctrl+c" {
		t.Fatalf("got %+v", events)
	}
}

func TestDecodeEnterAndTab(t *testing.T) {
	events := decodeAll(t, []byte{0x0d, 0x09})
	if len(events) != 2 || events[0].ID != "enter" || events[1].ID != "tab" {
		t.Fatalf("got %+v", events)
	}
}

func TestDecodeStandaloneEscape(t *testing.T) {
	events := decodeAll(t, []byte{0x1b})
	if len(events) != 1 || events[0].ID != "escape" {
		t.Fatalf("got %+v", events)
	}
}

func TestDecodeAltEnter(t *testing.T) {
	events := decodeAll(t, []byte{0x1b, 0x0d})
	if len(events) != 1 || events[0].ID != "alt+enter" {
		t.Fatalf("got %+v", events)
	}
}

func TestDecodeArrowUpLegacy(t *testing.T) {
	events := decodeAll(t, []byte("\x1b[A"))
	if len(events) != 1 || events[0].ID != "up" || events[0].Kind != KindPress {
		t.Fatalf("got %+v", events)
	}
}

func TestDecodeShiftCtrlArrowWithModifier(t *testing.T) {
	// modifier value 6 = 1 + shift(1) + ctrl(4)
	events := decodeAll(t, []byte("\x1b[1;6C"))
	if len(events) != 1 || events[0].ID != "shift+ctrl+right" {
		t.Fatalf("got %+v", events)
	}
}

func TestDecodeShiftTabIsCSIZ(t *testing.T) {
	events := decodeAll(t, []byte("\x1b[Z"))
	if len(events) != 1 || events[0].ID != "shift+tab" {
		t.Fatalf("got %+v", events)
	}
}

func TestDecodeKittyCSIuWithReleaseKind(t *testing.T) {
	// key code 99 ('c'), modifier 5 (1+ctrl), event kind 3 (release)
	events := decodeAll(t, []byte("\x1b[99;5:3u"))
	if len(events) != 1 {
		t.Fatalf("got %+v", events)
	}
	if events[0].ID != "ctrl+c" || events[0].Kind != KindRelease {
		t.Fatalf("got %+v", events[0])
	}
}

func TestDecodeTildeDelete(t *testing.T) {
	events := decodeAll(t, []byte("\x1b[3~"))
	if len(events) != 1 || events[0].ID != "delete" {
		t.Fatalf("got %+v", events)
	}
}

func TestDecoderBuffersIncompleteSequenceAcrossFeeds(t *testing.T) {
	d := NewDecoder()
	events := d.Feed([]byte("\x1b[1;6"))
	if len(events) != 0 {
		t.Fatalf("expected no events yet, got %+v", events)
	}
	events = d.Feed([]byte("C"))
	if len(events) != 1 || events[0].ID != "shift+ctrl+right" {
		t.Fatalf("got %+v", events)
	}
}

func TestSuppressReleasesDropsUnlessAllowed(t *testing.T) {
	events := []Event{{ID: "a", Kind: KindPress}, {ID: "b", Kind: KindRelease}}
	filtered := SuppressReleases(events, false)
	if len(filtered) != 1 || filtered[0].ID != "a" {
		t.Fatalf("got %+v", filtered)
	}
	filtered = SuppressReleases(events, true)
	if len(filtered) != 2 {
		t.Fatalf("got %+v", filtered)
	}
}

func TestMatchesAgainstListOfIds(t *testing.T) {
	ev := Event{ID: "ctrl+p"}
	if !Matches(ev, []string{"ctrl+o", "ctrl+p"}) {
		t.Fatal("expected match")
	}
	if Matches(ev, []string{"ctrl+o"}) {
		t.Fatal("expected no match")
	}
}

func TestReservedShortcutsCoverSpecList(t *testing.T) {
	for _, id := range []string{
		"ctrl+c", "ctrl+d", "ctrl+z", "ctrl+k", "ctrl+p", "ctrl+l",
		"ctrl+o", "ctrl+t", "ctrl+g", "shift+tab", "shift+ctrl+p",
		"alt+enter", "escape", "enter",
	} {
		if !Reserved[id] {
			t.Fatalf("expected %q to be reserved", id)
		}
	}
}
