package terminal

import "testing"

func TestParseKittyReplyMatchesPrefix(t *testing.T) {
	matched, consumed := parseKittyReply([]byte("\x1b[?31u"))
	if !matched {
		t.Fatal("expected match")
	}
	if consumed != len("\x1b[?31u") {
		t.Fatalf("consumed = %d, want %d", consumed, len("\x1b[?31u"))
	}
}

func TestParseKittyReplyNoMatch(t *testing.T) {
	matched, consumed := parseKittyReply([]byte("hello"))
	if matched || consumed != 0 {
		t.Fatalf("expected no match, got matched=%v consumed=%d", matched, consumed)
	}
}

func TestParseKittyReplyLeavesTrailingBytes(t *testing.T) {
	matched, consumed := parseKittyReply([]byte("\x1b[?1uextra"))
	if !matched {
		t.Fatal("expected match")
	}
	if consumed != len("\x1b[?1u") {
		t.Fatalf("consumed = %d, want %d", consumed, len("\x1b[?1u"))
	}
}

func TestParseCellPixelReplyParsesDimensions(t *testing.T) {
	h, w, consumed := parseCellPixelReply([]byte("\x1b[6;20;10t"))
	if h != 20 || w != 10 {
		t.Fatalf("got h=%d w=%d, want h=20 w=10", h, w)
	}
	if consumed != len("\x1b[6;20;10t") {
		t.Fatalf("consumed = %d, want %d", consumed, len("\x1b[6;20;10t"))
	}
}

func TestParseCellPixelReplyNoMatch(t *testing.T) {
	h, w, consumed := parseCellPixelReply([]byte("not a reply"))
	if h != 0 || w != 0 || consumed != 0 {
		t.Fatalf("expected zero result, got h=%d w=%d consumed=%d", h, w, consumed)
	}
}
