package terminal

import (
	"bytes"
	"io"
	"testing"
	"time"
)

// newTestDriver builds a Driver with just enough wiring to exercise
// readProbeReply/pump without opening a real tty (Open needs one, since
// term.MakeRaw/GetState require an actual terminal device).
func newTestDriver(out *bytes.Buffer) *Driver {
	return &Driver{
		out:      out,
		resizeCh: make(chan Size, 1),
		inputCh:  make(chan []byte, 64),
		rawReads: make(chan probeRead, 8),
	}
}

func TestReadProbeReplyMatchesAndReturns(t *testing.T) {
	d := newTestDriver(&bytes.Buffer{})
	d.rawReads <- probeRead{data: []byte("\x1b[?1u")}

	reply, ok := d.readProbeReply(time.Second, func(b []byte) (bool, int) {
		return parseKittyReply(b)
	})
	if !ok {
		t.Fatal("expected match")
	}
	if string(reply) != "\x1b[?1u" {
		t.Fatalf("reply = %q", reply)
	}
}

func TestReadProbeReplyTimesOutAndForwardsBytes(t *testing.T) {
	d := newTestDriver(&bytes.Buffer{})
	d.rawReads <- probeRead{data: []byte("garbage")}

	_, ok := d.readProbeReply(20*time.Millisecond, func(b []byte) (bool, int) {
		return false, 0
	})
	if ok {
		t.Fatal("expected no match on timeout")
	}

	select {
	case got := <-d.inputCh:
		if string(got) != "garbage" {
			t.Fatalf("forwarded = %q", got)
		}
	default:
		t.Fatal("expected unmatched bytes forwarded to Input()")
	}
}

func TestReadProbeReplyForwardsLeftoverAfterMatch(t *testing.T) {
	d := newTestDriver(&bytes.Buffer{})
	d.rawReads <- probeRead{data: []byte("\x1b[?1uleftover")}

	_, ok := d.readProbeReply(time.Second, func(b []byte) (bool, int) {
		return parseKittyReply(b)
	})
	if !ok {
		t.Fatal("expected match")
	}

	select {
	case got := <-d.inputCh:
		if string(got) != "leftover" {
			t.Fatalf("forwarded = %q, want %q", got, "leftover")
		}
	default:
		t.Fatal("expected leftover bytes forwarded to Input()")
	}
}

func TestProbeCellPixelSizeRecordsDimensions(t *testing.T) {
	out := &bytes.Buffer{}
	d := newTestDriver(out)
	d.rawReads <- probeRead{data: []byte("\x1b[6;22;11t")}

	d.probeCellPixelSize()

	size := d.Size()
	if size.CellPixelHeight != 22 || size.CellPixelWidth != 11 {
		t.Fatalf("got %+v, want height=22 width=11", size)
	}
	if out.String() != seqCellPixelQuery {
		t.Fatalf("wrote %q, want query sequence", out.String())
	}
}

func TestProbeKittyKeyboardEnablesOnReply(t *testing.T) {
	out := &bytes.Buffer{}
	d := newTestDriver(out)
	d.rawReads <- probeRead{data: []byte("\x1b[?1u")}

	if !d.probeKittyKeyboard() {
		t.Fatal("expected kitty keyboard to be detected")
	}
	if !bytes.Contains(out.Bytes(), []byte(seqKittyKeyboardEnable)) {
		t.Fatalf("expected enable sequence written, got %q", out.String())
	}
}

func TestProbeKittyKeyboardFalseOnTimeout(t *testing.T) {
	out := &bytes.Buffer{}
	d := newTestDriver(out)
	// No reply queued — probe must time out (100ms) rather than block.
	if d.probeKittyKeyboard() {
		t.Fatal("expected no kitty keyboard support detected")
	}
}

func TestPumpForwardsAndClosesOnError(t *testing.T) {
	d := newTestDriver(&bytes.Buffer{})
	go d.pump()

	d.rawReads <- probeRead{data: []byte("hello")}
	if got := <-d.inputCh; string(got) != "hello" {
		t.Fatalf("got %q", got)
	}

	d.rawReads <- probeRead{err: io.EOF}
	close(d.rawReads)

	if _, ok := <-d.inputCh; ok {
		t.Fatal("expected Input() channel closed after read error")
	}
}
