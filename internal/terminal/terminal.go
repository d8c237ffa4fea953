// Package terminal implements spec.md §4.A's Terminal Driver: it acquires
// the tty, places stdin in raw mode, probes terminal capabilities (Kitty
// keyboard protocol, cell pixel size), forwards raw input bytes, publishes
// resize events, and restores terminal state on any exit path.
package terminal

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/muesli/cancelreader"
	"golang.org/x/term"
)

// Size is a terminal's dimensions in character cells.
type Size struct {
	Columns int
	Rows    int

	// CellPixelWidth/Height are populated only if a "ESC[16t" probe
	// succeeded; zero means "unknown, render text-only".
	CellPixelWidth  int
	CellPixelHeight int
}

// Driver owns the raw tty: it is the sole reader of stdin and writer of
// the escape sequences that toggle terminal modes.
type Driver struct {
	in  io.Reader
	out io.Writer
	fd  int

	mu         sync.Mutex
	oldState   *term.State
	reader     cancelreader.CancelReader
	size       Size
	kittyOK    bool
	resizeCh   chan Size
	inputCh    chan []byte
	rawReads   chan probeRead
	suspendSig chan os.Signal

	closeOnce sync.Once
}

// Open runs spec.md §4.A's startup sequence against the given tty (os.Stdin
// for production use; a pipe/file in tests) and returns a Driver ready to
// publish input and resize events. probeImages controls whether the cell
// pixel size probe (step 6) runs.
func Open(in *os.File, out io.Writer, probeImages bool) (*Driver, error) {
	fd := int(in.Fd())

	oldState, err := term.GetState(fd)
	if err != nil {
		return nil, fmt.Errorf("terminal: get state: %w", err)
	}
	if _, err := term.MakeRaw(fd); err != nil {
		return nil, fmt.Errorf("terminal: make raw: %w", err)
	}

	cr, err := cancelreader.NewReader(in)
	if err != nil {
		term.Restore(fd, oldState)
		return nil, fmt.Errorf("terminal: cancelreader: %w", err)
	}

	d := &Driver{
		in:       cr,
		out:      out,
		fd:       fd,
		oldState: oldState,
		reader:   cr,
		resizeCh: make(chan Size, 1),
		inputCh:  make(chan []byte, 64),
		rawReads: make(chan probeRead, 8),
	}
	go d.readLoop()

	cols, rows, err := term.GetSize(fd)
	if err == nil {
		d.size = Size{Columns: cols, Rows: rows}
	} else {
		d.size = Size{Columns: 80, Rows: 24}
	}

	io.WriteString(out, seqBracketedPasteOn)
	d.installResizeListener()

	d.kittyOK = d.probeKittyKeyboard()
	if probeImages {
		d.probeCellPixelSize()
	}

	go d.pump()

	return d, nil
}

// probeRead is one chunk read off the tty, fed by the single persistent
// reader goroutine that both capability probes and the steady-state pump
// consume from — the fd has exactly one reader for the Driver's lifetime.
type probeRead struct {
	data []byte
	err  error
}

// readLoop is the sole goroutine that ever calls d.in.Read. Both the
// startup probes and pump() drain d.rawReads instead of reading directly,
// so there is never a second concurrent reader on the same fd.
func (d *Driver) readLoop() {
	for {
		b := make([]byte, 4096)
		n, err := d.in.Read(b)
		d.rawReads <- probeRead{data: b[:n], err: err}
		if err != nil {
			return
		}
	}
}

// Input returns the channel of raw input byte chunks, already stripped of
// any bytes consumed by capability probes.
func (d *Driver) Input() <-chan []byte { return d.inputCh }

// Resize returns the channel of published resize events.
func (d *Driver) Resize() <-chan Size { return d.resizeCh }

// Size returns the last known terminal dimensions.
func (d *Driver) Size() Size {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.size
}

// KittyKeyboardEnabled reports whether the startup probe detected and
// enabled the Kitty keyboard protocol.
func (d *Driver) KittyKeyboardEnabled() bool { return d.kittyOK }

// pump forwards raw reads from readLoop to Input() until the reader is
// cancelled or returns an error.
func (d *Driver) pump() {
	for r := range d.rawReads {
		if len(r.data) > 0 {
			select {
			case d.inputCh <- r.data:
			default:
				// Drop if the consumer is behind rather than block the
				// read loop indefinitely; a differential renderer only
				// cares about the latest keystrokes during a backlog.
			}
		}
		if r.err != nil {
			close(d.inputCh)
			return
		}
	}
}

// Close runs spec.md §4.A's shutdown sequence (reverse the startup pushes)
// and restores the terminal state saved before raw mode was entered. Safe to call more than once and from a deferred
// panic-recovery path.
func (d *Driver) Close() error {
	var err error
	d.closeOnce.Do(func() {
		d.stopSignalListener()
		d.reader.Cancel()

		if d.kittyOK {
			io.WriteString(d.out, seqKittyKeyboardDisable)
		}
		io.WriteString(d.out, seqBracketedPasteOff)
		io.WriteString(d.out, seqShowCursor)

		err = term.Restore(d.fd, d.oldState)
	})
	return err
}

// probeKittyKeyboard implements spec.md §4.A step 5: query support, wait up
// to 100ms for a reply shaped "ESC[?<flags>u", and enable
// disambiguate+report-events mode if one arrives.
func (d *Driver) probeKittyKeyboard() bool {
	io.WriteString(d.out, seqKittyKeyboardQuery)

	reply, ok := d.readProbeReply(100*time.Millisecond, func(b []byte) (done bool, matched int) {
		return parseKittyReply(b)
	})
	if !ok {
		return false
	}
	_ = reply
	io.WriteString(d.out, seqKittyKeyboardEnable)
	return true
}

// probeCellPixelSize implements spec.md §4.A step 6: query cell pixel
// dimensions via "ESC[16t" and record any "ESC[6;h;wt" reply.
func (d *Driver) probeCellPixelSize() {
	io.WriteString(d.out, seqCellPixelQuery)

	_, ok := d.readProbeReply(100*time.Millisecond, func(b []byte) (done bool, matched int) {
		h, w, n := parseCellPixelReply(b)
		if n == 0 {
			return false, 0
		}
		d.mu.Lock()
		d.size.CellPixelHeight = h
		d.size.CellPixelWidth = w
		d.mu.Unlock()
		return true, n
	})
	_ = ok
}

// readProbeReply buffers raw bytes for up to timeout looking for a
// terminal-reply match via matchFn; any unmatched bytes are forwarded to
// the normal input channel per spec.md §4.A step 5's "forward buffered
// bytes not part of the reply" requirement. It drains d.rawReads directly
// — pump() is not started until after every probe finishes, so there is
// no contention over who consumes a given chunk.
func (d *Driver) readProbeReply(timeout time.Duration, matchFn func([]byte) (bool, int)) ([]byte, bool) {
	var buf bytes.Buffer
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case r := <-d.rawReads:
			if len(r.data) > 0 {
				buf.Write(r.data)
				if matched, consumed := matchFn(buf.Bytes()); matched {
					d.forwardLeftover(buf.Bytes()[consumed:])
					return buf.Bytes()[:consumed], true
				}
			}
			if r.err != nil {
				d.forwardLeftover(buf.Bytes())
				return nil, false
			}
		case <-timer.C:
			d.forwardLeftover(buf.Bytes())
			return nil, false
		}
	}
}

func (d *Driver) forwardLeftover(b []byte) {
	if len(b) == 0 {
		return
	}
	leftover := make([]byte, len(b))
	copy(leftover, b)
	select {
	case d.inputCh <- leftover:
	default:
	}
}
