package terminal

import (
	"io"
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// installResizeListener starts the goroutine that republishes Size on
// SIGWINCH and, on the SIGCONT that follows Suspend's SIGTSTP, re-enters
// raw mode via onResume, per spec.md §4.A: "on a suspend key, stop the TUI, send the process-group suspend
// signal; on resume, restart and fully invalidate the renderer".
func (d *Driver) installResizeListener() {
	d.suspendSig = make(chan os.Signal, 4)
	signal.Notify(d.suspendSig, unix.SIGWINCH, unix.SIGCONT)

	go func() {
		for sig := range d.suspendSig {
			switch sig {
			case unix.SIGWINCH:
				d.publishResize()
			case unix.SIGCONT:
				d.onResume()
			}
		}
	}()
}

func (d *Driver) stopSignalListener() {
	if d.suspendSig == nil {
		return
	}
	signal.Stop(d.suspendSig)
	close(d.suspendSig)
}

func (d *Driver) publishResize() {
	cols, rows, err := term.GetSize(d.fd)
	if err != nil {
		return
	}
	d.mu.Lock()
	d.size.Columns = cols
	d.size.Rows = rows
	size := d.size
	d.mu.Unlock()

	select {
	case d.resizeCh <- size:
	default:
		// Drain the stale pending resize and replace it with the latest —
		// a renderer only ever needs the most recent dimensions.
		select {
		case <-d.resizeCh:
		default:
		}
		select {
		case d.resizeCh <- size:
		default:
		}
	}
}

// onResume re-enters raw mode and reasserts the modes toggled at startup
// after a SIGCONT following Suspend; the caller is responsible for telling
// its renderer to invalidate and redraw the full screen.
func (d *Driver) onResume() {
	term.MakeRaw(d.fd)
	io.WriteString(d.out, seqBracketedPasteOn)
	if d.kittyOK {
		io.WriteString(d.out, seqKittyKeyboardEnable)
	}
	d.publishResize()
}

// Suspend restores the terminal to cooked mode, sends SIGTSTP to the whole
// process group so the shell job-control machinery takes over, and blocks
// the calling goroutine until delivery completes. The driver resumes raw
// mode automatically on the subsequent SIGCONT (see onResume); callers
// should treat the next value off Resize() as a full-redraw signal.
func (d *Driver) Suspend() error {
	if err := term.Restore(d.fd, d.oldState); err != nil {
		return err
	}
	pgid, err := unix.Getpgid(0)
	if err != nil {
		pgid = 0
	}
	return unix.Kill(-pgid, unix.SIGTSTP)
}
