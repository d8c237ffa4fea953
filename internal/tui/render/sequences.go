package render

const (
	seqClearScrollback = "\x1b[3J\x1b[2J"
	seqCursorHome      = "\x1b[H"

	// seqCursorToLine and seqCursorUp take a 1-indexed line / a row count
	// via fmt.Fprintf.
	seqCursorToLine = "\x1b[%d;1H"
	seqCursorUp     = "\x1b[%dA"
)
