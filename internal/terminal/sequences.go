package terminal

import (
	"regexp"
	"strconv"
)

// Escape sequences per spec.md §4.A's exact startup/shutdown steps.
const (
	seqBracketedPasteOn  = "\x1b[?2004h"
	seqBracketedPasteOff = "\x1b[?2004l"
	seqShowCursor = "\x1b[?25h"
	seqHideCursor = "\x1b[?25l"

	seqKittyKeyboardQuery   = "\x1b[?u"
	seqKittyKeyboardEnable  = "\x1b[>3u" // disambiguate + report press/repeat/release
	seqKittyKeyboardDisable = "\x1b[<u"

	seqCellPixelQuery = "\x1b[16t"

	// SeqSynchronizedOutputOn/Off wrap a differential render pass so
	// terminals honoring it never show a partial frame (spec.md §4.B step 5).
	SeqSynchronizedOutputOn  = "\x1b[?2026h"
	SeqSynchronizedOutputOff = "\x1b[?2026l"

	// SeqEraseLine clears the current line (spec.md §4.B step 4).
	SeqEraseLine = "\x1b[2K"
)

var kittyReplyPattern = regexp.MustCompile(`^\x1b\[\?(\d+)u`)

// parseKittyReply reports whether b's prefix matches "ESC[?<flags>u" and,
// if so, how many bytes it consumed.
func parseKittyReply(b []byte) (matched bool, consumed int) {
	loc := kittyReplyPattern.FindIndex(b)
	if loc == nil || loc[0] != 0 {
		return false, 0
	}
	return true, loc[1]
}

var cellPixelReplyPattern = regexp.MustCompile(`^\x1b\[6;(\d+);(\d+)t`)

// parseCellPixelReply reports whether b's prefix matches "ESC[6;h;wt" and,
// if so, the parsed height/width and bytes consumed.
func parseCellPixelReply(b []byte) (height, width, consumed int) {
	m := cellPixelReplyPattern.FindSubmatchIndex(b)
	if m == nil || m[0] != 0 {
		return 0, 0, 0
	}
	h, _ := strconv.Atoi(string(b[m[2]:m[3]]))
	w, _ := strconv.Atoi(string(b[m[4]:m[5]]))
	return h, w, m[1]
}
