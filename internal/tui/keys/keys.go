// Package keys implements spec.md §4.C's Key Decoder: raw input byte
// sequences become canonical KeyEvents (lowercase modifier+key ids), with
// Kitty-extended CSI-u sequences carrying press/repeat/release kind and
// every other input always reported as press.
package keys

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Kind is the Kitty keyboard protocol event kind; non-Kitty input is
// always Press.
type Kind int

const (
	KindPress Kind = iota
	KindRepeat
	KindRelease
)

func (k Kind) String() string {
	switch k {
	case KindRepeat:
		return "repeat"
	case KindRelease:
		return "release"
	default:
		return "press"
	}
}

// Event is spec.md §4.C's KeyEvent: a canonical id plus its kind.
type Event struct {
	ID   string
	Kind Kind
}

// Reserved is the set of shortcuts extensions may not override (spec.md
// §4.C).
var Reserved = map[string]bool{
	"ctrl+c": true, "ctrl+d": true, "ctrl+z": true, "ctrl+k": true,
	"ctrl+p": true, "ctrl+l": true, "ctrl+o": true, "ctrl+t": true,
	"ctrl+g": true, "shift+tab": true, "shift+ctrl+p": true,
	"alt+enter": true, "escape": true, "enter": true,
}

// SuppressReleases drops Release-kind events unless allowRelease is set,
// per spec.md §4.C: "A component opts into receiving release events via
// a flag; otherwise release events are suppressed."
func SuppressReleases(events []Event, allowRelease bool) []Event {
	if allowRelease {
		return events
	}
	out := events[:0]
	for _, ev := range events {
		if ev.Kind != KindRelease {
			out = append(out, ev)
		}
	}
	return out
}

// Matches implements spec.md §4.C's matches(input, id): canonical
// equality after decode, against a single id or a list of ids.
func Matches(ev Event, id any) bool {
	switch v := id.(type) {
	case string:
		return ev.ID == v
	case []string:
		for _, s := range v {
			if ev.ID == s {
				return true
			}
		}
	}
	return false
}

// Decoder turns a stream of raw byte chunks into KeyEvents, buffering any
// trailing partial escape sequence across Feed calls.
type Decoder struct {
	buf []byte
}

func NewDecoder() *Decoder { return &Decoder{} }

// Feed appends b to the pending buffer and returns every event that can
// be fully decoded from it. A trailing incomplete sequence, if any, is
// kept for the next Feed call.
//
// Disambiguating a standalone Escape keypress from the start of a
// multi-byte escape sequence normally needs a short timer (most
// terminal readers wait ~25-50ms); this decoder has no clock access and
// instead trusts that cancelreader's underlying Read returns whatever
// bytes the terminal has already delivered in one chunk, so a lone ESC
// byte at the end of a Feed call is reported as "escape" immediately.
func (d *Decoder) Feed(b []byte) []Event {
	d.buf = append(d.buf, b...)
	var events []Event
	for len(d.buf) > 0 {
		ev, n, ok := decode(d.buf)
		if !ok {
			break
		}
		events = append(events, ev)
		d.buf = d.buf[n:]
	}
	return events
}

// decode consumes the longest recognizable sequence from the front of b.
func decode(b []byte) (ev Event, consumed int, ok bool) {
	if len(b) == 0 {
		return Event{}, 0, false
	}

	if b[0] != 0x1b {
		return decodeSingle(b)
	}

	if len(b) == 1 {
		return Event{ID: "escape", Kind: KindPress}, 1, true
	}

	if b[1] == '[' {
		return decodeCSI(b)
	}
	if b[1] == 'O' && len(b) >= 3 {
		if name, ok2 := ss3Names[b[2]]; ok2 {
			return Event{ID: name, Kind: KindPress}, 3, true
		}
	}

	inner, n, innerOK := decodeSingle(b[1:])
	if !innerOK {
		return Event{}, 0, false
	}
	return Event{ID: addModifier(inner.ID, "alt"), Kind: inner.Kind}, 1 + n, true
}

func decodeSingle(b []byte) (Event, int, bool) {
	c := b[0]
	switch {
	case c == 0x0d:
		return Event{ID: "enter", Kind: KindPress}, 1, true
	case c == 0x09:
		return Event{ID: "tab", Kind: KindPress}, 1, true
	case c == 0x7f:
		return Event{ID: "backspace", Kind: KindPress}, 1, true
	case c >= 0x01 && c <= 0x1a:
		letter := rune('a' + c - 1)
		return Event{ID: "ctrl+" + string(letter), Kind: KindPress}, 1, true
	}

	r, size := utf8.DecodeRune(b)
	if r == utf8.RuneError && size <= 1 {
		if len(b) < 4 {
			return Event{}, 0, false
		}
		return Event{ID: string(rune(b[0])), Kind: KindPress}, 1, true
	}
	return Event{ID: string(r), Kind: KindPress}, size, true
}

var ss3Names = map[byte]string{
	'A': "up", 'B': "down", 'C': "right", 'D': "left",
	'H': "home", 'F': "end",
	'P': "f1", 'Q': "f2", 'R': "f3", 'S': "f4",
}

func decodeCSI(b []byte) (Event, int, bool) {
	i := 2
	for i < len(b) && !isFinalByte(b[i]) {
		i++
	}
	if i >= len(b) {
		return Event{}, 0, false
	}
	final := b[i]
	params := string(b[2:i])
	consumed := i + 1

	switch final {
	case 'Z':
		return Event{ID: "shift+tab", Kind: KindPress}, consumed, true
	case 'u':
		return decodeCSIu(params, consumed)
	case '~':
		return decodeCSITilde(params, consumed)
	case 'A', 'B', 'C', 'D', 'H', 'F', 'P', 'Q', 'R', 'S':
		return decodeCSILetter(final, params, consumed)
	}
	return Event{ID: fmt.Sprintf("unknown(csi:%s%c)", params, final), Kind: KindPress}, consumed, true
}

func isFinalByte(c byte) bool { return c >= 0x40 && c <= 0x7e }

var csiLetterNames = map[byte]string{
	'A': "up", 'B': "down", 'C': "right", 'D': "left",
	'H': "home", 'F': "end",
	'P': "f1", 'Q': "f2", 'R': "f3", 'S': "f4",
}

func decodeCSILetter(final byte, params string, consumed int) (Event, int, bool) {
	name := csiLetterNames[final]
	mod, kind := modifierAndKind(splitParams(params), 1)
	return Event{ID: withModifiers(name, mod), Kind: kind}, consumed, true
}

var tildeNames = map[int]string{
	1: "home", 2: "insert", 3: "delete", 4: "end",
	5: "pageup", 6: "pagedown", 7: "home", 8: "end",
	11: "f1", 12: "f2", 13: "f3", 14: "f4", 15: "f5",
	17: "f6", 18: "f7", 19: "f8", 20: "f9", 21: "f10",
	23: "f11", 24: "f12",
}

func decodeCSITilde(params string, consumed int) (Event, int, bool) {
	parts := splitParams(params)
	if len(parts) == 0 {
		return Event{ID: "unknown(~)", Kind: KindPress}, consumed, true
	}
	code := atoiDefault(subparams(parts[0])[0], 0)
	name, ok := tildeNames[code]
	if !ok {
		name = fmt.Sprintf("unknown(%d~)", code)
	}
	mod, kind := modifierAndKind(parts, 1)
	return Event{ID: withModifiers(name, mod), Kind: kind}, consumed, true
}

// kittyFunctionalNames covers the ASCII control codepoints Kitty reuses
// for tab/enter/escape/backspace under CSI-u when the disambiguate flag
// is set, instead of their legacy single-byte forms.
var kittyFunctionalNames = map[int]string{
	9: "tab", 13: "enter", 27: "escape", 127: "backspace",
}

func decodeCSIu(params string, consumed int) (Event, int, bool) {
	parts := splitParams(params)
	if len(parts) == 0 {
		return Event{ID: "unknown(u)", Kind: KindPress}, consumed, true
	}
	code := atoiDefault(subparams(parts[0])[0], 0)

	mod, kind := modifierAndKind(parts, 1)

	name := kittyFunctionalNames[code]
	if name == "" {
		if code > 0 {
			name = string(rune(code))
		} else {
			name = fmt.Sprintf("unknown(%du)", code)
		}
	}
	return Event{ID: withModifiers(name, mod), Kind: kind}, consumed, true
}

// modifierAndKind reads the modifier (1-based) and event-kind subparam
// out of params[modIndex], the shape shared by CSI letter/tilde/u forms.
func modifierAndKind(parts []string, modIndex int) (mod int, kind Kind) {
	mod, kind = 1, KindPress
	if len(parts) <= modIndex {
		return mod, kind
	}
	sub := subparams(parts[modIndex])
	mod = atoiDefault(sub[0], 1)
	if len(sub) >= 2 {
		kind = eventKind(atoiDefault(sub[1], 1))
	}
	return mod, kind
}

func eventKind(n int) Kind {
	switch n {
	case 2:
		return KindRepeat
	case 3:
		return KindRelease
	default:
		return KindPress
	}
}

func splitParams(params string) []string {
	if params == "" {
		return nil
	}
	return strings.Split(params, ";")
}

func subparams(p string) []string {
	return strings.Split(p, ":")
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// modifierOrder fixes canonical ordering: spec.md §4.C gives
// "shift+ctrl+p" as an example, so shift always precedes ctrl.
var modifierOrder = []string{"shift", "alt", "ctrl", "super"}

// withModifiers applies a 1-based Kitty/legacy modifier value (bitmask is
// value-1: 1=shift, 2=alt, 4=ctrl, 8=super) to a base key name.
func withModifiers(name string, mod int) string {
	if mod <= 1 {
		return name
	}
	bits := mod - 1
	id := name
	if bits&1 != 0 {
		id = addModifier(id, "shift")
	}
	if bits&2 != 0 {
		id = addModifier(id, "alt")
	}
	if bits&4 != 0 {
		id = addModifier(id, "ctrl")
	}
	if bits&8 != 0 {
		id = addModifier(id, "super")
	}
	return id
}

func addModifier(id, mod string) string {
	existing := strings.Split(id, "+")
	base := existing[len(existing)-1]
	mods := map[string]bool{mod: true}
	for _, m := range existing[:len(existing)-1] {
		mods[m] = true
	}

	var ordered []string
	for _, m := range modifierOrder {
		if mods[m] {
			ordered = append(ordered, m)
		}
	}
	return strings.Join(append(ordered, base), "+")
}
