package components

import (
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/lipgloss"

	"github.com/forgecode/forge/internal/tui/keys"
)

// AutocompleteProvider supplies completion candidates for the Editor's
// "/" (slash commands) and "@" (path completion) triggers (spec.md
// §4.D).
type AutocompleteProvider interface {
	Suggest(trigger rune, query string) []SelectItem
}

// ExternalEditorFunc opens content in $VISUAL/$EDITOR and returns the
// edited text. The caller is responsible for stopping and restarting the
// TUI around the call (spec.md §4.D: "invokes $VISUAL/$EDITOR via a
// child process after stopping the TUI").
type ExternalEditorFunc func(content string) (string, error)

// Editor is spec.md §4.D's multi-line input: history, word-wise
// motion/delete, an external-editor escape, clipboard image paste, and
// an autocomplete hook. It emits Submit(text) via HandleKey's return
// value rather than a callback, matching render.Component's pull model.
type Editor struct {
	lines [][]rune
	row   int
	col   int

	history      []string
	historyIdx   int
	historyStash string

	width int

	autocomplete AutocompleteProvider
	popup        *SelectList
	popupTrigger rune

	externalEditor ExternalEditorFunc
}

func NewEditor(width int, autocomplete AutocompleteProvider, externalEditor ExternalEditorFunc) *Editor {
	return &Editor{
		lines:          [][]rune{{}},
		width:          width,
		autocomplete:   autocomplete,
		externalEditor: externalEditor,
	}
}

// Value returns the buffer contents as a single string.
func (e *Editor) Value() string {
	lines := make([]string, len(e.lines))
	for i, l := range e.lines {
		lines[i] = string(l)
	}
	return strings.Join(lines, "\n")
}

func (e *Editor) SetValue(s string) {
	e.lines = nil
	for _, l := range strings.Split(s, "\n") {
		e.lines = append(e.lines, []rune(l))
	}
	if len(e.lines) == 0 {
		e.lines = [][]rune{{}}
	}
	e.row = len(e.lines) - 1
	e.col = len(e.lines[e.row])
}

// HandleKey advances editor state for one decoded key. If the key
// committed a submission, submitted is the buffer contents and ok is
// true; the submitted text is pushed to history and the buffer is
// cleared.
func (e *Editor) HandleKey(ev keys.Event) (submitted string, ok bool) {
	if e.popup != nil {
		if e.popup.HandleKey(ev) {
			if e.popup.Done() {
				if chosen := e.popup.Chosen(); chosen != nil {
					e.acceptCompletion(chosen.Label)
				}
				e.popup = nil
			}
			return "", false
		}
	}

	switch ev.ID {
	case "enter":
		text := e.Value()
		e.pushHistory(text)
		e.SetValue("")
		return text, true

	case "alt+enter", "ctrl+j":
		e.insertNewline()

	case "backspace":
		e.deleteBackward()
	case "delete":
		e.deleteForward()

	case "left":
		e.moveLeft()
	case "right":
		e.moveRight()
	case "alt+left", "ctrl+left":
		e.moveWordLeft()
	case "alt+right", "ctrl+right":
		e.moveWordRight()
	case "alt+backspace", "ctrl+backspace":
		e.deleteWordBackward()

	case "up":
		e.historyPrev()
	case "down":
		e.historyNext()

	case "home":
		e.col = 0
	case "end":
		e.col = len(e.lines[e.row])

	case "ctrl+g":
		e.openExternalEditor()

	case "ctrl+v":
		e.pasteClipboardImage()

	default:
		if len(ev.ID) == 1 {
			e.insertRune([]rune(ev.ID)[0])
		}
	}
	return "", false
}

func (e *Editor) insertRune(r rune) {
	line := e.lines[e.row]
	line = append(line[:e.col], append([]rune{r}, line[e.col:]...)...)
	e.lines[e.row] = line
	e.col++

	if (r == '/' || r == '@') && e.atWordStart() && e.autocomplete != nil {
		e.popupTrigger = r
		items := e.autocomplete.Suggest(r, "")
		e.popup = NewSelectList(items, e.width, 6)
	} else if e.popup != nil {
		query := e.currentWord()
		items := e.autocomplete.Suggest(e.popupTrigger, strings.TrimPrefix(query, string(e.popupTrigger)))
		e.popup = NewSelectList(items, e.width, 6)
	}
}

func (e *Editor) acceptCompletion(label string) {
	start := e.col
	for start > 0 && e.lines[e.row][start-1] != e.popupTrigger {
		start--
	}
	if start > 0 {
		start--
	}
	line := e.lines[e.row]
	e.lines[e.row] = append(append(append([]rune{}, line[:start]...), []rune(label)...), line[e.col:]...)
	e.col = start + len(label)
}

func (e *Editor) currentWord() string {
	line := e.lines[e.row]
	start := e.col
	for start > 0 && line[start-1] != ' ' {
		start--
	}
	return string(line[start:e.col])
}

func (e *Editor) atWordStart() bool {
	if e.col <= 1 {
		return true
	}
	return e.lines[e.row][e.col-2] == ' '
}

func (e *Editor) insertNewline() {
	line := e.lines[e.row]
	before, after := line[:e.col], line[e.col:]
	e.lines[e.row] = before
	rest := make([][]rune, 0, len(e.lines)+1)
	rest = append(rest, e.lines[:e.row+1]...)
	rest = append(rest, after)
	rest = append(rest, e.lines[e.row+1:]...)
	e.lines = rest
	e.row++
	e.col = 0
}

func (e *Editor) deleteBackward() {
	if e.col > 0 {
		line := e.lines[e.row]
		e.lines[e.row] = append(line[:e.col-1], line[e.col:]...)
		e.col--
		return
	}
	if e.row > 0 {
		prev := e.lines[e.row-1]
		cur := e.lines[e.row]
		e.col = len(prev)
		e.lines[e.row-1] = append(prev, cur...)
		e.lines = append(e.lines[:e.row], e.lines[e.row+1:]...)
		e.row--
	}
}

func (e *Editor) deleteForward() {
	line := e.lines[e.row]
	if e.col < len(line) {
		e.lines[e.row] = append(line[:e.col], line[e.col+1:]...)
		return
	}
	if e.row < len(e.lines)-1 {
		next := e.lines[e.row+1]
		e.lines[e.row] = append(line, next...)
		e.lines = append(e.lines[:e.row+1], e.lines[e.row+2:]...)
	}
}

func (e *Editor) moveLeft() {
	if e.col > 0 {
		e.col--
	} else if e.row > 0 {
		e.row--
		e.col = len(e.lines[e.row])
	}
}

func (e *Editor) moveRight() {
	if e.col < len(e.lines[e.row]) {
		e.col++
	} else if e.row < len(e.lines)-1 {
		e.row++
		e.col = 0
	}
}

func isWordRune(r rune) bool {
	return r != ' ' && r != '\t'
}

func (e *Editor) moveWordLeft() {
	line := e.lines[e.row]
	for e.col > 0 && !isWordRune(line[e.col-1]) {
		e.col--
	}
	for e.col > 0 && isWordRune(line[e.col-1]) {
		e.col--
	}
}

func (e *Editor) moveWordRight() {
	line := e.lines[e.row]
	for e.col < len(line) && !isWordRune(line[e.col]) {
		e.col++
	}
	for e.col < len(line) && isWordRune(line[e.col]) {
		e.col++
	}
}

func (e *Editor) deleteWordBackward() {
	start := e.col
	e.moveWordLeft()
	line := e.lines[e.row]
	e.lines[e.row] = append(line[:e.col], line[start:]...)
}

func (e *Editor) pushHistory(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	e.history = append(e.history, text)
	e.historyIdx = len(e.history)
}

func (e *Editor) historyPrev() {
	if len(e.history) == 0 || e.historyIdx == 0 {
		return
	}
	if e.historyIdx == len(e.history) {
		e.historyStash = e.Value()
	}
	e.historyIdx--
	e.SetValue(e.history[e.historyIdx])
}

func (e *Editor) historyNext() {
	if e.historyIdx >= len(e.history) {
		return
	}
	e.historyIdx++
	if e.historyIdx == len(e.history) {
		e.SetValue(e.historyStash)
		return
	}
	e.SetValue(e.history[e.historyIdx])
}

// openExternalEditor hands the current buffer to $VISUAL/$EDITOR. The
// caller's ExternalEditorFunc is responsible for stopping/restarting the
// TUI; this method only swaps the buffer content.
func (e *Editor) openExternalEditor() {
	if e.externalEditor == nil {
		return
	}
	edited, err := e.externalEditor(e.Value())
	if err == nil {
		e.SetValue(edited)
	}
}

// DefaultExternalEditor shells out to $VISUAL or $EDITOR (falling back to
// vi) against a temp file, matching the teacher's convention of
// preferring the user's configured editor.
func DefaultExternalEditor(content string) (string, error) {
	editor := os.Getenv("VISUAL")
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = "vi"
	}

	f, err := os.CreateTemp("", "forge-editor-*.md")
	if err != nil {
		return "", fmt.Errorf("editor: create temp file: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return "", fmt.Errorf("editor: write temp file: %w", err)
	}
	f.Close()

	cmd := exec.Command(editor, f.Name())
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("editor: run %s: %w", editor, err)
	}

	data, err := os.ReadFile(f.Name())
	if err != nil {
		return "", fmt.Errorf("editor: read edited file: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

// pasteClipboardImage inserts the clipboard's contents at the cursor.
// atotto/clipboard (the teacher's own clipboard dependency) only exposes
// the OS text clipboard, not raw image bytes. Clipboard text that is a
// "data:image/..." URI is written to a temp file by writeClipboardImage
// and the file's path is inserted; any other text is inserted as is.
func (e *Editor) pasteClipboardImage() {
	data, err := clipboard.ReadAll()
	if err != nil || data == "" {
		return
	}
	if strings.HasPrefix(data, "data:image/") {
		if path, err := writeClipboardImage(data); err == nil {
			for _, r := range path {
				e.insertRune(r)
			}
			return
		}
	}
	for _, r := range data {
		e.insertRune(r)
	}
}

// writeClipboardImage decodes a base64 "data:image/..." URI to a temp file
// and returns its path.
func writeClipboardImage(dataURI string) (string, error) {
	idx := strings.Index(dataURI, ",")
	if idx < 0 {
		return "", fmt.Errorf("editor: malformed data URI")
	}
	payload, err := base64.StdEncoding.DecodeString(dataURI[idx+1:])
	if err != nil {
		return "", fmt.Errorf("editor: decode data URI: %w", err)
	}
	ext := ".png"
	if strings.Contains(dataURI[:idx], "jpeg") {
		ext = ".jpg"
	}
	f, err := os.CreateTemp("", "forge-paste-*"+ext)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := f.Write(payload); err != nil {
		return "", err
	}
	return f.Name(), nil
}

func (e *Editor) Render(width int) []string {
	style := lipgloss.NewStyle()
	lines := make([]string, len(e.lines))
	for i, l := range e.lines {
		lines[i] = style.Render(string(l))
	}
	if e.popup != nil {
		lines = append(lines, e.popup.Render(width)...)
	}
	return lines
}

func (e *Editor) Invalidate() {}
