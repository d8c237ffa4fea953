package main

import (
	"context"
	"fmt"
	"os"

	"github.com/forgecode/forge/internal/agentsession"
	"github.com/forgecode/forge/internal/terminal"
	"github.com/forgecode/forge/internal/tui/components"
	"github.com/forgecode/forge/internal/tui/keys"
	"github.com/forgecode/forge/internal/tui/render"
)

// transcriptEntry is one rendered line in the conversation history: a user
// turn, an assistant turn (possibly still streaming), or a tool call marker.
type transcriptEntry struct {
	role string // "user", "assistant", "tool"
	md   *components.Markdown
}

// interactiveUI owns every piece of mutable state the render loop reads:
// the transcript, the input editor, and the loader shown while a turn is
// in flight. It composes a render.Container fresh on every pass rather than
// mutating a persistent tree, matching render.Component's pull model.
type interactiveUI struct {
	app *App

	transcript []*transcriptEntry
	editor     *components.Editor
	loader     *components.Loader

	streaming *components.Markdown // the in-progress assistant reply, or nil
	streamBuf string

	statusLine string
}

func newInteractiveUI(app *App, columns int) *interactiveUI {
	ui := &interactiveUI{app: app}
	ui.editor = components.NewEditor(columns, ui, components.DefaultExternalEditor)
	ui.statusLine = fmt.Sprintf("%s/%s — ctrl+c to quit, ctrl+g to open $EDITOR", app.Provider, app.ModelName)
	return ui
}

// Suggest implements components.AutocompleteProvider: "/" offers session
// commands, "@" offers nothing yet (path completion is a filesystem walk
// this module doesn't perform from inside the render loop).
func (ui *interactiveUI) Suggest(trigger rune, query string) []components.SelectItem {
	if trigger != '/' {
		return nil
	}
	all := []components.SelectItem{
		{ID: "resume", Label: "/resume"},
		{ID: "compact", Label: "/compact"},
		{ID: "quit", Label: "/quit"},
	}
	if query == "" {
		return all
	}
	var out []components.SelectItem
	for _, item := range all {
		if len(item.Label) > len(query) && item.Label[1:len(query)+1] == query {
			out = append(out, item)
		}
	}
	return out
}

func (ui *interactiveUI) root(width int) render.Component {
	children := make([]render.Component, 0, len(ui.transcript)+2)
	for _, entry := range ui.transcript {
		children = append(children, entry.md)
	}
	if ui.loader != nil {
		children = append(children, ui.loader)
	}
	children = append(children, components.NewText(ui.statusLine))
	children = append(children, ui.editor)
	return &render.Container{Children: children}
}

func (ui *interactiveUI) appendMessage(role, text string) *transcriptEntry {
	entry := &transcriptEntry{role: role, md: components.NewMarkdown(text, components.Theme{})}
	ui.transcript = append(ui.transcript, entry)
	return entry
}

// runInteractive implements spec.md §4's interactive run loop: a Terminal
// Driver feeding raw input through the Key Decoder into the Editor, a
// Differential Renderer painting the composed Component tree on every
// input/resize/session event, and the AgentSession event stream driving the
// transcript and loader while a turn is in flight.
func runInteractive(ctx context.Context, app *App) error {
	driver, err := terminal.Open(os.Stdin, os.Stdout, true)
	if err != nil {
		return fmt.Errorf("interactive: open terminal: %w", err)
	}
	defer driver.Close()

	size := driver.Size()
	columns, rows := size.Columns, size.Rows

	renderer := render.New(os.Stdout)
	decoder := keys.NewDecoder()
	ui := newInteractiveUI(app, columns)

	var turnEvents <-chan agentsession.Event
	var cancelTurn context.CancelFunc

	repaint := func() error {
		return renderer.Pass(ui.root(columns), columns, rows)
	}
	if err := repaint(); err != nil {
		return err
	}

	startTurn := func(text string) {
		ui.appendMessage("user", text)
		ui.loader = components.NewLoader("thinking")
		ui.streaming = nil
		ui.streamBuf = ""

		turnCtx, cancel := context.WithCancel(ctx)
		cancelTurn = cancel
		turnEvents = app.Session.SendUserMessage(turnCtx, text)
	}

	for {
		select {
		case b, ok := <-driver.Input():
			if !ok {
				return nil
			}
			for _, ev := range keys.SuppressReleases(decoder.Feed(b), false) {
				switch {
				case ev.ID == "ctrl+c":
					if turnEvents != nil && cancelTurn != nil {
						cancelTurn()
						continue
					}
					return nil
				case ev.ID == "ctrl+d" && ui.editor.Value() == "":
					return nil
				default:
					if submitted, ok := ui.editor.HandleKey(ev); ok {
						if submitted != "" && turnEvents == nil {
							startTurn(submitted)
						}
					}
				}
			}
			if err := repaint(); err != nil {
				return err
			}

		case sz, ok := <-driver.Resize():
			if !ok {
				return nil
			}
			columns, rows = sz.Columns, sz.Rows
			if err := repaint(); err != nil {
				return err
			}

		case ev, ok := <-turnEvents:
			if !ok {
				turnEvents = nil
				cancelTurn = nil
				ui.loader = nil
				if err := repaint(); err != nil {
					return err
				}
				continue
			}
			ui.handleSessionEvent(ev)
			if err := repaint(); err != nil {
				return err
			}
		}
	}
}

func (ui *interactiveUI) handleSessionEvent(ev agentsession.Event) {
	switch ev.Type {
	case agentsession.EventTextDelta:
		if ui.streaming == nil {
			ui.streaming = ui.appendMessage("assistant", "").md
		}
		ui.streamBuf += ev.Text
		ui.streaming.SetSource(ui.streamBuf)
	case agentsession.EventToolCallStart:
		ui.appendMessage("tool", fmt.Sprintf("`%s`", ev.ToolCall.Name))
	case agentsession.EventError:
		ui.appendMessage("error", fmt.Sprintf("error: %v", ev.Err))
	}
}
