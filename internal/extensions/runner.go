package extensions

import (
	"fmt"
	"sort"
	"sync"

	"github.com/forgecode/forge/internal/logging"
)

// LoadedExtension is one extension's registrations after its setup function
// ran against a fresh API.
type LoadedExtension struct {
	Path          string
	Handlers      map[EventType][]HandlerFunc
	Tools         []ToolDef
	Commands      []CommandDef
	ToolRenderers []ToolRenderConfig
}

// Setup is the function signature an extension module exposes: it registers
// handlers/tools/commands against api. Discovery and loading of extension
// modules themselves (filesystem layout, interpreter embedding) is out of
// scope here per SPEC_FULL.md's Open Question decision — Runner accepts
// already-resolved Setup functions.
type Setup func(api *API)

// Load runs setup against a fresh API and returns the resulting
// LoadedExtension, tagged with path for diagnostics.
func Load(path string, setup Setup) *LoadedExtension {
	loaded := &LoadedExtension{Path: path}
	api := newAPI(loaded)
	setup(api)
	return loaded
}

// Runner dispatches events to every loaded extension in load order and
// tracks the mutable UI state (widgets/header/footer/editor) extensions can
// set, per spec.md §4.I.
type Runner struct {
	mu         sync.RWMutex
	extensions []*LoadedExtension
	ctx        Context

	widgets      map[string]WidgetConfig
	header       *HeaderFooterConfig
	footer       *HeaderFooterConfig
	customEditor *EditorConfig
}

// NewRunner builds a Runner over exts, preserving their given order —
// dispatch order is load order, and later extensions' chainable results
// (context/tool_result) win over earlier ones.
func NewRunner(exts []*LoadedExtension) *Runner {
	return &Runner{extensions: exts, widgets: make(map[string]WidgetConfig)}
}

// SetContext installs the Context passed to every handler invocation.
func (r *Runner) SetContext(ctx Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctx = ctx
}

// HasHandlers reports whether any loaded extension subscribes to t.
func (r *Runner) HasHandlers(t EventType) bool {
	for _, e := range r.extensions {
		if len(e.Handlers[t]) > 0 {
			return true
		}
	}
	return false
}

// Emit dispatches event to every extension's handlers for its type, in load
// order. The first handler that returns a blocking Result (a tool_call or
// before_agent_start block, a handled input, or a cancel) short-circuits
// the rest. Otherwise every handler runs and the last non-nil Result wins
// (chainable, last-writer-wins): a context or tool_result rewrite replaces
// the event the next handler receives. A handler panic is recovered, logged, and
// treated as a blocking/failing result for tool_call (fail safe), or as no
// result for anything else.
func (r *Runner) Emit(event Event) (Result, error) {
	var last Result
	t := event.Type()

	for _, ext := range r.extensions {
		for _, h := range ext.Handlers[t] {
			result, panicked := r.safeCall(ext.Path, t, h, event)
			if panicked {
				if t == ToolCall {
					return ToolCallResult{Block: true, Reason: "extension handler panicked"}, nil
				}
				continue
			}
			if result == nil {
				continue
			}
			last = result
			if isBlocking(result) {
				return last, nil
			}
			switch rw := result.(type) {
			case ContextRewriteResult:
				if _, ok := event.(ContextRewriteEvent); ok && rw.Messages != nil {
					event = ContextRewriteEvent{Messages: rw.Messages}
				}
			case ToolResultResult:
				if tre, ok := event.(ToolResultEvent); ok {
					event = ToolResultEvent{Call: tre.Call, Result: rw.Result}
				}
			}
		}
	}
	return last, nil
}

// EmitAll dispatches event to every handler like Emit, but returns every
// non-nil Result in dispatch order instead of only the last one. Used for
// accumulating event types (before_agent_start) where each handler
// contributes rather than overwrites. Block still short-circuits: once a
// handler returns a blocking Result, dispatch stops and that Result is
// appended last.
func (r *Runner) EmitAll(event Event) ([]Result, error) {
	var results []Result
	t := event.Type()

	for _, ext := range r.extensions {
		for _, h := range ext.Handlers[t] {
			result, panicked := r.safeCall(ext.Path, t, h, event)
			if panicked {
				if t == ToolCall {
					return append(results, ToolCallResult{Block: true, Reason: "extension handler panicked"}), nil
				}
				continue
			}
			if result == nil {
				continue
			}
			results = append(results, result)
			if isBlocking(result) {
				return results, nil
			}
		}
	}
	return results, nil
}

func (r *Runner) safeCall(path string, t EventType, h HandlerFunc, event Event) (result Result, panicked bool) {
	defer func() {
		if p := recover(); p != nil {
			logging.Default().Error("extension handler panicked", "extension", path, "event", t, "panic", fmt.Sprint(p))
			panicked = true
		}
	}()
	r.mu.RLock()
	ctx := r.ctx
	r.mu.RUnlock()
	return h(event, ctx), false
}

func isBlocking(r Result) bool {
	switch v := r.(type) {
	case ToolCallResult:
		return v.Block
	case InputResult:
		return v.Action == "handled"
	case BeforeAgentStartResult:
		return v.Block
	case CancelResult:
		return v.Cancel
	case SessionBeforeCompactResult:
		return v.Cancel
	case SessionBeforeTreeResult:
		return v.Cancel
	default:
		return false
	}
}

// RegisteredTools returns every tool registered by any loaded extension.
func (r *Runner) RegisteredTools() []ToolDef {
	var out []ToolDef
	for _, e := range r.extensions {
		out = append(out, e.Tools...)
	}
	return out
}

// RegisteredCommands returns every command registered by any loaded extension.
func (r *Runner) RegisteredCommands() []CommandDef {
	var out []CommandDef
	for _, e := range r.extensions {
		out = append(out, e.Commands...)
	}
	return out
}

// GetToolRenderer returns the renderer for toolName, preferring the most
// recently loaded extension that registered one (last-registered wins).
func (r *Runner) GetToolRenderer(toolName string) (ToolRenderConfig, bool) {
	for i := len(r.extensions) - 1; i >= 0; i-- {
		for _, tr := range r.extensions[i].ToolRenderers {
			if tr.ToolName == toolName {
				return tr, true
			}
		}
	}
	return ToolRenderConfig{}, false
}

// SetWidget installs or replaces a widget.
func (r *Runner) SetWidget(cfg WidgetConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.widgets[cfg.ID] = cfg
}

// RemoveWidget removes a widget by id.
func (r *Runner) RemoveWidget(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.widgets, id)
}

// Widgets returns widgets for placement, sorted by Priority then ID.
func (r *Runner) Widgets(placement WidgetPlacement) []WidgetConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []WidgetConfig
	for _, w := range r.widgets {
		if w.Placement == placement {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *Runner) SetHeader(cfg HeaderFooterConfig) { r.mu.Lock(); defer r.mu.Unlock(); r.header = &cfg }
func (r *Runner) RemoveHeader()                    { r.mu.Lock(); defer r.mu.Unlock(); r.header = nil }
func (r *Runner) SetFooter(cfg HeaderFooterConfig) { r.mu.Lock(); defer r.mu.Unlock(); r.footer = &cfg }
func (r *Runner) RemoveFooter()                    { r.mu.Lock(); defer r.mu.Unlock(); r.footer = nil }

func (r *Runner) Header() *HeaderFooterConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.header
}

func (r *Runner) Footer() *HeaderFooterConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.footer
}

func (r *Runner) SetEditor(cfg EditorConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.customEditor = &cfg
}

func (r *Runner) ResetEditor() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.customEditor = nil
}

func (r *Runner) Editor() *EditorConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.customEditor
}

// Extensions returns the loaded extensions in dispatch order.
func (r *Runner) Extensions() []*LoadedExtension { return r.extensions }
