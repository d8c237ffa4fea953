// Package anthropic adapts the Anthropic Messages API to the
// provider.Backend contract, translating the SDK's streaming event union
// into spec.md §4.E's provider-neutral Event sequence.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/forgecode/forge/internal/message"
	"github.com/forgecode/forge/internal/provider"
)

// Backend streams Messages-API turns from Anthropic or an Anthropic-compatible
// gateway.
type Backend struct {
	client anthropic.Client
	policy provider.RetryPolicy
}

// New builds a Backend. baseURL may be empty to use the default API.
func New(apiKey, baseURL string) *Backend {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	// We retry at our own layer so the SDK doesn't double up.
	opts = append(opts, option.WithMaxRetries(0))
	return &Backend{client: anthropic.NewClient(opts...), policy: provider.DefaultRetryPolicy()}
}

func (b *Backend) Name() string { return "anthropic" }

func (b *Backend) StreamTurn(ctx context.Context, req provider.Request) (provider.Stream, error) {
	out := make(chan provider.Event, 16)
	go b.run(ctx, req, out)
	return out, nil
}

func (b *Backend) run(ctx context.Context, req provider.Request, out chan<- provider.Event) {
	defer close(out)

	params := toMessageNewParams(req)

	var lastErr error
	for attempt := 1; attempt <= b.policy.MaxRetries+1; attempt++ {
		stream := b.client.Messages.NewStreaming(ctx, params)
		if pumpStream(ctx, stream, out) {
			return
		}
		lastErr = stream.Err()
		status := 0
		var apiErr *anthropic.Error
		if lastErr != nil {
			// anthropic-sdk-go surfaces HTTP errors as *anthropic.Error.
			if e, ok := asAPIError(lastErr); ok {
				apiErr = e
				status = apiErr.StatusCode
			}
		}
		if attempt > b.policy.MaxRetries || !b.policy.ShouldRetry(status, errString(lastErr)) {
			break
		}
		if sleepErr := provider.Sleep(ctx, b.policy.Backoff(attempt, 0)); sleepErr != nil {
			out <- provider.Event{Type: provider.EventError, Err: sleepErr}
			return
		}
	}

	out <- provider.Event{Type: provider.EventError, Err: fmt.Errorf("anthropic: stream failed after retries: %w", lastErr)}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func asAPIError(err error) (*anthropic.Error, bool) {
	apiErr, ok := err.(*anthropic.Error)
	return apiErr, ok
}

// pumpStream drains one SSE stream, translating content-block events into
// provider.Events. Returns true if the stream completed without error
// (EventDone was emitted).
func pumpStream(ctx context.Context, stream *anthropic.MessageStreamResponse, out chan<- provider.Event) bool {
	var usage message.Usage
	stopReason := message.StopReasonStop
	toolArgsBuf := map[int]*[]byte{}

	for stream.Next() {
		select {
		case <-ctx.Done():
			return false
		default:
		}

		event := stream.Current()
		switch event.Type {
		case "content_block_start":
			switch event.ContentBlock.Type {
			case "text":
				out <- provider.Event{Type: provider.EventTextStart}
			case "thinking":
				out <- provider.Event{Type: provider.EventThinkingStart}
			case "tool_use":
				buf := make([]byte, 0, 256)
				toolArgsBuf[int(event.Index)] = &buf
				out <- provider.Event{Type: provider.EventToolCallStart, ToolCallID: event.ContentBlock.ID, ToolCallName: event.ContentBlock.Name}
			}
		case "content_block_delta":
			switch event.Delta.Type {
			case "text_delta":
				out <- provider.Event{Type: provider.EventTextDelta, Text: event.Delta.Text}
			case "thinking_delta":
				out <- provider.Event{Type: provider.EventThinkingDelta, Text: event.Delta.Thinking}
			case "signature_delta":
				out <- provider.Event{Type: provider.EventThinkingEnd, ThoughtSignature: event.Delta.Signature}
			case "input_json_delta":
				if buf, ok := toolArgsBuf[int(event.Index)]; ok {
					*buf = append(*buf, event.Delta.PartialJSON...)
				}
				out <- provider.Event{Type: provider.EventToolCallDelta, ArgsDelta: event.Delta.PartialJSON}
			}
		case "content_block_stop":
			if buf, ok := toolArgsBuf[int(event.Index)]; ok {
				var probe json.RawMessage
				_ = json.Unmarshal(*buf, &probe) // validated downstream by the tool dispatcher
				out <- provider.Event{Type: provider.EventToolCallEnd}
				delete(toolArgsBuf, int(event.Index))
			} else {
				out <- provider.Event{Type: provider.EventTextEnd}
			}
		case "message_delta":
			stopReason = mapStopReason(string(event.Delta.StopReason))
			usage.Output = int(event.Usage.OutputTokens)
		case "message_start":
			usage.Input = int(event.Message.Usage.InputTokens)
			usage.CacheRead = int(event.Message.Usage.CacheReadInputTokens)
			usage.CacheWrite = int(event.Message.Usage.CacheCreationInputTokens)
		case "message_stop":
			usage.TotalTokens = usage.Input + usage.Output
			out <- provider.Event{Type: provider.EventUsage, Usage: usage}
			out <- provider.Event{Type: provider.EventDone, StopReason: stopReason}
			return true
		}
	}
	return stream.Err() == nil
}

func mapStopReason(r string) message.StopReason {
	switch r {
	case "tool_use":
		return message.StopReasonToolUse
	case "max_tokens":
		return message.StopReasonLength
	case "end_turn", "stop_sequence":
		return message.StopReasonStop
	default:
		return message.StopReasonStop
	}
}

func toMessageNewParams(req provider.Request) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(req.MaxTokens),
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}
	for _, m := range req.Messages {
		params.Messages = append(params.Messages, toMessageParam(m))
	}
	for _, t := range req.Tools {
		var schema anthropic.ToolInputSchemaParam
		_ = json.Unmarshal(t.InputSchema, &schema)
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{Name: t.Name, Description: anthropic.String(t.Description), InputSchema: schema},
		})
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}
	if len(req.StopSequences) > 0 {
		params.StopSequences = req.StopSequences
	}
	return params
}

func toMessageParam(m message.Message) anthropic.MessageParam {
	switch m.Role {
	case message.RoleAssistant:
		var blocks []anthropic.ContentBlockParamUnion
		for _, b := range m.Blocks {
			switch v := b.(type) {
			case message.Text:
				blocks = append(blocks, anthropic.NewTextBlock(v.Text))
			case message.ToolCall:
				var input any
				_ = json.Unmarshal([]byte(v.ArgumentsJSON), &input)
				blocks = append(blocks, anthropic.NewToolUseBlock(v.ID, input, v.Name))
			case message.Thinking:
				blocks = append(blocks, anthropic.NewThinkingBlock(v.OpaqueSignature, v.Text))
			}
		}
		return anthropic.NewAssistantMessage(blocks...)
	case message.RoleToolBlock:
		return anthropic.NewUserMessage(anthropic.NewToolResultBlock(m.ToolCallID, m.Text(), m.IsError))
	default:
		return anthropic.NewUserMessage(anthropic.NewTextBlock(m.Text()))
	}
}
