// Package openai adapts an OpenAI-compatible chat-completions endpoint to
// the provider.Backend contract, streaming deltas over SSE the way
// github.com/sashabaranov/go-openai's ChatCompletionStream does, but with
// our own retry budget and event shape per spec.md §4.E.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openaisdk "github.com/sashabaranov/go-openai"

	"github.com/forgecode/forge/internal/message"
	"github.com/forgecode/forge/internal/provider"
)

// Backend streams chat completions from an OpenAI-compatible server.
type Backend struct {
	client *openaisdk.Client
	policy provider.RetryPolicy
}

// New builds a Backend. baseURL may be empty to use the default OpenAI API.
func New(apiKey, baseURL string) *Backend {
	cfg := openaisdk.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Backend{client: openaisdk.NewClientWithConfig(cfg), policy: provider.DefaultRetryPolicy()}
}

func (b *Backend) Name() string { return "openai" }

// StreamTurn implements provider.Backend.
func (b *Backend) StreamTurn(ctx context.Context, req provider.Request) (provider.Stream, error) {
	out := make(chan provider.Event, 16)
	go b.run(ctx, req, out)
	return out, nil
}

func (b *Backend) run(ctx context.Context, req provider.Request, out chan<- provider.Event) {
	defer close(out)

	apiReq := toChatCompletionRequest(req)

	var lastErr error
	for attempt := 1; attempt <= b.policy.MaxRetries+1; attempt++ {
		stream, err := b.client.CreateChatCompletionStream(ctx, apiReq)
		if err != nil {
			lastErr = err
			status, retryAfter := statusAndRetryAfter(err)
			if attempt > b.policy.MaxRetries || !b.policy.ShouldRetry(status, err.Error()) {
				break
			}
			if sleepErr := provider.Sleep(ctx, b.policy.Backoff(attempt, retryAfter)); sleepErr != nil {
				out <- provider.Event{Type: provider.EventError, Err: sleepErr}
				return
			}
			continue
		}

		if ok := pumpStream(ctx, stream, out); ok {
			return
		}
		stream.Close()
		// A mid-stream failure after at least one delta was emitted is not
		// retried; the caller sees the partial turn via events already sent.
		return
	}

	out <- provider.Event{Type: provider.EventError, Err: fmt.Errorf("openai: stream failed after retries: %w", lastErr)}
}

// pumpStream reads stream until EOF/error, translating deltas to Events.
// Returns true if the stream completed normally (EventDone was emitted).
func pumpStream(ctx context.Context, stream *openaisdk.ChatCompletionStream, out chan<- provider.Event) bool {
	textOpen := false
	toolIndex := map[int]string{} // delta index -> synthesized/real id
	nextSynthIdx := 0
	var usage message.Usage

	for {
		select {
		case <-ctx.Done():
			out <- provider.Event{Type: provider.EventError, Err: ctx.Err()}
			return false
		default:
		}

		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			if textOpen {
				out <- provider.Event{Type: provider.EventTextEnd}
			}
			out <- provider.Event{Type: provider.EventUsage, Usage: usage}
			out <- provider.Event{Type: provider.EventDone, StopReason: message.StopReasonStop}
			return true
		}
		if err != nil {
			out <- provider.Event{Type: provider.EventError, Err: err}
			return false
		}

		if chunk.Usage != nil {
			usage.Input = chunk.Usage.PromptTokens
			usage.Output = chunk.Usage.CompletionTokens
			usage.TotalTokens = chunk.Usage.TotalTokens
		}

		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		delta := choice.Delta

		if delta.Content != "" {
			if !textOpen {
				out <- provider.Event{Type: provider.EventTextStart}
				textOpen = true
			}
			out <- provider.Event{Type: provider.EventTextDelta, Text: delta.Content}
		}

		for _, tc := range delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			id, seen := toolIndex[idx]
			if !seen {
				id = tc.ID
				if id == "" {
					id = provider.SynthesizeToolCallID(nextSynthIdx)
					nextSynthIdx++
				}
				toolIndex[idx] = id
				out <- provider.Event{Type: provider.EventToolCallStart, ToolCallID: id, ToolCallName: tc.Function.Name}
			}
			if tc.Function.Arguments != "" {
				out <- provider.Event{Type: provider.EventToolCallDelta, ToolCallID: id, ArgsDelta: tc.Function.Arguments}
			}
		}

		if choice.FinishReason != "" {
			for _, id := range toolIndex {
				out <- provider.Event{Type: provider.EventToolCallEnd, ToolCallID: id}
			}
			if textOpen {
				out <- provider.Event{Type: provider.EventTextEnd}
				textOpen = false
			}
			out <- provider.Event{Type: provider.EventUsage, Usage: usage}
			out <- provider.Event{Type: provider.EventDone, StopReason: mapFinishReason(string(choice.FinishReason))}
			return true
		}
	}
}

func mapFinishReason(r string) message.StopReason {
	switch r {
	case "tool_calls", "function_call":
		return message.StopReasonToolUse
	case "length":
		return message.StopReasonLength
	case "stop":
		return message.StopReasonStop
	default:
		return message.StopReasonStop
	}
}

func toChatCompletionRequest(req provider.Request) openaisdk.ChatCompletionRequest {
	var msgs []openaisdk.ChatCompletionMessage
	if req.SystemPrompt != "" {
		msgs = append(msgs, openaisdk.ChatCompletionMessage{Role: openaisdk.ChatMessageRoleSystem, Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, toChatMessage(m))
	}

	var tools []openaisdk.Tool
	for _, t := range req.Tools {
		var params map[string]any
		_ = json.Unmarshal(t.InputSchema, &params)
		tools = append(tools, openaisdk.Tool{
			Type: openaisdk.ToolTypeFunction,
			Function: &openaisdk.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}

	return openaisdk.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    msgs,
		Tools:       tools,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
		TopP:        float32(req.TopP),
		Stop:        req.StopSequences,
		Stream:      true,
	}
}

func toChatMessage(m message.Message) openaisdk.ChatCompletionMessage {
	switch m.Role {
	case message.RoleToolBlock:
		return openaisdk.ChatCompletionMessage{Role: openaisdk.ChatMessageRoleTool, Content: m.Text(), ToolCallID: m.ToolCallID}
	case message.RoleAssistant:
		out := openaisdk.ChatCompletionMessage{Role: openaisdk.ChatMessageRoleAssistant, Content: m.Text()}
		for _, tc := range m.ToolCalls() {
			out.ToolCalls = append(out.ToolCalls, openaisdk.ToolCall{
				ID:   tc.ID,
				Type: openaisdk.ToolTypeFunction,
				Function: openaisdk.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.ArgumentsJSON,
				},
			})
		}
		return out
	default:
		return openaisdk.ChatCompletionMessage{Role: openaisdk.ChatMessageRoleUser, Content: m.Text()}
	}
}

// statusAndRetryAfter extracts an HTTP status code from a go-openai
// APIError, or reports 429 when the error text contains it. The returned
// Retry-After duration is always zero: no Retry-After hint is read.
func statusAndRetryAfter(err error) (int, time.Duration) {
	var apiErr *openaisdk.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode, 0
	}
	if strings.Contains(err.Error(), "429") {
		return http.StatusTooManyRequests, 0
	}
	return 0, 0
}
