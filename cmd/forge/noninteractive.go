package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/forgecode/forge/internal/agentsession"
	"github.com/forgecode/forge/internal/message"
)

// runNonInteractive drives a single turn to completion, printing streamed
// text (unless --quiet) and the final response, or a JSON envelope when
// --json is set.
func runNonInteractive(ctx context.Context, app *App, prompt string) error {
	events := app.Session.SendUserMessage(ctx, prompt)

	var final message.Message
	var turnErr error

	for ev := range events {
		switch ev.Type {
		case agentsession.EventTextDelta:
			if !quietFlag && !jsonFlag {
				fmt.Print(ev.Text)
			}
		case agentsession.EventToolCallStart:
			if !quietFlag && !jsonFlag {
				fmt.Fprintf(os.Stderr, "\n[tool] %s\n", ev.ToolCall.Name)
			}
		case agentsession.EventAgentEnd:
			final = ev.Message
		case agentsession.EventError:
			turnErr = ev.Err
		}
	}

	if turnErr != nil {
		if jsonFlag {
			writeJSONError(turnErr)
		}
		return turnErr
	}

	if jsonFlag {
		return writeJSONResult(final, app.ModelName)
	}
	if !quietFlag {
		fmt.Println()
	} else {
		fmt.Println(final.Text())
	}
	return nil
}

type jsonUsage struct {
	Input      int     `json:"input_tokens"`
	Output     int     `json:"output_tokens"`
	CacheRead  int     `json:"cache_read_tokens"`
	CacheWrite int     `json:"cache_write_tokens"`
	Cost       float64 `json:"cost"`
}

type jsonEnvelope struct {
	Response string     `json:"response"`
	Model    string     `json:"model"`
	Usage    *jsonUsage `json:"usage,omitempty"`
}

func writeJSONResult(final message.Message, model string) error {
	env := jsonEnvelope{Response: final.Text(), Model: model}
	if final.Usage != (message.Usage{}) {
		env.Usage = &jsonUsage{
			Input: final.Usage.Input, Output: final.Usage.Output,
			CacheRead: final.Usage.CacheRead, CacheWrite: final.Usage.CacheWrite,
			Cost: final.Usage.Cost,
		}
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func writeJSONError(err error) {
	data, _ := json.MarshalIndent(struct {
		Error string `json:"error"`
	}{Error: err.Error()}, "", "  ")
	fmt.Fprintln(os.Stderr, string(data))
}
