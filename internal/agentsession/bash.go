package agentsession

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/forgecode/forge/internal/message"
)

const defaultBashTimeout = 2 * time.Minute

// ExecuteBash runs cmd via "!cmd"/"!!cmd" shell pass-through (spec.md §6's
// interactive surface), streaming combined stdout/stderr to onChunk as it
// arrives. The resulting message is appended to the session store unless
// excludeFromContext is set (the "!!command" form), matching
// message.Message.ExcludedFromContext.
func (s *Session) ExecuteBash(ctx context.Context, cmd string, onChunk func(string), excludeFromContext bool) (message.Message, error) {
	runCtx, cancel := context.WithTimeout(ctx, defaultBashTimeout)
	defer cancel()

	command := exec.CommandContext(runCtx, "/bin/sh", "-c", cmd)
	pr, pw := io.Pipe()
	command.Stdout = pw
	command.Stderr = pw

	if err := command.Start(); err != nil {
		pw.Close()
		return message.Message{}, fmt.Errorf("agentsession: bash start: %w", err)
	}

	waitDone := make(chan error, 1)
	go func() {
		waitDone <- command.Wait()
		pw.Close()
	}()

	var output []byte
	reader := bufio.NewReader(pr)
	for {
		line, readErr := reader.ReadString('\n')
		if len(line) > 0 {
			output = append(output, line...)
			if onChunk != nil {
				onChunk(line)
			}
		}
		if readErr != nil {
			break
		}
	}

	runErr := <-waitDone

	msg := message.Message{
		Role:                message.RoleUser,
		Blocks:              []message.Block{message.Text{Text: string(output)}},
		ExcludedFromContext: excludeFromContext,
		CustomType:          "bash",
	}
	if runErr != nil {
		msg.IsError = true
		msg.ErrorMessage = runErr.Error()
	}

	if !excludeFromContext {
		if _, err := s.store.AppendMessage(msg); err != nil {
			return msg, err
		}
	}

	return msg, nil
}
