package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/forgecode/forge/internal/message"
	"github.com/stretchr/testify/require"
)

func TestAppendMessageAdvancesLeaf(t *testing.T) {
	s := InMemory("/tmp/proj")
	id1, err := s.AppendMessage(message.Message{Role: message.RoleUser, Blocks: []message.Block{message.Text{Text: "hi"}}})
	require.NoError(t, err)
	require.Equal(t, id1, s.GetLeafID())

	id2, err := s.AppendMessage(message.Message{Role: message.RoleAssistant, Blocks: []message.Block{message.Text{Text: "hello"}}})
	require.NoError(t, err)
	require.Equal(t, id2, s.GetLeafID())

	entry := s.GetEntry(id2).(*MessageEntry)
	require.Equal(t, id1, entry.ParentID)
}

func TestBranchFidelity(t *testing.T) {
	s := InMemory("/tmp/proj")
	a, _ := s.AppendMessage(message.Message{Role: message.RoleUser, Blocks: []message.Block{message.Text{Text: "a"}}})
	b, _ := s.AppendMessage(message.Message{Role: message.RoleAssistant, Blocks: []message.Block{message.Text{Text: "b"}}})

	// Branch back to a and create a sibling.
	require.NoError(t, s.Branch(a))
	c, _ := s.AppendMessage(message.Message{Role: message.RoleAssistant, Blocks: []message.Block{message.Text{Text: "c"}}})

	require.ElementsMatch(t, []string{b, c}, s.GetChildren(a))

	ctxAlongC := s.BuildContext()
	require.Len(t, ctxAlongC.Messages, 2)
	require.Equal(t, "c", ctxAlongC.Messages[1].Text())

	require.NoError(t, s.Branch(b))
	ctxAlongB := s.BuildContext()
	require.Equal(t, "b", ctxAlongB.Messages[1].Text())
}

func TestBuildContextAppliesMostRecentCompaction(t *testing.T) {
	s := InMemory("/tmp/proj")
	s.AppendMessage(message.Message{Role: message.RoleUser, Blocks: []message.Block{message.Text{Text: "old1"}}})
	s.AppendMessage(message.Message{Role: message.RoleAssistant, Blocks: []message.Block{message.Text{Text: "old2"}}})
	keep, _ := s.AppendMessage(message.Message{Role: message.RoleUser, Blocks: []message.Block{message.Text{Text: "keep1"}}})
	s.AppendMessage(message.Message{Role: message.RoleAssistant, Blocks: []message.Block{message.Text{Text: "keep2"}}})

	_, err := s.AppendCompaction("summary of old turns", keep, 500)
	require.NoError(t, err)

	ctx := s.BuildContext()
	// summary pair + keep1 + keep2, old1/old2 dropped.
	require.Len(t, ctx.Messages, 4)
	require.Equal(t, "summary of old turns", ctx.Messages[1].Text())
	require.Equal(t, "keep1", ctx.Messages[2].Text())
}

func TestCreateOpenRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cwd := filepath.Join(dir, "proj")
	require.NoError(t, os.MkdirAll(cwd, 0o755))

	s, err := Create(cwd)
	require.NoError(t, err)
	id, err := s.AppendMessage(message.Message{Role: message.RoleUser, Blocks: []message.Block{message.Text{Text: "hi"}}})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := Open(s.GetFilePath())
	require.NoError(t, err)
	require.Equal(t, id, reopened.GetLeafID())
	require.Equal(t, s.GetSessionID(), reopened.GetSessionID())
}
