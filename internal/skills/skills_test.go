package skills

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDiscoverSkillsReadsSkillMD(t *testing.T) {
	root := t.TempDir()
	skillDir := filepath.Join(root, "code-review")
	require.NoError(t, os.MkdirAll(skillDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(skillDir, "SKILL.md"), []byte("# Review code for bugs\nmore detail here"), 0o644))

	got, err := DiscoverSkills([]string{root}, "/cwd", "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "code-review", got[0].Name)
	require.Equal(t, "Review code for bugs", got[0].Description)
}

func TestDiscoverSkillsSkipsMissingDir(t *testing.T) {
	got, err := DiscoverSkills([]string{filepath.Join(t.TempDir(), "nope")}, "/cwd", "")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestLoadContextFilePlainText(t *testing.T) {
	f := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(f, []byte("# Notes\nsome text"), 0o644))

	cf, err := LoadContextFile(f)
	require.NoError(t, err)
	require.Equal(t, "# Notes\nsome text", cf.Content)
}

func TestLoadContextFileConvertsLocalHTML(t *testing.T) {
	f := filepath.Join(t.TempDir(), "doc.html")
	html := `<html><head><style>body{color:red}</style></head><body><nav>skip me</nav><h1>Title</h1><p>Hello world</p></body></html>`
	require.NoError(t, os.WriteFile(f, []byte(html), 0o644))

	cf, err := LoadContextFile(f)
	require.NoError(t, err)
	require.Contains(t, cf.Content, "Title")
	require.Contains(t, cf.Content, "Hello world")
	require.NotContains(t, cf.Content, "skip me")
}

func TestLoadContextFileFetchesRemoteHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><body><script>evil()</script><h1>Remote Doc</h1><p>fetched content</p></body></html>`))
	}))
	defer srv.Close()

	cf, err := LoadContextFile(srv.URL)
	require.NoError(t, err)
	require.Contains(t, cf.Content, "Remote Doc")
	require.Contains(t, cf.Content, "fetched content")
	require.NotContains(t, cf.Content, "evil()")
}

func TestDiscoverPromptTemplatesListsMarkdownFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "pr-summary.md"), []byte("Summarize: {{diff}}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "ignore.txt"), []byte("not a template"), 0o644))

	got, err := DiscoverPromptTemplates([]string{root}, "/cwd")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "pr-summary", got[0].Name)
}
