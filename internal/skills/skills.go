// Package skills implements the discovery/loader collaborators from
// spec.md §6: discoverSkills, discoverContextFiles, and
// discoverPromptTemplates are named as external collaborators whose glob
// walk is explicitly out of scope (spec.md §1) — only their signatures and
// return types are fixed. What IS in scope, and implemented here, is
// turning an HTML-sourced context file into the Markdown text that
// actually lands in the system prompt (SPEC_FULL.md's domain-stack wiring
// for goquery + html-to-markdown).
package skills

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	md "github.com/JohannesKaufmann/html-to-markdown"
)

// Skill is one entry discoverSkills returns: a named, directory-backed
// capability the agent can be told about in its system prompt.
type Skill struct {
	Name        string
	Description string
	Path        string
}

// ContextFile is one entry discoverContextFiles returns, already resolved
// to plain Markdown text regardless of its original format.
type ContextFile struct {
	Path    string
	Content string
}

// PromptTemplate is one entry discoverPromptTemplates returns.
type PromptTemplate struct {
	Name string
	Path string
}

// DiscoverSkills matches spec.md §6's discoverSkills(paths, cwd, agentDir)
// collaborator signature. The directory walk itself is out of scope; this
// is a minimal flat scan (one level, "<name>/SKILL.md" convention) that
// exercises the contract without claiming to be the real discovery logic.
func DiscoverSkills(paths []string, cwd, agentDir string) ([]Skill, error) {
	var out []Skill
	for _, root := range paths {
		entries, err := os.ReadDir(root)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("skills: discover: %w", err)
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			skillPath := filepath.Join(root, entry.Name(), "SKILL.md")
			data, err := os.ReadFile(skillPath)
			if err != nil {
				continue
			}
			out = append(out, Skill{
				Name:        entry.Name(),
				Description: firstLine(string(data)),
				Path:        skillPath,
			})
		}
	}
	return out, nil
}

// DiscoverContextFiles matches spec.md §6's discoverContextFiles(paths, cwd)
// collaborator signature, resolving each discovered file through
// LoadContextFile so HTML sources arrive as Markdown.
func DiscoverContextFiles(paths []string, cwd string) ([]ContextFile, error) {
	var out []ContextFile
	for _, p := range paths {
		cf, err := LoadContextFile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, cf)
	}
	return out, nil
}

// DiscoverPromptTemplates matches spec.md §6's
// discoverPromptTemplates(paths, cwd) collaborator signature.
func DiscoverPromptTemplates(paths []string, cwd string) ([]PromptTemplate, error) {
	var out []PromptTemplate
	for _, root := range paths {
		entries, err := os.ReadDir(root)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("skills: discover prompt templates: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() || filepath.Ext(entry.Name()) != ".md" {
				continue
			}
			out = append(out, PromptTemplate{
				Name: strings.TrimSuffix(entry.Name(), ".md"),
				Path: filepath.Join(root, entry.Name()),
			})
		}
	}
	return out, nil
}

var httpClient = &http.Client{Timeout: 15 * time.Second}

// LoadContextFile reads pathOrURL and returns its Markdown content.
// http(s):// sources are fetched and, when HTML, converted to Markdown
// via goquery (strip non-content elements) + html-to-markdown; local
// ".html"/".htm" files go through the same conversion; everything else is
// read verbatim.
func LoadContextFile(pathOrURL string) (ContextFile, error) {
	if strings.HasPrefix(pathOrURL, "http://") || strings.HasPrefix(pathOrURL, "https://") {
		return loadRemoteContextFile(pathOrURL)
	}

	data, err := os.ReadFile(pathOrURL)
	if err != nil {
		return ContextFile{}, fmt.Errorf("skills: load context file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(pathOrURL))
	if ext == ".html" || ext == ".htm" {
		content, err := htmlToMarkdown(string(data))
		if err != nil {
			return ContextFile{}, fmt.Errorf("skills: convert %s: %w", pathOrURL, err)
		}
		return ContextFile{Path: pathOrURL, Content: content}, nil
	}

	return ContextFile{Path: pathOrURL, Content: string(data)}, nil
}

func loadRemoteContextFile(url string) (ContextFile, error) {
	resp, err := httpClient.Get(url)
	if err != nil {
		return ContextFile{}, fmt.Errorf("skills: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return ContextFile{}, fmt.Errorf("skills: fetch %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8*1024*1024))
	if err != nil {
		return ContextFile{}, fmt.Errorf("skills: read %s: %w", url, err)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "html") {
		return ContextFile{Path: url, Content: string(body)}, nil
	}

	content, err := htmlToMarkdown(string(body))
	if err != nil {
		return ContextFile{}, fmt.Errorf("skills: convert %s: %w", url, err)
	}
	return ContextFile{Path: url, Content: content}, nil
}

// htmlToMarkdown strips non-content elements with goquery, then converts
// the remainder with html-to-markdown.
func htmlToMarkdown(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, nav, footer, header, noscript").Remove()

	cleaned, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("serialize cleaned html: %w", err)
	}

	converter := md.NewConverter("", true, nil)
	markdown, err := converter.ConvertString(cleaned)
	if err != nil {
		return "", fmt.Errorf("html to markdown: %w", err)
	}
	return strings.TrimSpace(markdown), nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(strings.TrimPrefix(s, "#"))
}
