// Package models holds the static provider/model catalog used for cost
// accounting, alias resolution, and context-window bookkeeping described in
// SPEC_FULL.md's supplemented-features section.
package models

import "strings"

// Cost holds per-million-token pricing. CacheRead/CacheWrite are nil when a
// provider doesn't support prompt caching for the model.
type Cost struct {
	Input      float64
	Output     float64
	CacheRead  *float64
	CacheWrite *float64
}

// Limit holds context-window and max-output-token limits.
type Limit struct {
	Context int
	Output  int
}

// ModelInfo describes one selectable model.
type ModelInfo struct {
	ID          string
	Name        string
	Attachment  bool
	Reasoning   bool
	Temperature bool
	Cost        Cost
	Limit       Limit
}

// ProviderInfo groups the models offered by one provider.
type ProviderInfo struct {
	ID     string
	Name   string
	EnvVar []string
	Models map[string]ModelInfo
}

// Registry is a queryable provider/model catalog.
type Registry struct {
	providers map[string]ProviderInfo
}

// NewRegistry returns a registry seeded with a small static catalog covering
// the providers wired into internal/provider. Unlike the teacher's registry
// (which pulls a large embedded dataset from charm.land/catwalk, a
// dependency this module does not carry — see DESIGN.md), unknown
// model/provider pairs are not rejected: lookups simply report no match
// and the caller proceeds without catalog data, matching spec.md's "never block on an unrecognized
// model string" stance.
func NewRegistry() *Registry {
	cacheRead5 := 0.3
	cacheWrite5 := 3.75
	return &Registry{providers: map[string]ProviderInfo{
		"anthropic": {
			ID: "anthropic", Name: "Anthropic", EnvVar: []string{"ANTHROPIC_API_KEY"},
			Models: map[string]ModelInfo{
				"claude-opus-4-20250514": {
					ID: "claude-opus-4-20250514", Name: "Claude Opus 4", Attachment: true, Reasoning: true, Temperature: true,
					Cost: Cost{Input: 15, Output: 75, CacheRead: &cacheRead5, CacheWrite: &cacheWrite5},
					Limit: Limit{Context: 200_000, Output: 32_000},
				},
				"claude-sonnet-4-20250514": {
					ID: "claude-sonnet-4-20250514", Name: "Claude Sonnet 4", Attachment: true, Reasoning: true, Temperature: true,
					Cost: Cost{Input: 3, Output: 15, CacheRead: &cacheRead5, CacheWrite: &cacheWrite5},
					Limit: Limit{Context: 200_000, Output: 64_000},
				},
			},
		},
		"openai": {
			ID: "openai", Name: "OpenAI", EnvVar: []string{"OPENAI_API_KEY"},
			Models: map[string]ModelInfo{
				"gpt-4.1": {
					ID: "gpt-4.1", Name: "GPT-4.1", Attachment: true, Reasoning: false, Temperature: true,
					Cost:  Cost{Input: 2, Output: 8},
					Limit: Limit{Context: 1_047_576, Output: 32_768},
				},
				"o3": {
					ID: "o3", Name: "o3", Attachment: true, Reasoning: true, Temperature: false,
					Cost:  Cost{Input: 2, Output: 8},
					Limit: Limit{Context: 200_000, Output: 100_000},
				},
			},
		},
	}}
}

// Lookup returns the ModelInfo for provider/modelID, if known.
func (r *Registry) Lookup(provider, modelID string) (ModelInfo, bool) {
	p, ok := r.providers[provider]
	if !ok {
		return ModelInfo{}, false
	}
	m, ok := p.Models[modelID]
	return m, ok
}

// Provider returns the ProviderInfo for id, if known.
func (r *Registry) Provider(id string) (ProviderInfo, bool) {
	p, ok := r.providers[id]
	return p, ok
}

// aliases maps convenience names to concrete model ids, grounded on the
// teacher's resolveModelAlias table in providers.go.
var aliases = map[string]string{
	"anthropic/claude-opus-latest":   "claude-opus-4-20250514",
	"anthropic/claude-sonnet-latest": "claude-sonnet-4-20250514",
	"openai/gpt-4.1-latest":          "gpt-4.1",
}

// ResolveAlias rewrites provider/modelName through the alias table, if the
// combination has one; otherwise it returns modelName unchanged.
func ResolveAlias(provider, modelName string) string {
	if resolved, ok := aliases[provider+"/"+modelName]; ok {
		return resolved
	}
	return modelName
}

// ParseModelString splits "provider/model" into its parts.
func ParseModelString(modelString string) (provider, model string, ok bool) {
	idx := strings.Index(modelString, "/")
	if idx < 0 {
		return "", "", false
	}
	return modelString[:idx], modelString[idx+1:], true
}
