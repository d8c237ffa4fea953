package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/forgecode/forge/internal/models"
)

// knownProviderIDs lists the provider ids models.Registry seeds, since the
// registry (unlike the teacher's catwalk-backed one) has no enumerator —
// it is a small static catalog, not a fetched database.
var knownProviderIDs = []string{"anthropic", "openai"}

var modelsCmd = &cobra.Command{
	Use:   "models [provider]",
	Short: "List known models and their context/pricing limits",
	Long: `List the providers and models forge knows pricing and context-window
limits for.

Note: a model not listed here can still be used with --model — the
catalog is advisory and never blocks an unrecognized provider/model
string.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runModels,
}

func runModels(_ *cobra.Command, args []string) error {
	registry := models.NewRegistry()

	if len(args) == 1 {
		return printProvider(registry, args[0])
	}
	return printAllProviders(registry)
}

func printAllProviders(registry *models.Registry) error {
	for i, id := range knownProviderIDs {
		info, ok := registry.Provider(id)
		if !ok {
			continue
		}
		isLast := i == len(knownProviderIDs)-1
		branch := "├── "
		if isLast {
			branch = "└── "
		}
		fmt.Printf("%s%s\n", branch, info.ID)

		childPrefix := "│   "
		if isLast {
			childPrefix = "    "
		}
		printModelBranches(childPrefix, info)
	}
	return nil
}

func printProvider(registry *models.Registry, providerID string) error {
	info, ok := registry.Provider(providerID)
	if !ok {
		return fmt.Errorf("unknown provider %q. Run 'forge models' to see all providers", providerID)
	}
	for _, id := range sortedModelIDs(info.Models) {
		fmt.Println(id)
	}
	return nil
}

func printModelBranches(prefix string, info models.ProviderInfo) {
	ids := sortedModelIDs(info.Models)
	for j, id := range ids {
		branch := "├── "
		if j == len(ids)-1 {
			branch = "└── "
		}
		fmt.Printf("%s%s%s\n", prefix, branch, id)
	}
}

func sortedModelIDs(m map[string]models.ModelInfo) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
