package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"docqa/internal/domain"
	"docqa/internal/usecase"
)

var (
	queryText string
	queryDoc  string
	queryTopK int
	queryJSON bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Search indexed chunks without generating an answer",
	Long: `Embed the query and print the closest chunks in the namespace.

Examples:
  docqa query -q "refund policy"
  docqa query -q "refund policy" --top-k 3 --json`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "search query (required)")
	queryCmd.Flags().StringVar(&queryDoc, "doc", "", "require this document to be ingested first")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of results (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.MarkFlagRequired("query")
}

type matchOutput struct {
	ID      string  `json:"id"`
	Score   float64 `json:"score"`
	Tag     string  `json:"tag,omitempty"`
	Content string  `json:"content"`
}

func toMatchOutputs(matches []domain.ScoredRecord) []matchOutput {
	out := make([]matchOutput, len(matches))
	for i, m := range matches {
		out[i] = matchOutput{
			ID:      m.Record.ID,
			Score:   m.Score,
			Tag:     m.Record.Metadata[domain.MetaTag],
			Content: m.Record.Content(),
		}
	}
	return out
}

func runQuery(cmd *cobra.Command, args []string) error {
	a, err := openApp(GetConfig(), GetRootDir(), GetLogger(), appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.ask.Search(cmd.Context(), usecase.AskRequest{Query: queryText, DocID: queryDoc, TopK: queryTopK})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	results := toMatchOutputs(result.Matches)

	if queryJSON {
		output, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	fmt.Printf("Found %d results for: %s\n\n", len(results), queryText)
	printMatches(results)
	return nil
}

func printMatches(results []matchOutput) {
	for i, r := range results {
		fmt.Printf("--- [%d] %s (score: %.4f, tag: %s) ---\n", i+1, r.ID, r.Score, r.Tag)
		// Truncate long text for display
		text := r.Content
		if len(text) > 500 {
			text = text[:500] + "..."
		}
		fmt.Println(text)
		fmt.Println()
	}
}
