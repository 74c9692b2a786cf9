package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"docqa/internal/usecase"
)

var (
	askText string
	askDoc  string
	askTopK int
	askJSON bool
	askShow bool
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Answer a question from the indexed documents",
	Long: `Retrieve the closest chunks for a question and ask the chat model to
answer from them.

Examples:
  docqa ask -q "what is the refund policy?"
  docqa ask -q "summarise the intro" --doc notes/intro.md --show-context`,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askText, "query", "q", "", "question to answer (required)")
	askCmd.Flags().StringVar(&askDoc, "doc", "", "require this document to be ingested first")
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of chunks to retrieve (default from config)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output as JSON")
	askCmd.Flags().BoolVar(&askShow, "show-context", false, "print the retrieved chunks after the answer")
	askCmd.MarkFlagRequired("query")
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := openApp(GetConfig(), GetRootDir(), GetLogger(), appOptions{withLLM: true})
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.ask.Ask(cmd.Context(), usecase.AskRequest{Query: askText, DocID: askDoc, TopK: askTopK})
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	if askJSON {
		output, _ := json.MarshalIndent(struct {
			Title   string        `json:"title"`
			Content string        `json:"content"`
			Matches []matchOutput `json:"matches"`
		}{res.Answer.Title, res.Answer.Content, toMatchOutputs(res.Matches)}, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("%s\n\n%s\n", res.Answer.Title, res.Answer.Content)
	if askShow {
		fmt.Printf("\nContext (%d chunks):\n\n", len(res.Matches))
		printMatches(toMatchOutputs(res.Matches))
	}
	return nil
}
