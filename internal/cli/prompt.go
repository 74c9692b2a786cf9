package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/spf13/cobra"

	"docqa/internal/domain"
	"docqa/internal/usecase"
)

var (
	promptQuery string
	promptDoc   string
	promptTopK  int
	promptJSON  bool
)

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Print the chat messages ask would send",
	Long: `Retrieve context for a query and print the exact messages that would be
sent to the chat model, without calling it. Useful for manual orchestration
or for checking what the model sees.

Examples:
  docqa prompt -q "what is the refund policy?"
  docqa prompt -q "what is the refund policy?" --json > messages.json`,
	RunE: runPrompt,
}

func init() {
	rootCmd.AddCommand(promptCmd)
	promptCmd.Flags().StringVarP(&promptQuery, "query", "q", "", "question to build the prompt for (required)")
	promptCmd.Flags().StringVar(&promptDoc, "doc", "", "require this document to be ingested first")
	promptCmd.Flags().IntVarP(&promptTopK, "top-k", "k", 0, "number of chunks to retrieve (default from config)")
	promptCmd.Flags().BoolVar(&promptJSON, "json", false, "output the messages as a JSON array")
	promptCmd.MarkFlagRequired("query")
}

const messagesTemplate = `{{range $i, $m := .}}### [{{inc $i}}] {{upper $m.Role}}
{{$m.Content}}

{{end}}`

func runPrompt(cmd *cobra.Command, args []string) error {
	a, err := openApp(GetConfig(), GetRootDir(), GetLogger(), appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.ask.Search(cmd.Context(), usecase.AskRequest{Query: promptQuery, DocID: promptDoc, TopK: promptTopK})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	messages := usecase.BuildMessages(promptQuery, usecase.BuildContext(result))

	if promptJSON {
		output, _ := json.MarshalIndent(messages, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	out, err := renderMessages(messages)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

func renderMessages(messages []domain.Message) (string, error) {
	tmpl, err := template.New("messages").Funcs(templateFuncs()).Parse(messagesTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, messages); err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}
	return buf.String(), nil
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"upper": strings.ToUpper,
		"inc":   func(i int) int { return i + 1 },
	}
}
