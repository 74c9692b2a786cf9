package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var docsJSON bool

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "List or remove ingested documents",
}

var docsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingested documents",
	Args:  cobra.NoArgs,
	RunE:  runDocsList,
}

var docsDeleteCmd = &cobra.Command{
	Use:   "delete <doc-id>...",
	Short: "Delete documents and their index records",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDocsDelete,
}

func init() {
	rootCmd.AddCommand(docsCmd)
	docsCmd.AddCommand(docsListCmd, docsDeleteCmd)
	docsListCmd.Flags().BoolVar(&docsJSON, "json", false, "output as JSON")
}

func runDocsList(cmd *cobra.Command, args []string) error {
	a, err := openApp(GetConfig(), GetRootDir(), GetLogger(), appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	docs, err := a.ingest.Documents()
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if docsJSON {
		output, _ := json.MarshalIndent(docs, "", "  ")
		fmt.Println(string(output))
		return nil
	}
	if len(docs) == 0 {
		fmt.Println("No documents ingested.")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tCHUNKS\tUPDATED")
	for _, d := range docs {
		status := string(d.Status)
		if d.Stage != "" {
			status += " (" + d.Stage + ")"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", d.ID, status, d.ChunkCount, d.UpdatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func runDocsDelete(cmd *cobra.Command, args []string) error {
	a, err := openApp(GetConfig(), GetRootDir(), GetLogger(), appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	for _, id := range args {
		if err := a.ingest.Delete(cmd.Context(), id); err != nil {
			return fmt.Errorf("failed to delete %s: %w", id, err)
		}
		fmt.Printf("Deleted %s\n", id)
	}
	return nil
}
