package cli

import (
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"docqa/internal/adapter/fs"
	"docqa/internal/usecase"
)

var (
	ingestExcludes []string
	ingestQuiet    bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file|dir|glob>...",
	Short: "Ingest documents into the index",
	Long: `Chunk, embed and index text documents. Each file is stored under its path
relative to the project directory, so ingesting the same file again replaces
its records.

Examples:
  docqa ingest notes.txt
  docqa ingest docs                    # every file under docs/
  docqa ingest "docs/**/*.md" --exclude "docs/drafts/**"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringSliceVar(&ingestExcludes, "exclude", nil, "doublestar patterns to skip")
	ingestCmd.Flags().BoolVar(&ingestQuiet, "quiet", false, "hide progress bars")
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	dir := GetRootDir()
	ctx := cmd.Context()

	excludes := append(append([]string{}, fs.DefaultExcludes...), ingestExcludes...)
	files, err := fs.NewWalker(excludes).Expand(dir, args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files matched %v", args)
	}

	a, err := openApp(cfg, dir, GetLogger(), appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.ensure(ctx, false); err != nil {
		return err
	}

	fmt.Printf("Ingesting %d files into %s/%s...\n", len(files), cfg.Index.Provider, cfg.Index.Namespace)

	var (
		ingested, chunks, pruned int
		failures                 []string
	)
	for _, f := range files {
		text, err := fs.ReadFile(f.Path)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", f.RelPath, err))
			continue
		}
		if !utf8.ValidString(text) {
			failures = append(failures, fmt.Sprintf("%s: not a UTF-8 text file", f.RelPath))
			continue
		}

		var progress usecase.ProgressFunc
		if !ingestQuiet {
			progress = newChunkProgress(f.RelPath)
		}

		res, err := a.ingest.Ingest(ctx, usecase.IngestRequest{
			DocID:  f.RelPath,
			Source: f.Path,
			Text:   text,
		}, progress)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			failures = append(failures, fmt.Sprintf("%s: %v", f.RelPath, err))
			continue
		}
		ingested++
		chunks += res.Chunks
		pruned += res.Pruned
	}

	fmt.Printf("\nIngestion complete:\n")
	fmt.Printf("  Files ingested: %d\n", ingested)
	fmt.Printf("  Files failed:   %d\n", len(failures))
	fmt.Printf("  Chunks written: %d\n", chunks)
	if pruned > 0 {
		fmt.Printf("  Stale records:  %d (pruned)\n", pruned)
	}

	if len(failures) > 0 {
		fmt.Printf("\nFailures:\n")
		for _, f := range failures {
			fmt.Printf("  - %s\n", f)
		}
		return fmt.Errorf("%d of %d files failed", len(failures), len(files))
	}
	return nil
}

// newChunkProgress returns a progress callback that draws a bar on the first
// embedded chunk and keeps an ETA in its description.
func newChunkProgress(name string) usecase.ProgressFunc {
	var (
		mu        sync.Mutex
		bar       *progressbar.ProgressBar
		startTime time.Time
	)

	return func(done, total int) {
		mu.Lock()
		defer mu.Unlock()

		if bar == nil {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription(fmt.Sprintf("[cyan]%s[reset]", name)),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}

		_ = bar.Set(done)

		if done > 0 && done < total {
			elapsed := time.Since(startTime)
			rate := float64(done) / elapsed.Seconds()
			if rate > 0 {
				eta := time.Duration(float64(total-done)/rate) * time.Second
				bar.Describe(fmt.Sprintf("[cyan]%s[reset] ETA: %s", name, formatDuration(eta)))
			}
		}
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
