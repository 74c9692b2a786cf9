package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	initRebuild     bool
	initWriteConfig bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the index namespace",
	Long: `Create the configured namespace in the vector index and record the schema
version. Ingestion refuses to run against a namespace that does not exist
unless index.auto_create is set.

Examples:
  docqa init                  # Create the namespace
  docqa init --rebuild        # Drop every document and start over
  docqa init --write-config   # Also write docqa.yaml with defaults`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initRebuild, "rebuild", false, "delete all documents and records before initialising")
	initCmd.Flags().BoolVar(&initWriteConfig, "write-config", false, "write the effective config to docqa.yaml")
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	dir := GetRootDir()
	ctx := cmd.Context()

	a, err := openApp(cfg, dir, GetLogger(), appOptions{allowRebuild: true})
	if err != nil {
		return err
	}
	defer a.Close()

	migration, err := a.store.CheckMigration(cfg)
	if err != nil {
		return fmt.Errorf("failed to check migration: %w", err)
	}

	if initRebuild || migration.NeedsRebuild {
		if migration.NeedsRebuild {
			fmt.Printf("Index rebuild required: %s\n", migration.Reason)
		}
		fmt.Println("Clearing existing index...")
		n, err := a.ingest.Reset(ctx)
		if err != nil {
			return fmt.Errorf("failed to reset index: %w", err)
		}
		if err := a.store.Clear(); err != nil {
			return fmt.Errorf("failed to clear registry: %w", err)
		}
		fmt.Printf("  Documents removed: %d\n", n)
	}

	if err := a.ensure(ctx, true); err != nil {
		return err
	}
	if err := a.store.Migrate(cfg); err != nil {
		return fmt.Errorf("failed to update schema info: %w", err)
	}

	if initWriteConfig {
		path := filepath.Join(dir, "docqa.yaml")
		if _, err := os.Stat(path); err == nil {
			fmt.Printf("Config already exists at %s, leaving it unchanged\n", path)
		} else if err := cfg.Save(path); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		} else {
			fmt.Printf("Config written to %s\n", path)
		}
	}

	spec := a.spec()
	fmt.Printf("\nNamespace ready:\n")
	fmt.Printf("  Provider:   %s\n", cfg.Index.Provider)
	fmt.Printf("  Namespace:  %s\n", cfg.Index.Namespace)
	fmt.Printf("  Dimension:  %d\n", spec.Dimension)
	fmt.Printf("  Metric:     %s\n", spec.Metric)
	if cfg.Index.Provider == "bolt" {
		fmt.Printf("  Stored at:  %s\n", cfg.IndexDBPath(dir))
	}
	return nil
}
