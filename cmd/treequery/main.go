// Command treequery resolves, inspects, and runs named tree-sitter queries
// against source files.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/termfx/treequery/locator"
)

var (
	flagPath  []string
	flagDB    string
	flagDebug bool
)

func main() {
	// Optional .env for TREEQUERY_PATH, TREEQUERY_DB, libsql credentials.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "treequery",
		Short:         "Run named tree-sitter queries with predicate filtering",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringSliceVarP(&flagPath, "path", "p", nil,
		"query search roots (default: $TREEQUERY_PATH)")
	root.PersistentFlags().StringVar(&flagDB, "db", os.Getenv("TREEQUERY_DB"),
		"run log database (sqlite path or libsql URL, empty disables logging)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false,
		"enable debug logging")

	root.AddCommand(newResolveCmd(), newCapturesCmd(), newHandlersCmd(), newRunCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// searchLocator builds the file lookup from --path or the environment.
func searchLocator() *locator.Locator {
	if len(flagPath) > 0 {
		return locator.New(flagPath...)
	}
	return locator.FromEnv()
}
