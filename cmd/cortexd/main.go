// cortexd is the native backend daemon of the cortex developer workspace:
// it owns the knowledge store, supervises the embedding sidecar, indexes
// watched directories and captures terminal sessions.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

var dataDirFlag string

func main() {
	root := &cobra.Command{
		Use:   "cortexd",
		Short: "Cortex workspace backend daemon",
		Long: `cortexd keeps a local knowledge base (notes, tasks, code entities,
terminal history, file embeddings) synchronized with a workspace directory,
an embedding sidecar and interactive shell sessions.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "app data directory (default: OS config dir)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newConsoleCmd())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("cortexd v%s\n", version)
		},
	})

	// Bare invocation serves.
	root.RunE = func(cmd *cobra.Command, args []string) error {
		return runServe(cmd, args)
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
