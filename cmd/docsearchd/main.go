// Command docsearchd runs the document search indexing daemon and its
// HTTP API, and provides CLI subcommands for managing sources and
// running ad-hoc searches.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/localsearch/docsearch/pkg/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "docsearchd",
		Short:   "Personal document search: ingest, index and hybrid-search local and bookmarked documents",
		Version: version.Short(),
	}

	root.PersistentFlags().String("config-dir", ".", "directory to look for docsearch.yaml in")
	root.PersistentFlags().Bool("debug", false, "enable verbose file logging")

	root.AddCommand(
		newServeCmd(),
		newSourceCmd(),
		newSearchCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
			return nil
		},
	}
}
