// Command bm25ctl is an operator-facing inspector and driver for a
// bm25idx index file, standing in for the psql/pg_catalog surface a
// real host database would give this access method for free.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "bm25ctl",
		Short:         "inspect, build, and query bm25idx index files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(inspectCmd())
	root.AddCommand(buildCmd())
	root.AddCommand(queryCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "bm25ctl:", err)
		os.Exit(1)
	}
}
