package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "entity-admin",
		Short: "Admin backend for registered Go entities",
		Long: `entity-admin serves a generic admin API (list, search, page, view,
update, upload) over the entities registered with the metadata builder.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "config file or directory holding app.yaml")

	root.AddCommand(newServeCmd())
	root.AddCommand(newDescribeCmd())
	root.AddCommand(newHashPasswordCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
