package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"bunseki/pkg/aozora"
)

var worksCmd = &cobra.Command{
	Use:   "works",
	Short: "List the works that can be analyzed",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		printWorks(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(worksCmd)
}

func printWorks(w io.Writer) {
	fmt.Fprintln(w, "利用可能な作品:")
	for _, work := range aozora.Works {
		fmt.Fprintf(w, "  • %s（%s）\n", work.Title, work.Author)
	}
}
