package cmd

import (
	"fmt"
	"strings"

	"github.com/audiolibrelab/singalong/internal/service"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the karaoke catalog",
	Long:  `Search tracks by title or artist. Without a query every track is listed.`,
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := service.New(cfg)
		if err != nil {
			return err
		}
		results, err := svc.Search(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(results) == 0 {
			fmt.Fprintln(out, "No tracks found")
			return nil
		}
		fmt.Fprintf(out, "📋 TRACKS (%d found):\n", len(results))
		for i, r := range results {
			fmt.Fprintf(out, "  %d. %s - %s [%s]\n", i+1, r.Artist, r.Title, r.ID)
		}
		return nil
	},
}
