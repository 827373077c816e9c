package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// statsOutput is the JSON output format for index stats.
type statsOutput struct {
	TotalEntries      int    `json:"total_entries"`
	EntriesWithLyrics int    `json:"entries_with_lyrics"`
	TotalLyricsChars  int64  `json:"total_lyrics_chars"`
	LastUpdated       string `json:"last_updated,omitempty"`
}

func newStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func runStats(cmd *cobra.Command, jsonOutput bool) error {
	ix, cleanup, err := openIndex(cmd, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	stats, err := ix.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read stats: %w", err)
	}

	if jsonOutput {
		out := statsOutput{
			TotalEntries:      stats.TotalEntries,
			EntriesWithLyrics: stats.EntriesWithLyrics,
			TotalLyricsChars:  stats.TotalLyricsChars,
		}
		if stats.HasLastUpdated {
			out.LastUpdated = stats.LastUpdated.UTC().Format(time.RFC3339)
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Entries:        %d\n", stats.TotalEntries)
	fmt.Fprintf(cmd.OutOrStdout(), "With lyrics:    %d\n", stats.EntriesWithLyrics)
	fmt.Fprintf(cmd.OutOrStdout(), "Lyrics chars:   %d\n", stats.TotalLyricsChars)
	if stats.HasLastUpdated {
		fmt.Fprintf(cmd.OutOrStdout(), "Last updated:   %s\n", stats.LastUpdated.Local().Format(time.RFC1123))
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "Last updated:   never")
	}
	return nil
}
