package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	trackindex "github.com/auralite/trackindex"
)

var allFields = []trackindex.MatchField{
	trackindex.MatchTitle,
	trackindex.MatchArtist,
	trackindex.MatchAlbum,
	trackindex.MatchLyrics,
}

func newSearchCmd() *cobra.Command {
	var fieldNames []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the index",
		Long: `Search the index by substring containment. Results are deduplicated
per track; a lyrics match shows the matching lyric line with timing
markers stripped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseFields(fieldNames)
			if err != nil {
				return err
			}
			return runSearch(cmd, args[0], fields, jsonOutput)
		},
	}

	cmd.Flags().StringSliceVarP(&fieldNames, "fields", "f", []string{"title", "artist", "album", "lyrics"},
		"Fields to search (title, artist, album, lyrics)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func parseFields(names []string) ([]trackindex.MatchField, error) {
	var fields []trackindex.MatchField
	for _, name := range names {
		field := trackindex.MatchField(strings.ToLower(strings.TrimSpace(name)))
		switch field {
		case trackindex.MatchTitle, trackindex.MatchArtist, trackindex.MatchAlbum, trackindex.MatchLyrics:
			fields = append(fields, field)
		default:
			return nil, fmt.Errorf("unknown field %q (want title, artist, album, or lyrics)", name)
		}
	}
	return fields, nil
}

func runSearch(cmd *cobra.Command, query string, fields []trackindex.MatchField, jsonOutput bool) error {
	ix, cleanup, err := openIndex(cmd, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	results, err := ix.Search(cmd.Context(), query, fields)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No matches.")
		return nil
	}

	// Tab-aligned table on a terminal, plain TSV when piped.
	if isatty.IsTerminal(os.Stdout.Fd()) {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "FILE\tFIELD\tMATCH")
		for _, r := range results {
			fmt.Fprintf(w, "%s\t%s\t%s\n", r.Filename, r.Field, r.MatchedText)
		}
		return w.Flush()
	}
	for _, r := range results {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", r.Filename, r.Field, r.MatchedText)
	}
	return nil
}
