package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	trackindex "github.com/auralite/trackindex"
)

// trackRecord is the JSON shape of one track in a sync input file.
type trackRecord struct {
	Filename     string `json:"filename"`
	Title        string `json:"title"`
	Artist       string `json:"artist"`
	Album        string `json:"album"`
	HasLyrics    bool   `json:"has_lyrics"`
	LastModified int64  `json:"last_modified"`
	Locator      string `json:"locator"`
}

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync <tracks.json>",
		Short: "Reconcile the index against a track list",
		Long: `Read the authoritative track list from a JSON file and reconcile the
index against it: stale entries are removed, new and changed tracks are
(re)written, unchanged tracks are skipped. Lyrics for new/changed tracks
are read from the sidecar file named by each track's locator.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, args[0])
		},
	}
	return cmd
}

func runSync(cmd *cobra.Command, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read track list: %w", err)
	}
	var records []trackRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("failed to parse track list: %w", err)
	}

	tracks := make([]trackindex.Track, len(records))
	for i, r := range records {
		tracks[i] = trackindex.Track{
			Filename:     r.Filename,
			Title:        r.Title,
			Artist:       r.Artist,
			Album:        r.Album,
			HasLyrics:    r.HasLyrics,
			LastModified: r.LastModified,
			Locator:      r.Locator,
		}
	}

	ix, cleanup, err := openIndex(cmd, sidecarGateway{})
	if err != nil {
		return err
	}
	defer cleanup()

	summary, err := ix.Reconcile(cmd.Context(), tracks)
	if err != nil {
		return fmt.Errorf("reconciliation failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(),
		"Reconciled %d tracks: %d added, %d updated, %d removed, %d skipped (%d lyrics extracted, %d failures) in %s\n",
		len(tracks), summary.Added, summary.Updated, summary.Removed,
		summary.Skipped, summary.Extracted, summary.ExtractionErrors,
		summary.Duration.Round(1e6))
	return nil
}

// sidecarGateway reads lyrics from the local file named by the locator.
// It stands in for the app's embedded-tag extraction service.
type sidecarGateway struct{}

func (sidecarGateway) Extract(_ context.Context, locator string) (string, error) {
	if locator == "" {
		return "", nil
	}
	data, err := os.ReadFile(locator)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil // no sidecar means no lyrics, not an error
		}
		return "", err
	}
	return string(data), nil
}
