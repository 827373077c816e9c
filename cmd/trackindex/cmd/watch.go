package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	trackindex "github.com/auralite/trackindex"
	"github.com/auralite/trackindex/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch <library-dir>",
		Short: "Watch a library directory and resync on changes",
		Long: `Watch a music library directory tree and reconcile the index whenever
track files change. The track list is rebuilt from the directory contents
on each signal; file modification times serve as change markers.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, args[0], debounce)
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", 0, "Event coalescing window (0 uses the configured value)")
	return cmd
}

func runWatch(cmd *cobra.Command, libraryDir string, debounce time.Duration) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if debounce == 0 {
		debounce = cfg.Watch.Debounce
	}

	ix, cleanup, err := openIndex(cmd, sidecarGateway{})
	if err != nil {
		return err
	}
	defer cleanup()

	resync := func() error {
		tracks, err := scanLibrary(libraryDir)
		if err != nil {
			return err
		}
		summary, err := ix.Reconcile(cmd.Context(), tracks)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(),
			"Resynced: %d added, %d updated, %d removed, %d skipped\n",
			summary.Added, summary.Updated, summary.Removed, summary.Skipped)
		return nil
	}

	// Initial pass so the index reflects the library before the first event.
	if err := resync(); err != nil {
		return err
	}

	w := watcher.New(debounce)
	if err := w.Start(cmd.Context(), libraryDir); err != nil {
		return err
	}
	defer w.Stop()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (Ctrl-C to stop)\n", libraryDir)

	for {
		select {
		case <-w.Signals():
			if err := resync(); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "resync failed: %v\n", err)
			}
		case <-stop:
			return nil
		case <-cmd.Context().Done():
			return nil
		}
	}
}

// scanLibrary builds the authoritative track list from the directory tree.
// Metadata comes from an optional per-track JSON sidecar (<file>.json); a
// track without one is indexed under its base name.
func scanLibrary(dir string) ([]trackindex.Track, error) {
	var tracks []trackindex.Track
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		ext := strings.ToLower(filepath.Ext(path))
		switch ext {
		case ".mp3", ".flac", ".m4a", ".ogg", ".opus", ".wav":
		default:
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		track := trackindex.Track{
			Filename:     rel,
			Title:        strings.TrimSuffix(d.Name(), filepath.Ext(d.Name())),
			LastModified: info.ModTime().UnixMilli(),
		}

		// Sidecar metadata, when present, overrides the filename-derived title.
		if data, err := os.ReadFile(path + ".json"); err == nil {
			var r trackRecord
			if err := json.Unmarshal(data, &r); err == nil {
				if r.Title != "" {
					track.Title = r.Title
				}
				track.Artist = r.Artist
				track.Album = r.Album
			}
		}

		// A sidecar .lrc file marks the track as having lyrics.
		lrc := strings.TrimSuffix(path, filepath.Ext(path)) + ".lrc"
		if _, err := os.Stat(lrc); err == nil {
			track.HasLyrics = true
			track.Locator = lrc
		}

		tracks = append(tracks, track)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan library: %w", err)
	}
	return tracks, nil
}
