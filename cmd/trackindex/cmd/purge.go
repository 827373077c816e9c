package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	trackindex "github.com/auralite/trackindex"
)

func newPurgeCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete the user's index file",
		Long: `Delete the selected user's index file outright. The index is rebuilt
from scratch on the next sync.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPurge(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Skip confirmation prompt")
	return cmd
}

func runPurge(cmd *cobra.Command, force bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ix := trackindex.New(trackindex.Options{DataDir: cfg.DataDir})
	path, exists := ix.FilePath(userID)
	if !exists {
		fmt.Fprintf(cmd.OutOrStdout(), "No index file for user %s.\n", userID)
		return nil
	}

	if !force {
		fmt.Fprintf(cmd.OutOrStdout(), "Delete %s? [y/N] ", path)
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		if !strings.EqualFold(strings.TrimSpace(answer), "y") {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}
	}

	if err := ix.DeleteFile(userID); err != nil {
		return fmt.Errorf("failed to delete index: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", path)
	return nil
}
