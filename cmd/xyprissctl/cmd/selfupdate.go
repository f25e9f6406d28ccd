package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/creativeprojects/go-selfupdate"
	"github.com/spf13/cobra"
)

// githubRepoSlug names the repository self-update checks for new releases.
const githubRepoSlug = "iruldev/xyprissgo"

func newSelfUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "self-update",
		Short: "Update xyprissctl to the latest release",
		Long: `Checks GitHub for the latest xyprissctl release and replaces the
running binary with it if a newer version is found.`,
		RunE: runSelfUpdate,
	}
}

func runSelfUpdate(cmd *cobra.Command, args []string) error {
	currentVersion := rootCmd.Version
	if currentVersion == "" || currentVersion == "dev" {
		return fmt.Errorf("cannot self-update a development build")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "current version: %s\n", currentVersion)

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " checking for updates..."
	s.Start()

	updater, err := selfupdate.NewUpdater(selfupdate.Config{})
	if err != nil {
		s.Stop()
		return fmt.Errorf("create updater: %w", err)
	}

	latest, found, err := updater.DetectLatest(context.Background(), selfupdate.ParseSlug(githubRepoSlug))
	s.Stop()
	if err != nil {
		return fmt.Errorf("detect latest release: %w", err)
	}
	if !found {
		return fmt.Errorf("no release found for %s", githubRepoSlug)
	}

	if !latest.GreaterThan(currentVersion) {
		fmt.Fprintln(cmd.OutOrStdout(), "already at the latest version")
		return nil
	}

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "updating %s to %s...\n", exe, latest.Version())
	if err := updater.UpdateTo(context.Background(), latest, exe); err != nil {
		return fmt.Errorf("apply update: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "updated to %s\n", latest.Version())
	return nil
}
