// Package cmd implements the xyprissctl installer-style CLI: it recognizes
// --version and --help itself and forwards every other invocation to the
// xyprissd server binary installed alongside it, the cobra root-command
// shape the giantswarm-muster pack uses (rootCmd + SetVersion/Execute),
// adapted from a connect-to-a-running-server CLI to a forward-to-a-sibling-
// binary launcher.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes, mirroring the pack's muster CLI convention of small, scripted
// exit codes rather than bare os.Exit(1) everywhere.
const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
)

var rootCmd = &cobra.Command{
	Use:   "xyprissctl",
	Short: "Manage and launch the xypriss application server",
	Long: `xyprissctl is the installer-style entry point for the xypriss HTTP
server framework. Invoked with no recognized flag of its own, it forwards
every argument to the xyprissd server binary installed next to it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	// DisableFlagParsing lets xyprissd's own flags pass through untouched;
	// runRoot inspects os.Args itself for --version/--help/-h/-v before
	// forwarding anything else.
	DisableFlagParsing: true,
	RunE:               runRoot,
}

// SetVersion sets the version for the root command, injected at build time
// by main via -ldflags.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current build version string.
func GetVersion() string {
	return rootCmd.Version
}

// Execute runs the CLI and exits the process with the resulting exit code.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "xyprissctl version %s\n" .Version}}`)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(ExitCodeError)
	}
}

func runRoot(cmd *cobra.Command, args []string) error {
	for _, a := range args {
		switch a {
		case "--version", "-v":
			fmt.Fprintf(cmd.OutOrStdout(), "xyprissctl version %s\n", rootCmd.Version)
			return nil
		case "--help", "-h":
			return cmd.Help()
		}
	}
	return forwardToServer(args)
}

func init() {
	rootCmd.AddCommand(newSelfUpdateCmd())
}
