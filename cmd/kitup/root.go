package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kitup-dev/kitup/internal/version"
	"github.com/kitup-dev/kitup/pkg/commands/install"
	"github.com/kitup-dev/kitup/pkg/commands/status"
	"github.com/kitup-dev/kitup/pkg/commands/uninstall"
	"github.com/kitup-dev/kitup/pkg/commands/update"
	kerrors "github.com/kitup-dev/kitup/pkg/errors"
	"github.com/kitup-dev/kitup/pkg/logging"
	"github.com/kitup-dev/kitup/pkg/types"
	"github.com/kitup-dev/kitup/pkg/ui"
)

var (
	verbosity  int
	sourceRoot string

	rootCmd = &cobra.Command{
		Use:   "kitup",
		Short: "Installs and maintains an agent configuration bundle",
		Long: `kitup deploys a configuration bundle (instructions document plus
skill directories) from a git checkout into the agent's configuration
directory, tracks the installation, and keeps it up to date.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetupLogger(verbosity)
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)")
	rootCmd.PersistentFlags().StringVar(&sourceRoot, "source", "", "Bundle source directory (default: KITUP_BUNDLE_ROOT or the enclosing git checkout)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(newInstallCmd())
	rootCmd.AddCommand(newUpdateCmd())
	rootCmd.AddCommand(newUninstallCmd())
	rootCmd.AddCommand(newStatusCmd())
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("kitup version %s\n", version.Version)
		fmt.Printf("  commit: %s\n", version.Commit)
		fmt.Printf("  built:  %s\n", version.Date)
	},
}

func newInstallCmd() *cobra.Command {
	var modeFlag string

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install the bundle into the agent configuration directory",
		Long: `Install places every bundle resource at its target. Reference mode
links targets back to the source checkout so a git pull updates them in
place; materialize mode copies content so targets survive without the
checkout. Existing unmanaged content at a target is backed up first.

Running install over an existing installation is a reinstall: it
re-places everything and may switch the placement mode.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := types.ParsePlacementMode(modeFlag)
			if err != nil {
				return kerrors.Wrap(err, kerrors.ErrInvalidInput, "invalid --mode")
			}

			result, err := install.Install(install.Options{
				SourceRoot: sourceRoot,
				Mode:       mode,
			})
			if err != nil {
				return err
			}
			ui.NewRenderer(os.Stdout).Install(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&modeFlag, "mode", "reference", "Placement mode: reference (symlink) or materialize (copy)")
	return cmd
}

func newUpdateCmd() *cobra.Command {
	var policyFlag string

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Pull the latest bundle content and re-apply it",
		Long: `Update pulls the source checkout forward, re-places every resource
under the recorded placement mode, and reports what changed. When the
checkout has uncommitted modifications, --on-changes decides their
fate; without it the update stops rather than touch user edits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := types.ParseLocalChangesPolicy(policyFlag)
			if err != nil {
				return kerrors.Wrap(err, kerrors.ErrInvalidInput, "invalid --on-changes")
			}

			result, err := update.Update(update.Options{
				SourceRoot: sourceRoot,
				Policy:     policy,
			})
			if err != nil {
				return err
			}
			ui.NewRenderer(os.Stdout).Update(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&policyFlag, "on-changes", "", "What to do with local source changes: commit, stash, or abort")
	return cmd
}

func newUninstallCmd() *cobra.Command {
	var (
		restore     bool
		purgeSource bool
		yes         bool
	)

	cmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove every installed resource and the installation record",
		Long: `Uninstall removes the target of every currently declared resource and
deletes the installation record. --restore replays the most recent
backup snapshot afterwards, bringing back content that an install or
update displaced. --purge-source additionally deletes the bundle
checkout itself.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if purgeSource && !yes {
				if !confirm(cmd, "Delete the bundle source checkout as well? This cannot be undone.") {
					return kerrors.New(kerrors.ErrUserAborted, "uninstall aborted")
				}
			}

			result, err := uninstall.Uninstall(uninstall.Options{
				SourceRoot:  sourceRoot,
				Restore:     restore,
				PurgeSource: purgeSource,
			})
			if err != nil {
				return err
			}
			ui.NewRenderer(os.Stdout).Uninstall(result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&restore, "restore", false, "Restore the most recent backup snapshot after removal")
	cmd.Flags().BoolVar(&purgeSource, "purge-source", false, "Also delete the bundle source directory")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation prompts")
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the installation record and per-resource state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := status.Status(sourceRoot, nil)
			if err != nil {
				return err
			}
			ui.NewRenderer(os.Stdout).Status(result)
			return nil
		},
	}
}

func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N]: ", prompt)
	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
