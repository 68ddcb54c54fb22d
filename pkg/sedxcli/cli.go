// Package sedxcli is described in doc.go-equivalent comments on
// invocation.go; this file builds the github.com/spf13/cobra command
// tree spec.md §6.2 names and dispatches each leaf to the
// run/backup/rollback/history/status/config handlers in the sibling
// files of this package.
package sedxcli

import (
	"github.com/spf13/cobra"

	"github.com/InkyQuill/sedx/pkg/core"
	"github.com/InkyQuill/sedx/pkg/sed/dialect"
)

// Run builds and executes the cobra command tree over args, writing to
// stdio, and returns one of the core.Exit* codes — the same
// *core.Stdio-and-[]string-in, int-out contract every teacher applet's
// Run function uses, so this whole CLI is testable with the unmodified
// pkg/testutil harness without a real process boundary.
func Run(stdio *core.Stdio, args []string) int {
	exitCode := core.ExitSuccess
	root := buildRootCmd(stdio, &exitCode)
	root.SetArgs(args)
	root.SetOut(stdio.Out)
	root.SetErr(stdio.Err)

	if err := root.Execute(); err != nil {
		if exitCode != core.ExitSuccess {
			return exitCode
		}
		// cobra itself rejected the command line (unknown flag, bad
		// subcommand) before any RunE ran.
		return core.ExitUsage
	}
	return exitCode
}

func buildRootCmd(stdio *core.Stdio, exitCode *int) *cobra.Command {
	inv := DefaultInvocation()

	root := &cobra.Command{
		Use:           "sedx [OPTION]... {script} [file]...",
		Short:         "A safe, GNU-sed-compatible stream editor with transactional backups",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			inv.Targets = args
			*exitCode = runInvocation(stdio, &inv)
			return nil
		},
	}
	bindRunFlags(root, &inv)

	root.AddCommand(buildRunCmd(stdio, exitCode))
	root.AddCommand(buildRollbackCmd(stdio, exitCode))
	root.AddCommand(buildHistoryCmd(stdio, exitCode))
	root.AddCommand(buildStatusCmd(stdio, exitCode))
	root.AddCommand(buildBackupCmd(stdio, exitCode))
	root.AddCommand(buildConfigCmd(stdio, exitCode))
	return root
}

// bindRunFlags attaches every flag in spec.md §6.2's Invocation table
// to cmd, writing parsed values into inv.
func bindRunFlags(cmd *cobra.Command, inv *Invocation) {
	cmd.Flags().StringArrayVarP(&inv.Expressions, "expression", "e", nil, "add the script to the commands to run")
	cmd.Flags().StringArrayVarP(&inv.ScriptFiles, "file", "f", nil, "add the contents of script-file to the commands to run")
	cmd.Flags().BoolVarP(&inv.Quiet, "quiet", "n", false, "suppress automatic printing of pattern space")
	cmd.Flags().BoolVar(&inv.DryRun, "dry-run", false, "run the engine but render a diff instead of writing")
	cmd.Flags().BoolVarP(&inv.Interactive, "interactive", "i", false, "show a diff and prompt before committing each file")
	cmd.Flags().BoolVar(&inv.NoBackup, "no-backup", false, "skip backup creation (only honored together with --force)")
	cmd.Flags().BoolVar(&inv.Force, "force", false, "confirm skipping backup creation")
	cmd.Flags().StringVar(&inv.BackupDir, "backup-dir", "", "override the backup store root")
	cmd.Flags().IntVar(&inv.Context, "context", 2, "diff window context size (0..10)")
	streamingFlag := string(inv.Streaming)
	cmd.Flags().StringVar(&streamingFlag, "streaming", streamingFlag, "auto|force|forbid")
	dialectFlag := inv.Dialect.String()
	cmd.Flags().StringVar(&dialectFlag, "dialect", dialectFlag, "pcre|ere|bre")

	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		d, err := dialect.ParseDialect(dialectFlag)
		if err != nil {
			return err
		}
		inv.Dialect = d
		inv.Streaming = StreamingMode(streamingFlag)
		return nil
	}
}

func buildRunCmd(stdio *core.Stdio, exitCode *int) *cobra.Command {
	inv := DefaultInvocation()
	cmd := &cobra.Command{
		Use:   "run [OPTION]... {script} [file]...",
		Short: "Run a sed program against one or more files (the default operation)",
		RunE: func(cmd *cobra.Command, args []string) error {
			inv.Targets = args
			*exitCode = runInvocation(stdio, &inv)
			return nil
		},
	}
	bindRunFlags(cmd, &inv)
	return cmd
}

func buildRollbackCmd(stdio *core.Stdio, exitCode *int) *cobra.Command {
	var backupDir string
	cmd := &cobra.Command{
		Use:   "rollback [id]",
		Short: "Restore files from a backup (defaults to the most recent)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			*exitCode = rollbackInvocation(stdio, backupDir, id)
			return nil
		},
	}
	cmd.Flags().StringVar(&backupDir, "backup-dir", "", "override the backup store root")
	return cmd
}

func buildHistoryCmd(stdio *core.Stdio, exitCode *int) *cobra.Command {
	var backupDir string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List prior backups, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			*exitCode = historyInvocation(stdio, backupDir)
			return nil
		},
	}
	cmd.Flags().StringVar(&backupDir, "backup-dir", "", "override the backup store root")
	return cmd
}

func buildStatusCmd(stdio *core.Stdio, exitCode *int) *cobra.Command {
	var backupDir string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the active configuration and backup store summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			*exitCode = statusInvocation(stdio, backupDir)
			return nil
		},
	}
	cmd.Flags().StringVar(&backupDir, "backup-dir", "", "override the backup store root")
	return cmd
}

func buildBackupCmd(stdio *core.Stdio, exitCode *int) *cobra.Command {
	var backupDir string
	root := &cobra.Command{
		Use:   "backup",
		Short: "Inspect and manage the backup store",
	}
	root.PersistentFlags().StringVar(&backupDir, "backup-dir", "", "override the backup store root")

	root.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every backup, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveBackupRoot(backupDir)
			if err != nil {
				return err
			}
			*exitCode = backupList(stdio, root)
			return nil
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "show [id]",
		Short: "Show one backup's manifest",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveBackupRoot(backupDir)
			if err != nil {
				return err
			}
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			*exitCode = backupShow(stdio, root, id)
			return nil
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "restore [id]",
		Short: "Restore one backup's files over their original paths",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			storeRoot, err := resolveBackupRoot(backupDir)
			if err != nil {
				return err
			}
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			*exitCode = backupRestore(stdio, storeRoot, id)
			return nil
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "remove <id>",
		Short: "Delete one backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			storeRoot, err := resolveBackupRoot(backupDir)
			if err != nil {
				return err
			}
			*exitCode = backupRemove(stdio, storeRoot, args[0])
			return nil
		},
	})
	var keepCount int
	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove backups beyond the retention count",
		RunE: func(cmd *cobra.Command, args []string) error {
			storeRoot, err := resolveBackupRoot(backupDir)
			if err != nil {
				return err
			}
			*exitCode = backupPrune(stdio, storeRoot, keepCount)
			return nil
		},
	}
	pruneCmd.Flags().IntVar(&keepCount, "keep", 0, "number of backups to keep (0 = use the configured default)")
	root.AddCommand(pruneCmd)

	return root
}

func buildConfigCmd(stdio *core.Stdio, exitCode *int) *cobra.Command {
	root := &cobra.Command{
		Use:   "config",
		Short: "Show or materialize sedx's configuration file",
	}
	root.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the fully-resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			*exitCode = configShow(stdio)
			return nil
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "edit",
		Short: "Write the resolved configuration to config.toml",
		RunE: func(cmd *cobra.Command, args []string) error {
			*exitCode = configEdit(stdio)
			return nil
		},
	})
	return root
}
