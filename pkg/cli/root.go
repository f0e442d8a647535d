package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Liiesl/EasyScanlate/pkg/common"
	"github.com/Liiesl/EasyScanlate/pkg/config"
	"github.com/Liiesl/EasyScanlate/pkg/disk"
	"github.com/Liiesl/EasyScanlate/pkg/display"
	"github.com/Liiesl/EasyScanlate/pkg/downloader"
	"github.com/Liiesl/EasyScanlate/pkg/metadata"
	"github.com/Liiesl/EasyScanlate/pkg/release"
)

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	err := cmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return ExitCode(err)
}

// ExitCode maps a command error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, common.ErrUserCancelled):
		return ExitCancelled
	default:
		return ExitFatal
	}
}

// NewRootCmd builds the setup command tree.
func NewRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "setup",
		Short:         "Install, update and remove MangaOCRTool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&g.Verbose, "verbose", "v", false, "Show debug logs")
	root.PersistentFlags().StringVar(&g.Config, "config", "", "Path to setup.toml")

	root.AddCommand(
		newInstallCmd(g),
		newUninstallCmd(g),
		newStatusCmd(g),
		newCheckUpdateCmd(g),
		newDiskCmd(g),
		newVersionCmd(),
	)
	return root
}

// setup initializes logging and the managers for one command. override may
// adjust the settings before the config is frozen.
func setup(cmd *cobra.Command, g *globalFlags, override func(*config.Settings)) (*Managers, error) {
	level := slog.LevelWarn
	if g.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))

	cfg, err := config.Init(g.Config)
	if err != nil {
		return nil, fmt.Errorf("error initializing config: %w", err)
	}
	if override != nil {
		w := cfg.Checkout()
		w.Update(override)
		s := w.GetSettings()
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}
	cfg.Freeze()

	store, err := metadata.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("error opening installation records: %w", err)
	}

	disp := display.NewWriterDisplay(cmd.OutOrStdout())
	disp.SetVerbose(g.Verbose)
	dl := downloader.NewDefaultDownloader()
	return &Managers{
		Disp:       disp,
		Cfg:        cfg,
		Store:      store,
		DiskMgr:    disk.NewManager(cfg),
		Downloader: dl,
		Resolver:   release.NewResolver(cfg.GetSettings().Remote, dl),
	}, nil
}

// run executes an action with fresh managers and renders its output.
func run(cmd *cobra.Command, g *globalFlags, override func(*config.Settings), action func(context.Context, *Managers) (*common.ExecutionResult, error)) error {
	mgr, err := setup(cmd, g, override)
	if err != nil {
		return err
	}
	defer mgr.Close()

	res, err := action(cmd.Context(), mgr)
	if err != nil {
		return err
	}
	if res != nil && res.Output != nil {
		mgr.Disp.RenderOutput(res.Output)
	}
	return nil
}

func newInstallCmd(g *globalFlags) *cobra.Command {
	p := &installParams{globalFlags: g}
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install the application and its runtime dependency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			override := func(s *config.Settings) {
				if p.Tag != "" {
					s.Remote.ReleaseTag = p.Tag
				}
			}
			return run(cmd, g, override, func(ctx context.Context, mgr *Managers) (*common.ExecutionResult, error) {
				return runInstall(ctx, mgr, p)
			})
		},
	}
	cmd.Flags().StringVar(&p.Dir, "dir", "", "Install directory")
	cmd.Flags().StringVar(&p.Source, "source", "", "Build output tree to install from")
	cmd.Flags().BoolVarP(&p.Silent, "silent", "s", false, "Run without prompts using the default choices")
	cmd.Flags().StringVar(&p.Tag, "tag", "", "Release tag of the dependency archive, or \"latest\"")
	return cmd
}

func newUninstallCmd(g *globalFlags) *cobra.Command {
	p := &uninstallParams{globalFlags: g}
	cmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the application",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if p.Mode == "" {
				return nil
			}
			_, err := common.ParseUninstallMode(p.Mode)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, g, nil, func(ctx context.Context, mgr *Managers) (*common.ExecutionResult, error) {
				return runUninstall(ctx, mgr, p)
			})
		},
	}
	cmd.Flags().StringVar(&p.Dir, "dir", "", "Install directory (default: the recorded one)")
	cmd.Flags().BoolVarP(&p.Silent, "silent", "s", false, "Run without prompts; removes everything unless --mode is given")
	cmd.Flags().StringVar(&p.Mode, "mode", "", "complete or preserve (keep the runtime dependency)")
	return cmd
}

func newStatusCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the recorded installation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, g, nil, runStatus)
		},
	}
}

func newCheckUpdateCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check-update",
		Short: "Compare the installed version with the latest release",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, g, nil, runCheckUpdate)
		},
	}
}

func newDiskCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "disk",
		Short: "Inspect or clean setup's own storage",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "info",
			Short: "Show the size of downloads, state and config",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(cmd, g, nil, func(ctx context.Context, mgr *Managers) (*common.ExecutionResult, error) {
					return mgr.DiskMgr.Info()
				})
			},
		},
		&cobra.Command{
			Use:   "clean",
			Short: "Delete leftover downloads",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(cmd, g, nil, func(ctx context.Context, mgr *Managers) (*common.ExecutionResult, error) {
					return mgr.DiskMgr.CleanDir()
				})
			},
		},
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), config.GetBuildInfo())
			return err
		},
	}
}
