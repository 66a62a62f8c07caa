// Package cli is the polyagents command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/polyagents/internal/app"
	"github.com/alanyoungcy/polyagents/internal/config"
	"github.com/alanyoungcy/polyagents/internal/domain"
)

type rootFlags struct {
	configPath string
	agentsPath string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "polyagents",
		Short: "Autonomous paper-trading agents for prediction markets",
		Long: `polyagents runs a roster of AI agents that score Polymarket markets,
ask a language model for a side and confidence, and track simulated trades,
portfolios and a leaderboard.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "TOML configuration file")
	root.PersistentFlags().StringVar(&flags.agentsPath, "agents", "", "YAML agent roster (overrides agents_file)")

	root.AddCommand(
		newRunCmd(flags),
		newGenerateCmd(flags),
		newLeaderboardCmd(flags),
		newAgentsCmd(flags),
	)
	return root
}

// load reads and validates the configuration and roster.
func load(flags *rootFlags) (*config.Config, []domain.AgentProfile, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, nil, err
	}
	if flags.agentsPath != "" {
		cfg.AgentsFile = flags.agentsPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	agents, err := config.LoadAgents(cfg.AgentsFile)
	if err != nil {
		return nil, nil, err
	}
	return cfg, agents, nil
}

func newRunCmd(flags *rootFlags) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the configured mode (serve, cycle or full)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, agents, err := load(flags)
			if err != nil {
				return err
			}
			if mode != "" {
				cfg.Mode = mode
				if err := cfg.Validate(); err != nil {
					return err
				}
			}

			logger, closeLog := app.NewLogger(cfg, cmd.OutOrStdout())
			defer closeLog()
			slog.SetDefault(logger)
			logger.Info("polyagents starting",
				slog.String("mode", cfg.Mode),
				slog.Any("config", config.RedactedConfig(cfg)),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			application := app.New(cfg, agents, logger)
			defer application.Close()

			if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("polyagents exited with error", slog.String("error", err.Error()))
				return err
			}
			logger.Info("polyagents stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "override the configured mode")
	return cmd
}

// oneShot wires the app with logs on stderr, leaving stdout for output.
func oneShot(cmd *cobra.Command, flags *rootFlags, fn func(ctx context.Context, svc *app.Services) error) error {
	cfg, agents, err := load(flags)
	if err != nil {
		return err
	}
	logger, closeLog := app.NewLogger(cfg, cmd.ErrOrStderr())
	defer closeLog()

	application := app.New(cfg, agents, logger)
	defer application.Close()

	ctx := cmd.Context()
	_, svc, err := application.Start(ctx)
	if err != nil {
		return err
	}
	return fn(ctx, svc)
}

func newGenerateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "generate AGENT_ID",
		Short: "Run one generation cycle for an agent and print its trades",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return oneShot(cmd, flags, func(ctx context.Context, svc *app.Services) error {
				trades, err := svc.Generator.GenerateAgentTrades(ctx, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, titleStyle.Render("Trades for "+args[0]))
				fmt.Fprintln(out, renderTrades(trades))
				fmt.Fprintln(out, titleStyle.Render("Research"))
				fmt.Fprintln(out, renderResearch(svc.Generator.GetAgentResearch(args[0])))
				return nil
			})
		},
	}
}

func newLeaderboardCmd(flags *rootFlags) *cobra.Command {
	var window string
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print agent rankings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			w, err := domain.ParseTimeWindow(window)
			if err != nil {
				return err
			}
			return oneShot(cmd, flags, func(ctx context.Context, svc *app.Services) error {
				rows, err := svc.Leaderboard.Leaderboard(ctx, w)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, titleStyle.Render("Leaderboard ("+string(w)+")"))
				fmt.Fprintln(out, renderLeaderboard(rows))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&window, "window", "all", "time window: all, 30d, 7d or 24h")
	return cmd
}

func newAgentsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List the agent roster",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, agents, err := load(flags)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderAgents(agents))
			return nil
		},
	}
}

// Execute runs the root command with args.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}
