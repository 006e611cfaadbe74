package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jwebster45206/hackslash/internal/autoplay"
	"github.com/jwebster45206/hackslash/internal/console"
	"github.com/jwebster45206/hackslash/internal/logger"
	"github.com/jwebster45206/hackslash/internal/services/events"
	"github.com/jwebster45206/hackslash/pkg/state"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var opts setupOptions

	root := &cobra.Command{
		Use:   "hackslash",
		Short: "Password extraction roguelike played through an AI ally",
		Long: `AI Hackslash: write a short instruction for your ally AI, which then talks
to an enemy AI guarding a password. Make the enemy say the password before
your turns run out, pick an upgrade and move on to the next stage.`,
		Version:      versionString(),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd, opts)
		},
	}
	root.PersistentFlags().StringVar(&opts.provider, "provider", "", "override LLM_PROVIDER (openai, anthropic, gemini, mock)")

	root.AddCommand(newPlayCmd(&opts))
	root.AddCommand(newConsoleCmd(&opts))
	root.AddCommand(newAutoplayCmd(&opts))
	root.AddCommand(newStagesCmd())
	root.AddCommand(newWatchCmd(&opts))
	root.AddCommand(newVersionCmd())
	return root
}

func newPlayCmd(opts *setupOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "play",
		Short: "Play in the full-screen terminal UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd, *opts)
		},
	}
}

func runPlay(cmd *cobra.Command, opts setupOptions) error {
	opts.quietLogs = true
	a, err := setup(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer a.close()
	return console.Run(cmd.Context(), a.eng, a.log)
}

func newConsoleCmd(opts *setupOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Play in plain line mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o := *opts
			o.quietLogs = true
			a, err := setup(cmd.Context(), o)
			if err != nil {
				return err
			}
			defer a.close()
			return console.NewLineConsole(a.eng, cmd.InOrStdin(), cmd.OutOrStdout()).Run(cmd.Context())
		},
	}
}

func newAutoplayCmd(opts *setupOptions) *cobra.Command {
	var (
		runs        int
		maxFailures int
	)
	cmd := &cobra.Command{
		Use:   "autoplay",
		Short: "Let a scripted player run the game",
		Long: `Autoplay tells the ally each stage's password, always takes the first
upgrade and starts over after a failed stage. With --provider mock it runs
fully offline.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if runs < 1 {
				return errors.New("--runs must be at least 1")
			}
			a, err := setup(cmd.Context(), *opts)
			if err != nil {
				return err
			}
			defer a.close()

			out := cmd.OutOrStdout()
			runner := autoplay.New(a.eng, out,
				autoplay.WithMaxFailures(maxFailures),
				autoplay.WithLogger(a.log))

			won := 0
			for i := range runs {
				if i > 0 {
					if err := a.eng.ResetSession(); err != nil {
						return err
					}
				}
				res, err := runner.Run(cmd.Context())
				if err != nil {
					return fmt.Errorf("run %d: %w", i+1, err)
				}
				if res.Victory {
					won++
				}
				a.log.Info("Auto play run finished",
					"run", i+1,
					"victory", res.Victory,
					"turns", res.Turns,
					"failures", res.Failures,
					"rewards", res.Rewards)
			}
			fmt.Fprintf(out, "\n%d/%d runs won\n", won, runs)
			return nil
		},
	}
	cmd.Flags().IntVar(&runs, "runs", 1, "number of full runs to play")
	cmd.Flags().IntVar(&maxFailures, "max-failures", autoplay.DefaultMaxFailures, "stop a run after this many failed stages")
	return cmd
}

func newStagesCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "stages",
		Short: "Validate and list the stage and reward catalogs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ladder := state.DefaultLadder()
			cfg, err := loadConfig(setupOptions{})
			if err == nil {
				ladder = cfg.Ladder()
				if file == "" {
					file = cfg.CatalogFile
				}
			}

			out := cmd.OutOrStdout()
			name := file
			if name == "" {
				name = "built-in catalog"
			}
			fmt.Fprintf(out, "Validating %s...\n", name)

			stages, rewards, err := loadCatalogs(file, ladder)
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}

			fmt.Fprintln(out, "\nStages:")
			for _, st := range stages.All() {
				filter := ""
				if st.OutputFilter {
					filter = " [output filter]"
				}
				fmt.Fprintf(out, "  %d - %s%s: %s\n", st.Ordinal, st.Name, filter, st.Description)
			}
			fmt.Fprintln(out, "\nRewards:")
			for _, r := range rewards.All() {
				fmt.Fprintf(out, "  %-12s %-9s %s: %s\n", r.ID, r.Rarity, r.Name, r.Description)
			}
			fmt.Fprintln(out, "\nCatalog is valid!")
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "catalog YAML file (defaults to CATALOG_FILE or the built-in catalog)")
	return cmd
}

func newWatchCmd(opts *setupOptions) *cobra.Command {
	var (
		timeout time.Duration
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "watch <session-id>",
		Short: "Follow another session's events over Redis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*opts)
			if err != nil {
				return err
			}
			if cfg.RedisURL == "" {
				return errors.New("configuration error: REDIS_URL is required to watch a session")
			}
			log, closeLog, err := logger.Setup(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = closeLog() }()

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			rdb, err := events.Connect(ctx, cfg.RedisURL, log)
			if err != nil {
				return err
			}
			defer func() { _ = rdb.Close() }()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Watching session %s...\n", args[0])
			err = events.Follow(ctx, rdb, args[0], func(m events.Message) bool {
				if asJSON {
					line, err := watchedJSON(m)
					if err != nil {
						log.Warn("Skipping event", "error", err)
						return true
					}
					fmt.Fprintln(out, line)
					return true
				}
				if line, ok := formatWatched(m); ok {
					fmt.Fprintln(out, line)
				}
				return true
			})
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "stop watching after this long (0 watches until interrupted)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print every event, fragments included, as JSON")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "hackslash", versionString())
		},
	}
}
