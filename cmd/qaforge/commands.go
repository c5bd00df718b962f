package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/qaforge/internal/filetree"
	"github.com/dshills/qaforge/internal/mcp"
	"github.com/dshills/qaforge/internal/scheduler"
	"github.com/dshills/qaforge/internal/storage"
	"github.com/dshills/qaforge/pkg/types"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "qaforge",
		Short:         "Generate question/answer training samples from a source tree",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringP("config", "c", "", "Path to config file (default ./qaforge.yaml or ~/.qaforge/qaforge.yaml)")
	pf.String("db", "", "Path to the sample database")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.String("log-format", "", "Log format: console or json")
	pf.String("backend", "", "Generation backend: openai, ollama or local")
	pf.String("base-url", "", "Generation backend base URL")
	pf.String("model", "", "Model name")
	pf.String("theme", "", "Prompt theme directory under the prompt dir")
	pf.Int("questions", 0, "Questions requested per segment")
	pf.Int("concurrency", 0, "Files processed concurrently (1-10)")
	pf.String("status-addr", "", "Serve the status API on this address (e.g. :8089)")

	root.AddCommand(
		newRunCommand(),
		newRetryCommand(),
		newStatusCommand(),
		newServeCommand(),
		newVersionCommand(),
	)
	return root
}

// signalContext is cancelled on SIGINT or SIGTERM; a run then stops
// admitting files and returns after the in-flight ones settle
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run <source-root>",
		Short: "Generate samples for new and changed files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			defer a.serveStatus()()

			ctx, stop := signalContext()
			defer stop()

			units, stats, err := filetree.New(root, a.cfg.WalkerOptions()).Walk(ctx)
			if err != nil {
				return err
			}
			a.logger.Infow("source tree scanned",
				"root", root,
				"files", len(units),
				"skipped_size", stats.SkippedSize,
				"skipped_binary", stats.SkippedBinary,
			)

			summary, err := a.scheduler.Run(ctx, units)
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), summary)
			return nil
		},
	}
}

func newRetryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "retry <source-root>",
		Short: "Reprocess files whose last attempt failed with a retryable reason",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			defer a.serveStatus()()

			ctx, stop := signalContext()
			defer stop()

			summary, err := a.scheduler.RetryFailed(ctx, filetree.New(root, a.cfg.WalkerOptions()))
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), summary)
			return nil
		},
	}
}

func newStatusCommand() *cobra.Command {
	var (
		failures int
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show stored sample counts and recent failures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			st, err := a.store.GetStatus(ctx)
			if err != nil {
				return err
			}
			var records []*types.FailureRecord
			if failures > 0 {
				if records, err = a.store.ListFailures(ctx, storage.FailureFilter{Limit: failures}); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]interface{}{"store": st, "failures": records})
			}
			printStatus(out, st)
			if len(records) > 0 {
				fmt.Fprintln(out)
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "PATH\tREASON\tATTEMPTS\tRETRY\tFAILED AT")
				for _, f := range records {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%v\t%s\n", f.Path, f.Reason, f.AttemptCount, f.RetryEligible, f.FailedAt.Format("2006-01-02 15:04:05"))
				}
				return tw.Flush()
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&failures, "failures", 10, "Number of recent failures to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the MCP tools on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			defer a.serveStatus()()

			srv, err := mcp.NewServer(mcp.Dependencies{
				Store:   a.store,
				Runner:  a.scheduler,
				Walk:    a.cfg.WalkerOptions(),
				Logger:  a.logger,
				Version: version,
			})
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}

			ctx, stop := signalContext()
			defer stop()
			if err := srv.Serve(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			a.logger.Infow("server stopped")
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "qaforge %s\n", version)
			fmt.Fprintf(out, "Build Time: %s\n", buildTime)
			fmt.Fprintf(out, "Build Mode: %s\n", storage.BuildMode)
			fmt.Fprintf(out, "SQLite Driver: %s\n", storage.DriverName)
		},
	}
}

func printSummary(w io.Writer, s *scheduler.Summary) {
	state := "completed"
	if s.Stopped {
		state = "stopped (resume with the same command)"
	}
	fmt.Fprintf(w, "Run %s %s in %s\n", s.RunID, state, s.Duration.Round(time.Millisecond))
	if s.Resumed {
		fmt.Fprintln(w, "  resumed an unfinished run")
	}
	fmt.Fprintf(w, "  files:     %d (%d unchanged)\n", s.Total, s.Skipped)
	fmt.Fprintf(w, "  processed: %d\n", s.Processed)
	fmt.Fprintf(w, "  failed:    %d\n", s.Failed)
	if s.Deferred > 0 {
		fmt.Fprintf(w, "  deferred:  %d (backend unavailable)\n", s.Deferred)
	}
	if s.Abandoned > 0 {
		fmt.Fprintf(w, "  abandoned: %d\n", s.Abandoned)
	}
	fmt.Fprintf(w, "  turns:     %d\n", s.Turns)
}

func printStatus(w io.Writer, st *storage.Status) {
	fmt.Fprintf(w, "Samples:        %d\n", st.SamplesCount)
	fmt.Fprintf(w, "Turns:          %d\n", st.TurnsCount)
	fmt.Fprintf(w, "Fingerprints:   %d\n", st.FingerprintsCount)
	fmt.Fprintf(w, "Failed paths:   %d (%d retryable)\n", st.FailedPathsCount, st.RetryEligibleCount)
	if st.LastRunID != "" {
		state := "unfinished"
		if st.LastRunCompleted {
			state = "completed"
		}
		fmt.Fprintf(w, "Last run:       %s (%s, started %s)\n", st.LastRunID, state, st.LastRunStartedAt.Format("2006-01-02 15:04:05"))
	}
}
