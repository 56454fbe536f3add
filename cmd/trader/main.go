package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"llm-equity-trader/internal/interfaces"
	"llm-equity-trader/internal/logger"
	"llm-equity-trader/internal/trace"
	"llm-equity-trader/internal/types"
)

var version = "dev"

var (
	configPath string
	accountID  string
	eodDate    string

	rootCmd = &cobra.Command{
		Use:           "trader",
		Short:         "LLM-driven paper trading of an equity universe",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initializeSystem()
		},
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run trading cycles every poll_seconds until interrupted",
		RunE:  runLoop,
	}

	cycleCmd = &cobra.Command{
		Use:   "cycle",
		Short: "Run a single trading cycle and print the results as JSON",
		RunE:  runOnce,
	}

	quotesCmd = &cobra.Command{
		Use:   "quotes",
		Short: "Print the current quote snapshot for the universe",
		RunE:  printQuotes,
	}

	eodCmd = &cobra.Command{
		Use:   "eod",
		Short: "Write the end-of-day CSV summary for a day of the trade journal",
		RunE:  runEOD,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML config")
	cycleCmd.Flags().StringVar(&accountID, "account", "", "only run this account")
	eodCmd.Flags().StringVar(&eodDate, "date", "", "day to summarize as YYYY-MM-DD (default today)")

	rootCmd.AddCommand(runCmd, cycleCmd, quotesCmd, eodCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// withSystem builds the system for one command and tears it down after.
func withSystem(ctx context.Context, fn func(ctx context.Context, s *system) error) error {
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = trace.Shutdown(shutdownCtx)
	}()

	cfg, err := loadConfig(ctx, configPath)
	if err != nil {
		return err
	}
	s, err := buildSystem(ctx, cfg)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to build trader", err)
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			logger.ErrorWithErr(ctx, "Failed to close ledger", err)
		}
	}()
	return fn(ctx, s)
}

func runLoop(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return withSystem(ctx, func(ctx context.Context, s *system) error {
		serveMetrics(ctx, s.cfg.Metrics.Listen, s.metrics)
		compressOldLogs(ctx, s.journal)

		tick := time.NewTicker(time.Duration(s.cfg.PollSeconds) * time.Second)
		defer tick.Stop()
		eodTick := time.NewTicker(60 * time.Second)
		defer eodTick.Stop()

		logger.Info(ctx, "Trader started",
			"accounts", len(s.engines),
			"universe", len(s.cfg.Universe),
			"poll_seconds", s.cfg.PollSeconds,
		)
		runCycles(ctx, s.engines)

		for {
			select {
			case <-tick.C:
				runCycles(ctx, s.engines)
			case <-eodTick.C:
				if ok, _ := s.summarizer.ShouldRunNow(); ok {
					_, _ = s.summarizer.SummarizeToday()
				}
			case <-ctx.Done():
				logger.Info(context.Background(), "Shutting down")
				_, _ = s.summarizer.SummarizeToday()
				return nil
			}
		}
	})
}

func runOnce(cmd *cobra.Command, args []string) error {
	return withSystem(cmd.Context(), func(ctx context.Context, s *system) error {
		engines := s.engines
		if accountID != "" {
			engines = nil
			for _, e := range s.engines {
				if e.AccountID() == accountID {
					engines = append(engines, e)
				}
			}
			if len(engines) == 0 {
				return fmt.Errorf("no account %q in config", accountID)
			}
		}
		return printJSON(runCycles(ctx, engines))
	})
}

func printQuotes(cmd *cobra.Command, args []string) error {
	return withSystem(cmd.Context(), func(ctx context.Context, s *system) error {
		return printJSON(s.quotes.GetPrices(ctx, s.cfg.Symbols()))
	})
}

func runEOD(cmd *cobra.Command, args []string) error {
	return withSystem(cmd.Context(), func(ctx context.Context, s *system) error {
		day := time.Now().In(s.cfg.Location())
		if eodDate != "" {
			d, err := time.ParseInLocation("2006-01-02", eodDate, s.cfg.Location())
			if err != nil {
				return fmt.Errorf("invalid --date: %w", err)
			}
			day = d
		}
		path, err := s.summarizer.SummarizeDay(day)
		if err != nil {
			return err
		}
		if path == "" {
			fmt.Println("no trades on", day.Format("2006-01-02"))
			return nil
		}
		fmt.Println(path)
		return nil
	})
}

// runCycles runs every account concurrently. Failures are logged by the
// engine decorator and reported in the per-account result.
func runCycles(ctx context.Context, engines []interfaces.Engine) []*types.CycleResult {
	results := make([]*types.CycleResult, len(engines))
	var g errgroup.Group
	for i, eng := range engines {
		g.Go(func() error {
			res, err := eng.RunCycle(ctx)
			if res == nil {
				res = &types.CycleResult{AccountID: eng.AccountID(), StartedAt: time.Now()}
				if err != nil {
					res.Error = err.Error()
				}
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
