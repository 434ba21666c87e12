package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"guidance-llm/internal/app"
	"guidance-llm/internal/config"
	"guidance-llm/internal/service"
)

type runFlags struct {
	windowDays int
	dryRun     bool
	asJSON     bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "optimizer",
		Short:         "Feedback-driven trait and template optimizer",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newRunCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one optimizer batch over the recent feedback window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if flags.windowDays <= 0 {
				return fmt.Errorf("--window-days must be positive, got %d", flags.windowDays)
			}
			return runOptimizer(cmd.Context(), cmd.OutOrStdout(), flags)
		},
	}
	cmd.Flags().IntVar(&flags.windowDays, "window-days", 30, "days of feedback to analyze")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "compute the report without writing weights or recommendations")
	cmd.Flags().BoolVar(&flags.asJSON, "json", false, "print the full report as JSON")
	return cmd
}

func runOptimizer(ctx context.Context, out io.Writer, flags runFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := zap.NewExample()
	defer logger.Sync()

	a, err := app.New(ctx, cfg, logger, app.Options{InlineTasks: true})
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	report, err := a.Optimizer.Run(ctx, flags.windowDays, flags.dryRun)
	if err != nil {
		return fmt.Errorf("optimizer run: %w", err)
	}
	return printReport(out, report, flags.asJSON)
}

func printReport(out io.Writer, report service.OptimizerReport, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	mode := "applied"
	if report.DryRun {
		mode = "dry run"
	}
	fmt.Fprintf(out, "Optimizer report (%s), window %d days since %s\n", mode, report.WindowDays, report.Since.Format("2006-01-02"))
	fmt.Fprintf(out, "Interactions with feedback: %d\n\n", report.Interactions)

	fmt.Fprintln(out, "Traits:")
	for _, t := range report.Traits {
		fmt.Fprintf(out, "  %-14s samples=%-4d avg=%6.1f positive=%5.1f%% effectiveness=%.2f\n",
			t.Trait, t.Samples, t.AverageValue, t.PositiveRatio*100, t.Effectiveness)
	}

	fmt.Fprintln(out, "\nTemplates:")
	if len(report.Templates) == 0 {
		fmt.Fprintln(out, "  (none with enough samples)")
	}
	for _, t := range report.Templates {
		weight := "unchanged"
		if t.Weight > 0 {
			weight = fmt.Sprintf("%.1f", t.Weight)
		}
		fmt.Fprintf(out, "  %-32s samples=%-4d avg=%.2f weight=%s\n", t.TemplateID, t.Samples, t.AvgRating, weight)
	}

	fmt.Fprintln(out, "\nRecommendations:")
	if len(report.Recommendations) == 0 {
		fmt.Fprintln(out, "  (none)")
	}
	for userID, recs := range report.Recommendations {
		for _, r := range recs {
			fmt.Fprintf(out, "  %s: %s %d -> %d\n", userID, r.Trait, r.CurrentValue, r.RecommendedValue)
		}
	}
	if report.Failures > 0 {
		fmt.Fprintf(out, "\n%d entity updates failed (see logs)\n", report.Failures)
	}
	return nil
}
