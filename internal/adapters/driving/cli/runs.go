package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/mailsleuth/internal/core/domain"
)

var runsJSON bool

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored runs",
	RunE:  runList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Show one run with its threads and bullets",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	runsCmd.PersistentFlags().BoolVar(&runsJSON, "json", false, "output as JSON")
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

func runList(cmd *cobra.Command, _ []string) error {
	runs, err := runStore.ListRuns(context.Background())
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}

	if runsJSON {
		data, err := json.MarshalIndent(runs, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(data))
		return nil
	}

	if len(runs) == 0 {
		cmd.Println("No runs stored.")
		return nil
	}
	for _, run := range runs {
		status := string(run.Status)
		if run.Status == domain.StatusFailed && run.Failure != nil {
			status = fmt.Sprintf("%s (%s)", status, run.Failure.Class)
		}
		cmd.Printf("%s  %s  %-10s  %q\n",
			run.ID, run.CreatedAt.Format(time.DateTime), status, run.Config.Question)
	}
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	run, err := runService.Get(ctx, args[0])
	if err != nil {
		return err
	}
	threads, err := runStore.GetThreads(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("loading threads: %w", err)
	}

	if runsJSON {
		return renderResult(cmd, run, threads, true)
	}

	cmd.Printf("Run %s\n", run.ID)
	cmd.Printf("  question: %q\n", run.Config.Question)
	cmd.Printf("  status:   %s\n", run.Status)
	cmd.Printf("  created:  %s\n", run.CreatedAt.Format(time.DateTime))
	if run.Failure != nil {
		cmd.Printf("  failure:  %s\n", run.Failure)
	}
	for _, it := range run.Metrics.History {
		cmd.Printf("  iteration %d: %d queries, %d new messages, novelty %.0f%%, precision %.0f%%",
			it.Iteration, it.QueriesTried, it.NewMessages, it.NoveltyGain*100, it.PrecisionProxy*100)
		if it.StopReason != "" {
			cmd.Printf(" [%s]", it.StopReason)
		}
		cmd.Println()
	}
	return renderResult(cmd, run, threads, false)
}
