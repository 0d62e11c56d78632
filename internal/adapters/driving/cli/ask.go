package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/mailsleuth/internal/core/domain"
)

var (
	askAfter      string
	askBefore     string
	askDomains    []string
	askIterations int
	askNoRerank   bool
	askJSON       bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Investigate the corpus and answer a question",
	Long: `Runs an iterative investigation: searches the corpus, ranks the
evidence, expands the query vocabulary from what it finds and repeats
until the stopping conditions are met. The answer is a set of thread
summaries with cited bullets.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askAfter, "after", "", "only messages after this date (YYYY-MM-DD)")
	askCmd.Flags().StringVar(&askBefore, "before", "", "only messages before this date (YYYY-MM-DD)")
	askCmd.Flags().StringSliceVar(&askDomains, "domain", nil, "restrict senders to these domains")
	askCmd.Flags().IntVar(&askIterations, "max-iterations", 0, "override the iteration cap")
	askCmd.Flags().BoolVar(&askNoRerank, "no-rerank", false, "disable the rerank stage")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "stream events and results as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg := appConfig.Apply(domain.DefaultRunConfig(args[0]))
	cfg.EnableRerank = !askNoRerank
	cfg.Domains = askDomains
	if askIterations > 0 {
		cfg.MaxIterations = askIterations
	}

	var err error
	if cfg.After, err = parseDateFlag(askAfter); err != nil {
		return err
	}
	if cfg.Before, err = parseDateFlag(askBefore); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run, err := runService.CreateRun(ctx, cfg)
	if err != nil {
		return fmt.Errorf("creating run: %w", err)
	}
	cmd.Printf("run %s\n", run.ID)

	eventsCh, release := runService.Subscribe(run.ID)
	defer release()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range eventsCh {
			renderEvent(cmd, ev, askJSON)
		}
	}()

	// Translate Ctrl-C into a cancellation request; the run winds down
	// at the next phase boundary.
	go func() {
		<-ctx.Done()
		_ = runService.Cancel(context.Background(), run.ID)
	}()

	execErr := runService.Execute(context.Background(), run.ID)
	wg.Wait()

	final, err := runService.Get(context.Background(), run.ID)
	if err != nil {
		return err
	}
	if execErr != nil {
		if final.Failure != nil {
			return errors.New(final.Failure.String())
		}
		return execErr
	}
	if final.Status != domain.StatusDone {
		cmd.Printf("run ended %s\n", final.Status)
		return nil
	}

	threads, err := runStore.GetThreads(context.Background(), run.ID)
	if err != nil {
		return fmt.Errorf("loading threads: %w", err)
	}
	return renderResult(cmd, final, threads, askJSON)
}

func parseDateFlag(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", value)
	}
	return t, nil
}

func renderEvent(cmd *cobra.Command, ev domain.Event, asJSON bool) {
	if asJSON {
		if data, err := json.Marshal(ev); err == nil {
			cmd.Println(string(data))
		}
		return
	}

	switch ev.Type {
	case domain.EventPhaseChanged:
		if p, ok := ev.Payload.(domain.PhasePayload); ok {
			cmd.Printf("  -> %s\n", p.To)
		}
	case domain.EventQueryExecuted:
		if p, ok := ev.Payload.(domain.QueryPayload); ok {
			cmd.Printf("     query %s: %d hits, %d new\n", p.Operator, p.Hits, p.NewMessages)
		}
	case domain.EventTermExpanded:
		if p, ok := ev.Payload.(domain.TermPayload); ok {
			cmd.Printf("     terms +[%s]", strings.Join(p.Added, ", "))
			if len(p.Decayed) > 0 {
				cmd.Printf(" -[%s]", strings.Join(p.Decayed, ", "))
			}
			cmd.Println()
		}
	case domain.EventIterationComplete:
		if p, ok := ev.Payload.(domain.IterationPayload); ok {
			line := fmt.Sprintf("  iteration %d: %d messages, novelty %.0f%%, precision %.0f%%",
				p.Iteration, p.MessagesFound, p.NoveltyGain*100, p.PrecisionProxy*100)
			if p.ETA != nil {
				line += fmt.Sprintf(", eta %s", p.ETA.Round(time.Second))
			}
			cmd.Println(line)
		}
	case domain.EventRunFailed:
		if p, ok := ev.Payload.(domain.FailurePayload); ok {
			cmd.Printf("  failed: %s\n", p.Reason)
		}
	case domain.EventRunCancelled:
		cmd.Println("  cancelled")
	}
}

func renderResult(cmd *cobra.Command, run *domain.Run, threads []domain.Thread, asJSON bool) error {
	if asJSON {
		data, err := json.MarshalIndent(struct {
			Run     *domain.Run     `json:"run"`
			Threads []domain.Thread `json:"threads"`
		}{run, threads}, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Println()
	if len(threads) == 0 {
		cmd.Println("No relevant threads found.")
		return nil
	}

	for _, thread := range threads {
		cmd.Printf("Thread %s (%d messages, %s to %s, confidence %.2f)\n",
			thread.ID, thread.MessageCount,
			thread.First.Format("2006-01-02"), thread.Last.Format("2006-01-02"),
			thread.Confidence)
		if thread.Summary != "" {
			cmd.Printf("  %s\n", thread.Summary)
		}
		for _, bullet := range thread.Bullets {
			cmd.Printf("  - %s\n    %q %s\n", bullet.Claim, bullet.Quote, bullet.Citation())
		}
		cmd.Println()
	}

	m := run.Metrics
	cmd.Printf("%d iterations, %d messages, %d threads, %d bullets in %s\n",
		m.Iterations, m.TotalMessages, m.TotalThreads, m.TotalBullets, m.Duration.Round(time.Millisecond))
	return nil
}
