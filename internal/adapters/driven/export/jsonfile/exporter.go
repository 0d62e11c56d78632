// Package jsonfile exports finished runs to the local filesystem: a
// result.json with the full run record and a bullets.csv with one cited
// claim per row. Artifacts land in <output dir>/<run id>/.
package jsonfile

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/mailsleuth/internal/core/ports/driven"
	"github.com/custodia-labs/mailsleuth/internal/logger"
)

// Ensure Exporter implements the interface.
var _ driven.Exporter = (*Exporter)(nil)

// Exporter writes run artifacts to a directory tree.
type Exporter struct {
	outputDir string
}

// New creates an exporter rooted at outputDir. An empty outputDir means
// the current working directory.
func New(outputDir string) *Exporter {
	if outputDir == "" {
		outputDir = "."
	}
	return &Exporter{outputDir: outputDir}
}

// resultDocument is the serialised artifact layout.
type resultDocument struct {
	RunID    string         `json:"run_id"`
	Question string         `json:"question"`
	Status   string         `json:"status"`
	Metrics  any            `json:"metrics"`
	Threads  []threadRecord `json:"threads"`
}

type threadRecord struct {
	ID           string         `json:"id"`
	Participants []string       `json:"participants"`
	First        string         `json:"first"`
	Last         string         `json:"last"`
	TopScore     float64        `json:"top_score"`
	MessageCount int            `json:"message_count"`
	Summary      string         `json:"summary"`
	Confidence   float64        `json:"confidence"`
	Bullets      []bulletRecord `json:"bullets"`
}

type bulletRecord struct {
	Claim    string `json:"claim"`
	Quote    string `json:"quote"`
	Citation string `json:"citation"`
}

// Export renders the run result into result.json and bullets.csv.
func (e *Exporter) Export(_ context.Context, result driven.RunResult) error {
	dir := filepath.Join(e.outputDir, result.Run.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating export directory: %w", err)
	}

	doc := resultDocument{
		RunID:    result.Run.ID,
		Question: result.Run.Config.Question,
		Status:   string(result.Run.Status),
		Metrics:  result.Run.Metrics,
	}
	for _, thread := range result.Threads {
		record := threadRecord{
			ID:           thread.ID,
			Participants: thread.Participants,
			First:        thread.First.Format("2006-01-02"),
			Last:         thread.Last.Format("2006-01-02"),
			TopScore:     thread.TopScore,
			MessageCount: thread.MessageCount,
			Summary:      thread.Summary,
			Confidence:   thread.Confidence,
		}
		for _, bullet := range thread.Bullets {
			record.Bullets = append(record.Bullets, bulletRecord{
				Claim:    bullet.Claim,
				Quote:    bullet.Quote,
				Citation: bullet.Citation(),
			})
		}
		doc.Threads = append(doc.Threads, record)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling result: %w", err)
	}
	resultPath := filepath.Join(dir, "result.json")
	if err := os.WriteFile(resultPath, data, 0644); err != nil {
		return fmt.Errorf("writing result.json: %w", err)
	}

	if err := e.writeBullets(filepath.Join(dir, "bullets.csv"), result); err != nil {
		return err
	}

	logger.Info("exported run %s to %s", result.Run.ID, dir)
	return nil
}

func (e *Exporter) writeBullets(path string, result driven.RunResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating bullets.csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"thread_id", "claim", "quote", "message_id", "date"}); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, thread := range result.Threads {
		for _, bullet := range thread.Bullets {
			row := []string{
				bullet.ThreadID,
				bullet.Claim,
				bullet.Quote,
				bullet.MessageID,
				bullet.Date.Format("2006-01-02"),
			}
			if err := w.Write(row); err != nil {
				return fmt.Errorf("writing csv row: %w", err)
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing bullets.csv: %w", err)
	}
	return nil
}

// OutputDir returns the exporter's root directory.
func (e *Exporter) OutputDir() string { return e.outputDir }
