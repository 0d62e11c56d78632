package services

import (
	"fmt"

	"github.com/custodia-labs/mailsleuth/internal/core/domain"
)

// stopWindow is the number of consecutive unproductive iterations that
// stop the loop. A single poor iteration never stops a run on its own.
const stopWindow = 2

// StopEvaluator tracks iteration productivity per signal. A run stops
// early only when the same signal, novelty gain or precision proxy,
// falls below its threshold on consecutive iterations; alternating dips
// across the two signals do not accumulate.
type StopEvaluator struct {
	minNovelty   float64
	minPrecision float64

	noveltyStreak   int
	precisionStreak int
}

// NewStopEvaluator creates an evaluator with the run's thresholds.
func NewStopEvaluator(cfg domain.RunConfig) *StopEvaluator {
	return &StopEvaluator{
		minNovelty:   cfg.MinNoveltyGain,
		minPrecision: cfg.MinPrecision,
	}
}

// Observe records one iteration's signals. Each streak advances or
// resets independently of the other.
func (s *StopEvaluator) Observe(noveltyGain, precisionProxy float64) {
	if noveltyGain < s.minNovelty {
		s.noveltyStreak++
	} else {
		s.noveltyStreak = 0
	}
	if precisionProxy < s.minPrecision {
		s.precisionStreak++
	} else {
		s.precisionStreak = 0
	}
}

// ShouldStop reports whether either signal's streak has reached the
// window, and the reason when one has.
func (s *StopEvaluator) ShouldStop() (bool, string) {
	if s.noveltyStreak >= stopWindow {
		return true, fmt.Sprintf("novelty gain below threshold for %d consecutive iterations", s.noveltyStreak)
	}
	if s.precisionStreak >= stopWindow {
		return true, fmt.Sprintf("precision proxy below threshold for %d consecutive iterations", s.precisionStreak)
	}
	return false, ""
}
