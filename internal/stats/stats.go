// Package stats summarizes a completed batch.
package stats

import (
	"fmt"
	"io"
	"time"

	"github.com/gramckode/parallel-ssh/internal/result"
)

// Summary holds the aggregate figures of one completed batch
type Summary struct {
	TotalTargets int
	Successes    int
	Failures     int
	Timeouts     int
	Duration     time.Duration
}

// Summarize computes the aggregate figures for a completed batch
func Summarize(batch *result.Batch, duration time.Duration) Summary {
	s := Summary{
		TotalTargets: batch.Total(),
		Successes:    len(batch.Successes),
		Failures:     len(batch.Failures),
		Duration:     duration,
	}

	for _, rec := range batch.Failures {
		if rec.Kind == result.KindTimeout {
			s.Timeouts++
		}
	}

	return s
}

// Rate returns the classification rate in targets per second
func (s Summary) Rate() float64 {
	if s.Duration.Seconds() <= 0 {
		return 0
	}
	return float64(s.TotalTargets) / s.Duration.Seconds()
}

// Write prints the summary in the final-statistics layout
func (s Summary) Write(w io.Writer) {
	fmt.Fprintf(w, "\nBatch Statistics:\n")
	fmt.Fprintf(w, "   Total Targets: %d\n", s.TotalTargets)
	if s.TotalTargets > 0 {
		fmt.Fprintf(w, "   Successful: %d (%.1f%%)\n",
			s.Successes, float64(s.Successes)/float64(s.TotalTargets)*100)
		fmt.Fprintf(w, "   Failed: %d (%.1f%%)\n",
			s.Failures, float64(s.Failures)/float64(s.TotalTargets)*100)
	}
	if s.Timeouts > 0 {
		fmt.Fprintf(w, "   Timeouts: %d\n", s.Timeouts)
	}
	fmt.Fprintf(w, "   Execution Time: %v\n", s.Duration.Round(time.Second))
	if rate := s.Rate(); rate > 0 {
		fmt.Fprintf(w, "   Average Rate: %.2f targets/second\n", rate)
	}
}
