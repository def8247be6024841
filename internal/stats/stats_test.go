package stats

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/gramckode/parallel-ssh/internal/result"
)

func TestSummarize(t *testing.T) {
	code := 2
	batch := &result.Batch{
		Successes: []result.SuccessRecord{{Host: "h1"}, {Host: "h2"}},
		Failures: []result.FailureRecord{
			{Host: "h3", Kind: result.KindUnexpectedExit, ExitCode: &code},
			{Host: "h4", Kind: result.KindTimeout},
		},
	}

	s := Summarize(batch, 4*time.Second)

	if s.TotalTargets != 4 || s.Successes != 2 || s.Failures != 2 {
		t.Errorf("counts wrong: %+v", s)
	}
	if s.Timeouts != 1 {
		t.Errorf("Timeouts = %d, want 1", s.Timeouts)
	}
	if rate := s.Rate(); rate != 1.0 {
		t.Errorf("Rate() = %f, want 1.0", rate)
	}
}

func TestRateZeroDuration(t *testing.T) {
	s := Summary{TotalTargets: 5}
	if s.Rate() != 0 {
		t.Errorf("Rate() with zero duration = %f, want 0", s.Rate())
	}
}

func TestWrite(t *testing.T) {
	batch := &result.Batch{
		Successes: []result.SuccessRecord{{Host: "h1"}},
		Failures:  []result.FailureRecord{{Host: "h2", Kind: result.KindTimeout}},
	}

	var buf bytes.Buffer
	Summarize(batch, 2*time.Second).Write(&buf)

	out := buf.String()
	for _, want := range []string{"Total Targets: 2", "Successful: 1 (50.0%)", "Failed: 1 (50.0%)", "Timeouts: 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}
