// Package supervisor implements the bounded-concurrency batch scheduler: it
// drains a launch queue into a run set capped at max-procs, waits for
// whichever process exits or breaches its deadline first, and classifies
// every target exactly once into a success or failure record.
package supervisor

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/gramckode/parallel-ssh/internal/logging"
	"github.com/gramckode/parallel-ssh/internal/result"
	"github.com/gramckode/parallel-ssh/internal/ssh"
	"github.com/gramckode/parallel-ssh/internal/target"
)

// DefaultMaxProcs bounds the run set when no ceiling is configured
const DefaultMaxProcs = 1

// Command is the remote command executed by one batch
type Command struct {
	Text         string // Command text passed to the remote shell
	ExpectedExit int    // Exit code classified as success (default 0)
}

// Observer is notified as each target is classified. It exists for display
// purposes only (progress bars); results are read from the returned Batch.
type Observer func(host string, success bool)

// Supervisor drives batches of remote executions. Configuration mutators
// take effect for batches started after the mutation; a batch in progress
// snapshots its configuration on entry and is never altered by them.
type Supervisor struct {
	runner ssh.Runner
	logger *logging.Logger

	mu       sync.Mutex // guards the configuration below
	targets  []target.Target
	maxProcs int
	timeout  time.Duration // 0 means no deadline
	observer Observer

	runMu sync.Mutex // serializes batches
	last  *result.Batch
}

// New creates a supervisor executing processes through the given runner.
// A nil logger disables logging.
func New(runner ssh.Runner, logger *logging.Logger) *Supervisor {
	if logger == nil {
		logger = logging.NewLogger(logging.Config{Quiet: true, Output: io.Discard})
	}
	return &Supervisor{
		runner:   runner,
		logger:   logger,
		maxProcs: DefaultMaxProcs,
	}
}

// SetTargets replaces the target list used by subsequent batches
func (s *Supervisor) SetTargets(targets []target.Target) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets = make([]target.Target, len(targets))
	copy(s.targets, targets)
}

// SetMaxProcs sets the concurrency ceiling for subsequent batches
func (s *Supervisor) SetMaxProcs(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 1 {
		n = 1
	}
	s.maxProcs = n
}

// SetTimeout sets the per-target deadline for subsequent batches; zero
// disables deadline enforcement entirely.
func (s *Supervisor) SetTimeout(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d < 0 {
		d = 0
	}
	s.timeout = d
}

// SetObserver installs a per-classification display hook for subsequent batches
func (s *Supervisor) SetObserver(obs Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = obs
}

// Successes returns the success records of the most recently completed batch
func (s *Supervisor) Successes() []result.SuccessRecord {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.last == nil {
		return nil
	}
	return s.last.Successes
}

// Failures returns the failure records of the most recently completed batch
func (s *Supervisor) Failures() []result.FailureRecord {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.last == nil {
		return nil
	}
	return s.last.Failures
}

// entry is one member of the run set
type entry struct {
	target  target.Target
	proc    ssh.Process
	started time.Time
}

// batchState is the per-batch snapshot plus the queue, run set and collector.
// Only the control goroutine ever touches it, so it carries no locking.
type batchState struct {
	command   Command
	targets   []target.Target
	maxProcs  int
	timeout   time.Duration
	observer  Observer
	queue     []target.Target // launch queue, FIFO
	running   []*entry        // run set, len <= maxProcs
	collector *result.Collector
	wake      chan struct{} // signaled once per process exit
}

// Run executes one full batch: every configured target is launched exactly
// once (never more than max-procs concurrently) and classified exactly once.
// It returns only after all targets are classified, or with ctx's error
// after killing the run set if ctx is cancelled mid-batch.
func (s *Supervisor) Run(ctx context.Context, cmd Command) (*result.Batch, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.mu.Lock()
	st := &batchState{
		command:   cmd,
		targets:   s.targets,
		maxProcs:  s.maxProcs,
		timeout:   s.timeout,
		observer:  s.observer,
		collector: result.NewCollector(),
	}
	s.mu.Unlock()

	st.queue = make([]target.Target, len(st.targets))
	copy(st.queue, st.targets)
	st.collector.Reset()
	// Capacity covers one signal per target, so waiters never block
	st.wake = make(chan struct{}, len(st.targets))

	start := time.Now()
	s.logger.LogBatchStart(len(st.targets), st.maxProcs, st.timeout, cmd.ExpectedExit)

	for {
		s.refill(ctx, st)

		// Both queue and run set empty: the batch is complete
		if len(st.queue) == 0 && len(st.running) == 0 {
			break
		}

		if s.sweep(st) {
			// At least one entry was classified; refill freed capacity first
			continue
		}

		if err := s.wait(ctx, st); err != nil {
			s.killAll(st)
			return nil, err
		}
	}

	batch := st.collector.Batch()
	s.last = batch
	s.logger.LogBatchComplete(len(st.targets), len(batch.Successes), len(batch.Failures), time.Since(start))
	return batch, nil
}

// refill moves targets from the launch queue into the run set while capacity
// remains. A launch failure classifies the target immediately and never
// occupies a run set slot.
func (s *Supervisor) refill(ctx context.Context, st *batchState) {
	for len(st.running) < st.maxProcs && len(st.queue) > 0 {
		t := st.queue[0]
		st.queue = st.queue[1:]

		proc, err := s.runner.Launch(ctx, t.Host, st.command.Text)
		if err != nil {
			s.logger.LogLaunchError(t.Host, err)
			st.classifyFailure(result.FailureRecord{Host: t.Host, Kind: result.KindLaunch, Err: err})
			continue
		}

		st.running = append(st.running, &entry{target: t, proc: proc, started: time.Now()})
		s.logger.LogLaunch(t.Host, len(st.running), len(st.queue))

		// Forward the exit signal onto the batch's shared wake channel
		go func(p ssh.Process) {
			<-p.Done()
			st.wake <- struct{}{}
		}(proc)
	}
}

// sweep observes every run set entry without blocking and classifies the
// finished and deadline-breaching ones. At most one branch fires per entry,
// atomically with its removal from the run set. Exit is checked before the
// deadline so a process that finished on time is never misfiled as a timeout.
func (s *Supervisor) sweep(st *batchState) bool {
	now := time.Now()
	progressed := false
	kept := st.running[:0]

	for _, e := range st.running {
		select {
		case <-e.proc.Done():
			s.classifyExit(st, e)
			progressed = true
		default:
			if st.timeout > 0 && now.Sub(e.started) >= st.timeout {
				if err := e.proc.Kill(); err != nil {
					s.logger.Error("failed to kill timed-out process", "host", e.target.Host, "error", err.Error())
				}
				s.logger.LogTimeout(e.target.Host, st.timeout)
				st.classifyFailure(result.FailureRecord{Host: e.target.Host, Kind: result.KindTimeout})
				progressed = true
			} else {
				kept = append(kept, e)
			}
		}
	}

	st.running = kept
	return progressed
}

// classifyExit files a finished process as a success or failure
func (s *Supervisor) classifyExit(st *batchState, e *entry) {
	out := e.proc.Outcome()

	if out.Err != nil {
		s.logger.LogLaunchError(e.target.Host, out.Err)
		st.classifyFailure(result.FailureRecord{Host: e.target.Host, Kind: result.KindLaunch, Err: out.Err})
		return
	}

	expected := out.ExitCode == st.command.ExpectedExit
	s.logger.LogExit(e.target.Host, out.ExitCode, expected, time.Since(e.started))

	if expected {
		st.collector.AddSuccess(result.SuccessRecord{
			Host:     e.target.Host,
			Stdout:   out.Stdout,
			Stderr:   out.Stderr,
			ExitCode: out.ExitCode,
		})
		st.notify(e.target.Host, true)
		return
	}

	code := out.ExitCode
	st.classifyFailure(result.FailureRecord{Host: e.target.Host, Kind: result.KindUnexpectedExit, ExitCode: &code})
}

// wait blocks the control goroutine until any process exits, the nearest
// deadline elapses, or ctx is cancelled. This replaces busy-polling: between
// events the loop is parked on the channel union.
func (s *Supervisor) wait(ctx context.Context, st *batchState) error {
	var deadlineCh <-chan time.Time
	if st.timeout > 0 && len(st.running) > 0 {
		nearest := st.running[0].started
		for _, e := range st.running[1:] {
			if e.started.Before(nearest) {
				nearest = e.started
			}
		}
		timer := time.NewTimer(time.Until(nearest.Add(st.timeout)))
		defer timer.Stop()
		deadlineCh = timer.C
	}

	select {
	case <-st.wake:
		return nil
	case <-deadlineCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// killAll terminates the remaining run set after a cancelled batch
func (s *Supervisor) killAll(st *batchState) {
	for _, e := range st.running {
		if err := e.proc.Kill(); err != nil {
			s.logger.Error("failed to kill process during shutdown", "host", e.target.Host, "error", err.Error())
		}
	}
	st.running = nil
}

func (st *batchState) classifyFailure(rec result.FailureRecord) {
	st.collector.AddFailure(rec)
	st.notify(rec.Host, false)
}

func (st *batchState) notify(host string, success bool) {
	if st.observer != nil {
		st.observer(host, success)
	}
}
