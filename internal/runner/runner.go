// Package runner supervises claim passes: a single pass, or a loop that
// reruns the pass on a fixed interval and retries failed passes after a
// cooldown. Authentication errors end the loop.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/LISSConsulting/LISSTech.LootKing/internal/gql"
	"github.com/LISSConsulting/LISSTech.LootKing/internal/logging"
	"github.com/LISSConsulting/LISSTech.LootKing/internal/looter"
	"github.com/LISSConsulting/LISSTech.LootKing/internal/offer"
	"github.com/LISSConsulting/LISSTech.LootKing/internal/store"
)

// PassFunc runs one pass. Typically wraps looter.Looter.Pass.
type PassFunc func(ctx context.Context) (looter.Summary, error)

// EventKind classifies runner events.
type EventKind int

const (
	EventPassComplete EventKind = iota
	EventPassFailed
	EventFatal
)

// Event is emitted to the hook after every pass.
type Event struct {
	Kind    EventKind
	Time    time.Time
	Message string
	Summary *looter.Summary // set for EventPassComplete
	Err     error           // set for EventPassFailed and EventFatal
}

// Config controls scheduling.
type Config struct {
	Loop     bool
	Interval time.Duration // between scheduled passes in loop mode
	Cooldown time.Duration // before retrying a failed pass in loop mode
	Dir      string        // state file root; empty disables persistence
	Backend  string
	History  *store.History // optional pass history
}

// Runner runs passes and records their outcome.
type Runner struct {
	cfg  Config
	log  *logging.Logger
	hook func(Event)

	mu    sync.Mutex
	state State
	job   gocron.Job
}

// New returns a Runner. hook may be nil.
func New(cfg Config, log *logging.Logger, hook func(Event)) *Runner {
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	return &Runner{cfg: cfg, log: log, hook: hook}
}

// Run executes pass once, or on a schedule when looping. It returns an
// *gql.AuthError when the session is invalid. Other pass errors are logged;
// a single pass still returns nil for them. Cancelling ctx stops the loop
// and returns nil.
func (r *Runner) Run(ctx context.Context, pass PassFunc) error {
	now := time.Now()
	r.mu.Lock()
	r.state = State{
		PID:       os.Getpid(),
		Backend:   r.cfg.Backend,
		Loop:      r.cfg.Loop,
		StartedAt: now,
	}
	r.mu.Unlock()
	r.saveState()

	var err error
	if r.cfg.Loop {
		err = r.schedule(ctx, pass)
	} else {
		err = r.attempt(ctx, pass, false)
	}

	r.mu.Lock()
	r.state.FinishedAt = time.Now()
	r.state.NextRunAt = time.Time{}
	r.mu.Unlock()
	r.saveState()

	if errors.Is(err, context.Canceled) {
		r.log.To(logging.Both).Info("Shutting down")
		return nil
	}
	return err
}

func (r *Runner) schedule(ctx context.Context, pass PassFunc) error {
	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("runner: create scheduler: %w", err)
	}

	fatal := make(chan error, 1)
	task := func() {
		if err := r.attempt(ctx, pass, true); err != nil {
			select {
			case fatal <- err:
			default:
			}
			return
		}
		r.announceNextRun()
	}

	j, err := s.NewJob(
		gocron.DurationJob(r.cfg.Interval),
		gocron.NewTask(task),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("runner: schedule pass: %w", err)
	}
	r.mu.Lock()
	r.job = j
	r.mu.Unlock()

	s.Start()
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case err = <-fatal:
	}
	if shErr := s.Shutdown(); shErr != nil {
		r.log.To(logging.File).Warn("Scheduler shutdown", zap.Error(shErr))
	}
	return err
}

// attempt runs pass until it succeeds. Without retry a failed pass is
// recorded and attempt returns nil. Auth errors and cancellation are
// returned immediately.
func (r *Runner) attempt(ctx context.Context, pass PassFunc, retry bool) error {
	for {
		sum, err := r.runPass(ctx, pass)
		r.appendHistory(sum, err)
		if err == nil {
			r.recordSuccess(sum)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if gql.IsAuthError(err) {
			r.recordFailure(err, EventFatal)
			r.log.To(logging.Both).Error("Session cannot claim", zap.Error(err))
			return err
		}

		r.recordFailure(err, EventPassFailed)
		r.log.To(logging.Both).Error("Pass failed", zap.Error(err), zap.Stack("stack"))
		if !retry {
			return nil
		}

		r.log.To(logging.Both).Info("Retrying after cooldown", zap.Duration("cooldown", r.cfg.Cooldown))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.cfg.Cooldown):
		}
	}
}

// runPass converts a panic inside pass into an error carrying the stack.
func (r *Runner) runPass(ctx context.Context, pass PassFunc) (sum looter.Summary, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("runner: pass panicked: %v\n%s", p, debug.Stack())
		}
	}()
	return pass(ctx)
}

func (r *Runner) recordSuccess(sum looter.Summary) {
	r.mu.Lock()
	r.state.Passes++
	r.state.ConsecutiveErrs = 0
	r.state.LastPassAt = time.Now()
	r.state.Passed = true
	r.state.LastError = ""
	r.state.LastPassID = sum.PassID
	r.state.Categories = make(map[string]int, len(sum.Categories))
	for c, n := range sum.Categories {
		r.state.Categories[c.String()] = n
	}
	r.state.Outcomes = make(map[string]int, len(sum.Outcomes))
	for o, n := range sum.Outcomes {
		r.state.Outcomes[o.String()] = n
	}
	r.state.CodesWritten = sum.CodesWritten
	r.mu.Unlock()
	r.saveState()

	r.emit(Event{
		Kind:    EventPassComplete,
		Time:    time.Now(),
		Message: fmt.Sprintf("Pass complete: %d claimed, %d failed", sum.Count(offer.Claimed), sum.Count(offer.Failed)),
		Summary: &sum,
	})
}

func (r *Runner) recordFailure(err error, kind EventKind) {
	r.mu.Lock()
	r.state.Passes++
	r.state.ConsecutiveErrs++
	r.state.LastPassAt = time.Now()
	r.state.Passed = false
	r.state.LastError = err.Error()
	r.mu.Unlock()
	r.saveState()

	r.emit(Event{Kind: kind, Time: time.Now(), Message: "Pass failed: " + err.Error(), Err: err})
}

func (r *Runner) appendHistory(sum looter.Summary, err error) {
	if r.cfg.History == nil || errors.Is(err, context.Canceled) {
		return
	}
	rec := store.Record(sum, err)
	if rec.Backend == "" {
		rec.Backend = r.cfg.Backend
	}
	if err := r.cfg.History.Append(rec); err != nil {
		r.log.To(logging.File).Warn("Could not append pass history", zap.Error(err))
	}
}

func (r *Runner) announceNextRun() {
	r.mu.Lock()
	j := r.job
	r.mu.Unlock()

	next := time.Now().Add(r.cfg.Interval)
	if j != nil {
		if t, err := j.NextRun(); err == nil && t.After(time.Now()) {
			next = t
		}
	}

	r.mu.Lock()
	r.state.NextRunAt = next
	r.mu.Unlock()
	r.saveState()

	r.log.To(logging.Console).Info("Next run scheduled",
		zap.Time("at", next),
		zap.Duration("in", time.Until(next).Round(time.Second)),
	)
}

// State returns a copy of the current state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Runner) saveState() {
	if r.cfg.Dir == "" {
		return
	}
	r.mu.Lock()
	s := r.state
	r.mu.Unlock()
	if err := SaveState(r.cfg.Dir, s); err != nil {
		r.log.To(logging.File).Warn("Could not save state", zap.Error(err))
	}
}

func (r *Runner) emit(ev Event) {
	if r.hook != nil {
		r.hook(ev)
	}
}
