// Package run sequences the download pipeline: for each target, skip-check,
// navigate, click, then watch the download directory for completion.
package run

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/clickgrab/clickgrab/internal/browser"
	"github.com/clickgrab/clickgrab/internal/click"
	"github.com/clickgrab/clickgrab/internal/match"
	"github.com/clickgrab/clickgrab/internal/report"
	"github.com/clickgrab/clickgrab/internal/scrape"
	"github.com/clickgrab/clickgrab/internal/watch"
)

// Outcome is the terminal result of one download attempt. It is decided
// exactly once per target.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeSkipped   Outcome = "skipped-exists"
	OutcomeTimedOut  Outcome = "timed-out"
	OutcomeFailed    Outcome = "failed"
)

// Result is the resolved record of one click-to-completion cycle.
type Result struct {
	Target  scrape.Target
	Outcome Outcome
	Path    string // final file path for succeeded, matched path for skipped
	Err     error
}

// Session is the browser capability set one attempt needs.
type Session interface {
	Navigate(ctx context.Context, url string) error
	click.Driver
}

// Pool hands out browser sessions and tracks successes for periodic
// restarts.
type Pool interface {
	Acquire(ctx context.Context) (Session, error)
	RecordSuccess(ctx context.Context) error
	Restart(ctx context.Context) (Session, error)
}

// Sink receives each resolved attempt, e.g. to advance a progress bar.
type Sink interface {
	Attempt(Result)
}

type nopSink struct{}

func (nopSink) Attempt(Result) {}

// Config controls the orchestrator.
type Config struct {
	DownloadDir  string
	ElementWait  time.Duration // bound for locating/clicking page elements
	DownloadWait time.Duration // bound for the download itself
	PollInterval time.Duration
	Delay        time.Duration // pause between targets
	TempExts     []string
	ResolveNames bool // consult HEAD Content-Disposition when the URL has no name
	HTTPClient   *http.Client
}

// Runner drives all targets through the pipeline, one at a time.
type Runner struct {
	cfg     Config
	pool    Pool
	clicker *click.Clicker
	sink    Sink
	stats   *report.Stats
	log     *zap.Logger
}

// New assembles a Runner.
func New(cfg Config, pool Pool, sink Sink, stats *report.Stats, log *zap.Logger) *Runner {
	if sink == nil {
		sink = nopSink{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if len(cfg.TempExts) == 0 {
		cfg.TempExts = match.DefaultTempExts
	}
	return &Runner{
		cfg:     cfg,
		pool:    pool,
		clicker: click.New(cfg.ElementWait, log),
		sink:    sink,
		stats:   stats,
		log:     log,
	}
}

// Process works through targets in order. Per-target failures are recorded
// and the run continues; only session bootstrap failures (or caller
// cancellation) abort.
func (r *Runner) Process(ctx context.Context, targets []scrape.Target) error {
	for i, t := range targets {
		if err := ctx.Err(); err != nil {
			return err
		}

		res, fatal := r.processOne(ctx, t)
		r.record(res)
		if fatal != nil {
			return fatal
		}

		if res.Outcome == OutcomeSucceeded {
			if err := r.pool.RecordSuccess(ctx); err != nil {
				return err
			}
		}

		if r.cfg.Delay > 0 && i < len(targets)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.cfg.Delay):
			}
		}
	}
	return nil
}

// record folds a resolved attempt into the stats and forwards it to the
// sink.
func (r *Runner) record(res Result) {
	switch res.Outcome {
	case OutcomeSucceeded:
		r.stats.Succeeded++
		r.log.Info("downloaded",
			zap.String("url", res.Target.URL), zap.String("path", res.Path))
	case OutcomeSkipped:
		r.stats.Skipped++
		r.log.Info("already obtained, skipping",
			zap.String("url", res.Target.URL), zap.String("path", res.Path))
	case OutcomeTimedOut:
		r.stats.TimedOut++
		r.stats.AddError(res.Target.URL, "download timed out")
		r.log.Warn("download timed out", zap.String("url", res.Target.URL))
	case OutcomeFailed:
		r.stats.Failed++
		msg := "attempt failed"
		if res.Err != nil {
			msg = res.Err.Error()
		}
		r.stats.AddError(res.Target.URL, msg)
		r.log.Warn("attempt failed",
			zap.String("url", res.Target.URL), zap.Error(res.Err))
	}
	r.sink.Attempt(res)
}

// processOne resolves a single target. The second return value is non-nil
// only for fatal, run-ending errors.
func (r *Runner) processOne(ctx context.Context, t scrape.Target) (Result, error) {
	hint := r.resolveHint(ctx, t.URL)

	// Skip-check before any navigation or click.
	if hint != "" {
		if ok, path := match.Exists(r.cfg.DownloadDir, hint); ok {
			return Result{Target: t, Outcome: OutcomeSkipped, Path: path}, nil
		}
	}

	sess, err := r.pool.Acquire(ctx)
	if err != nil {
		return Result{Target: t, Outcome: OutcomeFailed, Err: err}, err
	}

	res := r.attempt(ctx, sess, t, hint)
	if res.Err != nil && ctx.Err() == nil && browser.IsSessionExpired(res.Err) {
		r.log.Warn("browser session expired, restarting", zap.String("url", t.URL))
		sess, err = r.pool.Restart(ctx)
		if err != nil {
			return Result{Target: t, Outcome: OutcomeFailed, Err: err}, err
		}
		res = r.attempt(ctx, sess, t, hint)
	}
	return res, nil
}

// attempt runs one navigate-click-watch cycle against an open session.
func (r *Runner) attempt(ctx context.Context, sess Session, t scrape.Target, hint string) Result {
	if err := sess.Navigate(ctx, t.URL); err != nil {
		return Result{Target: t, Outcome: OutcomeFailed, Err: err}
	}

	// The baseline must be captured before the click can spawn any file.
	baseline := watch.Take(r.cfg.DownloadDir)

	if err := r.clicker.PressDownload(ctx, sess); err != nil {
		return Result{Target: t, Outcome: OutcomeFailed, Err: err}
	}

	w := watch.New(watch.Config{
		Dir:          r.cfg.DownloadDir,
		Hint:         hint,
		TempExts:     r.cfg.TempExts,
		PollInterval: r.cfg.PollInterval,
		Timeout:      r.cfg.DownloadWait,
		Log:          r.log,
	}, baseline)

	path, err := w.Wait(ctx)
	switch {
	case err == nil:
		return Result{Target: t, Outcome: OutcomeSucceeded, Path: path}
	case errors.Is(err, watch.ErrTimeout):
		return Result{Target: t, Outcome: OutcomeTimedOut, Err: err}
	default:
		return Result{Target: t, Outcome: OutcomeFailed, Err: err}
	}
}

// resolveHint derives the expected filename for a target, optionally asking
// the server when the URL itself is unhelpful. A missing hint degrades to
// name-agnostic detection.
func (r *Runner) resolveHint(ctx context.Context, url string) string {
	hint := match.FilenameFromURL(url)
	if hint != "" || !r.cfg.ResolveNames {
		return hint
	}

	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	name, err := match.HeadFilename(hctx, r.cfg.HTTPClient, url)
	if err != nil {
		r.log.Debug("filename lookup failed", zap.String("url", url), zap.Error(err))
		return ""
	}
	return name
}
