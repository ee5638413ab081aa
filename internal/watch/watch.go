// Package watch observes a download directory and decides when a
// browser-initiated download has actually finished. There is no atomic
// "download complete" signal to consume, so completion is inferred from a
// level-triggered poll: diff the directory against a pre-click baseline,
// track the in-progress temp file, and require the final file's size to hold
// across consecutive polls before declaring it done.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/clickgrab/clickgrab/internal/match"
)

// State is the monitor's position in the absent → in-progress → complete
// progression for one download attempt.
type State int

const (
	// Watching means no new file has been observed since the baseline.
	Watching State = iota
	// Pending means a new file exists but is still being written.
	Pending
	// Stable means a finished-looking file appeared and its size is being
	// confirmed across polls.
	Stable
	// Done is terminal success.
	Done
	// TimedOut is terminal failure: nothing appeared or stabilized in time.
	TimedOut
)

func (s State) String() string {
	switch s {
	case Watching:
		return "watching"
	case Pending:
		return "pending"
	case Stable:
		return "stable"
	case Done:
		return "done"
	case TimedOut:
		return "timed-out"
	}
	return "unknown"
}

// ErrTimeout is returned by Wait when no download completes within the
// configured bound.
var ErrTimeout = errors.New("download did not complete in time")

const (
	DefaultPollInterval = 500 * time.Millisecond
	DefaultTimeout      = 150 * time.Second
)

// entry is one file observed in the directory.
type entry struct {
	Size    int64
	ModTime time.Time
}

// Snapshot captures the names and sizes in a directory at one instant.
type Snapshot map[string]entry

// Take lists dir into a Snapshot. A missing or unreadable directory yields
// an empty snapshot rather than an error; the poll loop tolerates transient
// listing failures.
func Take(dir string) Snapshot {
	snap := Snapshot{}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return snap
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		snap[e.Name()] = entry{Size: info.Size(), ModTime: info.ModTime()}
	}
	return snap
}

// Config controls one Watcher.
type Config struct {
	Dir          string
	Hint         string        // expected final filename, "" for name-agnostic detection
	TempExts     []string      // in-progress marker suffixes
	PollInterval time.Duration
	Timeout      time.Duration
	Log          *zap.Logger
}

// Watcher runs the completion state machine for a single attempt.
type Watcher struct {
	cfg      Config
	baseline Snapshot

	state     State
	candidate string // basename of the presumed final file
	lastSize  int64
}

// New creates a Watcher over the baseline snapshot taken immediately before
// the click was issued.
func New(cfg Config, baseline Snapshot) *Watcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if len(cfg.TempExts) == 0 {
		cfg.TempExts = match.DefaultTempExts
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	return &Watcher{cfg: cfg, baseline: baseline, state: Watching}
}

// State returns the machine's current state.
func (w *Watcher) State() State {
	return w.state
}

// Wait polls the directory until the download completes or the timeout
// elapses. On success it returns the final file's path.
func (w *Watcher) Wait(ctx context.Context) (string, error) {
	deadline := time.Now().Add(w.cfg.Timeout)

	for {
		w.step(Take(w.cfg.Dir))
		if w.state == Done {
			return filepath.Join(w.cfg.Dir, w.candidate), nil
		}

		if time.Now().After(deadline) {
			w.state = TimedOut
			return "", fmt.Errorf("%w (waited %s)", ErrTimeout, w.cfg.Timeout)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(w.cfg.PollInterval):
		}
	}
}

// step advances the state machine by one poll of the directory.
func (w *Watcher) step(snap Snapshot) {
	if w.state == Done || w.state == TimedOut {
		return
	}

	finals, temps := w.newSince(snap)
	cand := w.pick(finals, snap)

	if cand == "" {
		// Nothing finished-looking yet. A temp file means the browser is
		// still writing; its disappearance without a final file means the
		// download was likely cancelled, so fall back to watching.
		if len(temps) > 0 {
			if w.state != Pending {
				w.cfg.Log.Debug("download in progress", zap.String("temp", temps[0]))
			}
			w.state = Pending
		} else if w.state == Stable {
			w.state = Watching
		}
		return
	}

	size := snap[cand].Size

	switch w.state {
	case Watching, Pending:
		w.state = Stable
		w.candidate = cand
		w.lastSize = size
		w.cfg.Log.Debug("candidate file settled",
			zap.String("file", cand), zap.Int64("size", size))
	case Stable:
		if cand != w.candidate {
			// A better-matching file appeared; start confirming that one.
			w.candidate = cand
			w.lastSize = size
			return
		}
		if size == w.lastSize {
			w.state = Done
			w.cfg.Log.Debug("download complete",
				zap.String("file", cand), zap.Int64("size", size))
			return
		}
		// The size moved after looking settled; the server writes in
		// bursts, treat it as still in progress.
		w.state = Pending
		w.lastSize = size
	}
}

// newSince splits entries that appeared after the baseline into final-looking
// files and in-progress temp files.
func (w *Watcher) newSince(snap Snapshot) (finals, temps []string) {
	for name := range snap {
		if _, existed := w.baseline[name]; existed {
			continue
		}
		if match.IsTemp(name, w.cfg.TempExts) {
			temps = append(temps, name)
		} else {
			finals = append(finals, name)
		}
	}
	return finals, temps
}

// pick chooses the attempt's result among the new final-looking files. With
// a name hint only the hinted file (or a duplicate-suffixed variant of it)
// qualifies, so sidecar files cannot be mistaken for the download. Without a
// hint the most recently modified newcomer wins.
func (w *Watcher) pick(finals []string, snap Snapshot) string {
	if w.cfg.Hint != "" {
		for _, name := range finals {
			if match.SameLogicalFile(w.cfg.Hint, name) {
				return name
			}
		}
		return ""
	}

	best := ""
	for _, name := range finals {
		if best == "" || snap[name].ModTime.After(snap[best].ModTime) {
			best = name
		}
	}
	return best
}
