package browser

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Manager owns at most one Session at a time and restarts it after a
// configured number of successful downloads. Long browser sessions degrade
// (leaked renderers, expired site sessions); periodic restarts keep a bulk
// run healthy. Restarts preserve the full configuration, including the
// download directory.
type Manager struct {
	cfg          Config
	refreshAfter int
	log          *zap.Logger

	// launch is swappable so lifecycle logic is testable without Chrome.
	launch       func(Config) (*Session, error)
	restartPause time.Duration

	sess      *Session
	successes int
}

// NewManager creates a Manager. refreshAfter <= 0 disables periodic
// restarts.
func NewManager(cfg Config, refreshAfter int) *Manager {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		cfg:          cfg,
		refreshAfter: refreshAfter,
		log:          log,
		launch:       New,
		restartPause: time.Second,
	}
}

// Acquire returns the current session, starting one if needed.
func (m *Manager) Acquire(ctx context.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.sess != nil {
		return m.sess, nil
	}
	sess, err := m.launch(m.cfg)
	if err != nil {
		return nil, fmt.Errorf("launch browser session: %w", err)
	}
	m.sess = sess
	return m.sess, nil
}

// RecordSuccess counts one completed download and restarts the session when
// the refresh threshold is reached.
func (m *Manager) RecordSuccess(ctx context.Context) error {
	m.successes++
	if m.refreshAfter <= 0 || m.successes < m.refreshAfter {
		return nil
	}
	m.log.Info("session refresh threshold reached",
		zap.Int("successes", m.successes))
	_, err := m.Restart(ctx)
	return err
}

// Restart tears the current session down and starts a fresh one with the
// same configuration, resetting the success counter.
func (m *Manager) Restart(ctx context.Context) (*Session, error) {
	if m.sess != nil {
		m.sess.Close()
		m.sess = nil
	}
	m.successes = 0

	// Give the old process a moment to release its profile and ports.
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(m.restartPause):
	}

	return m.Acquire(ctx)
}

// Successes returns the number of completed downloads since the last
// restart.
func (m *Manager) Successes() int {
	return m.successes
}

// Close shuts down the managed session, if any.
func (m *Manager) Close() {
	if m.sess != nil {
		m.sess.Close()
		m.sess = nil
	}
}
