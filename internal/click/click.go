// Package click locates the download trigger on a loaded page and activates
// it, falling back through interaction strategies until one takes.
package click

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrNoControl is returned when no download trigger could be found on the
// page, or every interaction strategy failed against the one that was found.
var ErrNoControl = errors.New("no actionable download control on page")

// targetAttr tags the element chosen by the locator so the click strategies
// can address it without re-running the heuristics.
const targetAttr = "data-clickgrab-target"

// Driver is the minimal browser capability set the clicker needs. The
// concrete implementation lives in internal/browser; tests use fakes.
type Driver interface {
	Eval(ctx context.Context, js string, out any) error
	Click(ctx context.Context, selector string) error
	MouseClick(ctx context.Context, x, y float64) error
}

// Candidate is what the locator script reports back about the chosen element.
type Candidate struct {
	Found bool    `json:"found"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Text  string  `json:"text"`
	Via   string  `json:"via"`
}

// locateScript scans the page with ordered heuristics: download-texted
// buttons first, then download-attributed anchors, then any visible anchor
// whose text mentions downloading. The winner gets tagged and its center
// coordinates reported.
const locateScript = `
(function() {
	document.querySelectorAll('[` + targetAttr + `]').forEach(el => el.removeAttribute('` + targetAttr + `'));

	const visible = (el) => {
		const rect = el.getBoundingClientRect();
		return rect.width > 0 && rect.height > 0;
	};
	const enabled = (el) => !el.disabled && el.getAttribute('aria-disabled') !== 'true';
	const mentionsDownload = (el) => {
		const text = (el.textContent || '').toLowerCase();
		const aria = (el.getAttribute('aria-label') || '').toLowerCase();
		const title = (el.getAttribute('title') || '').toLowerCase();
		return text.includes('download') || aria.includes('download') || title.includes('download');
	};

	const heuristics = [
		{ via: 'button-text', pick: () =>
			Array.from(document.querySelectorAll('button, [role="button"], input[type="submit"]'))
				.filter(el => visible(el) && enabled(el) && mentionsDownload(el)) },
		{ via: 'anchor-attr', pick: () =>
			Array.from(document.querySelectorAll('a[download], a[href*="download" i], a[class*="download" i]'))
				.filter(el => visible(el) && el.getAttribute('href')) },
		{ via: 'anchor-text', pick: () =>
			Array.from(document.querySelectorAll('a[href]'))
				.filter(el => visible(el) && mentionsDownload(el)) },
	];

	for (const h of heuristics) {
		const found = h.pick();
		if (found.length === 0) continue;
		const el = found[0];
		el.setAttribute('` + targetAttr + `', '1');
		el.scrollIntoView({ block: 'center' });
		const rect = el.getBoundingClientRect();
		return {
			found: true,
			x: rect.left + rect.width / 2,
			y: rect.top + rect.height / 2,
			text: (el.textContent || '').trim().slice(0, 80),
			via: h.via,
		};
	}
	return { found: false };
})()`

// removeOverlaysScript sweeps fixed-position ad overlays that would swallow
// the click.
const removeOverlaysScript = `
(function() {
	const selectors = [
		'div[style*="z-index: 2147483647"]',
		'div[style*="position: fixed"][style*="cursor: pointer"]',
		'iframe[src*="ad"]',
		'.ad-overlay',
		'#ad-overlay',
	];
	let removed = 0;
	selectors.forEach(sel => document.querySelectorAll(sel).forEach(el => { el.remove(); removed++; }));
	return removed;
})()`

// scriptClick activates the tagged element from inside the page.
const scriptClick = `
(function() {
	const el = document.querySelector('[` + targetAttr + `]');
	if (!el) return false;
	el.click();
	return true;
})()`

// Clicker finds and presses download controls within a bounded element wait.
type Clicker struct {
	ElementWait time.Duration
	Log         *zap.Logger
}

// New returns a Clicker with the given element wait bound.
func New(elementWait time.Duration, log *zap.Logger) *Clicker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Clicker{ElementWait: elementWait, Log: log}
}

// RemoveOverlays clears obvious click-intercepting overlays. Best effort;
// failures are not actionable.
func (c *Clicker) RemoveOverlays(ctx context.Context, d Driver) {
	var removed int
	if err := d.Eval(ctx, removeOverlaysScript, &removed); err != nil {
		c.Log.Debug("overlay sweep failed", zap.Error(err))
		return
	}
	if removed > 0 {
		c.Log.Debug("removed overlays", zap.Int("count", removed))
	}
}

// PressDownload locates the most likely download trigger and activates it.
// Strategies are tried in order until one does not error: native click on
// the tagged selector, pointer click at the element center, then a
// programmatic click from inside the page. Returns ErrNoControl when the
// page offers nothing actionable.
func (c *Clicker) PressDownload(ctx context.Context, d Driver) error {
	c.RemoveOverlays(ctx, d)

	cand, err := c.locate(ctx, d)
	if err != nil {
		return err
	}

	c.Log.Debug("download control located",
		zap.String("via", cand.Via), zap.String("text", cand.Text))

	strategies := []struct {
		name string
		do   func(context.Context) error
	}{
		{"native", func(ctx context.Context) error {
			return d.Click(ctx, "["+targetAttr+"]")
		}},
		{"pointer", func(ctx context.Context) error {
			return d.MouseClick(ctx, cand.X, cand.Y)
		}},
		{"script", func(ctx context.Context) error {
			var clicked bool
			if err := d.Eval(ctx, scriptClick, &clicked); err != nil {
				return err
			}
			if !clicked {
				return errors.New("tagged element vanished")
			}
			return nil
		}},
	}

	var lastErr error
	for _, s := range strategies {
		sctx, cancel := context.WithTimeout(ctx, c.ElementWait)
		err := s.do(sctx)
		cancel()
		if err == nil {
			c.Log.Debug("click succeeded", zap.String("strategy", s.name))
			return nil
		}
		lastErr = err
		c.Log.Debug("click strategy failed",
			zap.String("strategy", s.name), zap.Error(err))
	}

	return fmt.Errorf("%w: all strategies failed: %v", ErrNoControl, lastErr)
}

// locate runs the heuristic scan, retrying until the element wait elapses in
// case the control renders late.
func (c *Clicker) locate(ctx context.Context, d Driver) (Candidate, error) {
	deadline := time.Now().Add(c.ElementWait)

	for {
		var cand Candidate
		if err := d.Eval(ctx, locateScript, &cand); err != nil {
			return Candidate{}, fmt.Errorf("locate download control: %w", err)
		}
		if cand.Found {
			return cand, nil
		}

		wait := 500 * time.Millisecond
		if rem := time.Until(deadline); rem <= 0 {
			return Candidate{}, ErrNoControl
		} else if rem < wait {
			wait = rem
		}
		select {
		case <-ctx.Done():
			return Candidate{}, ctx.Err()
		case <-time.After(wait):
		}
	}
}
