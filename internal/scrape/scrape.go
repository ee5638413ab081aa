// Package scrape gathers candidate download-page URLs from a loaded page
// and from line-oriented URL list files.
package scrape

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
)

// Source records where a target URL came from.
type Source string

const (
	SourcePage Source = "page"
	SourceList Source = "list"
)

// Target is one URL the run will attempt to turn into a completed download.
type Target struct {
	URL    string
	Source Source
}

// Evaler is the browser capability needed to extract anchors from the
// already-loaded page.
type Evaler interface {
	Eval(ctx context.Context, js string, out any) error
}

// anchorsScript collects hrefs from article-like content blocks, falling
// back to every anchor on the page when none of the preferred containers
// yield anything.
const anchorsScript = `
(function() {
	const containers = ['article', '.post', '.entry', '.paste-body', '.content'];
	let anchors = [];
	for (const sel of containers) {
		const blocks = document.querySelectorAll(sel);
		if (blocks.length === 0) continue;
		blocks.forEach(b => anchors.push(...b.querySelectorAll('a[href]')));
		if (anchors.length > 0) break;
	}
	if (anchors.length === 0) {
		anchors = Array.from(document.querySelectorAll('a[href]'));
	}
	return anchors
		.map(a => a.href)
		.filter(h => h && (h.startsWith('http://') || h.startsWith('https://')));
})()`

// Anchors extracts absolute http(s) URLs from the current page, in document
// order with exact duplicates removed.
func Anchors(ctx context.Context, d Evaler, log *zap.Logger) ([]Target, error) {
	var hrefs []string
	if err := d.Eval(ctx, anchorsScript, &hrefs); err != nil {
		return nil, fmt.Errorf("extract anchors: %w", err)
	}

	targets := make([]Target, 0, len(hrefs))
	for _, h := range hrefs {
		targets = append(targets, Target{URL: h, Source: SourcePage})
	}
	targets = Merge(targets)

	if log != nil {
		log.Info("scraped page links", zap.Int("count", len(targets)))
	}
	return targets, nil
}

// FromFile reads literal URLs from a text file, one per line. Blank lines
// and lines starting with '#' are ignored.
func FromFile(path string) ([]Target, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open url list: %w", err)
	}
	defer f.Close()

	var targets []Target
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		targets = append(targets, Target{URL: line, Source: SourceList})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read url list: %w", err)
	}
	return targets, nil
}

// Merge concatenates target lists and removes exact-URL duplicates, keeping
// each URL at its first-seen position.
func Merge(lists ...[]Target) []Target {
	seen := make(map[string]struct{})
	var out []Target
	for _, list := range lists {
		for _, t := range list {
			if _, dup := seen[t.URL]; dup {
				continue
			}
			seen[t.URL] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

// downloadTokens mark URLs that plausibly lead to a download page. This is
// a precision heuristic; missing a real download page is acceptable.
var downloadTokens = []string{"download", "dl"}

// Filter keeps only targets whose URL contains a download-indicative token.
// When nothing survives the filter, the original list is returned unchanged
// rather than leaving the run with nothing to do.
func Filter(targets []Target) []Target {
	var kept []Target
	for _, t := range targets {
		lower := strings.ToLower(t.URL)
		for _, tok := range downloadTokens {
			if strings.Contains(lower, tok) {
				kept = append(kept, t)
				break
			}
		}
	}
	if len(kept) == 0 {
		return targets
	}
	return kept
}
