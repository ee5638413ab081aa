// Package match decides whether a download target already exists on disk
// and derives expected filenames from target URLs.
package match

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// DefaultTempExts are the in-progress marker suffixes browsers append while
// a download is still writing. The set is configurable because it depends on
// the browser vendor (.crdownload is Chrome, .part Firefox, .tmp generic).
var DefaultTempExts = []string{".crdownload", ".part", ".tmp"}

// IsTemp reports whether name carries one of the given in-progress markers.
func IsTemp(name string, tempExts []string) bool {
	for _, ext := range tempExts {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// Exists reports whether dir already holds the candidate file, either under
// its exact name or under a browser duplicate-suffixed variant like
// "name (1).ext". In-progress temp files never count as obtained. Returns
// the matched path when found.
func Exists(dir, name string) (bool, string) {
	if name == "" {
		return false, ""
	}

	exact := filepath.Join(dir, name)
	if info, err := os.Stat(exact); err == nil && !info.IsDir() {
		return true, exact
	}

	base := strings.TrimSuffix(name, filepath.Ext(name))
	ext := filepath.Ext(name)
	if ext == "" {
		return false, ""
	}

	// "name (k).ext" for any k >= 1, matched literally otherwise.
	pattern := regexp.MustCompile(
		fmt.Sprintf(`^%s \([1-9]\d*\)%s$`, regexp.QuoteMeta(base), regexp.QuoteMeta(ext)))

	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, ""
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if pattern.MatchString(e.Name()) {
			return true, filepath.Join(dir, e.Name())
		}
	}
	return false, ""
}

// SameLogicalFile reports whether candidate is name or a duplicate-suffixed
// variant of it. Used by the download monitor to recognize the expected file
// when the browser had to rename it to avoid a collision.
func SameLogicalFile(name, candidate string) bool {
	if name == "" || candidate == "" {
		return false
	}
	if name == candidate {
		return true
	}
	base := strings.TrimSuffix(name, filepath.Ext(name))
	ext := filepath.Ext(name)
	if ext == "" {
		return false
	}
	pattern := regexp.MustCompile(
		fmt.Sprintf(`^%s \([1-9]\d*\)%s$`, regexp.QuoteMeta(base), regexp.QuoteMeta(ext)))
	return pattern.MatchString(candidate)
}
