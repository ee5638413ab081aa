package match

import (
	"net/url"
	"strings"
)

// nameParams are query-string keys commonly used to carry a filename.
var nameParams = []string{"file", "filename", "name", "attachment", "download", "title"}

// FilenameFromURL extracts a plausible filename (with extension) from a URL.
// It checks the last path segment, then known query parameters, then the
// fragment. Returns "" when nothing usable is found.
func FilenameFromURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	if p := u.Path; p != "" && !strings.HasSuffix(p, "/") {
		segs := strings.Split(p, "/")
		if cand, err := url.PathUnescape(segs[len(segs)-1]); err == nil {
			cand = strings.TrimSpace(cand)
			if looksLikeFilename(cand) {
				return cand
			}
		}
	}

	q := u.Query()
	for _, key := range nameParams {
		if cand := strings.TrimSpace(q.Get(key)); looksLikeFilename(cand) {
			return cand
		}
	}

	if f := u.Fragment; f != "" {
		segs := strings.Split(f, "/")
		if cand, err := url.PathUnescape(segs[len(segs)-1]); err == nil {
			cand = strings.TrimSpace(cand)
			if looksLikeFilename(cand) {
				return cand
			}
		}
	}

	return ""
}

func looksLikeFilename(s string) bool {
	return s != "" && strings.Contains(s, ".") && !strings.HasPrefix(s, ".")
}
