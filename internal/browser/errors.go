package browser

import (
	"context"
	"errors"
	"strings"
)

// IsSessionExpired reports whether an error means the browser session is
// gone and a restart is required, as opposed to a recoverable page-level
// failure.
func IsSessionExpired(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	expiredPatterns := []string{
		"context canceled",
		"websocket: close",
		"target closed",
		"browser: not connected",
		"session closed",
		"page closed",
		"invalid session",
		"connection refused",
		"broken pipe",
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range expiredPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
