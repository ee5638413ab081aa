package match

import (
	"context"
	"fmt"
	"mime"
	"net/http"
)

// HeadFilename asks the server for the target's filename via a HEAD request,
// reading the Content-Disposition header. This refines the URL-derived hint
// when the URL itself carries no usable name. Any failure is returned to the
// caller, who is expected to degrade to name-agnostic detection.
func HeadFilename(ctx context.Context, client *http.Client, rawURL string) (string, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("head request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("head request: %w", err)
	}
	defer resp.Body.Close()

	cd := resp.Header.Get("Content-Disposition")
	if cd == "" {
		return "", nil
	}

	_, params, err := mime.ParseMediaType(cd)
	if err != nil {
		return "", fmt.Errorf("parse content-disposition: %w", err)
	}

	if name := params["filename"]; looksLikeFilename(name) {
		return name, nil
	}
	return "", nil
}
