package playlist

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/jmylchreest/streamvault/pkg/httpclient"
)

// HTTPFetcher adapts the resilient httpclient.Client (retries, circuit
// breaker, transparent decompression) to the Fetcher interface the
// playlist engine needs.
type HTTPFetcher struct {
	client *httpclient.Client
}

// NewHTTPFetcher wraps client for playlist fetches.
func NewHTTPFetcher(client *httpclient.Client) *HTTPFetcher {
	return &HTTPFetcher{client: client}
}

func (f *HTTPFetcher) FetchPlaylist(ctx context.Context, playlistURL string) ([]byte, error) {
	resp, err := f.client.Get(ctx, playlistURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: unexpected status %d", playlistURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading playlist body: %w", err)
	}
	return body, nil
}
