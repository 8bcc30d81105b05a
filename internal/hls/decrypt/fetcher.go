package decrypt

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/jmylchreest/streamvault/pkg/httpclient"
)

// HTTPKeyFetcher fetches AES key bytes over HTTP, reusing the shared
// resilient client for retries and circuit breaking.
type HTTPKeyFetcher struct {
	client *httpclient.Client
}

// NewHTTPKeyFetcher wraps client for key fetches.
func NewHTTPKeyFetcher(client *httpclient.Client) *HTTPKeyFetcher {
	return &HTTPKeyFetcher{client: client}
}

func (f *HTTPKeyFetcher) FetchKey(ctx context.Context, keyURI string) ([]byte, error) {
	resp, err := f.client.Get(ctx, keyURI)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching key: unexpected status %d", resp.StatusCode)
	}

	key, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading key body: %w", err)
	}
	return key, nil
}
