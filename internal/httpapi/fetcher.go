package httpapi

import (
	"context"
	"io"
	"net/http"

	"dev.helix.agent/internal/apperr"
)

// DocumentFetcher retrieves a document's plain-text content from its
// upload URL. PDF/DOCX binary extraction is an external collaborator per
// spec.md §1 scope; no such parsing library is present in this module's
// corpus, so HTTPFetcher returns the fetched bytes as-is, which is exact
// for text/JSON uploads and a best-effort passthrough otherwise.
type DocumentFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// HTTPFetcher fetches a document by URL over plain HTTP(S).
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher builds a fetcher with the given client timeout.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{client: client}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInputInvalid, "build document fetch request", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", apperr.Wrap(apperr.KindProviderUnavailable, "fetch document", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apperr.New(apperr.KindProviderUnavailable, "document fetch returned non-2xx status")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperr.Wrap(apperr.KindParseFailure, "read document body", err)
	}
	return string(body), nil
}
