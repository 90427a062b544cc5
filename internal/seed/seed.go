// Package seed loads the static seed events fetched once at startup,
// with a disk-cached fallback so an offline start still seeds from the
// last successful fetch.
package seed

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	appLog "calwidget/internal/log"
	"calwidget/internal/model"
)

// cacheMeta records HTTP validators for the cached seed body.
type cacheMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher retrieves the seed resource with ETag/Last-Modified caching.
type Fetcher struct {
	client   *http.Client
	cacheDir string
}

// NewFetcher creates a Fetcher caching under cacheDir.
func NewFetcher(cacheDir string) *Fetcher {
	if cacheDir == "" {
		cacheDir = "./var/seed-cache"
	}
	return &Fetcher{
		client:   &http.Client{Timeout: 15 * time.Second},
		cacheDir: cacheDir,
	}
}

// Fetch retrieves and parses the seed resource at url. A network error
// or non-OK status falls back to the cached body when one exists; an
// empty url yields no entries. Entries with an invalid date key are
// dropped with a log line.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]model.SeedEntry, error) {
	if url == "" {
		return nil, nil
	}

	body, err := f.fetchBody(ctx, url)
	if err != nil {
		return nil, err
	}
	return Parse(body)
}

func (f *Fetcher) fetchBody(ctx context.Context, url string) ([]byte, error) {
	if err := os.MkdirAll(f.cacheDir, 0o700); err != nil {
		return nil, err
	}

	meta, _ := f.loadMeta()
	cached, _ := os.ReadFile(f.bodyPath())
	// A cached body for a different URL is useless.
	if meta.URL != url {
		meta = cacheMeta{}
		cached = nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if len(cached) > 0 {
			appLog.Error("seed fetch failed, using cached body", err, "url", url)
			return cached, nil
		}
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		f.saveCache(cacheMeta{
			URL:          url,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			UpdatedAt:    time.Now().UTC(),
		}, body)
		appLog.Info("seed fetch success", "url", url, "bytes", len(body))
		return body, nil

	case http.StatusNotModified:
		if len(cached) == 0 {
			return nil, errors.New("seed not modified but no cached body")
		}
		appLog.Info("seed not modified, using cache", "url", url)
		return cached, nil

	default:
		if len(cached) > 0 {
			appLog.Error("seed fetch non-OK, using cached body", errors.New(resp.Status), "url", url, "status", resp.StatusCode)
			return cached, nil
		}
		return nil, errors.New(resp.Status)
	}
}

// Parse decodes a seed body into entries, dropping ones whose date key
// is missing or malformed.
func Parse(body []byte) ([]model.SeedEntry, error) {
	var entries []model.SeedEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, err
	}
	out := entries[:0]
	for _, e := range entries {
		if err := e.Date.Validate(); err != nil {
			appLog.Error("dropping seed entry with bad date", err, "title", e.Title)
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (f *Fetcher) metaPath() string {
	return filepath.Join(f.cacheDir, "meta.json")
}

func (f *Fetcher) bodyPath() string {
	return filepath.Join(f.cacheDir, "body.json")
}

func (f *Fetcher) loadMeta() (cacheMeta, error) {
	var meta cacheMeta
	raw, err := os.ReadFile(f.metaPath())
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return cacheMeta{}, err
	}
	return meta, nil
}

// saveCache writes body before meta so meta never points at a missing
// body. Failures are logged only; caching is best effort.
func (f *Fetcher) saveCache(meta cacheMeta, body []byte) {
	if err := os.WriteFile(f.bodyPath(), body, 0o600); err != nil {
		appLog.Error("seed cache body save failed", err)
		return
	}
	raw, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		appLog.Error("seed cache meta encode failed", err)
		return
	}
	if err := os.WriteFile(f.metaPath(), raw, 0o600); err != nil {
		appLog.Error("seed cache meta save failed", err)
	}
}
