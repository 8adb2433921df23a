// Package models fetches and caches inpainting model files.
//
// Model weights are large (tens of megabytes) and immutable for a given URL,
// so downloads are cached on disk keyed by a hash of the URL. Cache hits
// short-circuit the network entirely.
package models

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// Progress describes download advancement. Total is -1 when the server does
// not announce a content length; Percentage is -1 in that case too.
type Progress struct {
	Loaded     int64
	Total      int64
	Percentage float64
}

// ProgressFunc receives periodic download progress. May be nil.
type ProgressFunc func(Progress)

// cacheCheckTimeout bounds the cache-existence check. A stat against a hung
// network filesystem must degrade to "not cached" instead of blocking the
// caller indefinitely.
const cacheCheckTimeout = 5 * time.Second

// progressChunk is how many downloaded bytes elapse between progress
// callbacks.
const progressChunk = 256 << 10

// Provider downloads model bytes over HTTP and caches them under a local
// directory.
type Provider struct {
	cacheDir string
	client   *http.Client
}

// NewProvider returns a provider caching under cacheDir. The directory is
// created on first use, not here, so construction never touches the disk.
func NewProvider(cacheDir string) *Provider {
	return &Provider{
		cacheDir: cacheDir,
		client:   &http.Client{},
	}
}

// cachePath maps a model URL to its on-disk cache file.
func (p *Provider) cachePath(url string) string {
	sum := sha256.Sum256([]byte(url))
	return filepath.Join(p.cacheDir, hex.EncodeToString(sum[:])+".onnx")
}

// IsCached reports whether the model for url is already on disk. The check
// resolves to false after cacheCheckTimeout rather than hanging.
func (p *Provider) IsCached(url string) bool {
	path := p.cachePath(url)
	done := make(chan bool, 1)
	go func() {
		info, err := os.Stat(path)
		done <- err == nil && info.Size() > 0
	}()
	select {
	case cached := <-done:
		return cached
	case <-time.After(cacheCheckTimeout):
		log.Warn().Str("path", path).Msg("cache existence check timed out, treating as not cached")
		return false
	}
}

// CachedBytes returns the cached model bytes for url, or nil when no cache
// entry exists.
func (p *Provider) CachedBytes(url string) ([]byte, error) {
	data, err := os.ReadFile(p.cachePath(url))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached model: %w", err)
	}
	return data, nil
}

// Store persists model bytes for url. The write goes through a temp file and
// rename so a crash mid-write never leaves a truncated cache entry behind.
func (p *Provider) Store(url string, data []byte) error {
	if err := os.MkdirAll(p.cacheDir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	path := p.cachePath(url)
	tmp, err := os.CreateTemp(p.cacheDir, "model-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to finalize cache file: %w", err)
	}
	return nil
}

// FetchBytes returns the model bytes for url, from cache when possible.
//
// A cache hit reports 100% progress immediately and never touches the
// network. A miss streams the download with periodic progress callbacks and
// persists the result on completion; a failed cache write is logged but does
// not fail the fetch, since the bytes are already in hand. Downloads are a
// single attempt, no retries.
func (p *Provider) FetchBytes(ctx context.Context, url string, onProgress ProgressFunc) ([]byte, error) {
	if data, err := p.CachedBytes(url); err == nil && data != nil {
		log.Debug().Str("url", url).Int("bytes", len(data)).Msg("model cache hit")
		if onProgress != nil {
			onProgress(Progress{Loaded: int64(len(data)), Total: int64(len(data)), Percentage: 100})
		}
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid model url %q: %w", url, err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model download failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model download failed: unexpected status %s", resp.Status)
	}

	data, err := readAllWithProgress(resp.Body, resp.ContentLength, onProgress)
	if err != nil {
		return nil, fmt.Errorf("model download interrupted: %w", err)
	}
	log.Info().Str("url", url).Int("bytes", len(data)).Msg("model downloaded")

	if err := p.Store(url, data); err != nil {
		log.Warn().Err(err).Str("url", url).Msg("failed to cache downloaded model")
	}
	return data, nil
}

// readAllWithProgress drains r, invoking onProgress roughly every
// progressChunk bytes and once more at the end. total may be -1 when the
// length is unknown.
func readAllWithProgress(r io.Reader, total int64, onProgress ProgressFunc) ([]byte, error) {
	var data []byte
	buf := make([]byte, 32<<10)
	var loaded, lastReport int64
	for {
		n, err := r.Read(buf)
		if n > 0 {
			data = append(data, buf[:n]...)
			loaded += int64(n)
			if onProgress != nil && loaded-lastReport >= progressChunk {
				onProgress(makeProgress(loaded, total))
				lastReport = loaded
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	if onProgress != nil {
		onProgress(makeProgress(loaded, total))
	}
	return data, nil
}

func makeProgress(loaded, total int64) Progress {
	pct := -1.0
	if total > 0 {
		pct = float64(loaded) / float64(total) * 100
	}
	return Progress{Loaded: loaded, Total: total, Percentage: pct}
}
