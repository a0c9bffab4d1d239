// Package media caches card image downloads on disk. The backend hands out
// presigned URLs that expire after an hour and change query string on every
// fetch, so cache entries are keyed by the object path with the signature
// stripped; a re-presigned URL for the same object hits the same entry.
package media

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

const (
	cacheEnvVar        = "LOOPMIND_CACHE_DIR"
	cacheSubdir        = "loopmind/images"
	cacheTTL           = 24 * time.Hour
	partialSuffix      = ".part"
	defaultHTTPTimeout = 30 * time.Second
)

// Cache stores downloaded card images under the user cache directory.
type Cache struct {
	dir    string
	client *http.Client
}

// New builds a cache rooted at $LOOPMIND_CACHE_DIR or the OS user cache dir.
func New(client *http.Client) (*Cache, error) {
	dir := os.Getenv(cacheEnvVar)
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			base = filepath.Join(os.TempDir(), "loopmind-cache")
		}
		dir = filepath.Join(base, cacheSubdir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Cache{dir: dir, client: client}, nil
}

// Fetch returns the local path of the image, downloading it if the cached
// copy is missing or stale. A stale copy is still returned when the refresh
// fails, since an expired render beats no render.
func (c *Cache) Fetch(ctx context.Context, imageURL string) (string, error) {
	key, err := cacheKey(imageURL)
	if err != nil {
		return "", err
	}
	imagePath := filepath.Join(c.dir, key)
	partialPath := imagePath + partialSuffix

	if info, err := os.Stat(imagePath); err == nil && info.Size() > 0 && time.Since(info.ModTime()) < cacheTTL {
		return imagePath, nil
	}

	path, err := c.download(ctx, imageURL, imagePath, partialPath)
	if err == nil {
		return path, nil
	}
	if info, statErr := os.Stat(imagePath); statErr == nil && info.Size() > 0 {
		return imagePath, nil
	}
	return "", err
}

func (c *Cache) download(ctx context.Context, imageURL, imagePath, partialPath string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("image download failed: %s (%s)", resp.Status, string(body))
	}

	file, err := os.OpenFile(partialPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(file, resp.Body); err != nil {
		file.Close()
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(partialPath, imagePath); err != nil {
		return "", err
	}
	return imagePath, nil
}

// cacheKey hashes host and path only; presigned query parameters rotate on
// every feed fetch and must not fragment the cache.
func cacheKey(imageURL string) (string, error) {
	parsed, err := url.Parse(imageURL)
	if err != nil {
		return "", fmt.Errorf("bad image url: %w", err)
	}
	if parsed.Host == "" && parsed.Path == "" {
		return "", fmt.Errorf("bad image url %q", imageURL)
	}
	sum := sha1.Sum([]byte(parsed.Host + parsed.Path))
	return hex.EncodeToString(sum[:]), nil
}
