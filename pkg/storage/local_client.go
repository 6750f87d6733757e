package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

type localClient struct {
	root    string
	baseURL string
}

// NewLocalClient stores files flat under root and exposes them below baseURL.
func NewLocalClient(root, baseURL string) (Storage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &localClient{root: root, baseURL: baseURL}, nil
}

func (c *localClient) path(key string) (string, error) {
	clean := filepath.Base(key)
	if clean != key || clean == "." || clean == ".." {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(c.root, clean), nil
}

func (c *localClient) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	p, err := c.path(key)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", key, err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(p)
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return f.Close()
}

func (c *localClient) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := c.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}
	return f, nil
}

func (c *localClient) Delete(ctx context.Context, key string) error {
	p, err := c.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (c *localClient) List(ctx context.Context) ([]Object, error) {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		return nil, err
	}
	objects := make([]Object, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		objects = append(objects, Object{
			Key:      entry.Name(),
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}
	return objects, nil
}

func (c *localClient) URL(key string) string {
	return joinURL(c.baseURL, key)
}

func (c *localClient) KeyFromURL(url string) (string, bool) {
	return trimURL(c.baseURL, url)
}
