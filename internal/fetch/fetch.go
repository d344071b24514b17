// Package fetch resolves summarize inputs published behind HTTP(S) URLs,
// such as build and failure exports in a GCS bucket, into local files.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
)

// Sentinel errors for fetch failures.
var (
	ErrUnreachable = errors.New("input source unreachable")
	ErrStatus      = errors.New("input source error")
	ErrTimeout     = errors.New("input fetch timeout")
)

const maxConcurrentFetches = 4

// Client downloads remote inputs. Downloads are revalidated with the
// server's ETag, so an unchanged object keeps its local file (and its
// modification time) across runs.
type Client struct {
	token  string
	client *http.Client
}

// NewClient creates a Client. A non-empty token is sent as a bearer token.
func NewClient(token string, timeout time.Duration) *Client {
	return &Client{
		token:  token,
		client: &http.Client{Timeout: timeout},
	}
}

// IsRemote reports whether arg is an http or https URL.
func IsRemote(arg string) bool {
	return strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://")
}

// Resolve returns a local path for every arg, in order. Remote args are
// downloaded into dir concurrently; anything else is returned unchanged.
func (c *Client) Resolve(ctx context.Context, dir string, args []string) ([]string, error) {
	paths := make([]string, len(args))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)

	for i, arg := range args {
		if !IsRemote(arg) {
			paths[i] = arg
			continue
		}
		g.Go(func() error {
			p, err := c.Fetch(ctx, arg, dir)
			if err != nil {
				return err
			}
			paths[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

// Fetch downloads rawURL into dir and returns the local path.
func (c *Client) Fetch(ctx context.Context, rawURL, dir string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse input url: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create fetch directory: %w", err)
	}
	local := filepath.Join(dir, localName(u))
	etagPath := local + ".etag"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(req)
	if etag, err := os.ReadFile(etagPath); err == nil {
		if _, err := os.Stat(local); err == nil {
			req.Header.Set("If-None-Match", string(etag))
		}
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return "", classifyError(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotModified:
		slog.Debug("input unchanged", "url", rawURL, "path", local)
		return local, nil
	case http.StatusOK:
	default:
		return "", fmt.Errorf("%w: %s: status %d", ErrStatus, rawURL, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(dir, ".fetch-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("download %s: %w", rawURL, classifyError(err))
	}
	if err := os.Rename(tmp.Name(), local); err != nil {
		return "", fmt.Errorf("store %s: %w", rawURL, err)
	}

	if etag := resp.Header.Get("ETag"); etag != "" {
		if err := os.WriteFile(etagPath, []byte(etag), 0o644); err != nil {
			slog.Warn("save etag", "path", etagPath, "error", err)
		}
	} else {
		os.Remove(etagPath)
	}

	slog.Info("input fetched", "url", rawURL, "path", local,
		"size", humanize.Bytes(uint64(n)), "elapsed", time.Since(start).Round(time.Millisecond))
	return local, nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// localName keeps the object's base name for readability and prefixes a
// digest of the full URL so different objects never share a file.
func localName(u *url.URL) string {
	sum := sha256.Sum256([]byte(u.String()))
	base := path.Base(u.Path)
	if base == "/" || base == "." {
		base = "input"
	}
	return hex.EncodeToString(sum[:6]) + "-" + base
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}
