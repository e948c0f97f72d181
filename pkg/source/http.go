package source

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/solarstation/livedash/pkg/snapshot"
	"github.com/solarstation/livedash/pkg/version"
)

// DefaultPath is the endpoint served by the dongle's web server.
const DefaultPath = "/api/data"

const maxBodyBytes = 1 << 20

// HTTP fetches snapshots with a GET request. It talks to either a TCP
// endpoint (http://, https://) or a unix socket (unix:///path/to.sock).
type HTTP struct {
	url        string
	socketPath string
	httpClient *http.Client
}

// NewHTTP parses rawURL and returns a source for it. A URL without a path
// uses DefaultPath. For unix sockets the request path comes from the "path"
// query parameter.
func NewHTTP(rawURL string) (*HTTP, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to parse source url %q", rawURL)
	}

	switch u.Scheme {
	case "http", "https":
		if u.Host == "" {
			return nil, pkgerrors.Errorf("source url %q has no host", rawURL)
		}
		if u.Path == "" || u.Path == "/" {
			u.Path = DefaultPath
		}
		return &HTTP{
			url:        u.String(),
			httpClient: &http.Client{},
		}, nil
	case "unix":
		if u.Path == "" {
			return nil, pkgerrors.Errorf("source url %q has no socket path", rawURL)
		}
		reqPath := u.Query().Get("path")
		if reqPath == "" {
			reqPath = DefaultPath
		}
		if !strings.HasPrefix(reqPath, "/") {
			reqPath = "/" + reqPath
		}
		return &HTTP{
			url:        "http://unix" + reqPath,
			socketPath: u.Path,
			httpClient: &http.Client{Transport: unixTransport(u.Path)},
		}, nil
	default:
		return nil, pkgerrors.Errorf("unsupported source url scheme %q", u.Scheme)
	}
}

func unixTransport(socketPath string) *http.Transport {
	return &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			conn, err := d.DialContext(ctx, "unix", socketPath)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return nil, ErrSourceNotRunning
				}
				if errors.Is(err, os.ErrPermission) {
					return nil, ErrPermissionDenied
				}
				return nil, err
			}
			return conn, nil
		},
	}
}

// URL returns the request URL.
func (h *HTTP) URL() string {
	return h.url
}

// Fetch performs one GET and decodes the body. Callers bound the request
// with ctx; a deadline surfaces as a timeout TransportError.
func (h *HTTP) Fetch(ctx context.Context) (*snapshot.Snapshot, error) {
	logger := logrus.WithFields(logrus.Fields{
		"url":  h.url,
		"unix": h.socketPath,
	})
	logger.Trace("fetching snapshot")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("User-Agent", "livedash/"+version.Version)

	start := time.Now()
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Errorf("failed to close response body: %v", err)
		}
	}()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &TransportError{Err: pkgerrors.Wrap(err, "failed to read response body")}
	}

	logger.WithFields(logrus.Fields{
		"status":  resp.StatusCode,
		"bytes":   len(b),
		"latency": time.Since(start),
	}).Debug("fetched snapshot")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Body: truncate(strings.TrimSpace(string(b)), 128)}
	}

	s, err := snapshot.Decode(b)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return s, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
