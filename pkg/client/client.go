// Package client talks to the HTTP API of a running livedash.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"syscall"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Client is a struct for communicating with a livedash API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient accepts a listen address ("127.0.0.1:8080") or a base URL.
func NewClient(addr string) *Client {
	base := strings.TrimSuffix(addr, "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{
		baseURL:    base,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Get sends a GET request and decodes the JSON response into v.
func (c *Client) Get(ctx context.Context, path string, v any) error {
	url := c.baseURL + path
	logrus.WithFields(logrus.Fields{
		"method": http.MethodGet,
		"url":    url,
	}).Debug("sending request")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) {
			return ErrNotRunning
		}
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logrus.Errorf("failed to close response body: %v", err)
		}
	}()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusServiceUnavailable:
		return ErrNoData
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("got %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	if err := json.Unmarshal(b, v); err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal response from %s", path)
	}
	return nil
}
