package client

import (
	"context"

	pkgerrors "github.com/pkg/errors"

	"github.com/solarstation/livedash/pkg/server"
)

func (c *Client) GetMetrics(ctx context.Context) (*server.MetricsResponse, error) {
	var resp server.MetricsResponse
	if err := c.Get(ctx, "/api/metrics", &resp); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to get metrics")
	}
	return &resp, nil
}

func (c *Client) GetStatus(ctx context.Context) (*server.StatusResponse, error) {
	var resp server.StatusResponse
	if err := c.Get(ctx, "/api/status", &resp); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to get status")
	}
	return &resp, nil
}

func (c *Client) GetVersion(ctx context.Context) (string, string, error) {
	var resp server.VersionResponse
	if err := c.Get(ctx, "/api/version", &resp); err != nil {
		return "", "", pkgerrors.Wrap(err, "failed to get version")
	}
	return resp.Version, resp.GitCommit, nil
}
