// Package dispatch forwards readings to the brewing platform's public
// ingestion endpoints. There is one attempt per call; retries are left to the
// next debounce window.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"brewble/internal/config"
	"brewble/internal/model"
)

// ErrNoEndpoint is returned when no ingestion base URL is configured.
var ErrNoEndpoint = errors.New("dispatch: no endpoint configured")

// ErrNotForwarded is returned for readings whose kind has no contract.
var ErrNotForwarded = errors.New("dispatch: reading kind is not forwarded")

type Client struct {
	http         *resty.Client
	baseURL      string
	gravityPath  string
	pressurePath string
	logger       *slog.Logger
}

func NewClient(cfg config.DispatchConfig, logger *slog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &Client{
		http:         httpClient,
		baseURL:      cfg.BaseURL,
		gravityPath:  cfg.GravityPath,
		pressurePath: cfg.PressurePath,
		logger:       logger,
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Send posts r to its endpoint and returns the outcome record. A transport
// error or non-2xx response yields a failed record and a non-nil error.
func (c *Client) Send(ctx context.Context, r model.Reading) (model.DispatchRecord, error) {
	rec := model.DispatchRecord{
		Timestamp: time.Now().UTC(),
		DeviceKey: r.DeviceKey,
		Format:    r.Format,
		Status:    model.DispatchFailed,
	}
	body, path, ok := BuildPayload(r, c.gravityPath, c.pressurePath)
	if !ok {
		rec.Error = ErrNotForwarded.Error()
		return rec, ErrNotForwarded
	}
	rec.URL = c.baseURL + path
	if c.baseURL == "" {
		rec.Error = ErrNoEndpoint.Error()
		return rec, ErrNoEndpoint
	}

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post(path)
	rec.Duration = time.Since(start)
	if err != nil {
		rec.Error = err.Error()
		if c.logger != nil {
			c.logger.Warn("dispatch failed", "url", rec.URL, "device_key", r.DeviceKey, "err", err)
		}
		return rec, fmt.Errorf("post %s: %w", rec.URL, err)
	}
	rec.StatusCode = resp.StatusCode()
	if !resp.IsSuccess() {
		rec.Error = fmt.Sprintf("unexpected status %d", rec.StatusCode)
		if c.logger != nil {
			c.logger.Warn("dispatch rejected", "url", rec.URL, "device_key", r.DeviceKey, "status", rec.StatusCode)
		}
		return rec, fmt.Errorf("post %s: %s", rec.URL, rec.Error)
	}
	rec.Status = model.DispatchSent
	if c.logger != nil {
		c.logger.Info("reading forwarded", "url", rec.URL, "device_key", r.DeviceKey, "format", r.Format, "status", rec.StatusCode)
	}
	return rec, nil
}
