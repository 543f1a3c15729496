// Package client is a typed HTTP client for the pimon API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MrSnakeDoc/pimon/internal/domain"
	"github.com/MrSnakeDoc/pimon/internal/utils"
	"github.com/MrSnakeDoc/pimon/internal/version"
)

const DefaultTimeout = 30 * time.Second

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("pimon: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("pimon: HTTP %d: %s", e.StatusCode, e.Message)
}

// Client talks to one pimon agent.
type Client struct {
	base *url.URL
	http *http.Client
}

// New parses baseURL ("http://pi.lan:8080"). httpClient may be nil.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: scheme and host are required", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{base: u, http: httpClient}, nil
}

type alertsResponse struct {
	AlertsEnabled bool `json:"alerts_enabled"`
}

type resultResponse struct {
	Result string `json:"result"`
}

func (c *Client) Status(ctx context.Context) (domain.SystemSnapshot, error) {
	var snap domain.SystemSnapshot
	err := c.do(ctx, http.MethodGet, "/status", nil, &snap)
	return snap, err
}

func (c *Client) Services(ctx context.Context) ([]domain.ServiceDescriptor, error) {
	var out []domain.ServiceDescriptor
	err := c.do(ctx, http.MethodGet, "/services", nil, &out)
	return out, err
}

func (c *Client) Alerts(ctx context.Context) (bool, error) {
	var out alertsResponse
	err := c.do(ctx, http.MethodGet, "/alerts", nil, &out)
	return out.AlertsEnabled, err
}

// ToggleAlerts flips the flag and returns the new value.
func (c *Client) ToggleAlerts(ctx context.Context) (bool, error) {
	var out alertsResponse
	err := c.do(ctx, http.MethodPost, "/toggle_alerts", nil, &out)
	return out.AlertsEnabled, err
}

// ControlService returns the server's result string, which may describe a
// failed command.
func (c *Client) ControlService(ctx context.Context, identifier string, action domain.ServiceAction) (string, error) {
	var out resultResponse
	path := "/service/" + url.PathEscape(identifier) + "/" + url.PathEscape(string(action))
	err := c.do(ctx, http.MethodPost, path, nil, &out)
	return out.Result, err
}

func (c *Client) Reboot(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/power/reboot", nil, nil)
}

func (c *Client) Shutdown(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/power/shutdown", nil, nil)
}

func (c *Client) ScheduleReboot(ctx context.Context, minutes int) error {
	return c.do(ctx, http.MethodPost, "/power/schedule_reboot/"+strconv.Itoa(minutes), nil, nil)
}

// Provision queues an install or update; poll Provisioning for the outcome.
func (c *Client) Provision(ctx context.Context, action domain.ProvisionAction, fqdn, authID string) error {
	body := map[string]string{"fqdn": fqdn, "authid": authID}
	return c.do(ctx, http.MethodPost, "/provision/"+url.PathEscape(string(action)), body, nil)
}

func (c *Client) Provisioning(ctx context.Context) (domain.ProvisioningInfo, error) {
	var out domain.ProvisioningInfo
	err := c.do(ctx, http.MethodGet, "/provisioning", nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent("ctl"))
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer utils.Close(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var e struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			apiErr.Message = e.Error
		} else {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
