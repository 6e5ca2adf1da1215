package registry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const instancePath = "/nacos/v1/ns/instance"

// Instance identifies one service registration. Immutable after
// construction; the same identity is used for registration, every
// heartbeat, and deregistration.
type Instance struct {
	ServiceName string
	IP          string
	Port        int
	NamespaceID string
	GroupName   string
	Ephemeral   bool
}

// Client talks to a Nacos-style service registry over its HTTP API.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a registry client for the given base URL. httpClient
// may be nil, in which case a client with a 10s timeout is used.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpClient,
	}
}

// Register announces the instance to the registry. The caller decides what
// to do on failure; there is no retry here.
func (c *Client) Register(ctx context.Context, inst Instance) error {
	form := instanceForm(inst)
	form.Set("healthy", "true")
	form.Set("weight", "1.0")
	form.Set("ephemeral", strconv.FormatBool(inst.Ephemeral))

	if err := c.call(ctx, http.MethodPost, instancePath, form); err != nil {
		return fmt.Errorf("failed to register %s@%s:%d: %w", inst.ServiceName, inst.IP, inst.Port, err)
	}
	return nil
}

// Heartbeat sends a liveness beat for a previously registered instance.
func (c *Client) Heartbeat(ctx context.Context, inst Instance) error {
	if err := c.call(ctx, http.MethodPut, instancePath+"/beat", instanceForm(inst)); err != nil {
		return fmt.Errorf("heartbeat for %s@%s:%d failed: %w", inst.ServiceName, inst.IP, inst.Port, err)
	}
	return nil
}

// Deregister removes the instance from the registry. Best-effort: callers
// ignore failures and rely on the registry expiring the instance once
// heartbeats stop.
func (c *Client) Deregister(ctx context.Context, inst Instance) error {
	if err := c.call(ctx, http.MethodDelete, instancePath, instanceForm(inst)); err != nil {
		return fmt.Errorf("failed to deregister %s@%s:%d: %w", inst.ServiceName, inst.IP, inst.Port, err)
	}
	return nil
}

func instanceForm(inst Instance) url.Values {
	form := url.Values{}
	form.Set("serviceName", inst.ServiceName)
	form.Set("ip", inst.IP)
	form.Set("port", strconv.Itoa(inst.Port))
	form.Set("namespaceId", inst.NamespaceID)
	form.Set("groupName", inst.GroupName)
	return form
}

func (c *Client) call(ctx context.Context, method, path string, form url.Values) error {
	// Nacos accepts instance parameters as a form body on POST/PUT and as
	// query parameters on DELETE.
	target := c.baseURL + path
	var body io.Reader
	if method == http.MethodDelete {
		target += "?" + form.Encode()
	} else {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("registry error %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
