package cloud

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// GatewayInfo is a gateway record as returned by a lookup.
type GatewayInfo struct {
	HID             string `json:"hid"`
	UID             string `json:"uid"`
	Name            string `json:"name"`
	OS              string `json:"osName"`
	Type            string `json:"type"`
	SoftwareName    string `json:"softwareName"`
	SoftwareVersion string `json:"softwareVersion"`
	SDKVersion      string `json:"sdkVersion"`
	Enabled         bool   `json:"enabled"`
}

func gatewayPath(hid string, suffix ...string) string {
	p := GatewayEndpoint + "/" + url.PathEscape(hid)
	for _, s := range suffix {
		p += "/" + s
	}
	return p
}

// RegisterGateway creates the gateway and stores the assigned handle in gw.
// gw is left untouched on failure.
func (c *Client) RegisterGateway(ctx context.Context, gw *Gateway) error {
	payload := *gw
	payload.HID = ""

	var resp hidResponse
	if err := c.do(ctx, http.MethodPost, GatewayEndpoint, payload, &resp); err != nil {
		return fmt.Errorf("registering gateway %s: %w", gw.UID, err)
	}
	hid, err := resp.hid()
	if err != nil {
		return fmt.Errorf("registering gateway %s: %w", gw.UID, err)
	}
	gw.HID = hid
	return nil
}

// CheckinGateway announces an already registered gateway.
func (c *Client) CheckinGateway(ctx context.Context, gw *Gateway) error {
	if !gw.HasHID() {
		return ErrNoHID
	}
	if err := c.do(ctx, http.MethodPut, gatewayPath(gw.HID, "checkin"), nil, nil); err != nil {
		return fmt.Errorf("gateway checkin: %w", err)
	}
	return nil
}

// HeartbeatGateway reports the gateway as alive.
func (c *Client) HeartbeatGateway(ctx context.Context, gw *Gateway) error {
	if !gw.HasHID() {
		return ErrNoHID
	}
	if err := c.do(ctx, http.MethodPut, gatewayPath(gw.HID, "heartbeat"), nil, nil); err != nil {
		return fmt.Errorf("gateway heartbeat: %w", err)
	}
	return nil
}

// UpdateGateway pushes the local gateway record to the server.
func (c *Client) UpdateGateway(ctx context.Context, gw *Gateway) error {
	if !gw.HasHID() {
		return ErrNoHID
	}
	if err := c.do(ctx, http.MethodPut, gatewayPath(gw.HID), gw, nil); err != nil {
		return fmt.Errorf("gateway update: %w", err)
	}
	return nil
}

// FindGateway looks a gateway up by handle.
func (c *Client) FindGateway(ctx context.Context, hid string) (GatewayInfo, error) {
	var info GatewayInfo
	if err := c.do(ctx, http.MethodGet, gatewayPath(hid), nil, &info); err != nil {
		return GatewayInfo{}, fmt.Errorf("finding gateway %s: %w", hid, err)
	}
	return info, nil
}

// FetchGatewayConfig retrieves and parses the gateway's cloud config.
// profile selects the platform sub-object kept; see ParseGatewayConfig.
func (c *Client) FetchGatewayConfig(ctx context.Context, gw *Gateway, profile string) (GatewayConfig, error) {
	if !gw.HasHID() {
		return GatewayConfig{}, ErrNoHID
	}

	var body []byte
	if err := c.do(ctx, http.MethodGet, gatewayPath(gw.HID, "config"), nil, &body); err != nil {
		return GatewayConfig{}, fmt.Errorf("gateway config: %w", err)
	}
	cfg, err := ParseGatewayConfig(body, profile)
	if err != nil {
		return GatewayConfig{}, fmt.Errorf("gateway config: %w", err)
	}
	return cfg, nil
}

// ReportGatewayError posts an error message against the gateway.
func (c *Client) ReportGatewayError(ctx context.Context, gw *Gateway, message string) error {
	if !gw.HasHID() {
		return ErrNoHID
	}
	body := map[string]string{"error": message}
	if err := c.do(ctx, http.MethodPost, gatewayPath(gw.HID, "errors"), body, nil); err != nil {
		return fmt.Errorf("gateway error report: %w", err)
	}
	return nil
}
