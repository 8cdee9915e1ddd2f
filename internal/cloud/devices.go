package cloud

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// DeviceInfo is a device record as returned by a lookup.
type DeviceInfo struct {
	HID        string `json:"hid"`
	UID        string `json:"uid"`
	GatewayHID string `json:"gatewayHid"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Enabled    bool   `json:"enabled"`
}

// DeviceState is a set of named state values.
type DeviceState map[string]any

func devicePath(hid string, suffix ...string) string {
	p := DeviceEndpoint + "/" + url.PathEscape(hid)
	for _, s := range suffix {
		p += "/" + s
	}
	return p
}

// RegisterDevice creates dev under gw and stores the assigned handle in dev.
func (c *Client) RegisterDevice(ctx context.Context, gw *Gateway, dev *Device) error {
	if !gw.HasHID() || gw.NullHandle() {
		return ErrNoHID
	}
	payload := *dev
	payload.HID = ""
	payload.GatewayHID = gw.HID
	payload.Enabled = true

	var resp hidResponse
	if err := c.do(ctx, http.MethodPost, DeviceEndpoint, payload, &resp); err != nil {
		return fmt.Errorf("registering device %s: %w", dev.UID, err)
	}
	hid, err := resp.hid()
	if err != nil {
		return fmt.Errorf("registering device %s: %w", dev.UID, err)
	}
	dev.HID = hid
	dev.GatewayHID = gw.HID
	dev.Enabled = true
	return nil
}

// UpdateDevice pushes the local device record (including software name and
// version) to the server.
func (c *Client) UpdateDevice(ctx context.Context, gw *Gateway, dev *Device) error {
	if !dev.HasHID() {
		return ErrNoHID
	}
	payload := *dev
	if gw.HasHID() {
		payload.GatewayHID = gw.HID
	}
	if err := c.do(ctx, http.MethodPut, devicePath(dev.HID), payload, nil); err != nil {
		return fmt.Errorf("device update: %w", err)
	}
	return nil
}

// FindDevice looks a device up by handle.
func (c *Client) FindDevice(ctx context.Context, hid string) (DeviceInfo, error) {
	var info DeviceInfo
	if err := c.do(ctx, http.MethodGet, devicePath(hid), nil, &info); err != nil {
		return DeviceInfo{}, fmt.Errorf("finding device %s: %w", hid, err)
	}
	return info, nil
}

type stateRequest struct {
	Timestamp string      `json:"timestamp"`
	States    DeviceState `json:"states,omitempty"`
}

// RequestDeviceState asks the server to push the device's desired state.
func (c *Client) RequestDeviceState(ctx context.Context, dev *Device) error {
	if !dev.HasHID() {
		return ErrNoHID
	}
	body := stateRequest{Timestamp: c.now().UTC().Format(dateLayout)}
	if err := c.do(ctx, http.MethodPost, devicePath(dev.HID, "states", "request"), body, nil); err != nil {
		return fmt.Errorf("device state request: %w", err)
	}
	return nil
}

// UpdateDeviceState reports the device's current state.
func (c *Client) UpdateDeviceState(ctx context.Context, dev *Device, state DeviceState) error {
	if !dev.HasHID() {
		return ErrNoHID
	}
	body := stateRequest{Timestamp: c.now().UTC().Format(dateLayout), States: state}
	if err := c.do(ctx, http.MethodPost, devicePath(dev.HID, "states", "update"), body, nil); err != nil {
		return fmt.Errorf("device state update: %w", err)
	}
	return nil
}
