package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"

	"github.com/nerrad567/gray-logic-cloudlink/internal/cloud"
)

// DeviceStateRequestEvent is the command the cloud sends to push a desired
// device state while the state sync runs.
const DeviceStateRequestEvent = "ServerToGateway_DeviceStateRequest"

var errStateSyncStopped = errors.New("state sync not running")

// stateSync is the device state sub-session started once the device is
// connected. It holds the last desired state pushed by the cloud. The
// session mutex guards it.
type stateSync struct {
	running   bool
	deviceHID string
	desired   cloud.DeviceState
}

func (st *stateSync) stop() {
	*st = stateSync{}
}

func (s *Session) startStateSync(dev *cloud.Device) {
	s.mu.Lock()
	s.state = stateSync{running: true, deviceHID: dev.HID, desired: cloud.DeviceState{}}
	s.mu.Unlock()
	s.logger.Debug("state sync started", "device_hid", dev.HID)
}

// DesiredState returns a copy of the last state the cloud requested, or
// nil when the state sync is not running.
func (s *Session) DesiredState() cloud.DeviceState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.state.running {
		return nil
	}
	return maps.Clone(s.state.desired)
}

// applyStateRequest merges the event's parameters into the desired state.
func (s *Session) applyStateRequest(ev cloud.Event) error {
	var requested cloud.DeviceState
	if len(ev.Parameters) > 0 {
		if err := json.Unmarshal(ev.Parameters, &requested); err != nil {
			return fmt.Errorf("decoding state request: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.running {
		return errStateSyncStopped
	}
	maps.Copy(s.state.desired, requested)
	return nil
}

// SyncDeviceState asks the cloud to push the device's desired state. The
// answer arrives as a DeviceStateRequestEvent on the command channel.
func (s *Session) SyncDeviceState(ctx context.Context) error {
	_, dev, err := s.readyIdentity()
	if err != nil {
		return err
	}
	return s.httpRetry.Do(ctx, "device state sync", func(ctx context.Context) error {
		return s.registrar.RequestDeviceState(ctx, &dev)
	})
}

// UpdateDeviceState reports the device's current state to the cloud.
func (s *Session) UpdateDeviceState(ctx context.Context, state cloud.DeviceState) error {
	_, dev, err := s.readyIdentity()
	if err != nil {
		return err
	}
	return s.httpRetry.Do(ctx, "device state update", func(ctx context.Context) error {
		return s.registrar.UpdateDeviceState(ctx, &dev, state)
	})
}
