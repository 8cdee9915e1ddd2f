package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-cloudlink/internal/cloud"
	"github.com/nerrad567/gray-logic-cloudlink/internal/storage"
)

// ConnectGateway restores or registers gw, or revalidates it when it
// already has a handle.
//
// Without a hid the persisted identity is restored; a hit needs no network
// call. On a miss the gateway is registered and the assigned identity
// saved; a failed registration saves nothing. With a hid the gateway
// checks in and, only if the checkin succeeded, pushes an update. A hid
// that is present but null is accepted as is.
func (s *Session) ConnectGateway(ctx context.Context, gw *cloud.Gateway) error {
	cloud.PrepareGateway(gw, s.gatewayDefaults, s.hwID())

	if !gw.HasHID() {
		err := s.store.RestoreGateway(ctx, gw)
		if err == nil {
			s.logger.Debug("gateway restored", "hid", gw.HID)
			return nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("restoring gateway", "error", err)
		}

		s.feed()
		if err := s.registrar.RegisterGateway(ctx, gw); err != nil {
			return err
		}
		if err := s.store.SaveGateway(ctx, gw); err != nil {
			s.logger.Error("saving gateway", "hid", gw.HID, "error", err)
		}
		return nil
	}

	if gw.NullHandle() {
		s.logger.Warn("gateway hid is null, skipping checkin")
		return nil
	}

	s.feed()
	if err := s.registrar.CheckinGateway(ctx, gw); err != nil {
		return err
	}
	s.feed()
	return s.registrar.UpdateGateway(ctx, gw)
}

// ConnectDevice restores or registers dev under gw. A device that already
// has a hid is accepted immediately.
//
// A failed registration or update releases the device before returning.
// On a restore hit the device is updated when software update sync is
// enabled; otherwise, when registration checks are enabled, it is only
// looked up and its enabled flag inspected. On success the device is
// handed to the state sync.
func (s *Session) ConnectDevice(ctx context.Context, gw *cloud.Gateway, dev *cloud.Device) error {
	cloud.PrepareDevice(gw, dev, s.deviceDefaults)
	if dev.HasHID() {
		return nil
	}

	err := s.restoreDevice(ctx, gw, dev)
	switch {
	case err != nil:
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("restoring device", "error", err)
		}
		s.feed()
		if err := s.registrar.RegisterDevice(ctx, gw, dev); err != nil {
			dev.Reset()
			return err
		}
		if err := s.store.SaveDevice(ctx, dev); err != nil {
			s.logger.Error("saving device", "hid", dev.HID, "error", err)
		}

	case s.features.SoftwareUpdate:
		s.feed()
		if err := s.registrar.UpdateDevice(ctx, gw, dev); err != nil {
			dev.Reset()
			return err
		}

	case s.features.CheckDeviceRegistration:
		s.feed()
		info, err := s.registrar.FindDevice(ctx, dev.HID)
		if err != nil {
			return err
		}
		if info.Enabled {
			s.logger.Debug("device registered", "name", info.Name)
		}
	}

	s.startStateSync(dev)
	return nil
}

// restoreDevice loads the saved device into dev. A device saved under a
// different gateway handle counts as a miss and leaves dev untouched.
func (s *Session) restoreDevice(ctx context.Context, gw *cloud.Gateway, dev *cloud.Device) error {
	var restored cloud.Device
	if err := s.store.RestoreDevice(ctx, &restored); err != nil {
		return err
	}
	if restored.GatewayHID != "" && restored.GatewayHID != gw.HID {
		s.logger.Info("stored device belongs to another gateway",
			"device_hid", restored.HID, "gateway_hid", restored.GatewayHID)
		return storage.ErrNotFound
	}
	*dev = restored
	return nil
}

// fetchConfig loads the gateway config and persists and installs its key
// pair. A config without both keys is a failed fetch.
func (s *Session) fetchConfig(ctx context.Context, gw *cloud.Gateway) (cloud.GatewayConfig, error) {
	s.feed()
	cfg, err := s.registrar.FetchGatewayConfig(ctx, gw, s.profile)
	if err != nil {
		return cloud.GatewayConfig{}, err
	}
	if err := s.store.SaveKeys(ctx, cfg.APIKey, cfg.SecretKey); err != nil {
		return cloud.GatewayConfig{}, fmt.Errorf("saving api keys: %w", err)
	}
	s.registrar.SetKeys(cfg.APIKey, cfg.SecretKey)
	return cfg, nil
}
