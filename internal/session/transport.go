package session

import (
	"context"
	"errors"
	"fmt"
)

// OpenTelemetryChannel connects the shared transport for publishing.
// A channel that is not Closed is rejected and left as it was.
func (s *Session) OpenTelemetryChannel(ctx context.Context) error {
	gw, _, err := s.readyIdentity()
	if err != nil {
		return err
	}

	s.mu.Lock()
	err = s.telemetry.begin()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	err = s.mqttRetry.Do(ctx, "telemetry connect", s.transport.Connect)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.telemetry.reset()
		return fmt.Errorf("%w: %w", ErrMQTTConnectFailed, err)
	}
	s.logger.Info("telemetry channel open", "topic", s.topics.Telemetry(gw.HID))
	return s.telemetry.transition(ChannelOpen)
}

// OpenCommandChannel connects the shared transport and subscribes to the
// gateway's command topic.
func (s *Session) OpenCommandChannel(ctx context.Context) error {
	if !s.features.Events {
		return ErrEventsDisabled
	}
	gw, _, err := s.readyIdentity()
	if err != nil {
		return err
	}

	s.mu.Lock()
	err = s.command.begin()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	topic := s.topics.Commands(gw.HID)
	err = s.mqttRetry.Do(ctx, "command connect", func(ctx context.Context) error {
		if err := s.transport.Connect(ctx); err != nil {
			return err
		}
		return s.transport.Subscribe(ctx, topic)
	})
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.command.reset()
		return fmt.Errorf("%w: %w", ErrMQTTSubscribeFailed, err)
	}
	s.logger.Info("command channel open", "topic", topic)
	return s.command.transition(ChannelOpen)
}

// SubscribeCommandChannel (re)subscribes to the command topic. A failed
// attempt closes the command channel so the next attempt does not assume
// it is usable.
func (s *Session) SubscribeCommandChannel(ctx context.Context) error {
	if !s.features.Events {
		return ErrEventsDisabled
	}
	gw, _, err := s.readyIdentity()
	if err != nil {
		return err
	}

	topic := s.topics.Commands(gw.HID)
	err = s.mqttRetry.Do(ctx, "command subscribe", func(ctx context.Context) error {
		if err := s.transport.Subscribe(ctx, topic); err != nil {
			s.mu.Lock()
			s.command.reset()
			s.mu.Unlock()
			return err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.command.state == ChannelClosed {
			if err := s.command.transition(ChannelOpening); err != nil {
				return err
			}
		}
		return s.command.transition(ChannelOpen)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMQTTSubscribeFailed, err)
	}
	return nil
}

// CloseTelemetryChannel ends the telemetry session. The shared connection
// is disconnected only when the command channel is not open; its
// subscriptions and queued messages stay inspectable.
func (s *Session) CloseTelemetryChannel() error {
	s.mu.Lock()
	if !s.telemetry.isOpen() {
		s.mu.Unlock()
		return fmt.Errorf("%w: telemetry", ErrChannelNotOpen)
	}
	s.telemetry.reset()
	shared := s.command.state != ChannelClosed
	s.mu.Unlock()

	if shared {
		return nil
	}
	return s.disconnect()
}

// CloseCommandChannel unsubscribes from the command topic and ends the
// command session, disconnecting only when the telemetry channel is not
// open.
func (s *Session) CloseCommandChannel(ctx context.Context) error {
	s.mu.Lock()
	if !s.command.isOpen() {
		s.mu.Unlock()
		return fmt.Errorf("%w: command", ErrChannelNotOpen)
	}
	s.command.reset()
	shared := s.telemetry.state != ChannelClosed
	hid := s.gateway.HID
	s.mu.Unlock()

	var errs []error
	s.feed()
	err := s.transport.Unsubscribe(ctx, s.topics.Commands(hid))
	s.feed()
	if err != nil {
		errs = append(errs, err)
	}
	if !shared {
		if err := s.disconnect(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// TerminateTelemetryChannel clears the telemetry channel and releases the
// transport when the command channel is not using it.
func (s *Session) TerminateTelemetryChannel() error {
	s.mu.Lock()
	s.telemetry.reset()
	shared := s.command.state != ChannelClosed
	s.mu.Unlock()

	if shared {
		return nil
	}
	return s.terminate()
}

// TerminateCommandChannel clears the command channel and releases the
// transport when the telemetry channel is not using it.
func (s *Session) TerminateCommandChannel() error {
	s.mu.Lock()
	s.command.reset()
	shared := s.telemetry.state != ChannelClosed
	s.mu.Unlock()

	if shared {
		return nil
	}
	return s.terminate()
}

// ConnectMQTT opens the telemetry channel and, with events enabled, the
// command channel. Commands queued while connecting are left for
// PollForEvent; otherwise the command topic is subscribed again.
func (s *Session) ConnectMQTT(ctx context.Context) error {
	if _, _, err := s.readyIdentity(); err != nil {
		return err
	}

	if err := s.OpenTelemetryChannel(ctx); err != nil {
		return err
	}
	if !s.features.Events {
		return nil
	}
	if err := s.OpenCommandChannel(ctx); err != nil {
		return err
	}

	pending, err := s.transport.Yield(ctx, s.yieldTimeout)
	s.feed()
	if err != nil {
		return err
	}
	if pending {
		s.logger.Debug("postponed commands pending")
		return nil
	}
	if err := s.SubscribeCommandChannel(ctx); err != nil {
		s.logger.Warn("resubscribing command channel", "error", err)
	}
	return nil
}

// DisconnectMQTT disconnects the shared connection and clears both
// channels. It fails when no channel is open.
func (s *Session) DisconnectMQTT() error {
	s.mu.Lock()
	if s.telemetry.state == ChannelClosed && s.command.state == ChannelClosed {
		s.mu.Unlock()
		return ErrChannelNotOpen
	}
	s.telemetry.reset()
	s.command.reset()
	s.mu.Unlock()

	return s.disconnect()
}

// TerminateMQTT releases the shared connection and clears both channels.
func (s *Session) TerminateMQTT() error {
	err := s.terminate()

	s.mu.Lock()
	s.telemetry.reset()
	s.command.reset()
	s.mu.Unlock()
	return err
}

// disconnect and terminate wrap the blocking transport teardown calls with
// watchdog feeds.
func (s *Session) disconnect() error {
	s.feed()
	err := s.transport.Disconnect()
	s.feed()
	return err
}

func (s *Session) terminate() error {
	s.feed()
	err := s.transport.Terminate()
	s.feed()
	return err
}

// PauseMQTT suspends (or resumes) delivery of inbound traffic to the
// session. The connection stays up.
func (s *Session) PauseMQTT(paused bool) {
	s.transport.Pause(paused)
}
