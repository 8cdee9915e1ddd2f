package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-cloudlink/internal/cloud"
)

// requireTelemetry returns the device when the session is ready and the
// telemetry channel (and, with events enabled, the command channel) is open.
func (s *Session) requireTelemetry(withCommand bool) (cloud.Gateway, cloud.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.ready || !s.telemetry.isOpen() {
		return cloud.Gateway{}, cloud.Device{}, ErrNotInitialized
	}
	if withCommand && !s.command.isOpen() {
		return cloud.Gateway{}, cloud.Device{}, ErrNotInitialized
	}
	return s.gateway, s.device, nil
}

// RunTelemetryLoop publishes readings from p until something needs the
// caller's attention. It always returns a non-nil error:
//   - ErrEventReceived when a command is pending (the producer is not
//     called that cycle)
//   - ErrTelemetryProducerFailed when p returns Fatal
//   - ErrMQTTPublishFailed when a publish fails
//   - ErrTestDone after telemetry.max_cycles publishes
//   - the context error when ctx ends
//
// Each cycle first yields to the transport for the yield timeout, or
// sleeps the telemetry interval when events are disabled.
func (s *Session) RunTelemetryLoop(ctx context.Context, p Producer) error {
	gw, dev, err := s.requireTelemetry(s.features.Events)
	if err != nil {
		return err
	}
	s.feed()

	published := 0
	for {
		if s.features.Events {
			pending, err := s.transport.Yield(ctx, s.yieldTimeout)
			s.feed()
			if err != nil {
				return err
			}
			if pending {
				return ErrEventReceived
			}
		} else {
			if err := s.sleep(ctx, s.interval); err != nil {
				return err
			}
			s.feed()
		}

		reading, outcome := p.Produce(ctx)
		switch outcome {
		case Fatal:
			return ErrTelemetryProducerFailed
		case Skip:
			s.mu.Lock()
			s.counters.skipped++
			s.mu.Unlock()
			continue
		}

		s.feed()
		if err := s.publish(ctx, &gw, &dev, reading); err != nil {
			return err
		}

		published++
		if s.maxCycles > 0 && published >= s.maxCycles {
			return ErrTestDone
		}
	}
}

// SendTelemetryOnce runs one produce and publish cycle without checking
// for commands. Anything but Ready publishes nothing and returns
// ErrTelemetryProducerFailed.
func (s *Session) SendTelemetryOnce(ctx context.Context, p Producer) error {
	gw, dev, err := s.requireTelemetry(false)
	if err != nil {
		return err
	}
	s.feed()

	reading, outcome := p.Produce(ctx)
	switch outcome {
	case Fatal:
		return ErrTelemetryProducerFailed
	case Skip:
		s.mu.Lock()
		s.counters.skipped++
		s.mu.Unlock()
		return ErrTelemetryProducerFailed
	}
	return s.publish(ctx, &gw, &dev, reading)
}

func (s *Session) publish(ctx context.Context, gw *cloud.Gateway, dev *cloud.Device, r cloud.Reading) error {
	at := s.now()
	payload, err := cloud.EncodeTelemetry(dev, r, at)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMQTTPublishFailed, err)
	}
	if err := s.transport.Publish(ctx, s.topics.Telemetry(gw.HID), payload); err != nil {
		s.logger.Warn("telemetry publish failed", "error", err)
		return fmt.Errorf("%w: %w", ErrMQTTPublishFailed, err)
	}

	s.mu.Lock()
	s.counters.published++
	s.mu.Unlock()

	if s.recorder != nil {
		s.recorder.RecordTelemetry(dev.HID, r, at)
	}
	return nil
}

// SendTelemetry posts one reading over the registration transport, with
// the HTTP retry budget.
func (s *Session) SendTelemetry(ctx context.Context, r cloud.Reading) error {
	_, dev, err := s.readyIdentity()
	if err != nil {
		return err
	}
	s.feed()
	return s.httpRetry.Do(ctx, "device telemetry", func(ctx context.Context) error {
		return s.registrar.SendTelemetry(ctx, &dev, r)
	})
}

// PollForEvent yields to the transport for the yield timeout and services
// every queued command: each is acknowledged as received, dispatched, then
// acknowledged as succeeded or failed. It returns ErrEventReceived when at
// least one command was serviced, nil when none was pending.
func (s *Session) PollForEvent(ctx context.Context) error {
	s.mu.RLock()
	usable := s.ready && s.command.isOpen()
	s.mu.RUnlock()
	if !usable {
		return ErrNotInitialized
	}

	if _, err := s.transport.Yield(ctx, s.yieldTimeout); err != nil {
		return err
	}
	s.feed()

	messages := s.transport.Drain()
	handled := 0
	for _, msg := range messages {
		ev, err := cloud.ParseEvent(msg.Payload)
		if err != nil {
			s.logger.Warn("dropping invalid command", "topic", msg.Topic, "error", err)
			s.mu.Lock()
			s.counters.eventsInvalid++
			s.mu.Unlock()
			continue
		}
		s.dispatch(ctx, ev)
		handled++
	}

	if handled > 0 {
		return ErrEventReceived
	}
	return nil
}

func (s *Session) dispatch(ctx context.Context, ev cloud.Event) {
	s.feed()
	if err := s.registrar.AckEventReceived(ctx, ev.HID); err != nil {
		s.logger.Warn("acknowledging command", "event_hid", ev.HID, "error", err)
	}

	err := s.handle(ctx, ev)

	s.feed()
	if err != nil {
		s.logger.Warn("command failed", "event", ev.Name, "event_hid", ev.HID, "error", err)
		if ackErr := s.registrar.AckEventFailed(ctx, ev.HID, err.Error()); ackErr != nil {
			s.logger.Warn("acknowledging command failure", "event_hid", ev.HID, "error", ackErr)
		}
		s.mu.Lock()
		s.counters.eventsFailed++
		s.mu.Unlock()
		return
	}

	if ackErr := s.registrar.AckEventSucceeded(ctx, ev.HID); ackErr != nil {
		s.logger.Warn("acknowledging command success", "event_hid", ev.HID, "error", ackErr)
	}
	s.mu.Lock()
	s.counters.eventsHandled++
	s.mu.Unlock()
}

var errNoHandler = errors.New("no handler for command")

func (s *Session) handle(ctx context.Context, ev cloud.Event) error {
	if ev.Name == DeviceStateRequestEvent {
		return s.applyStateRequest(ev)
	}
	if s.events == nil {
		return fmt.Errorf("%w: %s", errNoHandler, ev.Name)
	}
	return s.events.HandleEvent(ctx, ev)
}
