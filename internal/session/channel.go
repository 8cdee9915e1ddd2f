package session

import "fmt"

// ChannelState is the state of one logical MQTT channel.
type ChannelState int

// Channel states. A channel moves Closed -> Opening -> Open and back to
// Closed; a failed open returns from Opening to Closed.
const (
	ChannelClosed ChannelState = iota
	ChannelOpening
	ChannelOpen
)

func (s ChannelState) String() string {
	switch s {
	case ChannelClosed:
		return "closed"
	case ChannelOpening:
		return "opening"
	case ChannelOpen:
		return "open"
	default:
		return fmt.Sprintf("ChannelState(%d)", int(s))
	}
}

// MarshalText renders the state by name in diagnostics output.
func (s ChannelState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// channel tracks one logical channel. The session mutex guards it.
type channel struct {
	name  string
	state ChannelState
}

// allowed reports whether from -> to is a valid transition.
func allowed(from, to ChannelState) bool {
	switch {
	case from == to:
		return true
	case from == ChannelClosed:
		return to == ChannelOpening
	case from == ChannelOpening:
		return true
	case from == ChannelOpen:
		return to == ChannelClosed
	}
	return false
}

func (c *channel) transition(to ChannelState) error {
	if !allowed(c.state, to) {
		return fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, c.name, c.state, to)
	}
	c.state = to
	return nil
}

// begin moves a Closed channel to Opening. Any other state is rejected
// and left unchanged.
func (c *channel) begin() error {
	if c.state != ChannelClosed {
		return fmt.Errorf("%w: %s is %s", ErrChannelAlreadyOpen, c.name, c.state)
	}
	return c.transition(ChannelOpening)
}

func (c *channel) isOpen() bool { return c.state == ChannelOpen }

func (c *channel) reset() { c.state = ChannelClosed }
