package mqtt

import (
	"errors"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// fakeToken is an already-completed paho token.
type fakeToken struct {
	err  error
	done chan struct{}
}

func newToken(err error) *fakeToken {
	done := make(chan struct{})
	close(done)
	return &fakeToken{err: err, done: done}
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

// pendingToken never completes.
type pendingToken struct{ fakeToken }

func newPendingToken() *pendingToken {
	return &pendingToken{fakeToken{done: make(chan struct{})}}
}

// fakeMessage implements pahomqtt.Message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

// fakePaho records calls made through pahomqtt.Client. Methods the package
// never calls are left to the embedded nil interface.
type fakePaho struct {
	pahomqtt.Client

	mu         sync.Mutex
	opts       *pahomqtt.ClientOptions
	connected  bool
	connectErr error
	publishErr error
	subErr     error
	hang       bool

	published    []fakeMessage
	handlers     map[string]pahomqtt.MessageHandler
	disconnects  int
	unsubscribed []string
}

func newFakePaho() *fakePaho {
	return &fakePaho{handlers: make(map[string]pahomqtt.MessageHandler)}
}

// install points c at f and returns f.
func (f *fakePaho) install(c *Client) *fakePaho {
	c.newPaho = func(opts *pahomqtt.ClientOptions) pahomqtt.Client {
		f.mu.Lock()
		f.opts = opts
		f.mu.Unlock()
		return f
	}
	return f
}

func (f *fakePaho) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakePaho) IsConnectionOpen() bool { return f.IsConnected() }

func (f *fakePaho) Connect() pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hang {
		return newPendingToken()
	}
	if f.connectErr != nil {
		return newToken(f.connectErr)
	}
	f.connected = true
	return newToken(nil)
}

func (f *fakePaho) Disconnect(uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.disconnects++
}

func (f *fakePaho) Publish(topic string, _ byte, _ bool, payload interface{}) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return newToken(f.publishErr)
	}
	b, _ := payload.([]byte)
	f.published = append(f.published, fakeMessage{topic: topic, payload: b})
	return newToken(nil)
}

func (f *fakePaho) Subscribe(topic string, _ byte, cb pahomqtt.MessageHandler) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subErr != nil {
		return newToken(f.subErr)
	}
	f.handlers[topic] = cb
	return newToken(nil)
}

func (f *fakePaho) Unsubscribe(topics ...string) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range topics {
		delete(f.handlers, t)
	}
	f.unsubscribed = append(f.unsubscribed, topics...)
	return newToken(nil)
}

// deliver simulates an inbound message on topic.
func (f *fakePaho) deliver(topic string, payload []byte) error {
	f.mu.Lock()
	cb, ok := f.handlers[topic]
	f.mu.Unlock()
	if !ok {
		return errors.New("no subscription for " + topic)
	}
	cb(f, fakeMessage{topic: topic, payload: payload})
	return nil
}
