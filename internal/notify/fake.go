package notify

import "sync"

// Message is one recorded publish.
type Message struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

// FakePublisher records published messages for test assertions.
type FakePublisher struct {
	mu       sync.Mutex
	messages []Message

	// PublishError, if set, will be returned by Publish.
	PublishError error
	// Closed tracks if Close was called.
	Closed bool
}

func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

func (f *FakePublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.messages = append(f.messages, Message{Topic: topic, Payload: payload, QoS: qos, Retained: retained})
	return nil
}

// SetError changes the error returned by Publish.
func (f *FakePublisher) SetError(err error) {
	f.mu.Lock()
	f.PublishError = err
	f.mu.Unlock()
}

// Messages returns a copy of everything published so far.
func (f *FakePublisher) Messages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.messages...)
}

func (f *FakePublisher) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// Noop discards everything. Used when no broker is configured.
type Noop struct{}

func (Noop) Publish(string, []byte, byte, bool) error { return nil }
func (Noop) Close() error                             { return nil }
