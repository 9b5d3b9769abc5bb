package camera

import (
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// mockToken implements mqtt.Token for testing
type mockToken struct {
	err error
}

func newMockToken(err error) *mockToken {
	return &mockToken{err: err}
}

func (t *mockToken) Wait() bool {
	return true
}

func (t *mockToken) WaitTimeout(time.Duration) bool {
	return true
}

func (t *mockToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func (t *mockToken) Error() error {
	return t.err
}

// mockMQTT implements mqtt.Client for tests. Messages published through it
// are recorded; SimulateMessage feeds an inbound message to the handler
// registered for a topic.
type mockMQTT struct {
	mu           sync.RWMutex
	connected    bool
	publishErr   error
	subscribeErr error
	handlers     map[string]mqtt.MessageHandler
	published    []mockPublished
}

type mockPublished struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
}

func newMockMQTT() *mockMQTT {
	return &mockMQTT{
		connected: true,
		handlers:  make(map[string]mqtt.MessageHandler),
	}
}

func (c *mockMQTT) setConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = connected
}

func (c *mockMQTT) setPublishError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.publishErr = err
}

func (c *mockMQTT) publishedMessages() []mockPublished {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]mockPublished, len(c.published))
	copy(out, c.published)
	return out
}

// SimulateMessage delivers an inbound message to the registered handler
func (c *mockMQTT) SimulateMessage(topic string, payload []byte) {
	c.mu.RLock()
	handler := c.handlers[topic]
	c.mu.RUnlock()
	if handler != nil {
		handler(c, &mockInbound{topic: topic, payload: payload})
	}
}

func (c *mockMQTT) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *mockMQTT) IsConnectionOpen() bool {
	return c.IsConnected()
}

func (c *mockMQTT) Connect() mqtt.Token {
	c.setConnected(true)
	return newMockToken(nil)
}

func (c *mockMQTT) Disconnect(quiesce uint) {
	c.setConnected(false)
}

func (c *mockMQTT) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return newMockToken(mqtt.ErrNotConnected)
	}
	if c.publishErr != nil {
		return newMockToken(c.publishErr)
	}

	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	}

	c.published = append(c.published, mockPublished{
		Topic:   topic,
		Payload: data,
		QoS:     qos,
		Retain:  retained,
	})
	return newMockToken(nil)
}

func (c *mockMQTT) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return newMockToken(mqtt.ErrNotConnected)
	}
	if c.subscribeErr != nil {
		return newMockToken(c.subscribeErr)
	}
	c.handlers[topic] = callback
	return newMockToken(nil)
}

func (c *mockMQTT) SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	for topic := range filters {
		c.handlers[topic] = callback
	}
	return newMockToken(nil)
}

func (c *mockMQTT) Unsubscribe(topics ...string) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, topic := range topics {
		delete(c.handlers, topic)
	}
	return newMockToken(nil)
}

func (c *mockMQTT) AddRoute(topic string, callback mqtt.MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[topic] = callback
}

func (c *mockMQTT) OptionsReader() mqtt.ClientOptionsReader {
	return mqtt.ClientOptionsReader{}
}

// mockInbound implements mqtt.Message for testing
type mockInbound struct {
	topic   string
	payload []byte
}

func (m *mockInbound) Duplicate() bool     { return false }
func (m *mockInbound) Qos() byte           { return 0 }
func (m *mockInbound) Retained() bool      { return false }
func (m *mockInbound) Topic() string       { return m.topic }
func (m *mockInbound) MessageID() uint16   { return 0 }
func (m *mockInbound) Payload() []byte     { return m.payload }
func (m *mockInbound) Ack()                {}
func (m *mockInbound) AutoAckOff()         {}
func (m *mockInbound) AutoAckOn()          {}
func (m *mockInbound) SetAutoAck(bool)     {}
func (m *mockInbound) SetRetained(bool)    {}
func (m *mockInbound) SetQoS(byte)         {}
func (m *mockInbound) SetDuplicate(bool)   {}
func (m *mockInbound) SetMessageID(uint16) {}
