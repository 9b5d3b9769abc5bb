package camera

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// FrameHandler is called when a decoded map frame arrives for a vacuum.
// On decode errors frame is nil and err describes the failure.
type FrameHandler func(vacuumID string, frame *Frame, err error)

// StateHandler is called with every vacuum state update
type StateHandler func(vacuumID string, state VacuumState)

// ResetHandler is called when a reset_trims command is received for a vacuum
type ResetHandler func(vacuumID string)

// MQTTClient manages the MQTT connection and subscriptions for decoded map
// frames, vacuum state updates and trim-reset commands.
type MQTTClient struct {
	client       mqtt.Client
	config       *Config
	frameHandler FrameHandler
	stateHandler StateHandler
	resetHandler ResetHandler
	isConnected  bool
	mu           sync.RWMutex
}

// InitMQTT initializes an MQTT client with the provided configuration.
// If neither the MQTT_BROKER env var nor the config sets a broker, MQTT is
// disabled and this returns nil.
func InitMQTT(config *Config, handler FrameHandler) (*MQTTClient, error) {
	broker := os.Getenv("MQTT_BROKER")
	if broker == "" && config != nil && config.MQTT.Broker != "" {
		broker = config.MQTT.Broker
	}

	if broker == "" {
		log.Println("MQTT disabled: MQTT_BROKER not set")
		return nil, nil
	}

	if config == nil || len(config.Vacuums) == 0 {
		return nil, fmt.Errorf("MQTT enabled but no vacuum configuration provided")
	}

	client := &MQTTClient{
		config:       config,
		frameHandler: handler,
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)

	clientID := os.Getenv("MQTT_CLIENT_ID")
	if clientID == "" {
		clientID = config.MQTT.ClientID
	}
	opts.SetClientID(clientID)

	username := os.Getenv("MQTT_USERNAME")
	if username == "" && config.MQTT.Username != "" {
		username = config.MQTT.Username
	}
	if username != "" {
		opts.SetUsername(username)
		password := os.Getenv("MQTT_PASSWORD")
		if password == "" && config.MQTT.Password != "" {
			password = config.MQTT.Password
		}
		opts.SetPassword(password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(false) // Preserve subscriptions on reconnect
	opts.SetOrderMatters(false)

	opts.SetOnConnectHandler(client.onConnect)
	opts.SetConnectionLostHandler(client.onConnectionLost)
	opts.SetReconnectingHandler(client.onReconnecting)

	client.client = mqtt.NewClient(opts)

	go client.connectWithRetry()

	return client, nil
}

// connectWithRetry attempts to connect to the MQTT broker with exponential backoff
func (c *MQTTClient) connectWithRetry() {
	retryDelay := 1 * time.Second
	maxRetryDelay := 60 * time.Second

	for {
		log.Println("Connecting to MQTT broker...")

		token := c.client.Connect()
		if token.WaitTimeout(10 * time.Second) {
			if token.Error() == nil {
				log.Println("Successfully connected to MQTT broker")
				c.setConnected(true)
				return
			}
			log.Printf("MQTT connection failed: %v", token.Error())
		} else {
			log.Println("MQTT connection timeout")
		}

		log.Printf("Retrying MQTT connection in %v...", retryDelay)
		time.Sleep(retryDelay)
		retryDelay *= 2
		if retryDelay > maxRetryDelay {
			retryDelay = maxRetryDelay
		}
	}
}

// onConnect subscribes to the map, state and command topics of every
// configured vacuum
func (c *MQTTClient) onConnect(client mqtt.Client) {
	log.Println("MQTT connected, subscribing to vacuum topics...")
	c.setConnected(true)

	for _, vacuum := range c.config.Vacuums {
		if vacuum.Topic == "" {
			log.Printf("Warning: vacuum %s has no topic configured", vacuum.ID)
			continue
		}

		c.subscribe(client, vacuum.Topic, c.createFrameHandler(vacuum.ID))

		if stateTopic, ok := DeriveStateTopic(vacuum.Topic); ok {
			c.subscribe(client, stateTopic, c.createStateHandler(vacuum.ID))
		}

		resetTopic := fmt.Sprintf("%s/%s/reset_trims", c.config.MQTT.PublishPrefix, vacuum.ID)
		c.subscribe(client, resetTopic, c.createResetHandler(vacuum.ID))
	}
}

func (c *MQTTClient) subscribe(client mqtt.Client, topic string, handler mqtt.MessageHandler) {
	log.Printf("Subscribing to %s", topic)
	token := client.Subscribe(topic, 0, handler)
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		log.Printf("Error subscribing to %s: %v", topic, token.Error())
	}
}

func (c *MQTTClient) onConnectionLost(client mqtt.Client, err error) {
	log.Printf("MQTT connection interrupted (%v), auto-reconnect will retry", err)
	c.setConnected(false)
}

func (c *MQTTClient) onReconnecting(client mqtt.Client, opts *mqtt.ClientOptions) {
	log.Println("MQTT reconnecting...")
}

// createFrameHandler creates a handler for a specific vacuum's map topic
func (c *MQTTClient) createFrameHandler(vacuumID string) mqtt.MessageHandler {
	return func(client mqtt.Client, msg mqtt.Message) {
		payload := msg.Payload()
		log.Printf("Received map frame for %s (topic: %s, size: %d bytes)",
			vacuumID, msg.Topic(), len(payload))

		frame, err := ParseFrame(payload)
		handler := c.getFrameHandler()
		if handler == nil {
			return
		}
		if err != nil {
			log.Printf("Error decoding frame for %s: %v", vacuumID, err)
			handler(vacuumID, nil, err)
			return
		}
		handler(vacuumID, frame, nil)
	}
}

// DeriveStateTopic converts a map data topic to a state topic.
// Example: "valetudo/rocky/MapData/map-data" -> "valetudo/rocky/StatusStateAttribute/status"
func DeriveStateTopic(mapDataTopic string) (string, bool) {
	parts := strings.Split(mapDataTopic, "/")
	if len(parts) < 4 {
		return "", false
	}
	parts[len(parts)-2] = "StatusStateAttribute"
	parts[len(parts)-1] = "status"
	return strings.Join(parts, "/"), true
}

// statePayload represents the JSON structure of a Valetudo state message
type statePayload struct {
	Value string `json:"value"`
}

// createStateHandler creates a handler for state topic messages. State
// payloads arrive as a JSON object, a JSON string, or a bare string.
func (c *MQTTClient) createStateHandler(vacuumID string) mqtt.MessageHandler {
	return func(client mqtt.Client, msg mqtt.Message) {
		payload := msg.Payload()

		var stateValue string
		var state statePayload
		if err := json.Unmarshal(payload, &state); err == nil && state.Value != "" {
			stateValue = state.Value
		} else {
			var plain string
			if err := json.Unmarshal(payload, &plain); err == nil {
				stateValue = plain
			} else {
				stateValue = strings.TrimSpace(string(payload))
			}
		}
		if stateValue == "" {
			log.Printf("Empty state payload for %s, skipping", vacuumID)
			return
		}

		log.Printf("Vacuum %s state: %s", vacuumID, stateValue)
		if handler := c.getStateHandler(); handler != nil {
			handler(vacuumID, VacuumState(stateValue))
		}
	}
}

// createResetHandler creates a handler for the reset_trims command topic
func (c *MQTTClient) createResetHandler(vacuumID string) mqtt.MessageHandler {
	return func(client mqtt.Client, msg mqtt.Message) {
		log.Printf("Received reset_trims command for %s", vacuumID)
		if handler := c.getResetHandler(); handler != nil {
			handler(vacuumID)
		}
	}
}

// SetStateHandler registers a callback for vacuum state updates
func (c *MQTTClient) SetStateHandler(handler StateHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateHandler = handler
}

// SetResetHandler registers a callback for reset_trims commands
func (c *MQTTClient) SetResetHandler(handler ResetHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetHandler = handler
}

func (c *MQTTClient) getFrameHandler() FrameHandler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frameHandler
}

func (c *MQTTClient) getStateHandler() StateHandler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stateHandler
}

func (c *MQTTClient) getResetHandler() ResetHandler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resetHandler
}

// IsConnected returns true if the MQTT client is connected
func (c *MQTTClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

func (c *MQTTClient) setConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isConnected = connected
}

// Disconnect gracefully closes the MQTT connection
func (c *MQTTClient) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		log.Println("Disconnecting from MQTT broker...")
		c.client.Disconnect(250) // 250ms quiesce time
		c.setConnected(false)
	}
}

// GetVacuumByTopic returns the vacuum ID for a given map-data topic
func (c *MQTTClient) GetVacuumByTopic(topic string) (string, bool) {
	for _, vacuum := range c.config.Vacuums {
		if vacuum.Topic == topic {
			return vacuum.ID, true
		}
	}
	return "", false
}

// GetClient returns the underlying MQTT client for publishing
func (c *MQTTClient) GetClient() mqtt.Client {
	return c.client
}

// newMQTTClientWithMock creates an MQTTClient with a provided mqtt.Client.
// This is used for testing with mock clients.
func newMQTTClientWithMock(client mqtt.Client, config *Config, handler FrameHandler) *MQTTClient {
	return &MQTTClient{
		client:       client,
		config:       config,
		frameHandler: handler,
	}
}
