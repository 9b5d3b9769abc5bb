package camera

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image/png"
	"log"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Publisher pushes processed camera output back to MQTT: the rendered frame
// PNG, the recomputed calibration points and the current trim geometry.
// All topics are retained so the map card picks up the latest state on
// (re)connect.
type Publisher struct {
	client        mqtt.Client
	publishPrefix string
	qos           byte
	retain        bool
}

// NewPublisher creates a camera output publisher.
// If client is nil, publishing is disabled (for testing).
func NewPublisher(client mqtt.Client) *Publisher {
	prefix := os.Getenv("MQTT_PUBLISH_PREFIX")
	if prefix == "" {
		prefix = "mapcam"
	}

	return &Publisher{
		client:        client,
		publishPrefix: prefix,
		qos:           0,
		retain:        true,
	}
}

// SetPrefix overrides the topic prefix (normally from config)
func (p *Publisher) SetPrefix(prefix string) {
	if prefix != "" {
		p.publishPrefix = prefix
	}
}

// PublishOutput publishes the full output of one processed frame for a floor
func (p *Publisher) PublishOutput(floorID string, out *Output) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	if err := p.publishImage(floorID, out); err != nil {
		log.Printf("Error publishing camera image for %s: %v", floorID, err)
		return err
	}
	if err := p.publishCalibration(floorID, out); err != nil {
		log.Printf("Error publishing calibration for %s: %v", floorID, err)
		return err
	}
	if err := p.publishGeometry(floorID, out); err != nil {
		log.Printf("Error publishing geometry for %s: %v", floorID, err)
		return err
	}
	return nil
}

// publishImage publishes the rendered PNG to {prefix}/{floor}/camera/image
func (p *Publisher) publishImage(floorID string, out *Output) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, out.Image); err != nil {
		return fmt.Errorf("encoding camera PNG: %w", err)
	}

	topic := fmt.Sprintf("%s/%s/camera/image", p.publishPrefix, floorID)
	token := p.client.Publish(topic, p.qos, p.retain, buf.Bytes())
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}

	log.Printf("Published camera image for %s (%dx%d, %d bytes)",
		floorID, out.Image.Rect.Dx(), out.Image.Rect.Dy(), buf.Len())
	return nil
}

// publishCalibration publishes the calibration point set to
// {prefix}/{floor}/camera/calibration
func (p *Publisher) publishCalibration(floorID string, out *Output) error {
	payload, err := json.Marshal(out.Calibration)
	if err != nil {
		return fmt.Errorf("marshaling calibration points: %w", err)
	}

	topic := fmt.Sprintf("%s/%s/camera/calibration", p.publishPrefix, floorID)
	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}
	return nil
}

// publishGeometry publishes crop area, robot and charger projections to
// {prefix}/{floor}/camera/geometry
func (p *Publisher) publishGeometry(floorID string, out *Output) error {
	message := map[string]interface{}{
		"cropArea":   out.CropArea,
		"robot":      out.Robot,
		"robotAngle": out.RobotAngle,
		"charger":    out.Charger,
		"zoomed":     out.Zoomed,
		"timestamp":  time.Now().Unix(),
	}
	if out.Zoomed {
		message["segmentId"] = out.SegmentID
	}

	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshaling geometry: %w", err)
	}

	topic := fmt.Sprintf("%s/%s/camera/geometry", p.publishPrefix, floorID)
	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}
	return nil
}
