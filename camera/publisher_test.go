package camera

import (
	"bytes"
	"encoding/json"
	"errors"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func publishedTopics(msgs []mockPublished) []string {
	topics := make([]string, len(msgs))
	for i, m := range msgs {
		topics[i] = m.Topic
	}
	return topics
}

func TestPublishOutput(t *testing.T) {
	mock := newMockMQTT()
	p := NewPublisher(mock)
	p.SetPrefix("mapcam")

	content := BoundingBox{Left: 10, Top: 10, Right: 39, Bottom: 29}
	frame := newTestFrame("ground", 60, 40, content)
	ts := &TrimState{Box: &content, Margin: 5}
	out, err := ApplyTransform(frame, ts, ZoomState{})
	require.NoError(t, err)

	require.NoError(t, p.PublishOutput("ground", out))

	msgs := mock.publishedMessages()
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{
		"mapcam/ground/camera/image",
		"mapcam/ground/camera/calibration",
		"mapcam/ground/camera/geometry",
	}, publishedTopics(msgs))

	// All topics are retained so the card catches up on reconnect.
	for _, m := range msgs {
		assert.True(t, m.Retain, "topic %s not retained", m.Topic)
	}

	// The image payload is a decodable PNG of the output size.
	img, err := png.Decode(bytes.NewReader(msgs[0].Payload))
	require.NoError(t, err)
	assert.Equal(t, 40, img.Bounds().Dx())
	assert.Equal(t, 30, img.Bounds().Dy())

	// The calibration payload round-trips to the four corner points.
	var points []CalibrationPoint
	require.NoError(t, json.Unmarshal(msgs[1].Payload, &points))
	assert.Len(t, points, 4)
	assert.Equal(t, out.Calibration, points)

	// The geometry payload carries the crop area and marker projections.
	var geom map[string]interface{}
	require.NoError(t, json.Unmarshal(msgs[2].Payload, &geom))
	assert.Contains(t, geom, "cropArea")
	assert.Contains(t, geom, "robot")
	assert.Contains(t, geom, "charger")
	assert.Equal(t, false, geom["zoomed"])
	assert.NotContains(t, geom, "segmentId")
}

func TestPublishOutputZoomed(t *testing.T) {
	mock := newMockMQTT()
	p := NewPublisher(mock)
	p.SetPrefix("mapcam")

	content := BoundingBox{Left: 10, Top: 10, Right: 39, Bottom: 29}
	frame := newTestFrame("ground", 60, 40, content)
	ts := &TrimState{Box: &content, Margin: 2}
	zoom := ZoomState{
		Mode:      ZoomSegment,
		SegmentID: "kitchen",
		Region:    BoundingBox{Left: 12, Top: 12, Right: 20, Bottom: 20},
	}
	out, err := ApplyTransform(frame, ts, zoom)
	require.NoError(t, err)

	require.NoError(t, p.PublishOutput("ground", out))

	msgs := mock.publishedMessages()
	require.Len(t, msgs, 3)

	var geom map[string]interface{}
	require.NoError(t, json.Unmarshal(msgs[2].Payload, &geom))
	assert.Equal(t, true, geom["zoomed"])
	assert.Equal(t, "kitchen", geom["segmentId"])
}

func TestPublishOutputNotConnected(t *testing.T) {
	mock := newMockMQTT()
	mock.setConnected(false)
	p := NewPublisher(mock)

	content := BoundingBox{Left: 5, Top: 5, Right: 15, Bottom: 15}
	frame := newTestFrame("ground", 30, 30, content)
	ts := &TrimState{Box: &content}
	out, err := ApplyTransform(frame, ts, ZoomState{})
	require.NoError(t, err)

	assert.Error(t, p.PublishOutput("ground", out))
	assert.Empty(t, mock.publishedMessages())
}

func TestPublishOutputBrokerError(t *testing.T) {
	mock := newMockMQTT()
	mock.setPublishError(errors.New("broker rejected"))
	p := NewPublisher(mock)

	content := BoundingBox{Left: 5, Top: 5, Right: 15, Bottom: 15}
	frame := newTestFrame("ground", 30, 30, content)
	ts := &TrimState{Box: &content}
	out, err := ApplyTransform(frame, ts, ZoomState{})
	require.NoError(t, err)

	assert.Error(t, p.PublishOutput("ground", out))
}

func TestPublisherNilClient(t *testing.T) {
	p := NewPublisher(nil)
	assert.Error(t, p.PublishOutput("ground", &Output{}))
}
