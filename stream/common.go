// Package stream implements the real-time scene broadcast subsystem: an
// in-process registry of live story viewers, a broadcaster fanning new
// scenes out to them, and a background sweeper keeping the registry honest.
package stream

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/JCervantesB/zstory/storage"
)

// EventSink is the writable end of one viewer's push connection. A sink
// accepts serialized frames and can fail or close at any point.
type EventSink interface {
	// SendEvent write one serialized frame to the viewer
	SendEvent(frame []byte) error
	// Close shut the connection down. Closing an already closed sink is a no-op.
	Close() error
}

// Frame type markers on the push channel
const (
	EventTypeConnected = "connected"
	EventTypeNewScene  = "new_scene"
	EventTypeHeartbeat = "heartbeat"
)

// ConnectedEvent is the handshake frame sent once when a viewer connects
type ConnectedEvent struct {
	Type    string `json:"type"`
	StoryID string `json:"storyId"`
}

// NewSceneEvent carries one freshly persisted scene to the viewer. The
// embedded scene has everything a client needs to render without a
// follow-up fetch.
type NewSceneEvent struct {
	Type      string            `json:"type"`
	Scene     storage.GameScene `json:"scene"`
	ImageURL  string            `json:"imageUrl"`
	Timestamp time.Time         `json:"timestamp"`
}

// HeartbeatEvent keeps a quiet transport warm and detects broken pipes
type HeartbeatEvent struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// defineConnectedEvent helper for building a handshake frame
func defineConnectedEvent(storyID string) ConnectedEvent {
	return ConnectedEvent{Type: EventTypeConnected, StoryID: storyID}
}

// defineNewSceneEvent helper for building a scene frame
func defineNewSceneEvent(scene storage.GameScene, timestamp time.Time) NewSceneEvent {
	return NewSceneEvent{
		Type: EventTypeNewScene, Scene: scene, ImageURL: scene.ImageURL, Timestamp: timestamp,
	}
}

// defineHeartbeatEvent helper for building a heartbeat frame
func defineHeartbeatEvent(timestamp time.Time) HeartbeatEvent {
	return HeartbeatEvent{Type: EventTypeHeartbeat, Timestamp: timestamp}
}

// MarshalConnectedEventFrame serialize the handshake frame for a story
func MarshalConnectedEventFrame(storyID string) ([]byte, error) {
	return MarshalEventFrame(defineConnectedEvent(storyID))
}

// MarshalEventFrame serialize an event the way the de-facto event stream
// convention frames it: "data: " followed by JSON, terminated by a blank line.
func MarshalEventFrame(event interface{}) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("data: %s\n\n", payload)), nil
}
