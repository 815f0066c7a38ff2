// Package notify publishes device transitions, alarm changes and lifecycle
// events to an MQTT broker. Publishing is asynchronous: the control loop
// enqueues and never waits on the network.
package notify

import (
	"encoding/json"
	"strings"
	"time"

	"hydroponics_controller/internal/models"
)

// Default topic layout under the configured prefix.
const (
	DefaultTopicPrefix = "grow/controller"
	topicEvents        = "events"
	topicSystem        = "system"
)

// System lifecycle events.
const (
	SystemStartup  = "STARTUP"
	SystemShutdown = "SHUTDOWN"
	SystemOffline  = "OFFLINE" // last will
)

// Publisher delivers one payload to a topic.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Close() error
}

// EventPayload is the JSON body published for a device event.
type EventPayload struct {
	Timestamp   string `json:"timestamp"`
	Type        string `json:"type"`
	Device      string `json:"device,omitempty"`
	Description string `json:"description"`
	Metadata    any    `json:"metadata,omitempty"`
}

// SystemPayload is the JSON body published on the system topic.
type SystemPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// EventTopic returns e.g. "grow/controller/events/alarm_raised".
func EventTopic(prefix, eventType string) string {
	return joinTopic(prefix, topicEvents, strings.ToLower(eventType))
}

// SystemTopic returns e.g. "grow/controller/system".
func SystemTopic(prefix string) string {
	return joinTopic(prefix, topicSystem)
}

func joinTopic(prefix string, parts ...string) string {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return prefix + "/" + strings.Join(parts, "/")
}

// FormatEvent builds the JSON payload for a device event.
func FormatEvent(e models.DeviceEvent) ([]byte, error) {
	return json.Marshal(EventPayload{
		Timestamp:   e.OccurredAt.UTC().Format(time.RFC3339),
		Type:        e.Type,
		Device:      e.Device,
		Description: e.Description,
		Metadata:    e.Metadata,
	})
}

// FormatSystem builds the JSON payload for a lifecycle event.
func FormatSystem(event, reason string, at time.Time) ([]byte, error) {
	return json.Marshal(SystemPayload{
		Timestamp: at.UTC().Format(time.RFC3339),
		Event:     event,
		Reason:    reason,
	})
}
