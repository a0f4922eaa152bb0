// Package publisher sends the status line and the readings behind it to MQTT.
package publisher

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/cptspacemanspiff/power-status/internal/module"
)

// Message is a single MQTT publish request.
type Message struct {
	Topic    string
	Payload  string
	Retained bool
}

// Publisher is the minimal interface the rest of the codebase uses to send
// MQTT messages. MQTTPublisher and FakePublisher both implement it.
type Publisher interface {
	Publish(msg Message) error
	Close() error
}

// PublishConfig groups the routing parameters.
type PublishConfig struct {
	Prefix   string
	Retained bool
}

// State is one render: the line and the readings of the modules that
// succeeded. Readings of failed modules are nil.
type State struct {
	Timestamp time.Time               `json:"-"`
	Status    string                  `json:"status"`
	Battery   *module.BatterySample   `json:"battery,omitempty"`
	Backlight *module.BacklightSample `json:"backlight,omitempty"`
}

type stateMessage struct {
	Timestamp string `json:"timestamp"`
	State
}

// OnlineState is the LWT / online-announcement payload.
type OnlineState struct {
	Online    bool   `json:"online"`
	Timestamp string `json:"timestamp"`
}

// PublishState publishes the line, one topic per reading and the combined
// JSON state topic. It returns the first publish error encountered.
func PublishState(s State, cfg PublishConfig, pub Publisher) error {
	topics := []Message{{Topic: topic(cfg.Prefix, "status"), Payload: s.Status}}
	if s.Battery != nil {
		topics = append(topics,
			Message{Topic: topic(cfg.Prefix, "battery/capacity"), Payload: strconv.Itoa(s.Battery.CapacityPct)},
			Message{Topic: topic(cfg.Prefix, "battery/status"), Payload: s.Battery.Status},
		)
	}
	if s.Backlight != nil {
		topics = append(topics,
			Message{Topic: topic(cfg.Prefix, "backlight/percent"), Payload: strconv.Itoa(s.Backlight.Percent)},
			Message{Topic: topic(cfg.Prefix, "backlight/device"), Payload: s.Backlight.Device},
		)
	}
	for _, msg := range topics {
		msg.Retained = cfg.Retained
		if err := pub.Publish(msg); err != nil {
			return err
		}
	}

	payload, err := json.Marshal(stateMessage{
		Timestamp: s.Timestamp.UTC().Format(time.RFC3339),
		State:     s,
	})
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}
	return pub.Publish(Message{Topic: StateTopic(cfg.Prefix), Payload: string(payload), Retained: cfg.Retained})
}

// FormatOnline returns the JSON payload for the online topic.
func FormatOnline(online bool) string {
	payload, _ := json.Marshal(OnlineState{
		Online:    online,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return string(payload)
}

// StateTopic returns the topic used for the combined state message.
func StateTopic(prefix string) string {
	return topic(prefix, "state")
}

// OnlineTopic returns the topic carrying the online flag and the LWT.
func OnlineTopic(prefix string) string {
	return topic(prefix, "online")
}

func topic(prefix, name string) string {
	return prefix + "/" + name
}
