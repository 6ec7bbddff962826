// Package queue carries realtime events onto a durable RabbitMQ queue and
// consumes them into an append-only audit log.
package queue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/restaurant-ordering/internal/realtime"
)

// DefaultQueue is the durable queue events are published to.
const DefaultQueue = "restaurant.events"

// Message is the JSON body of every published event.
type Message struct {
	ID           string          `json:"id"`
	Event        string          `json:"event"`
	Channels     []string        `json:"channels"`
	RestaurantID uint64          `json:"restaurant_id,omitempty"`
	Data         json.RawMessage `json:"data"`
	At           time.Time       `json:"at"`
}

// NewMessage stamps ev with a fresh id.
func NewMessage(ev realtime.Event) (Message, error) {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s data: %w", ev.Name, err)
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return Message{
		ID:           uuid.NewString(),
		Event:        ev.Name,
		Channels:     ev.Channels,
		RestaurantID: ev.RestaurantID,
		Data:         data,
		At:           at,
	}, nil
}

// Publishing wraps m as a persistent JSON message.
func (m Message) Publishing() (amqp.Publishing, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		MessageId:    m.ID,
		Type:         m.Event,
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    m.At,
		Body:         body,
	}, nil
}

func decode(body []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(body, &m); err != nil {
		return Message{}, fmt.Errorf("unmarshal: %w", err)
	}
	if m.Event == "" {
		return Message{}, fmt.Errorf("message %q has no event name", m.ID)
	}
	return m, nil
}

// Line renders m as one audit log line.
func (m Message) Line() string {
	data := strings.TrimSpace(string(m.Data))
	if data == "" {
		data = "null"
	}
	return fmt.Sprintf("[%s] %s | id=%s | restaurant_id=%d | channels=[%s] | data=%s\n",
		m.At.UTC().Format(time.RFC3339), m.Event, m.ID, m.RestaurantID, strings.Join(m.Channels, ","), data)
}
