// Package domain contains core concepts of the chat relay.
// Messages are transient: they only live for the duration of a fan-out.
package domain

import (
	"time"
)

// TimestampLayout is the ISO-8601 form used on the wire.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Message represents one relayed chat event.
type Message struct {
	Sender    string
	Content   string
	Timestamp time.Time
}

// OutboundMessage is the JSON payload pushed to every registered connection.
type OutboundMessage struct {
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

func (m Message) ToOutbound() OutboundMessage {
	return OutboundMessage{
		Sender:    m.Sender,
		Content:   m.Content,
		Timestamp: m.Timestamp.UTC().Format(TimestampLayout),
	}
}

// ParseTimestamp reads back the server-assigned instant of an outbound message.
func (o OutboundMessage) ParseTimestamp() (time.Time, error) {
	return time.Parse(TimestampLayout, o.Timestamp)
}
