package models

import (
	"encoding/json"
	"time"
)

// WireTimeFormat is the timestamp layout used everywhere a timestamp leaves
// the process: stored bodies, REST responses and live broadcast payloads.
// UTC, second precision, no zone suffix.
const WireTimeFormat = "2006-01-02T15:04:05"

type Chat struct {
	ChatID string `json:"chat_id"`
	Name   string `json:"name"`
	Ts     string `json:"ts"`
}

// Message is the single serialized representation of a message. The durable
// log stores the encoded form and the broadcast channel carries the exact
// same bytes, so history reads and live delivery are indistinguishable.
type Message struct {
	ChatID    string `json:"chat_id"`
	MessageID string `json:"message_id"`
	Text      string `json:"text"`
	Ts        string `json:"ts"`
}

func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

func DecodeMessage(data []byte) (Message, error) {
	var m Message
	err := json.Unmarshal(data, &m)
	return m, err
}

func FormatWireTime(t time.Time) string {
	return t.UTC().Format(WireTimeFormat)
}

// ParseWireTime accepts the wire layout and, at the query boundary, RFC3339.
func ParseWireTime(s string) (time.Time, error) {
	if t, err := time.Parse(WireTimeFormat, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
