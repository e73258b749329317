package amqp

import (
	"encoding/json"
	"time"
)

// SyncRequestMessage asks a sync worker to drain the outbox now instead of
// waiting for its next poll. It carries only identifiers; the worker reads
// the actual payload from the local queue.
type SyncRequestMessage struct {
	Entity    string    `json:"entity"`
	RecordID  string    `json:"record_id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSyncRequestMessage(entity, recordID string, version int64) *SyncRequestMessage {
	return &SyncRequestMessage{
		Entity:    entity,
		RecordID:  recordID,
		Version:   version,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *SyncRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SyncRequestMessageFromJSON creates a message from JSON bytes
func SyncRequestMessageFromJSON(data []byte) (*SyncRequestMessage, error) {
	var msg SyncRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
