// Package protocol implements the client protocol message handling.
package protocol

import (
	"encoding/json"

	"github.com/zot/bootconfd/internal/grub"
)

// MessageType identifies the type of protocol message.
type MessageType string

const (
	// Request messages
	MsgGetConfig      MessageType = "getConfig"
	MsgSaveConfig     MessageType = "saveConfig"
	MsgGetEntries     MessageType = "getEntries"
	MsgGetSnapshots   MessageType = "getSnapshots"
	MsgRemoveSnapshot MessageType = "removeSnapshot"
	MsgSelectSnapshot MessageType = "selectSnapshot"

	// Server-pushed notification: the config file changed out of band.
	// Zero payload.
	MsgFileChanged MessageType = "fileChanged"
)

// Message is the base protocol message structure.
type Message struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// SaveConfigRequest carries a full configuration as a list of lines,
// plus an optional kernel title to select as the default entry.
type SaveConfigRequest struct {
	ValueList      []grub.Line `json:"value_list"`
	SelectedKernel *string     `json:"selected_kernel,omitempty"`
}

// SnapshotIDRequest identifies a snapshot for remove/select requests.
type SnapshotIDRequest struct {
	SnapshotID int64 `json:"snapshot_id"`
}

// Envelope wraps every call result. Exactly one of OK and Err is
// non-null.
type Envelope struct {
	OK  interface{} `json:"ok"`
	Err *string     `json:"err"`
}

// OK wraps a successful result.
func OK(value interface{}) *Envelope {
	return &Envelope{OK: value}
}

// Err wraps a failure.
func Err(err error) *Envelope {
	msg := err.Error()
	return &Envelope{Err: &msg}
}

// ParseMessage parses a raw JSON message into a typed message.
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// NewMessage creates a new message with the given type and data.
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var raw json.RawMessage
	if data != nil {
		var err error
		raw, err = json.Marshal(data)
		if err != nil {
			return nil, err
		}
	}
	return &Message{
		Type: msgType,
		Data: raw,
	}, nil
}

// Encode serializes a message to JSON.
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}
