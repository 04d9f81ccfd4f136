// Package protocol defines the messages exchanged over a document
// connection.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"
)

// Type names one event of the vocabulary.
type Type string

// Client events.
const (
	Join            Type = "join"
	Leave           Type = "leave"
	CursorMove      Type = "cursorMove"
	SelectionChange Type = "selectionChange"
	TypingStart     Type = "typingStart"
	TypingStop      Type = "typingStop"
	Heartbeat       Type = "heartbeat"
	RequestSnapshot Type = "requestSnapshot"
)

// Mutation events, relayed verbatim to the rest of the room.
const (
	CellChange     Type = "cellChange"
	ApplyFormat    Type = "applyFormat"
	FillOperation  Type = "fillOperation"
	PasteOperation Type = "pasteOperation"
	ClearCells     Type = "clearCells"
	UndoRedo       Type = "undoRedo"
	MergeCells     Type = "mergeCells"
	UnmergeCells   Type = "unmergeCells"
)

// Server events.
const (
	PresenceSnapshot Type = "presenceSnapshot"
	DocumentSnapshot Type = "documentSnapshot"
	UserJoined       Type = "userJoined"
	UserLeft         Type = "userLeft"
	Rejected         Type = "rejected"
)

// IsMutation reports whether t changes document content.
func (t Type) IsMutation() bool {
	switch t {
	case CellChange, ApplyFormat, FillOperation, PasteOperation, ClearCells, UndoRedo, MergeCells, UnmergeCells:
		return true
	}
	return false
}

// Message is the envelope of every event.
type Message struct {
	Type       Type            `json:"type"`
	DocumentID string          `json:"documentId"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	User       string          `json:"user,omitempty"`
}

// New builds a message around payload. A nil payload is omitted.
func New(t Type, documentID string, payload any) (Message, error) {
	msg := Message{Type: t, DocumentID: documentID}
	if payload == nil {
		return msg, nil
	}
	raw, err := sonic.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s payload: %w", t, err)
	}
	msg.Payload = raw
	return msg, nil
}

// Bind decodes the payload into v.
func (m Message) Bind(v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("%s: %w", m.Type, ErrEmptyPayload)
	}
	if err := sonic.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.Type, err)
	}
	return nil
}

// Encode serialises m for the wire.
func Encode(m Message) ([]byte, error) {
	return sonic.Marshal(m)
}

// Decode parses a wire frame.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := sonic.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	if m.Type == "" {
		return Message{}, ErrMissingType
	}
	return m, nil
}
