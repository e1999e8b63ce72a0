package domain

import (
	"encoding/json"
	"time"
)

// Client → server events.
const (
	EvJoinGroup          = "join_group"
	EvLeaveGroup         = "leave_group"
	EvSendMessage        = "send_message"
	EvSendMessageInGroup = "send_message_in_group"
	EvGetUser            = "get_user"
)

// Server → client events.
const (
	EvConnected           = "connected"
	EvReceiveMessage      = "receive_message"
	EvReceiveGroupMessage = "receive_group_message"
	EvUserSocketID        = "user_socket_id"
	EvError               = "error"
)

// Envelope is the frame exchanged over the websocket in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// SendMessagePayload is the body of send_message.
type SendMessagePayload struct {
	ChatID string `json:"chatId" validate:"required"`
	Text   string `json:"text"`
	// RecipientConnectionHint is accepted for compatibility and ignored;
	// recipients are always resolved through presence.
	RecipientConnectionHint string `json:"recipientConnectionHint,omitempty"`
}

// SendGroupPayload is the body of send_message_in_group.
type SendGroupPayload struct {
	GroupID string `json:"groupId" validate:"required"`
	Message string `json:"message"`
}

// ReceiveMessage is delivered to online members of a direct conversation.
type ReceiveMessage struct {
	Message   string    `json:"message"`
	Sender    string    `json:"sender"`
	MessageID string    `json:"messageId"`
	ChatID    string    `json:"chatId"`
	CreatedAt time.Time `json:"createdAt"`
}

// ReceiveGroupMessage is fanned out to the members of a broadcast room.
type ReceiveGroupMessage struct {
	Message   string `json:"message"`
	GroupID   string `json:"groupId"`
	Sender    string `json:"sender"`
	MessageID string `json:"messageId,omitempty"`
}

// Connected is sent once the session becomes active.
type Connected struct {
	SocketID string `json:"socketId"`
	UserID   string `json:"userId"`
}

// NewReceiveMessage builds the delivery payload for a persisted message.
func NewReceiveMessage(m Message) ReceiveMessage {
	return ReceiveMessage{
		Message:   m.Text,
		Sender:    m.SenderID,
		MessageID: m.ID,
		ChatID:    m.ConversationID,
		CreatedAt: m.CreatedAt,
	}
}

// Encode wraps data in an Envelope for event and serializes it.
// A nil data encodes as JSON null.
func Encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// Decode parses a frame into an Envelope.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal(frame, &env)
	return env, err
}
