package proto

import "encoding/json"

// Inbound is the envelope for frames coming from the client.
// A frame with a missing or unknown type is ignored by the router.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Inbound frame types the router understands.
const (
	InboundTypeTyping       = "typing"
	InboundTypeStatusUpdate = "status_update"
)

// Outbound event types.
const (
	EventUserJoined = "user_joined"
	EventUserLeft   = "user_left"
	EventMessage    = "message"
	EventTyping     = "typing"
	EventUserStatus = "user_status"
	EventModeration = "moderation"
)

// Envelope is the outbound payload wrapper: {"type": ..., "data": ...}.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Marshal encodes an event envelope to the wire bytes.
func Marshal(eventType string, data any) ([]byte, error) {
	return json.Marshal(Envelope{Type: eventType, Data: data})
}

// UserJoinedData announces a newly connected user.
type UserJoinedData struct {
	Nickname string   `json:"nickname"`
	Avatar   string   `json:"avatar"`
	AgeGroup string   `json:"ageGroup"`
	Roles    []string `json:"roles"`
}

// UserLeftData announces that a user's last connection closed.
type UserLeftData struct {
	Nickname string `json:"nickname"`
}

// MessageData carries an application chat message. The payload is opaque to
// the presence core; it is produced by the REST layer.
type MessageData struct {
	ID        int64  `json:"id"`
	Nickname  string `json:"nickname"`
	Body      string `json:"body"`
	CreatedAt int64  `json:"createdAt"`
}

// TypingInbound is the client's typing-indicator frame.
type TypingInbound struct {
	IsTyping   bool    `json:"isTyping"`
	ChatType   string  `json:"chatType"`
	TargetUser *string `json:"targetUser"`
}

// TypingData is the broadcast typing-indicator event.
type TypingData struct {
	Nickname   string  `json:"nickname"`
	IsTyping   bool    `json:"isTyping"`
	ChatType   string  `json:"chatType"`
	TargetUser *string `json:"targetUser"`
}

// StatusUpdateInbound is the client's transient status frame.
type StatusUpdateInbound struct {
	Status   string `json:"status"`
	LastSeen string `json:"lastSeen"`
}

// UserStatusData is the broadcast presence-status event.
type UserStatusData struct {
	Nickname string `json:"nickname"`
	Status   string `json:"status"`
	LastSeen string `json:"lastSeen"`
}

// ModerationData is the broadcast moderation event.
type ModerationData struct {
	Action     string `json:"action"`
	TargetUser string `json:"targetUser"`
	Moderator  string `json:"moderator"`
	Reason     string `json:"reason"`
}
