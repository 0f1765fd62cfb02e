package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeHello              = "hello"
	InboundTypeSelect             = "select"
	InboundTypeDeselect           = "deselect"
	InboundTypeDraft              = "draft"
	InboundTypeSend               = "send"
	InboundTypeDeleteMessage      = "delete_message"
	InboundTypeDeleteConversation = "delete_conversation"
	InboundTypeLogout             = "logout"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventView   = "view"
	EventSent   = "sent"
	EventLogout = "logged_out"
)

// HelloData is sent by the client to introduce itself. Token may be omitted
// when the session cookie or Authorization header already authenticated the
// upgrade request.
type HelloData struct {
	Token        string `json:"token,omitempty"`
	Protocol     int    `json:"protocol,omitempty"`
	Conversation string `json:"conversation,omitempty"`
}

// SelectData switches the admin to a conversation.
type SelectData struct {
	Conversation string `json:"conversation"`
}

// TextData carries draft or message text.
type TextData struct {
	Text string `json:"text"`
}

// DeleteMessageData removes one message. An empty conversation means the selected one.
type DeleteMessageData struct {
	Conversation string `json:"conversation,omitempty"`
	ID           string `json:"id"`
}

// DeleteConversationData removes a conversation. An empty conversation means the selected one.
type DeleteConversationData struct {
	Conversation string `json:"conversation,omitempty"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// EventSentData acknowledges an accepted send.
type EventSentData struct {
	ID string `json:"id"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
