package core

import (
	"sort"
	"strings"
)

// Role is the kind of actor taking part in a conversation.
type Role string

const (
	RoleVisitor Role = "visitor"
	RoleAdmin   Role = "admin"
)

// Default display names used when an identity carries none.
const (
	DefaultVisitorName = "Pengunjung"
	DefaultAdminName   = "Admin"
)

// Actor is an authenticated participant. For visitors ID is also the
// conversation id.
type Actor struct {
	ID          string
	Role        Role
	DisplayName string
}

// IsAdmin reports whether the actor has the admin role.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// Name returns the display name, falling back to the role default.
func (a Actor) Name() string {
	if name := strings.TrimSpace(a.DisplayName); name != "" {
		return name
	}
	if a.IsAdmin() {
		return DefaultAdminName
	}
	return DefaultVisitorName
}

// Message is the domain model for a chat message.
type Message struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversationId"`
	Role           Role   `json:"role"`
	DisplayName    string `json:"displayName"`
	Text           string `json:"text"`
	Timestamp      int64  `json:"timestamp"`
	Read           bool   `json:"read"`
}

// record is the stored form of a message at chats/{conversation}/{id}.
type record struct {
	Role        Role   `json:"role"`
	DisplayName string `json:"displayName"`
	Text        string `json:"text"`
	Timestamp   int64  `json:"timestamp"`
	Read        bool   `json:"read"`
}

func (r record) message(conversationID, id string) Message {
	return Message{
		ID:             id,
		ConversationID: conversationID,
		Role:           r.Role,
		DisplayName:    r.DisplayName,
		Text:           r.Text,
		Timestamp:      r.Timestamp,
		Read:           r.Read,
	}
}

func (r record) valid() bool {
	return r.Role == RoleVisitor || r.Role == RoleAdmin
}

// sortMessages orders by timestamp, then by store-assigned id.
func sortMessages(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].Timestamp != msgs[j].Timestamp {
			return msgs[i].Timestamp < msgs[j].Timestamp
		}
		return msgs[i].ID < msgs[j].ID
	})
}
