package core

// View is everything a chat screen renders. Each published View replaces the
// previous one wholesale.
type View struct {
	Role           Role                  `json:"role"`
	Conversation   string                `json:"conversation,omitempty"`
	Messages       []Message             `json:"messages"`
	AdminOnline    bool                  `json:"adminOnline"`
	HasUnreadReply bool                  `json:"hasUnreadReply"`
	UnreadCount    int                   `json:"unreadCount"`
	Conversations  []ConversationSummary `json:"conversations,omitempty"`
	Draft          string                `json:"draft"`
}
