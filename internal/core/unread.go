package core

import "sort"

// AdminUnreadCount counts visitor-authored messages across all conversations
// except the one the admin has open. It is a needs-attention signal: opening
// a conversation only excludes it from the count, nothing is marked read.
func AdminUnreadCount(all map[string][]Message, open string) int {
	n := 0
	for id, msgs := range all {
		if id == open {
			continue
		}
		for _, m := range msgs {
			if m.Role == RoleVisitor {
				n++
			}
		}
	}
	return n
}

// HasUnreadReply reports whether the conversation holds an admin message the
// visitor has not seen yet.
func HasUnreadReply(msgs []Message) bool {
	for _, m := range msgs {
		if m.Role == RoleAdmin && !m.Read {
			return true
		}
	}
	return false
}

// unreadReplies returns the admin messages the visitor has not seen yet.
func unreadReplies(msgs []Message) []Message {
	var out []Message
	for _, m := range msgs {
		if m.Role == RoleAdmin && !m.Read {
			out = append(out, m)
		}
	}
	return out
}

// ConversationSummary is one row of the admin conversation list.
type ConversationSummary struct {
	ID              string `json:"id"`
	Label           string `json:"label"`
	MessageCount    int    `json:"messageCount"`
	VisitorMessages int    `json:"visitorMessages"`
	LastText        string `json:"lastText,omitempty"`
	LastTimestamp   int64  `json:"lastTimestamp"`
}

// Summaries lists conversations, most recently active first.
func Summaries(all map[string][]Message) []ConversationSummary {
	out := make([]ConversationSummary, 0, len(all))
	for id, msgs := range all {
		if len(msgs) == 0 {
			continue
		}
		s := ConversationSummary{
			ID:           id,
			Label:        conversationLabel(id, msgs),
			MessageCount: len(msgs),
		}
		for _, m := range msgs {
			if m.Role == RoleVisitor {
				s.VisitorMessages++
			}
		}
		last := msgs[len(msgs)-1]
		s.LastText = last.Text
		s.LastTimestamp = last.Timestamp
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastTimestamp != out[j].LastTimestamp {
			return out[i].LastTimestamp > out[j].LastTimestamp
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// conversationLabel is the first message's author name, or a short id tag.
func conversationLabel(id string, msgs []Message) string {
	if len(msgs) > 0 && msgs[0].DisplayName != "" {
		return msgs[0].DisplayName
	}
	short := id
	if len(short) > 6 {
		short = short[:6]
	}
	return DefaultVisitorName + "-" + short
}
