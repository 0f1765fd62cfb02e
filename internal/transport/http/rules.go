package http

import "github.com/etensports/chat-server/internal/auth"

// Access rules for chats/{conversation}. Visitors own exactly the
// conversation keyed by their uid; the admin may read and write all of them.

func canAccessConversation(id auth.Identity, conversation string) bool {
	return id.Admin || id.UID == conversation
}

// Only the owning visitor marks messages read; admin reads never change read state.
func canMarkRead(id auth.Identity, conversation string) bool {
	return !id.Admin && id.UID == conversation
}

func canDelete(id auth.Identity) bool {
	return id.Admin
}
