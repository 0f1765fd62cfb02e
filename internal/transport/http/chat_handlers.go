package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/etensports/chat-server/internal/core"
)

// ChatHandlers exposes conversations over REST.
type ChatHandlers struct {
	convs *core.Conversations
	log   *zerolog.Logger
}

// NewChatHandlers creates a new chat handlers instance.
func NewChatHandlers(convs *core.Conversations, logger *zerolog.Logger) *ChatHandlers {
	return &ChatHandlers{convs: convs, log: logger}
}

// SendMessageRequest is the body of a message append.
type SendMessageRequest struct {
	Text string `json:"text"`
}

// SendMessageResponse returns the id of the appended message.
type SendMessageResponse struct {
	ID string `json:"id"`
}

// UnreadResponse reports unread state. Count is set for the admin, HasReply for visitors.
type UnreadResponse struct {
	Count    *int  `json:"count,omitempty"`
	HasReply *bool `json:"has_reply,omitempty"`
}

// MessagesResponse lists one conversation.
type MessagesResponse struct {
	Conversation string         `json:"conversation"`
	Messages     []core.Message `json:"messages"`
}

// ListChats returns the admin conversation list.
// GET /api/chats
func (h *ChatHandlers) ListChats(c *gin.Context) {
	all, err := h.convs.ListAll(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list conversations")
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, core.Summaries(all))
}

// GetChat returns the ordered messages of a conversation.
// GET /api/chats/:id
func (h *ChatHandlers) GetChat(c *gin.Context) {
	conv, ok := h.authorize(c)
	if !ok {
		return
	}
	msgs, err := h.convs.List(c.Request.Context(), conv)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessagesResponse{Conversation: conv, Messages: msgs})
}

// PostMessage appends a message as the caller.
// POST /api/chats/:id/messages
func (h *ChatHandlers) PostMessage(c *gin.Context) {
	conv, ok := h.authorize(c)
	if !ok {
		return
	}
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: core.ErrCodeBadRequest})
		return
	}

	identity, _ := identityFrom(c)
	actor := actorFromIdentity(identity)
	id, err := h.convs.AppendMessage(c.Request.Context(), conv, actor.Role, actor.Name(), req.Text)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, SendMessageResponse{ID: id})
}

// MarkRead marks a message read. Only the owning visitor may do this.
// POST /api/chats/:id/messages/:mid/read
func (h *ChatHandlers) MarkRead(c *gin.Context) {
	identity, _ := identityFrom(c)
	conv := c.Param("id")
	if !canMarkRead(identity, conv) {
		writeError(c, forbidden(errForbiddenConversation))
		return
	}
	if err := h.convs.MarkRead(c.Request.Context(), conv, c.Param("mid")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteMessage removes one message. Missing messages are not an error.
// DELETE /api/chats/:id/messages/:mid
func (h *ChatHandlers) DeleteMessage(c *gin.Context) {
	if err := h.convs.DeleteMessage(c.Request.Context(), c.Param("id"), c.Param("mid")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteChat removes a conversation.
// DELETE /api/chats/:id
func (h *ChatHandlers) DeleteChat(c *gin.Context) {
	if err := h.convs.DeleteConversation(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Unread returns the admin unread count (excluding ?open=) or the visitor reply flag.
// GET /api/unread
func (h *ChatHandlers) Unread(c *gin.Context) {
	identity, _ := identityFrom(c)
	ctx := c.Request.Context()

	if identity.Admin {
		all, err := h.convs.ListAll(ctx)
		if err != nil {
			writeError(c, err)
			return
		}
		count := core.AdminUnreadCount(all, c.Query("open"))
		c.JSON(http.StatusOK, UnreadResponse{Count: &count})
		return
	}

	msgs, err := h.convs.List(ctx, identity.UID)
	if err != nil {
		writeError(c, err)
		return
	}
	has := core.HasUnreadReply(msgs)
	c.JSON(http.StatusOK, UnreadResponse{HasReply: &has})
}

func (h *ChatHandlers) authorize(c *gin.Context) (string, bool) {
	identity, _ := identityFrom(c)
	conv := c.Param("id")
	if !canAccessConversation(identity, conv) {
		h.log.Debug().Str("uid", identity.UID).Str("conversation", conv).Msg("conversation access denied")
		writeError(c, forbidden(errForbiddenConversation))
		return "", false
	}
	return conv, true
}
