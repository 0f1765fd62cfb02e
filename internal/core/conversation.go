package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/etensports/chat-server/internal/metrics"
	"github.com/etensports/chat-server/internal/realtime"
)

// ChatsRoot is the store path holding every conversation.
const ChatsRoot = "chats"

// ConversationOptions tune a Conversations store. The zero value is usable.
type ConversationOptions struct {
	// MaxTextLength limits message text in runes after trimming. Zero means no limit.
	MaxTextLength int
	Now           func() time.Time
	Logger        *zerolog.Logger
	Metrics       *metrics.Metrics
}

// Conversations is the per-visitor message log kept in the realtime store.
type Conversations struct {
	store   realtime.Store
	maxText int
	now     func() time.Time
	log     *zerolog.Logger
	metrics *metrics.Metrics
}

// NewConversations creates a conversation store over st.
func NewConversations(st realtime.Store, opts ConversationOptions) *Conversations {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Conversations{
		store:   st,
		maxText: opts.MaxTextLength,
		now:     now,
		log:     logger,
		metrics: opts.Metrics,
	}
}

// AppendMessage validates text and appends an unread message. It returns the
// store-assigned message id.
func (c *Conversations) AppendMessage(ctx context.Context, conversationID string, role Role, displayName, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyMessage
	}
	if c.maxText > 0 && utf8.RuneCountInString(text) > c.maxText {
		return "", fmt.Errorf("%w: limit is %d characters", ErrMessageTooLong, c.maxText)
	}
	if err := validateID(conversationID); err != nil {
		return "", err
	}
	if role != RoleVisitor && role != RoleAdmin {
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidID, role)
	}

	rec := record{
		Role:        role,
		DisplayName: displayName,
		Text:        text,
		Timestamp:   c.now().UnixMilli(),
	}
	id, err := c.store.Append(ctx, conversationPath(conversationID), rec)
	if err != nil {
		return "", fmt.Errorf("append message: %w", err)
	}
	c.metrics.MessageAppended(string(role))
	c.log.Debug().Str("conversation", conversationID).Str("message", id).Str("role", string(role)).Msg("message appended")
	return id, nil
}

// DeleteMessage removes one message. Missing messages are not an error.
func (c *Conversations) DeleteMessage(ctx context.Context, conversationID, messageID string) error {
	if err := validateID(conversationID); err != nil {
		return err
	}
	if err := validateID(messageID); err != nil {
		return err
	}
	if err := c.store.DeleteNode(ctx, messagePath(conversationID, messageID)); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	c.metrics.MessageDeleted()
	return nil
}

// DeleteConversation removes every message of a conversation. A later
// append recreates it.
func (c *Conversations) DeleteConversation(ctx context.Context, conversationID string) error {
	return c.deleteConversation(ctx, conversationID, "admin")
}

func (c *Conversations) deleteConversation(ctx context.Context, conversationID, reason string) error {
	if err := validateID(conversationID); err != nil {
		return err
	}
	if err := c.store.DeleteNode(ctx, conversationPath(conversationID)); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	c.metrics.ConversationDeleted(reason)
	c.log.Info().Str("conversation", conversationID).Str("reason", reason).Msg("conversation deleted")
	return nil
}

// MarkRead sets read on a message. It never recreates a deleted message and
// is a no-op when the message is already read.
func (c *Conversations) MarkRead(ctx context.Context, conversationID, messageID string) error {
	if err := validateID(conversationID); err != nil {
		return err
	}
	if err := validateID(messageID); err != nil {
		return err
	}
	committed, err := c.store.Transaction(ctx, messagePath(conversationID, messageID), func(s realtime.Snapshot) (any, bool) {
		if !s.Exists() {
			return nil, false
		}
		var rec record
		if err := s.Decode(&rec); err != nil || !rec.valid() || rec.Read {
			return nil, false
		}
		rec.Read = true
		return rec, true
	})
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if committed {
		c.metrics.MessageRead()
	}
	return nil
}

// Subscribe delivers the ordered message list of one conversation now and
// after every change to it.
func (c *Conversations) Subscribe(ctx context.Context, conversationID string, fn func([]Message)) (func(), error) {
	if err := validateID(conversationID); err != nil {
		return nil, err
	}
	return c.store.Subscribe(ctx, conversationPath(conversationID), func(s realtime.Snapshot) {
		fn(c.decodeConversation(conversationID, s.Raw()))
	})
}

// SubscribeAll delivers every conversation, keyed by conversation id, now
// and after every change to any of them.
func (c *Conversations) SubscribeAll(ctx context.Context, fn func(map[string][]Message)) (func(), error) {
	return c.store.Subscribe(ctx, ChatsRoot, func(s realtime.Snapshot) {
		fn(c.decodeAll(s.Raw()))
	})
}

// List reads one conversation once.
func (c *Conversations) List(ctx context.Context, conversationID string) ([]Message, error) {
	if err := validateID(conversationID); err != nil {
		return nil, err
	}
	s, err := c.store.Get(ctx, conversationPath(conversationID))
	if err != nil {
		return nil, fmt.Errorf("list conversation: %w", err)
	}
	return c.decodeConversation(conversationID, s.Raw()), nil
}

// ListAll reads every conversation once.
func (c *Conversations) ListAll(ctx context.Context) (map[string][]Message, error) {
	s, err := c.store.Get(ctx, ChatsRoot)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return c.decodeAll(s.Raw()), nil
}

func (c *Conversations) decodeConversation(conversationID string, raw json.RawMessage) []Message {
	var children map[string]json.RawMessage
	if err := json.Unmarshal(raw, &children); err != nil {
		c.log.Warn().Err(err).Str("conversation", conversationID).Msg("conversation snapshot is not an object")
		return []Message{}
	}
	msgs := make([]Message, 0, len(children))
	for id, body := range children {
		var rec record
		if err := json.Unmarshal(body, &rec); err != nil || !rec.valid() {
			c.log.Warn().Str("conversation", conversationID).Str("message", id).Msg("skip malformed message")
			continue
		}
		msgs = append(msgs, rec.message(conversationID, id))
	}
	sortMessages(msgs)
	return msgs
}

func (c *Conversations) decodeAll(raw json.RawMessage) map[string][]Message {
	var convs map[string]json.RawMessage
	if err := json.Unmarshal(raw, &convs); err != nil {
		c.log.Warn().Err(err).Msg("chats snapshot is not an object")
		return map[string][]Message{}
	}
	out := make(map[string][]Message, len(convs))
	for id, body := range convs {
		if msgs := c.decodeConversation(id, body); len(msgs) > 0 {
			out[id] = msgs
		}
	}
	return out
}

func conversationPath(conversationID string) string {
	return realtime.Join(ChatsRoot, conversationID)
}

func messagePath(conversationID, messageID string) string {
	return realtime.Join(ChatsRoot, conversationID, messageID)
}

func validateID(id string) error {
	if id == "" || strings.Contains(id, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	if _, err := realtime.Split(id); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// ExpireIdle removes a conversation whose newest message is older than
// cutoff. The age check and the delete happen in one transaction, so a message
// appended during a retention sweep keeps its conversation alive.
func (c *Conversations) ExpireIdle(ctx context.Context, conversationID string, cutoff time.Time) (bool, error) {
	if err := validateID(conversationID); err != nil {
		return false, err
	}
	limit := cutoff.UnixMilli()
	committed, err := c.store.Transaction(ctx, conversationPath(conversationID), func(s realtime.Snapshot) (any, bool) {
		msgs := c.decodeConversation(conversationID, s.Raw())
		if len(msgs) == 0 || msgs[len(msgs)-1].Timestamp >= limit {
			return nil, false
		}
		return nil, true
	})
	if err != nil {
		return false, fmt.Errorf("expire conversation: %w", err)
	}
	if committed {
		c.metrics.ConversationDeleted("retention")
		c.log.Info().Str("conversation", conversationID).Str("reason", "retention").Msg("conversation deleted")
	}
	return committed, nil
}
