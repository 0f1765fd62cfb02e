package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/etensports/chat-server/internal/metrics"
	"github.com/etensports/chat-server/internal/realtime"
)

// SessionDeps are the collaborators of a Session.
type SessionDeps struct {
	Conversations *Conversations
	Store         realtime.Store
	// Presence is set for admin sessions only.
	Presence *PresenceTracker
	Logger   *zerolog.Logger
	Metrics  *metrics.Metrics
}

// Session is one actor's live chat screen. It owns its store subscriptions
// and republishes a View after every snapshot or local change. Local state is
// only a cache of the last snapshots.
//
// Role checks here are advisory; the transport enforces access rules.
type Session struct {
	actor    Actor
	convs    *Conversations
	store    realtime.Store
	presence *PresenceTracker
	log      *zerolog.Logger
	metrics  *metrics.Metrics

	views chan View

	// bg bounds writes the session issues on its own (marking replies read).
	bg     context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	opened        bool
	closed        bool
	selected      string
	generation    uint64
	messages      []Message
	all           map[string][]Message
	adminOnline   bool
	draft         string
	unsubConv     func()
	unsubPresence func()
	unsubAll      func()
}

// NewSession creates a session for actor. Call Open to start it.
func NewSession(actor Actor, deps SessionDeps) *Session {
	logger := deps.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("actor", actor.ID).Str("role", string(actor.Role)).Logger()
	bg, cancel := context.WithCancel(context.Background())
	return &Session{
		actor:    actor,
		convs:    deps.Conversations,
		store:    deps.Store,
		presence: deps.Presence,
		log:      &l,
		metrics:  deps.Metrics,
		views:    make(chan View, 1),
		bg:       bg,
		cancel:   cancel,
	}
}

// Actor returns the session owner.
func (s *Session) Actor() Actor { return s.actor }

// Views delivers the latest View. Stale views are dropped when the reader
// falls behind. The channel is closed by Close.
func (s *Session) Views() <-chan View { return s.views }

// Open subscribes to presence and to the conversation. Visitors always open
// their own conversation; an admin may pass one to select it immediately,
// and goes online.
func (s *Session) Open(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if s.opened {
		return nil
	}

	target := conversationID
	if !s.actor.IsAdmin() {
		if target != "" && target != s.actor.ID {
			return fmt.Errorf("%w: visitors can only open their own conversation", ErrForbidden)
		}
		target = s.actor.ID
	}
	if target != "" {
		if err := validateID(target); err != nil {
			return err
		}
	}

	if s.actor.IsAdmin() && s.presence != nil {
		if err := s.presence.GoOnline(ctx); err != nil {
			return err
		}
	}

	unsub, err := WatchPresence(ctx, s.store, s.metrics, s.onPresence)
	if err != nil {
		return fmt.Errorf("watch presence: %w", err)
	}
	s.unsubPresence = unsub

	if s.actor.IsAdmin() {
		unsub, err := s.convs.SubscribeAll(ctx, s.onAll)
		if err != nil {
			s.releaseLocked()
			return fmt.Errorf("watch conversations: %w", err)
		}
		s.unsubAll = unsub
	}

	if err := s.selectLocked(ctx, target); err != nil {
		s.releaseLocked()
		return err
	}

	s.opened = true
	s.metrics.SessionsChanged(string(s.actor.Role), 1)
	s.log.Debug().Str("conversation", target).Msg("session opened")
	s.publishLocked()
	return nil
}

// Close releases every subscription and closes Views. It is safe to call
// more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.releaseLocked()
	s.cancel()
	close(s.views)
	if s.opened {
		s.metrics.SessionsChanged(string(s.actor.Role), -1)
	}
	s.log.Debug().Msg("session closed")
}

// SetDraft updates the unsent input text.
func (s *Session) SetDraft(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	s.draft = text
	s.publishLocked()
	return nil
}

// Send appends text to the open conversation as this actor. The draft is
// cleared on success; the message itself shows up with the next snapshot.
func (s *Session) Send(ctx context.Context, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", ErrSessionClosed
	}
	if s.selected == "" {
		return "", ErrNoConversation
	}

	id, err := s.convs.AppendMessage(ctx, s.selected, s.actor.Role, s.actor.Name(), text)
	if err != nil {
		return "", err
	}
	s.draft = ""
	s.publishLocked()
	return id, nil
}

// Select switches the admin to another conversation.
func (s *Session) Select(ctx context.Context, conversationID string) error {
	if !s.actor.IsAdmin() {
		return ErrForbidden
	}
	if err := validateID(conversationID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if conversationID == s.selected {
		return nil
	}
	if err := s.selectLocked(ctx, conversationID); err != nil {
		return err
	}
	s.publishLocked()
	return nil
}

// Deselect leaves the admin with no conversation open.
func (s *Session) Deselect() error {
	if !s.actor.IsAdmin() {
		return ErrForbidden
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if err := s.selectLocked(context.Background(), ""); err != nil {
		return err
	}
	s.publishLocked()
	return nil
}

// DeleteMessage removes one message. An empty conversationID means the
// selected one.
func (s *Session) DeleteMessage(ctx context.Context, conversationID, messageID string) error {
	if !s.actor.IsAdmin() {
		return ErrForbidden
	}
	conv, err := s.resolve(conversationID)
	if err != nil {
		return err
	}
	return s.convs.DeleteMessage(ctx, conv, messageID)
}

// DeleteConversation removes a whole conversation and clears the selection
// if it was the open one.
func (s *Session) DeleteConversation(ctx context.Context, conversationID string) error {
	if !s.actor.IsAdmin() {
		return ErrForbidden
	}
	conv, err := s.resolve(conversationID)
	if err != nil {
		return err
	}
	if err := s.convs.DeleteConversation(ctx, conv); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed && s.selected == conv {
		if err := s.selectLocked(ctx, ""); err != nil {
			return err
		}
		s.publishLocked()
	}
	return nil
}

// Logout ends the session. For the admin it first writes presence offline.
func (s *Session) Logout(ctx context.Context) error {
	var err error
	if s.actor.IsAdmin() && s.presence != nil {
		err = s.presence.Logout(ctx)
	}
	s.Close()
	return err
}

func (s *Session) resolve(conversationID string) (string, error) {
	if conversationID != "" {
		return conversationID, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == "" {
		return "", ErrNoConversation
	}
	return s.selected, nil
}

// selectLocked swaps the conversation subscription. Snapshots of the previous
// conversation still in flight are discarded by generation.
func (s *Session) selectLocked(ctx context.Context, conversationID string) error {
	if s.unsubConv != nil {
		s.unsubConv()
		s.unsubConv = nil
	}
	s.generation++
	s.selected = ""
	s.messages = nil

	if conversationID == "" {
		return nil
	}
	gen := s.generation
	unsub, err := s.convs.Subscribe(ctx, conversationID, func(msgs []Message) {
		s.onConversation(gen, conversationID, msgs)
	})
	if err != nil {
		return fmt.Errorf("watch conversation: %w", err)
	}
	s.unsubConv = unsub
	s.selected = conversationID
	return nil
}

func (s *Session) releaseLocked() {
	for _, unsub := range []func(){s.unsubConv, s.unsubPresence, s.unsubAll} {
		if unsub != nil {
			unsub()
		}
	}
	s.unsubConv, s.unsubPresence, s.unsubAll = nil, nil, nil
}

func (s *Session) onPresence(online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.adminOnline = online
	s.publishLocked()
}

func (s *Session) onAll(all map[string][]Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.all = all
	s.publishLocked()
}

func (s *Session) onConversation(gen uint64, conversationID string, msgs []Message) {
	s.mu.Lock()
	if s.closed || gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.messages = msgs
	var seen []Message
	if !s.actor.IsAdmin() {
		seen = unreadReplies(msgs)
	}
	s.publishLocked()
	s.mu.Unlock()

	// The visitor has now seen these replies. Each write redelivers the
	// conversation, so the flag clears on a later snapshot.
	for _, m := range seen {
		if err := s.convs.MarkRead(s.bg, conversationID, m.ID); err != nil {
			s.log.Warn().Err(err).Str("message", m.ID).Msg("failed to mark reply read")
		}
	}
}

func (s *Session) viewLocked() View {
	v := View{
		Role:         s.actor.Role,
		Conversation: s.selected,
		Messages:     s.messages,
		AdminOnline:  s.adminOnline,
		Draft:        s.draft,
	}
	if v.Messages == nil {
		v.Messages = []Message{}
	}
	if s.actor.IsAdmin() {
		v.UnreadCount = AdminUnreadCount(s.all, s.selected)
		v.Conversations = Summaries(s.all)
	} else {
		v.HasUnreadReply = HasUnreadReply(s.messages)
	}
	return v
}

// publishLocked replaces any unread View with the current one.
func (s *Session) publishLocked() {
	if s.closed {
		return
	}
	v := s.viewLocked()
	select {
	case <-s.views:
	default:
	}
	s.views <- v
}
