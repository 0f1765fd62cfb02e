package core

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/etensports/chat-server/internal/metrics"
	"github.com/etensports/chat-server/internal/realtime"
)

// PresencePath holds the admin presence record.
const PresencePath = "presence/admin/state"

// PresenceState is the value stored at PresencePath.
type PresenceState string

const (
	PresenceOnline  PresenceState = "online"
	PresenceOffline PresenceState = "offline"
)

// PresenceTracker drives the admin Offline -> Online -> Offline machine for
// one admin connection.
type PresenceTracker struct {
	conn    realtime.Liveness
	store   realtime.Store
	log     *zerolog.Logger
	metrics *metrics.Metrics
}

// NewPresenceTracker binds presence writes to the admin's connection.
func NewPresenceTracker(conn realtime.Liveness, st realtime.Store, logger *zerolog.Logger, m *metrics.Metrics) *PresenceTracker {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &PresenceTracker{conn: conn, store: st, log: logger, metrics: m}
}

// GoOnline writes online and, in the same step, arms the disconnect
// fallback that writes offline if the connection drops.
func (p *PresenceTracker) GoOnline(ctx context.Context) error {
	err := p.conn.SetWithOnDisconnect(ctx, PresencePath, PresenceOnline, PresenceOffline)
	if err != nil {
		return fmt.Errorf("presence online: %w", err)
	}
	p.log.Info().Msg("admin online")
	return nil
}

// Logout writes offline explicitly. The disconnect fallback stays armed and
// writes the same value if it fires later.
func (p *PresenceTracker) Logout(ctx context.Context) error {
	if err := MarkOffline(ctx, p.store); err != nil {
		return err
	}
	p.log.Info().Msg("admin offline")
	return nil
}

// MarkOffline writes offline without a connection, as a REST logout does.
func MarkOffline(ctx context.Context, st realtime.Store) error {
	if err := st.SetValue(ctx, PresencePath, PresenceOffline); err != nil {
		return fmt.Errorf("presence offline: %w", err)
	}
	return nil
}

// State reads the current presence once.
func (p *PresenceTracker) State(ctx context.Context) (PresenceState, error) {
	return ReadPresence(ctx, p.store)
}

// ReadPresence reads the admin presence once.
func ReadPresence(ctx context.Context, st realtime.Store) (PresenceState, error) {
	s, err := st.Get(ctx, PresencePath)
	if err != nil {
		return PresenceOffline, fmt.Errorf("read presence: %w", err)
	}
	return presenceFrom(s), nil
}

// WatchPresence reports whether the admin is online now and after every change.
func WatchPresence(ctx context.Context, st realtime.Store, m *metrics.Metrics, fn func(online bool)) (func(), error) {
	return st.Subscribe(ctx, PresencePath, func(s realtime.Snapshot) {
		online := presenceFrom(s) == PresenceOnline
		m.SetAdminOnline(online)
		fn(online)
	})
}

// presenceFrom treats "online" or true as online; anything else, including
// no data, is offline.
func presenceFrom(s realtime.Snapshot) PresenceState {
	switch v := s.Value().(type) {
	case string:
		if PresenceState(v) == PresenceOnline {
			return PresenceOnline
		}
	case bool:
		if v {
			return PresenceOnline
		}
	}
	return PresenceOffline
}
