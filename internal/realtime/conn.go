package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/etensports/chat-server/internal/utils"
)

// hooksRoot is the journal namespace for pending disconnect writes. User
// paths cannot reach it because '.' is not allowed in a segment.
const hooksRoot = ".hooks"

type hookRecord struct {
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value"`
}

type hook struct {
	seq int
	key string
	rec hookRecord
}

type connState struct {
	id       string
	lastSeen int64
	seq      int
	hooks    map[string]hook
}

// Conn is one client's liveness scope on a Hub. Writes registered through it
// are performed by the hub when the connection ends: on Disconnect, on lease
// expiry, on hub shutdown, or on the next Load after a crash.
type Conn struct {
	hub  *Hub
	id   string
	once sync.Once
}

// Connect opens a connection scope.
func (h *Hub) Connect(ctx context.Context) (*Conn, error) {
	id := utils.NewID()
	err := h.do(ctx, func() {
		h.conns[id] = &connState{
			id:       id,
			lastSeen: h.now().UnixNano(),
			hooks:    make(map[string]hook),
		}
		h.metrics.ConnectionsChanged(1)
	})
	if err != nil {
		return nil, err
	}
	return &Conn{hub: h, id: id}, nil
}

// ID returns the connection identifier.
func (c *Conn) ID() string { return c.id }

// Touch renews the connection lease.
func (c *Conn) Touch(ctx context.Context) error {
	var gone bool
	err := c.hub.do(ctx, func() {
		st, ok := c.hub.conns[c.id]
		if !ok {
			gone = true
			return
		}
		st.lastSeen = c.hub.now().UnixNano()
	})
	if err != nil {
		return err
	}
	if gone {
		return ErrDisconnected
	}
	return nil
}

// SetWithOnDisconnect implements Liveness.
func (c *Conn) SetWithOnDisconnect(ctx context.Context, path string, value, fallback any) error {
	segs, err := Split(path)
	if err != nil {
		return err
	}
	v, raw, err := normalize(value)
	if err != nil {
		return err
	}
	rec, err := newHookRecord(path, fallback)
	if err != nil {
		return err
	}

	var werr error
	err = c.hub.do(ctx, func() {
		st, ok := c.hub.conns[c.id]
		if !ok {
			werr = ErrDisconnected
			return
		}
		prev, hadPrev := st.hooks[path]
		if werr = c.hub.registerHook(ctx, st, rec); werr != nil {
			return
		}
		if werr = c.hub.write(ctx, path, segs, v, raw); werr != nil {
			c.hub.dropHook(ctx, st, path)
			if hadPrev {
				_ = c.hub.putHook(ctx, st, prev)
			}
		}
	})
	if err != nil {
		return err
	}
	return werr
}

// OnDisconnectSetValue implements Liveness.
func (c *Conn) OnDisconnectSetValue(ctx context.Context, path string, value any) error {
	if _, err := Split(path); err != nil {
		return err
	}
	rec, err := newHookRecord(path, value)
	if err != nil {
		return err
	}
	var werr error
	err = c.hub.do(ctx, func() {
		st, ok := c.hub.conns[c.id]
		if !ok {
			werr = ErrDisconnected
			return
		}
		werr = c.hub.registerHook(ctx, st, rec)
	})
	if err != nil {
		return err
	}
	return werr
}

// CancelOnDisconnect implements Liveness.
func (c *Conn) CancelOnDisconnect(ctx context.Context, path string) error {
	var werr error
	err := c.hub.do(ctx, func() {
		st, ok := c.hub.conns[c.id]
		if !ok {
			werr = ErrDisconnected
			return
		}
		werr = c.hub.dropHook(ctx, st, path)
	})
	if err != nil {
		return err
	}
	return werr
}

// Disconnect ends the connection and performs its registered writes.
// Calling it more than once is harmless.
func (c *Conn) Disconnect(ctx context.Context) error {
	var err error
	c.once.Do(func() {
		err = c.hub.do(ctx, func() {
			st, ok := c.hub.conns[c.id]
			if !ok {
				return
			}
			delete(c.hub.conns, c.id)
			c.hub.disconnect(ctx, st, "disconnect")
		})
	})
	if errors.Is(err, ErrClosed) {
		// Shutdown already fired the hooks.
		return nil
	}
	return err
}

func newHookRecord(path string, value any) (hookRecord, error) {
	_, raw, err := normalize(value)
	if err != nil {
		return hookRecord{}, err
	}
	return hookRecord{Path: path, Value: orNull(raw)}, nil
}

func (h *Hub) registerHook(ctx context.Context, st *connState, rec hookRecord) error {
	hk, ok := st.hooks[rec.Path]
	if !ok {
		st.seq++
		hk = hook{seq: st.seq, key: Join(hooksRoot, st.id, strconv.Itoa(st.seq))}
	}
	hk.rec = rec
	return h.putHook(ctx, st, hk)
}

func (h *Hub) putHook(ctx context.Context, st *connState, hk hook) error {
	raw, err := json.Marshal(hk.rec)
	if err != nil {
		return fmt.Errorf("encode disconnect hook: %w", err)
	}
	if err := h.journal.Put(ctx, hk.key, raw); err != nil {
		h.metrics.JournalError()
		return fmt.Errorf("%w: %s: %v", ErrJournal, hk.key, err)
	}
	st.hooks[hk.rec.Path] = hk
	return nil
}

func (h *Hub) dropHook(ctx context.Context, st *connState, path string) error {
	hk, ok := st.hooks[path]
	if !ok {
		return nil
	}
	if err := h.journal.Delete(ctx, hk.key); err != nil {
		h.metrics.JournalError()
		return fmt.Errorf("%w: %s: %v", ErrJournal, hk.key, err)
	}
	delete(st.hooks, path)
	return nil
}

// disconnect fires st's hooks in registration order. Must run on the loop.
func (h *Hub) disconnect(ctx context.Context, st *connState, reason string) {
	hooks := make([]hook, 0, len(st.hooks))
	for _, hk := range st.hooks {
		hooks = append(hooks, hk)
	}
	sort.Slice(hooks, func(a, b int) bool { return hooks[a].seq < hooks[b].seq })

	for _, hk := range hooks {
		if err := h.applyHook(ctx, hk.rec); err != nil {
			h.log.Warn().Err(err).Str("conn", st.id).Str("path", hk.rec.Path).Msg("disconnect hook failed")
		}
	}
	if len(hooks) > 0 {
		if err := h.journal.Delete(ctx, Join(hooksRoot, st.id)); err != nil {
			h.metrics.JournalError()
			h.log.Warn().Err(err).Str("conn", st.id).Msg("failed to clear disconnect hooks")
		}
	}
	h.metrics.ConnectionsChanged(-1)
	h.log.Debug().Str("conn", st.id).Str("reason", reason).Int("hooks", len(hooks)).Msg("connection closed")
}

func (h *Hub) applyHook(ctx context.Context, rec hookRecord) error {
	segs, err := Split(rec.Path)
	if err != nil {
		return err
	}
	v, raw, err := decodeValue(rec.Value)
	if err != nil {
		return err
	}
	if err := h.write(ctx, rec.Path, segs, v, raw); err != nil {
		return err
	}
	h.metrics.DisconnectHookFired()
	return nil
}

func (h *Hub) reapExpired() {
	cutoff := h.now().Add(-h.leaseTTL).UnixNano()
	ctx := context.Background()
	for id, st := range h.conns {
		if st.lastSeen < cutoff {
			delete(h.conns, id)
			h.disconnect(ctx, st, "lease_expired")
		}
	}
}
