package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/etensports/chat-server/internal/metrics"
	"github.com/etensports/chat-server/internal/store"
	"github.com/etensports/chat-server/internal/store/memory"
	"github.com/etensports/chat-server/internal/utils"
)

// Options tune a Hub. The zero value is usable.
type Options struct {
	Logger  *zerolog.Logger
	Metrics *metrics.Metrics
	// LeaseTTL disconnects connections that have not called Touch within the
	// window. Zero disables lease expiry.
	LeaseTTL time.Duration
	Now      func() time.Time
}

type op struct {
	fn   func()
	done chan struct{}
}

// Hub is an in-process realtime tree. A single event loop (Run) owns the tree,
// the subscription table and the connection table; public methods hand
// closures to the loop and wait for them.
type Hub struct {
	journal  store.Journal
	log      *zerolog.Logger
	metrics  *metrics.Metrics
	leaseTTL time.Duration
	now      func() time.Time

	ops      chan op
	stopped  chan struct{}
	runOnce  sync.Once
	stopOnce sync.Once

	// Owned by the loop.
	root    node
	entries entryIndex
	subs    map[uint64]*subscription
	nextSub uint64
	conns   map[string]*connState
}

// NewHub creates a hub writing through journal. A nil journal keeps state in memory only.
func NewHub(journal store.Journal, opts Options) *Hub {
	if journal == nil {
		journal = memory.New()
	}
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Hub{
		journal:  journal,
		log:      logger,
		metrics:  opts.Metrics,
		leaseTTL: opts.LeaseTTL,
		now:      now,
		ops:      make(chan op),
		stopped:  make(chan struct{}),
		root:     node{},
		subs:     make(map[uint64]*subscription),
		conns:    make(map[string]*connState),
	}
}

// Run processes operations until ctx is cancelled. On exit every open
// connection is disconnected (firing its hooks) and every subscription stops.
func (h *Hub) Run(ctx context.Context) {
	started := false
	h.runOnce.Do(func() { started = true })
	if !started {
		return
	}
	defer h.stopOnce.Do(func() { close(h.stopped) })

	var reap <-chan time.Time
	if h.leaseTTL > 0 {
		ticker := time.NewTicker(h.leaseTTL / 2)
		defer ticker.Stop()
		reap = ticker.C
	}

	for {
		select {
		case o := <-h.ops:
			o.fn()
			close(o.done)
		case <-reap:
			h.reapExpired()
		case <-ctx.Done():
			h.shutdown()
			return
		}
	}
}

// Done is closed once the event loop has exited.
func (h *Hub) Done() <-chan struct{} {
	return h.stopped
}

func (h *Hub) do(ctx context.Context, fn func()) error {
	o := op{fn: fn, done: make(chan struct{})}
	select {
	case h.ops <- o:
	case <-h.stopped:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-o.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) shutdown() {
	ctx := context.Background()
	for id, st := range h.conns {
		h.disconnect(ctx, st, "shutdown")
		delete(h.conns, id)
	}
	for id, s := range h.subs {
		s.stop()
		delete(h.subs, id)
		h.metrics.SubscriptionsChanged(-1)
	}
	h.log.Info().Msg("realtime hub stopped")
}

// Load replays the journal into the tree. Disconnect hooks left behind by
// connections of a previous process are fired, since those clients are gone.
func (h *Hub) Load(ctx context.Context) error {
	var loadErr error
	err := h.do(ctx, func() {
		entries, err := h.journal.Load(ctx)
		if err != nil {
			loadErr = fmt.Errorf("%w: load: %v", ErrJournal, err)
			return
		}

		h.root = node{}
		h.entries.reset()
		var orphans []hookRecord
		for _, e := range entries {
			if strings.HasPrefix(e.Path, hooksRoot+"/") {
				var rec hookRecord
				if err := json.Unmarshal(e.Value, &rec); err != nil {
					h.log.Warn().Err(err).Str("path", e.Path).Msg("skip malformed disconnect hook")
					continue
				}
				orphans = append(orphans, rec)
				continue
			}
			v, _, err := decodeValue(e.Value)
			if err != nil {
				h.log.Warn().Err(err).Str("path", e.Path).Msg("skip malformed journal entry")
				continue
			}
			segs := strings.Split(e.Path, "/")
			assign(h.root, segs, v)
			h.entries.put(segs)
		}

		for _, s := range h.subs {
			h.deliver(s)
		}

		for _, rec := range orphans {
			if err := h.applyHook(ctx, rec); err != nil {
				h.log.Warn().Err(err).Str("path", rec.Path).Msg("failed to fire orphaned disconnect hook")
			}
		}
		if len(orphans) > 0 {
			if err := h.journal.Delete(ctx, hooksRoot); err != nil {
				h.log.Warn().Err(err).Msg("failed to clear orphaned disconnect hooks")
			}
		}

		h.log.Info().Int("entries", len(entries)).Int("orphaned_hooks", len(orphans)).Msg("realtime tree loaded")
	})
	if err != nil {
		return err
	}
	return loadErr
}

// Subscribe implements Store.
func (h *Hub) Subscribe(ctx context.Context, path string, fn func(Snapshot)) (func(), error) {
	segs, err := Split(path)
	if err != nil {
		return nil, err
	}
	s := newSubscription(path, segs, fn)

	err = h.do(ctx, func() {
		h.nextSub++
		s.id = h.nextSub
		h.subs[s.id] = s
		h.metrics.SubscriptionsChanged(1)
		h.deliver(s)
	})
	if err != nil {
		return nil, err
	}
	go s.run()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			s.stop()
			_ = h.do(context.Background(), func() {
				if _, ok := h.subs[s.id]; ok {
					delete(h.subs, s.id)
					h.metrics.SubscriptionsChanged(-1)
				}
			})
		})
	}
	return unsubscribe, nil
}

// Append implements Store.
func (h *Hub) Append(ctx context.Context, path string, value any) (string, error) {
	if _, err := Split(path); err != nil {
		return "", err
	}
	v, raw, err := normalize(value)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", fmt.Errorf("append to %q: empty value", path)
	}

	var (
		key  string
		werr error
	)
	err = h.do(ctx, func() {
		key, werr = utils.NewOrderedID()
		if werr != nil {
			return
		}
		child := Join(path, key)
		werr = h.write(ctx, child, strings.Split(child, "/"), v, raw)
	})
	if err != nil {
		return "", err
	}
	if werr != nil {
		return "", werr
	}
	return key, nil
}

// SetValue implements Store.
func (h *Hub) SetValue(ctx context.Context, path string, value any) error {
	segs, err := Split(path)
	if err != nil {
		return err
	}
	v, raw, err := normalize(value)
	if err != nil {
		return err
	}
	var werr error
	if err := h.do(ctx, func() { werr = h.write(ctx, path, segs, v, raw) }); err != nil {
		return err
	}
	return werr
}

// DeleteNode implements Store.
func (h *Hub) DeleteNode(ctx context.Context, path string) error {
	return h.SetValue(ctx, path, nil)
}

// Transaction implements Store.
func (h *Hub) Transaction(ctx context.Context, path string, fn func(Snapshot) (any, bool)) (bool, error) {
	segs, err := Split(path)
	if err != nil {
		return false, err
	}
	var (
		committed bool
		werr      error
	)
	err = h.do(ctx, func() {
		current := encode(lookup(h.root, segs))
		next, ok := fn(Snapshot{Path: path, raw: current})
		if !ok {
			return
		}
		v, raw, nerr := normalize(next)
		if nerr != nil {
			werr = nerr
			return
		}
		if bytes.Equal(orNull(raw), current) {
			committed = true
			return
		}
		werr = h.write(ctx, path, segs, v, raw)
		committed = werr == nil
	})
	if err != nil {
		return false, err
	}
	return committed, werr
}

// Get implements Store.
func (h *Hub) Get(ctx context.Context, path string) (Snapshot, error) {
	segs, err := Split(path)
	if err != nil {
		return Snapshot{}, err
	}
	var raw []byte
	if err := h.do(ctx, func() { raw = encode(lookup(h.root, segs)) }); err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Path: path, raw: raw}, nil
}

// write journals then applies a change and notifies overlapping subscribers.
// A change below a path that holds its own journal entry rewrites that entry
// with the ancestor's new value. Must run on the loop.
func (h *Hub) write(ctx context.Context, path string, segs []string, v any, raw []byte) error {
	if n := h.entries.ancestor(segs); n > 0 {
		return h.writeUnder(ctx, path, segs, n, v)
	}

	var err error
	if v == nil {
		err = h.journal.Delete(ctx, path)
	} else {
		err = h.journal.Put(ctx, path, raw)
	}
	if err != nil {
		return h.journalFailed(path, err)
	}

	assign(h.root, segs, v)
	if v == nil {
		h.entries.drop(segs)
	} else {
		h.entries.put(segs)
	}
	h.notify(path)
	return nil
}

// writeUnder handles a change at segs whose first n segments hold a journal entry.
func (h *Hub) writeUnder(ctx context.Context, path string, segs []string, n int, v any) error {
	entrySegs := segs[:n]
	entryPath := Join(entrySegs...)

	// Apply the change to a copy of the ancestor to learn what it becomes.
	current, _, err := decodeValue(encode(lookup(h.root, entrySegs)))
	if err != nil {
		return err
	}
	scratch := node{}
	if current != nil {
		scratch["v"] = current
	}
	assign(scratch, append([]string{"v"}, segs[n:]...), v)
	next := scratch["v"]

	if next == nil {
		err = h.journal.Delete(ctx, entryPath)
	} else {
		err = h.journal.Put(ctx, entryPath, encode(next))
	}
	if err != nil {
		return h.journalFailed(entryPath, err)
	}

	assign(h.root, segs, v)
	if next == nil {
		h.entries.drop(entrySegs)
	}
	h.notify(path)
	return nil
}

func (h *Hub) journalFailed(path string, err error) error {
	h.metrics.JournalError()
	h.log.Error().Err(err).Str("path", path).Msg("journal write failed")
	return fmt.Errorf("%w: %s: %v", ErrJournal, path, err)
}

func (h *Hub) notify(path string) {
	for _, s := range h.subs {
		if overlaps(s.path, path) {
			h.deliver(s)
		}
	}
}

func (h *Hub) deliver(s *subscription) {
	raw := encode(lookup(h.root, s.segs))
	if s.last != nil && bytes.Equal(raw, s.last) {
		return
	}
	s.last = raw
	s.push(Snapshot{Path: s.path, raw: raw})
}

func orNull(raw []byte) []byte {
	if raw == nil {
		return nullJSON
	}
	return raw
}
