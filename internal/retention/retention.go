// Package retention removes conversations that have been idle longer than a
// configured age, on a cron schedule.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/etensports/chat-server/internal/core"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Sweeper deletes conversations whose newest message is older than MaxAge.
type Sweeper struct {
	convs  *core.Conversations
	maxAge time.Duration
	now    func() time.Time
	log    *zerolog.Logger
}

// NewSweeper creates a sweeper. A nil now uses time.Now.
func NewSweeper(convs *core.Conversations, maxAge time.Duration, now func() time.Time, logger *zerolog.Logger) *Sweeper {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Sweeper{convs: convs, maxAge: maxAge, now: now, log: logger}
}

// Sweep runs one pass and returns how many conversations were removed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	all, err := s.convs.ListAll(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := s.now().Add(-s.maxAge)
	removed := 0
	for id, msgs := range all {
		if len(msgs) == 0 || msgs[len(msgs)-1].Timestamp >= cutoff.UnixMilli() {
			continue
		}
		// The listing may be stale by now; ExpireIdle checks the age again.
		ok, err := s.convs.ExpireIdle(ctx, id, cutoff)
		if err != nil {
			return removed, fmt.Errorf("expire %s: %w", id, err)
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}

// Start schedules Sweep on expr until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context, expr string) error {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return fmt.Errorf("parse retention cron %q: %w", expr, err)
	}

	c := cron.New(cron.WithParser(cronParser))
	c.Schedule(sched, cron.FuncJob(func() {
		n, err := s.Sweep(ctx)
		if err != nil {
			s.log.Error().Err(err).Msg("retention sweep failed")
			return
		}
		s.log.Info().Int("removed", n).Dur("max_age", s.maxAge).Msg("retention sweep finished")
	}))
	c.Start()
	s.log.Info().Str("cron", expr).Msg("retention scheduled")

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return nil
}
