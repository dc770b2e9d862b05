package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// coalesce runs fn once per key across concurrent callers in this process
// and, through the locker, across replicas. The shared run is detached from
// ctx: it survives the caller that started it for RefreshGrace, then is
// cancelled. A caller whose own ctx ends stops waiting immediately.
func (s *Service) coalesce(ctx context.Context, key string, fn func(context.Context) error) error {
	ch := s.group.DoChan(key, func() (any, error) {
		rctx, cancel := graceContext(ctx, s.opts.RefreshGrace)
		defer cancel()
		return nil, s.locked(rctx, key, fn)
	})

	select {
	case res := <-ch:
		if res.Shared {
			log.Debug().Str("key", key).Msg("Joined in-flight refresh")
		}
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// errScrapedElsewhere is returned by coalesce when another replica held the
// lock and this one only waited for it. The holder's outcome is not shared:
// callers re-read the store and treat a row that is still missing as an
// upstream failure, not a confirmed 404.
var errScrapedElsewhere = errors.New("scraped by another replica")

// locked runs fn under the cross-replica lock for key. A replica that loses
// the race waits for the holder and returns errScrapedElsewhere.
func (s *Service) locked(ctx context.Context, key string, fn func(context.Context) error) error {
	unlock, acquired, err := s.locker.TryLock(ctx, key, s.opts.LockTTL)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Refresh lock unavailable, refreshing without it")
		return fn(ctx)
	}
	if !acquired {
		log.Debug().Str("key", key).Msg("Refresh held by another replica, waiting")
		if err := s.locker.Wait(ctx, key); err != nil {
			return err
		}
		return errScrapedElsewhere
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to release refresh lock")
		}
	}()
	return fn(ctx)
}

// graceContext returns a context carrying parent's values that is cancelled
// grace after parent is done, or when the returned cancel is called.
func graceContext(parent context.Context, grace time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	stop := context.AfterFunc(parent, func() {
		time.AfterFunc(grace, cancel)
	})
	return ctx, func() {
		stop()
		cancel()
	}
}
