package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iamhalje/argo-appsets/internal/argocd"
	"github.com/iamhalje/argo-appsets/internal/metrics"
	"github.com/iamhalje/argo-appsets/internal/models"

	"golang.org/x/sync/errgroup"
)

const (
	CompactPollInterval = 10 * time.Second
	ScreenPollInterval  = 20 * time.Second
)

type PollMode string

const (
	// PollSilent drops per-item failures with a debug log (background ticks).
	PollSilent PollMode = "silent"
	// PollVisible reports every per-item failure to the sink (manual refresh).
	PollVisible PollMode = "visible"
)

// Sink receives refresh results. The session implements it.
type Sink interface {
	TrackedKeys() []models.ItemKey
	ReplaceSnapshots(snaps map[models.ItemKey]models.ItemSnapshot)
	FetchFailed(key models.ItemKey, err error)
	Unauthorized(err error)
}

type FetchFailure struct {
	Key models.ItemKey
	Err error
}

type Poller struct {
	api    argocd.API
	sink   Sink
	logger *slog.Logger

	issued  atomic.Uint64
	mu      sync.Mutex
	applied uint64
}

func NewPoller(api argocd.API, sink Sink, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Poller{api: api, sink: sink, logger: logger}
}

// Refresh fetches every tracked item once and replaces the sink's item map with the successes.
// A round finishing after a newer round was applied is discarded.
func (p *Poller) Refresh(ctx context.Context, mode PollMode, refresh models.RefreshMode) error {
	round := p.issued.Add(1)
	keys := p.sink.TrackedKeys()

	snaps, failures := FetchSnapshots(ctx, p.api, keys, refresh)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	for _, f := range failures {
		if argocd.IsUnauthorized(f.Err) {
			p.sink.Unauthorized(f.Err)
			return fmt.Errorf("refresh: %w", argocd.ErrUnauthorized)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if round < p.applied {
		p.logger.Debug("discarding stale refresh round", slog.Uint64("round", round), slog.Uint64("applied", p.applied))
		return nil
	}
	p.applied = round

	for _, f := range failures {
		metrics.ObserveRefreshFailure(string(mode))
		if mode == PollVisible {
			p.sink.FetchFailed(f.Key, f.Err)
			continue
		}
		p.logger.Debug("refresh failed", slog.String("app", f.Key.String()), slog.Any("err", f.Err))
	}
	p.sink.ReplaceSnapshots(snaps)
	return nil
}

// Run refreshes silently right away and then on every tick until ctx is done
// or the session is no longer authorized. after, when set, is called once per
// completed round.
func (p *Poller) Run(ctx context.Context, interval time.Duration, after func()) error {
	if interval <= 0 {
		interval = ScreenPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		err := p.Refresh(ctx, PollSilent, models.RefreshNone)
		switch {
		case errors.Is(err, argocd.ErrUnauthorized):
			return err
		case ctx.Err() != nil:
			return nil
		case err == nil && after != nil:
			after()
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// FetchSnapshots fetches every key concurrently. The resource tree is only fetched
// while the rollout is in progress; a failing tree fetch fails the item.
func FetchSnapshots(ctx context.Context, api argocd.API, keys []models.ItemKey, refresh models.RefreshMode) (map[models.ItemKey]models.ItemSnapshot, []FetchFailure) {
	type result struct {
		key  models.ItemKey
		snap models.ItemSnapshot
		err  error
	}
	resCh := make(chan result, len(keys))

	var g errgroup.Group
	for _, k := range keys {
		g.Go(func() error {
			app, err := api.GetApplication(ctx, k.Ref(), refresh)
			if err != nil {
				resCh <- result{key: k, err: err}
				return nil
			}
			snap := models.ItemSnapshot{App: app}
			if NeedsResourceTree(app) {
				tree, err := api.GetResourceTree(ctx, k.Ref())
				if err != nil {
					resCh <- result{key: k, err: err}
					return nil
				}
				snap.Tree = tree
			}
			resCh <- result{key: k, snap: snap}
			return nil
		})
	}
	_ = g.Wait()
	close(resCh)

	snaps := make(map[models.ItemKey]models.ItemSnapshot, len(keys))
	var failures []FetchFailure
	for r := range resCh {
		if r.err != nil {
			failures = append(failures, FetchFailure{Key: r.key, Err: r.err})
			continue
		}
		snaps[r.key] = r.snap
	}
	slices.SortFunc(failures, func(a, b FetchFailure) int { return CompareKeys(a.Key, b.Key) })
	return snaps, failures
}
