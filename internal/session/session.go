package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/iamhalje/argo-appsets/internal/argocd"
	"github.com/iamhalje/argo-appsets/internal/models"
	"github.com/iamhalje/argo-appsets/internal/services"
	"github.com/iamhalje/argo-appsets/internal/store"
)

// NotificationTTL is how long non-sticky notifications stay visible.
const NotificationTTL = 5 * time.Second

var (
	ErrNoSelection = errors.New("no applications selected")
	ErrCancelled   = errors.New("operation cancelled")
)

// Confirmer asks the user once per batch. A nil Confirmer declines.
type Confirmer func(prompt string) bool

// Confirmed accepts without asking, for callers that confirmed up front.
func Confirmed(string) bool { return true }

// Refresher re-fetches tracked items.
type Refresher interface {
	Refresh(ctx context.Context, mode services.PollMode, refresh models.RefreshMode) error
}

type Config struct {
	API      argocd.API
	Parallel int
	Prefs    *store.Preferences
	Logger   *slog.Logger
	// OnUnauthorized is called once per authorization failure instead of notifying.
	OnUnauthorized func(error)
	// Refresher overrides the poller used for consistency refreshes.
	Refresher Refresher
	Now       func() time.Time
}

// Session owns the view state of one ApplicationSet: tracked items, their snapshots,
// the selection and notifications. All methods are safe for concurrent use.
type Session struct {
	mu        sync.Mutex
	set       models.ApplicationSet
	tracked   []models.ItemKey
	snapshots map[models.ItemKey]models.ItemSnapshot
	selection *services.Selection
	notes     []models.Notification

	api            argocd.API
	bulk           *services.BulkService
	poller         *services.Poller
	refresher      Refresher
	prefs          *store.Preferences
	logger         *slog.Logger
	onUnauthorized func(error)
	now            func() time.Time
}

func New(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	prefs := cfg.Prefs
	if prefs == nil {
		prefs = store.NewPreferences(store.NewMemory())
	}
	s := &Session{
		snapshots:      map[models.ItemKey]models.ItemSnapshot{},
		selection:      services.NewSelection(),
		api:            cfg.API,
		bulk:           services.NewBulkService(cfg.API, cfg.Parallel, logger),
		prefs:          prefs,
		logger:         logger,
		onUnauthorized: cfg.OnUnauthorized,
		now:            cfg.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.poller = services.NewPoller(cfg.API, s, logger)
	s.refresher = cfg.Refresher
	if s.refresher == nil {
		s.refresher = s.poller
	}
	return s
}

// Watch polls the tracked items silently every interval and calls after each
// completed round. It returns nil once ctx is done and an ErrUnauthorized error
// when the token is rejected.
func (s *Session) Watch(ctx context.Context, interval time.Duration, after func()) error {
	return s.poller.Run(ctx, interval, after)
}

func (s *Session) Preferences() *store.Preferences { return s.prefs }

// SetParent switches the tracked items to the children of set.
// Snapshots of items the set no longer lists are dropped; the selection is kept.
func (s *Session) SetParent(set models.ApplicationSet) {
	keys := services.TrackedKeys(set)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.set = set
	s.tracked = keys
	next := make(map[models.ItemKey]models.ItemSnapshot, len(keys))
	for _, k := range keys {
		if snap, ok := s.snapshots[k]; ok {
			next[k] = snap
		}
	}
	s.snapshots = next
}

func (s *Session) Parent() models.ApplicationSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set
}

func (s *Session) TrackedKeys() []models.ItemKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ItemKey(nil), s.tracked...)
}

func (s *Session) ReplaceSnapshots(snaps map[models.ItemKey]models.ItemSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = snaps
}

func (s *Session) FetchFailed(key models.ItemKey, err error) {
	s.Notify(fmt.Sprintf("Failed to refresh application %s: %v", key.Name, err), models.NotifyError, false)
}

func (s *Session) Unauthorized(err error) {
	s.logger.Warn("argocd session is not authorized", slog.Any("err", err))
	if s.onUnauthorized != nil {
		s.onUnauthorized(err)
	}
}

// Refresh re-fetches every tracked item once.
func (s *Session) Refresh(ctx context.Context, mode services.PollMode, refresh models.RefreshMode) error {
	return s.refresher.Refresh(ctx, mode, refresh)
}

// Snapshot returns the current snapshot of key.
func (s *Session) Snapshot(key models.ItemKey) (models.ItemSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[key]
	return snap, ok
}

// Snapshots returns snapshots in tracked order, skipping items without one.
func (s *Session) Snapshots() []models.ItemSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ItemSnapshot, 0, len(s.snapshots))
	for _, k := range s.tracked {
		if snap, ok := s.snapshots[k]; ok {
			out = append(out, snap)
		}
	}
	return out
}

func (s *Session) Apps() []models.Application {
	snaps := s.Snapshots()
	out := make([]models.Application, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, snap.App)
	}
	return out
}

func (s *Session) Summary() services.Summary {
	return services.Summarize(services.PairsFromSnapshots(s.Snapshots()))
}

func (s *Session) RolloutSummary() services.RolloutSummary {
	return services.SummarizeRollouts(s.Snapshots())
}

func (s *Session) LabelGroups() []services.LabelGroup {
	return services.GroupByLabel(s.Snapshots())
}

func (s *Session) History() []models.RevisionEntry {
	return services.GroupHistory(s.Apps())
}

func (s *Session) SelectAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection.SelectAll(s.tracked)
}

func (s *Session) SelectNone() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection.SelectNone()
}

// SelectBy replaces the selection with the items whose current snapshot matches pred.
func (s *Session) SelectBy(pred services.Predicate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection.SelectBy(s.tracked, s.snapshots, pred)
}

func (s *Session) Toggle(key models.ItemKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection.Toggle(key)
}

func (s *Session) IsSelected(key models.ItemKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.Has(key)
}

func (s *Session) Selected() []models.ItemKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.Keys()
}

// SelectedApps returns applications of selected items that currently have a snapshot.
func (s *Session) SelectedApps() []models.Application {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Application
	for _, k := range s.selection.Keys() {
		if snap, ok := s.snapshots[k]; ok {
			out = append(out, snap.App)
		}
	}
	return out
}

func (s *Session) Notify(msg string, kind models.NotificationKind, sticky bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = append(s.notes, models.Notification{Message: msg, Kind: kind, Sticky: sticky, CreatedAt: s.now()})
}

// Notifications drops expired entries and returns the rest, oldest first.
func (s *Session) Notifications() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	kept := s.notes[:0]
	for _, n := range s.notes {
		if !n.Expired(now, NotificationTTL) {
			kept = append(kept, n)
		}
	}
	s.notes = kept
	return append([]models.Notification(nil), kept...)
}

// DismissNotifications clears every notification, sticky ones included.
func (s *Session) DismissNotifications() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = nil
}

// RunBulk applies op to the current selection.
//
// Confirmation comes first; declining returns ErrCancelled with no calls made.
// Any failed target leaves a sticky notification naming it and keeps the selection.
// Full success leaves an expiring notification, clears the selection and refreshes once.
func (s *Session) RunBulk(ctx context.Context, op services.Operation, confirm Confirmer, events chan<- models.ProgressEvent) (models.BulkSummary, error) {
	keys := s.Selected()
	if len(keys) == 0 {
		return models.BulkSummary{}, ErrNoSelection
	}
	if op.RequiresConfirmation() && (confirm == nil || !confirm(op.Prompt(len(keys)))) {
		return models.BulkSummary{}, ErrCancelled
	}

	s.mu.Lock()
	targets := services.TargetsForSelection(keys, s.snapshots)
	s.mu.Unlock()

	results := s.bulk.Run(ctx, targets, op, events)
	summary := services.SummarizeResults(results)

	for _, r := range summary.Failed {
		if argocd.IsUnauthorized(r.Err) {
			s.Unauthorized(r.Err)
			return summary, fmt.Errorf("%s: %w", op.Name(), argocd.ErrUnauthorized)
		}
	}

	if len(summary.Failed) > 0 {
		s.Notify(fmt.Sprintf("Successfully triggered %s for %d applications. Failed: %s",
			op.Name(), summary.SuccessCount, strings.Join(summary.FailedNames(), ", ")), models.NotifyError, true)
		return summary, nil
	}

	s.Notify(fmt.Sprintf("Successfully triggered %s for %d applications", op.Name(), summary.SuccessCount), models.NotifySuccess, false)
	s.SelectNone()
	if err := s.Refresh(ctx, services.PollSilent, models.RefreshNone); err != nil {
		return summary, err
	}
	return summary, nil
}
