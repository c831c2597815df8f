package tui

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/iamhalje/argo-appsets/internal/argocd"
	"github.com/iamhalje/argo-appsets/internal/models"
	"github.com/iamhalje/argo-appsets/internal/services"
	"github.com/iamhalje/argo-appsets/internal/session"
	"github.com/iamhalje/argo-appsets/internal/store"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"k8s.io/apimachinery/pkg/util/sets"
)

type Options struct {
	Parallel int
	// PollInterval is used on the set screen; the set list polls every services.CompactPollInterval.
	PollInterval time.Duration
	// InitialSet opens the set screen right away when not empty.
	InitialSet string
}

// Run starts the dashboard and blocks until the user quits.
// It returns argocd.ErrUnauthorized when the session must log in again.
func Run(ctx context.Context, logger *slog.Logger, api argocd.API, prefs *store.Preferences, opts Options) error {
	m := newModel(ctx, logger, api, prefs, opts)

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return err
	}
	if m.unauthorized.Load() {
		return argocd.ErrUnauthorized
	}
	return nil
}

type step int

const (
	stepLoading step = iota
	stepSets
	stepSet
	stepLabels
	stepSyncOptions
	stepRollback
	stepConfirm
	stepRunning
	stepError
)

type labelChoice struct {
	key   string
	value string
}

type model struct {
	rootCtx context.Context
	cancel  context.CancelFunc
	logger  *slog.Logger

	api      argocd.API
	discover *services.DiscoveryService
	sess     *session.Session
	cli      Options

	step step
	err  error

	unauthorized atomic.Bool

	cursor    int
	offset    int
	setCursor int
	width     int
	height    int

	allSets       []models.ApplicationSet
	visibleSets   []models.ApplicationSet
	favorites     sets.Set[string]
	favoritesOnly bool
	filtering     bool
	filter        textinput.Model

	keys       []models.ItemKey
	refreshing bool
	lastPoll   time.Time

	labelChoices []labelChoice
	revisions    []models.RevisionEntry
	revision     textinput.Model
	syncOpts     models.SyncOptions

	pending     services.Operation
	returnStep  step
	spin        spinner.Model
	eventsCh    chan models.ProgressEvent
	doneCh      chan bulkDoneMsg
	progress    models.ProgressEvent
	statuses    map[models.ItemKey]models.TaskStatus
	runStarted  time.Time
	lastSummary *models.BulkSummary
}

func newModel(ctx context.Context, logger *slog.Logger, api argocd.API, prefs *store.Preferences, opts Options) *model {
	runCtx, cancel := context.WithCancel(ctx)

	ti := textinput.New()
	ti.Prompt = "/ "
	ti.Placeholder = "type to filter sets (Esc clears)"
	ti.CharLimit = 64
	ti.Width = 40
	ti.Blur()

	rev := textinput.New()
	rev.Prompt = "revision: "
	rev.CharLimit = 128
	rev.Width = 48

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	if opts.PollInterval <= 0 {
		opts.PollInterval = services.ScreenPollInterval
	}

	m := &model{
		rootCtx:   runCtx,
		cancel:    cancel,
		logger:    logger,
		api:       api,
		discover:  services.NewDiscoveryService(api),
		cli:       opts,
		step:      stepLoading,
		favorites: sets.New[string](),
		filter:    ti,
		revision:  rev,
		spin:      sp,
		statuses:  map[models.ItemKey]models.TaskStatus{},
	}
	m.sess = session.New(session.Config{
		API:      api,
		Parallel: opts.Parallel,
		Prefs:    prefs,
		Logger:   logger,
		OnUnauthorized: func(error) {
			m.unauthorized.Store(true)
		},
	})
	return m
}

type setsLoadedMsg struct {
	sets          []models.ApplicationSet
	favorites     sets.Set[string]
	favoritesOnly bool
	err           error
}

type refreshDoneMsg struct {
	err error
}

type tickMsg time.Time

type progressMsg models.ProgressEvent
type eventsClosedMsg struct{}
type bulkDoneMsg struct {
	summary models.BulkSummary
	err     error
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(m.loadSetsCmd(), tick(), m.spin.Tick)
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *model) loadSetsCmd() tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		all, err := m.discover.ListSets(m.rootCtx)
		if err != nil {
			m.logger.Debug("listing applicationsets failed", slog.Any("err", err))
			return setsLoadedMsg{err: err}
		}
		favs, err := m.sess.Preferences().Favorites(m.rootCtx)
		if err != nil {
			m.logger.Warn("loading favorites failed", slog.Any("err", err))
		}
		only, err := m.sess.Preferences().ShowFavoritesOnly(m.rootCtx)
		if err != nil {
			m.logger.Warn("loading favorites toggle failed", slog.Any("err", err))
		}
		m.logger.Debug("applicationsets listed", slog.Duration("took", time.Since(start)), slog.Int("sets", len(all)))
		return setsLoadedMsg{sets: all, favorites: favs, favoritesOnly: only}
	}
}

func (m *model) refreshCmd(mode services.PollMode, refresh models.RefreshMode) tea.Cmd {
	m.refreshing = true
	m.lastPoll = time.Now()
	return func() tea.Msg {
		start := time.Now()
		err := m.sess.Refresh(m.rootCtx, mode, refresh)
		m.logger.Debug("refresh finished",
			slog.String("set", m.sess.Parent().Name),
			slog.String("mode", string(mode)),
			slog.Duration("took", time.Since(start)),
			slog.Any("err", err),
		)
		return refreshDoneMsg{err: err}
	}
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.offset = ensureOffset(m.offset, m.cursor, m.listHeight(), m.listLen())
		return m, nil
	case tea.KeyMsg:
		return m.onKey(msg)
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	case tickMsg:
		return m, tea.Batch(tick(), m.pollCmd())
	case setsLoadedMsg:
		if msg.err != nil {
			if errors.Is(msg.err, argocd.ErrUnauthorized) || argocd.IsUnauthorized(msg.err) {
				m.unauthorized.Store(true)
				m.cancel()
				return m, tea.Quit
			}
			if m.step == stepLoading {
				m.step = stepError
				m.err = msg.err
			}
			return m, nil
		}
		m.lastPoll = time.Now()
		m.allSets = msg.sets
		m.favorites = msg.favorites
		m.favoritesOnly = msg.favoritesOnly
		m.applySetFilter()
		if m.step == stepLoading {
			m.step = stepSets
			m.cursor, m.offset = 0, 0
			if m.cli.InitialSet != "" {
				if i := slices.IndexFunc(m.allSets, func(s models.ApplicationSet) bool { return s.Name == m.cli.InitialSet }); i >= 0 {
					return m, m.openSet(m.allSets[i])
				}
			}
		}
		if m.inSetScreen() {
			// keep tracked items in sync with the parent's resource list.
			if i := slices.IndexFunc(m.allSets, func(s models.ApplicationSet) bool { return s.Name == m.sess.Parent().Name }); i >= 0 {
				m.sess.SetParent(m.allSets[i])
				m.keys = m.sess.TrackedKeys()
			}
		}
		return m, nil
	case refreshDoneMsg:
		m.refreshing = false
		if m.unauthorized.Load() {
			m.cancel()
			return m, tea.Quit
		}
		m.cursor = clamp(m.cursor, 0, max(0, m.listLen()-1))
		return m, nil
	case progressMsg:
		ev := models.ProgressEvent(msg)
		m.progress = ev
		m.statuses[ev.Key] = ev.Phase
		return m, waitForEvent(m.eventsCh)
	case eventsClosedMsg:
		return m, nil
	case bulkDoneMsg:
		m.step = stepSet
		m.pending = nil
		m.lastPoll = time.Now()
		if m.unauthorized.Load() {
			m.cancel()
			return m, tea.Quit
		}
		if msg.err != nil && !errors.Is(msg.err, session.ErrCancelled) {
			m.logger.Debug("bulk run ended with error", slog.Any("err", msg.err))
		}
		summary := msg.summary
		m.lastSummary = &summary
		return m, nil
	}
	return m, nil
}

// pollCmd refreshes the current view when its poll interval elapsed.
func (m *model) pollCmd() tea.Cmd {
	if m.refreshing || m.step == stepLoading || m.step == stepError || m.step == stepRunning {
		return nil
	}
	if m.inSetScreen() {
		if time.Since(m.lastPoll) < m.cli.PollInterval {
			return nil
		}
		return m.refreshCmd(services.PollSilent, models.RefreshNone)
	}
	if time.Since(m.lastPoll) < services.CompactPollInterval {
		return nil
	}
	m.lastPoll = time.Now()
	return m.loadSetsCmd()
}

func (m *model) inSetScreen() bool {
	switch m.step {
	case stepSet, stepLabels, stepSyncOptions, stepRollback, stepConfirm, stepRunning:
		return true
	}
	return false
}

func (m *model) openSet(set models.ApplicationSet) tea.Cmd {
	m.sess.SetParent(set)
	m.sess.SelectNone()
	m.keys = m.sess.TrackedKeys()
	m.statuses = map[models.ItemKey]models.TaskStatus{}
	m.lastSummary = nil
	m.step = stepSet
	m.cursor, m.offset = 0, 0
	m.logger.Debug("opening applicationset", slog.String("set", set.Name), slog.Int("apps", len(m.keys)))
	return m.refreshCmd(services.PollVisible, models.RefreshNone)
}

// startBulk asks for confirmation first when op requires it.
func (m *model) startBulk(op services.Operation) (tea.Model, tea.Cmd) {
	if len(m.sess.Selected()) == 0 {
		m.sess.Notify(session.ErrNoSelection.Error(), models.NotifyError, false)
		m.step = stepSet
		return m, nil
	}
	m.pending = op
	if op.RequiresConfirmation() {
		m.returnStep = m.step
		m.step = stepConfirm
		return m, nil
	}
	return m.runBulk()
}

func (m *model) runBulk() (tea.Model, tea.Cmd) {
	op := m.pending
	m.step = stepRunning
	m.statuses = map[models.ItemKey]models.TaskStatus{}
	for _, k := range m.sess.Selected() {
		m.statuses[k] = models.TaskPending
	}
	m.progress = models.ProgressEvent{Operation: op.Name(), Total: len(m.statuses)}
	m.eventsCh = make(chan models.ProgressEvent, 256)
	m.doneCh = make(chan bulkDoneMsg, 1)
	m.runStarted = time.Now()

	m.logger.Debug("starting bulk run", slog.String("operation", op.Name()), slog.Int("targets", len(m.statuses)), slog.Int("parallel", m.cli.Parallel))

	events, done := m.eventsCh, m.doneCh
	go func() {
		start := time.Now()
		// confirmation already happened in the dialog.
		summary, err := m.sess.RunBulk(m.rootCtx, op, session.Confirmed, events)
		close(events)
		m.logger.Debug("bulk run finished",
			slog.String("operation", op.Name()),
			slog.Duration("took", time.Since(start)),
			slog.Int("success", summary.SuccessCount),
			slog.Int("failed", len(summary.Failed)),
			slog.Any("err", err),
		)
		done <- bulkDoneMsg{summary: summary, err: err}
		close(done)
	}()

	return m, tea.Batch(waitForEvent(events), waitForDone(done))
}

func waitForEvent(ch <-chan models.ProgressEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return progressMsg(ev)
	}
}

func waitForDone(ch <-chan bulkDoneMsg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return bulkDoneMsg{}
		}
		return msg
	}
}

func (m *model) applySetFilter() {
	var prev string
	if m.step == stepSets && m.cursor >= 0 && m.cursor < len(m.visibleSets) {
		prev = m.visibleSets[m.cursor].Name
	}
	m.visibleSets = services.FilterSets(m.allSets, m.filter.Value(), m.favoritesOnly, m.favorites)
	if prev != "" {
		if i := slices.IndexFunc(m.visibleSets, func(s models.ApplicationSet) bool { return s.Name == prev }); i >= 0 {
			m.cursor = i
		}
	}
	if m.step == stepSets {
		m.cursor = clamp(m.cursor, 0, max(0, len(m.visibleSets)-1))
		m.offset = ensureOffset(m.offset, m.cursor, m.listHeight(), len(m.visibleSets))
	}
}

func (m *model) currentKey() (models.ItemKey, bool) {
	if m.cursor < 0 || m.cursor >= len(m.keys) {
		return models.ItemKey{}, false
	}
	return m.keys[m.cursor], true
}

func (m *model) listLen() int {
	switch m.step {
	case stepSets:
		return len(m.visibleSets)
	case stepSet:
		return len(m.keys)
	case stepLabels:
		return len(m.labelChoices)
	case stepRollback:
		return len(m.revisions)
	}
	return 0
}

// listHeight is the number of list rows that fit under the header and above the footer.
func (m *model) listHeight() int {
	if m.height <= 0 {
		return 20
	}
	reserved := 8
	if m.step == stepSet {
		reserved = 12
	}
	return max(3, m.height-reserved)
}
