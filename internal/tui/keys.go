package tui

import (
	"log/slog"
	"strings"

	"github.com/iamhalje/argo-appsets/internal/models"
	"github.com/iamhalje/argo-appsets/internal/services"

	tea "github.com/charmbracelet/bubbletea"
)

func (m *model) onKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.cancel()
		return m, tea.Quit
	}

	switch m.step {
	case stepLoading:
		if msg.String() == "q" || msg.String() == "esc" {
			m.cancel()
			return m, tea.Quit
		}
		return m, nil
	case stepError:
		if msg.String() == "q" || msg.String() == "esc" || msg.String() == "enter" {
			m.cancel()
			return m, tea.Quit
		}
		return m, nil
	case stepSets:
		return m.onKeySets(msg)
	case stepSet:
		return m.onKeySet(msg)
	case stepLabels:
		return m.onKeyLabels(msg)
	case stepSyncOptions:
		return m.onKeySyncOptions(msg)
	case stepRollback:
		return m.onKeyRollback(msg)
	case stepConfirm:
		return m.onKeyConfirm(msg)
	case stepRunning:
		// the batch always runs to completion, only quitting is allowed.
		return m, nil
	default:
		return m, nil
	}
}

// moveCursor handles the list navigation keys shared by every list step.
func (m *model) moveCursor(key string) bool {
	total := m.listLen()
	h := m.listHeight()
	switch key {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < total-1 {
			m.cursor++
		}
	case "pgup":
		m.cursor = clamp(m.cursor-h, 0, max(0, total-1))
	case "pgdown":
		m.cursor = clamp(m.cursor+h, 0, max(0, total-1))
	case "home", "g":
		m.cursor = 0
	case "end", "G":
		m.cursor = max(0, total-1)
	default:
		return false
	}
	m.offset = ensureOffset(m.offset, m.cursor, h, total)
	return true
}

func (m *model) onKeySets(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.filtering {
		switch msg.String() {
		case "esc":
			m.filtering = false
			m.filter.SetValue("")
			m.filter.Blur()
			m.applySetFilter()
			return m, nil
		case "enter":
			m.filtering = false
			m.filter.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		m.applySetFilter()
		return m, cmd
	}

	if m.moveCursor(msg.String()) {
		return m, nil
	}

	switch msg.String() {
	case "q", "esc":
		m.cancel()
		return m, tea.Quit
	case "/", "ctrl+f":
		m.filtering = true
		m.filter.Focus()
		return m, nil
	case "r":
		m.lastPoll = m.lastPoll.Add(-services.CompactPollInterval)
		return m, m.loadSetsCmd()
	case "f":
		if m.cursor >= len(m.visibleSets) {
			return m, nil
		}
		name := m.visibleSets[m.cursor].Name
		now, err := m.sess.Preferences().ToggleFavorite(m.rootCtx, name)
		if err != nil {
			m.logger.Warn("toggle favorite failed", slog.String("set", name), slog.Any("err", err))
			return m, nil
		}
		if now {
			m.favorites.Insert(name)
		} else {
			m.favorites.Delete(name)
		}
		m.applySetFilter()
		return m, nil
	case "F":
		m.favoritesOnly = !m.favoritesOnly
		if err := m.sess.Preferences().SetShowFavoritesOnly(m.rootCtx, m.favoritesOnly); err != nil {
			m.logger.Warn("saving favorites toggle failed", slog.Any("err", err))
		}
		m.applySetFilter()
		return m, nil
	case "enter":
		if m.cursor >= len(m.visibleSets) {
			return m, nil
		}
		return m, m.openSet(m.visibleSets[m.cursor])
	}
	return m, nil
}

func (m *model) onKeySet(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.moveCursor(msg.String()) {
		return m, nil
	}
	m.setCursor = m.cursor

	switch msg.String() {
	case "q":
		m.cancel()
		return m, tea.Quit
	case "esc", "backspace":
		m.step = stepSets
		m.cursor, m.offset = 0, 0
		m.applySetFilter()
		return m, m.loadSetsCmd()
	case " ", "x":
		if k, ok := m.currentKey(); ok {
			m.sess.Toggle(k)
		}
		return m, nil
	case "a":
		m.sess.SelectAll()
		return m, nil
	case "n":
		m.sess.SelectNone()
		return m, nil
	case "o":
		m.sess.SelectBy(services.OutOfSync)
		return m, nil
	case "p":
		m.sess.SelectBy(services.RolloutSuspended)
		return m, nil
	case "d":
		m.sess.SelectBy(services.RolloutDegraded)
		return m, nil
	case "l":
		m.labelChoices = nil
		for _, g := range m.sess.LabelGroups() {
			for _, v := range g.Values {
				m.labelChoices = append(m.labelChoices, labelChoice{key: g.Key, value: v})
			}
		}
		m.step = stepLabels
		m.cursor, m.offset = 0, 0
		return m, nil
	case "c":
		m.sess.DismissNotifications()
		return m, nil
	case "r":
		if m.refreshing {
			return m, nil
		}
		return m, m.refreshCmd(services.PollVisible, models.RefreshNormal)
	case "s":
		m.syncOpts = services.DefaultSyncOptions(m.sess.SelectedApps())
		m.revision.SetValue(m.syncOpts.Revision)
		m.revision.CursorEnd()
		m.revision.Focus()
		m.step = stepSyncOptions
		return m, nil
	case "b":
		m.revisions = services.RecentRevisions(services.GroupHistory(m.sess.SelectedApps()), services.DefaultRecentRevisions)
		m.step = stepRollback
		m.cursor, m.offset = 0, 0
		return m, nil
	case "R":
		return m.startBulk(services.RolloutOperation{Action: models.ActionResume})
	case "A":
		return m.startBulk(services.RolloutOperation{Action: models.ActionAbort})
	case "P":
		return m.startBulk(services.RolloutOperation{Action: models.ActionPromoteFull})
	case "T":
		return m.startBulk(services.RolloutOperation{Action: models.ActionRetry})
	case "X":
		return m.startBulk(services.RestartOperation{})
	}
	return m, nil
}

func (m *model) onKeyLabels(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.moveCursor(msg.String()) {
		return m, nil
	}
	switch msg.String() {
	case "esc", "q":
		m.backToSet()
		return m, nil
	case "enter", " ":
		if m.cursor < len(m.labelChoices) {
			c := m.labelChoices[m.cursor]
			m.sess.SelectBy(services.HasLabel(c.key, c.value))
		}
		m.backToSet()
		return m, nil
	}
	return m, nil
}

func (m *model) onKeySyncOptions(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.revision.Blur()
		m.backToSet()
		return m, nil
	case "ctrl+p":
		m.syncOpts.Prune = !m.syncOpts.Prune
		return m, nil
	case "ctrl+d":
		m.syncOpts.DryRun = !m.syncOpts.DryRun
		return m, nil
	case "enter":
		m.revision.Blur()
		m.syncOpts.Revision = strings.TrimSpace(m.revision.Value())
		return m.startBulk(services.SyncOperation{Options: m.syncOpts})
	}
	var cmd tea.Cmd
	m.revision, cmd = m.revision.Update(msg)
	return m, cmd
}

func (m *model) onKeyRollback(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.moveCursor(msg.String()) {
		return m, nil
	}
	switch msg.String() {
	case "esc", "q":
		m.backToSet()
		return m, nil
	case "enter":
		if m.cursor >= len(m.revisions) {
			return m, nil
		}
		return m.startBulk(services.RollbackOperation{Revision: m.revisions[m.cursor].Revision})
	}
	return m, nil
}

func (m *model) onKeyConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y", "enter":
		return m.runBulk()
	case "n", "N", "esc", "q":
		// declined: nothing was called, nothing changes.
		m.logger.Debug("bulk run declined", slog.String("operation", m.pending.Name()))
		m.pending = nil
		m.backToSet()
		return m, nil
	}
	return m, nil
}

func (m *model) backToSet() {
	m.step = stepSet
	m.cursor = clamp(m.setCursor, 0, max(0, len(m.keys)-1))
	m.offset = ensureOffset(0, m.cursor, m.listHeight(), len(m.keys))
}
