package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/iamhalje/argo-appsets/internal/models"
	"github.com/iamhalje/argo-appsets/internal/services"

	"github.com/charmbracelet/lipgloss"
)

type uiStyles struct {
	header lipgloss.Style
	hint   lipgloss.Style
	error  lipgloss.Style
	ok     lipgloss.Style
	warn   lipgloss.Style
	dim    lipgloss.Style
	cursor lipgloss.Style
}

func styles() uiStyles {
	return uiStyles{
		header: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		hint:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		error:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		ok:     lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		warn:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		dim:    lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		cursor: lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true),
	}
}

func (m *model) View() string {
	theme := styles()
	switch m.step {
	case stepLoading:
		return theme.header.Render("ApplicationSets") + "\n\n" + m.spin.View() + " Loading...\n\n" + theme.hint.Render("q to quit")
	case stepError:
		return theme.error.Render("Error") + "\n\n" + fmt.Sprint(m.err) + "\n\n" + theme.hint.Render("Enter/q to quit")
	case stepSets:
		return m.viewSets(theme)
	case stepSet:
		return m.viewSet(theme)
	case stepLabels:
		return m.viewLabels(theme)
	case stepSyncOptions:
		return m.viewSyncOptions(theme)
	case stepRollback:
		return m.viewRollback(theme)
	case stepConfirm:
		return m.viewConfirm(theme)
	case stepRunning:
		return m.viewRunning(theme)
	default:
		return "unknown state"
	}
}

func (m *model) viewSets(s uiStyles) string {
	var b strings.Builder
	b.WriteString(fitLine(m.width, s.header.Render("ApplicationSets")))
	b.WriteString("\n")
	b.WriteString(fitLine(m.width, s.hint.Render("↑/↓ move | Enter open | f favorite | F favorites only | / filter | r refresh | q quit")))
	b.WriteString("\n")
	var filterLine string
	switch {
	case m.filtering:
		filterLine = m.filter.View()
	case m.filter.Value() != "":
		filterLine = s.dim.Render(fmt.Sprintf("Filter: %s (press / to edit, Esc to clear)", m.filter.Value()))
	}
	if m.favoritesOnly {
		filterLine += " " + s.warn.Render("[favorites only]")
	}
	b.WriteString(fitLine(m.width, filterLine))
	b.WriteString("\n\n")

	if len(m.visibleSets) == 0 {
		b.WriteString(s.dim.Render("No applicationsets match."))
		b.WriteString("\n")
		return b.String()
	}

	start, end := visibleRange(m.offset, m.listHeight(), len(m.visibleSets))
	for i := start; i < end; i++ {
		set := m.visibleSets[i]
		sum := services.Summarize(services.PairsFromResources(set.Resources))

		star := " "
		if m.favorites.Has(set.Name) {
			star = s.warn.Render("★")
		}
		prefix := "  "
		name := fmt.Sprintf("%-40s", truncate(set.Name, 40))
		if i == m.cursor {
			prefix = s.cursor.Render("> ")
			name = s.cursor.Render(name)
		}
		line := fmt.Sprintf("%s%s %s %s %s  %s",
			prefix, star, tileDescriptor(sum.Tile).glyph(), name, renderHealthCounts(sum), renderSyncCounts(sum))
		b.WriteString(fitLine(m.width, line))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(s.dim.Render(fmt.Sprintf("%d/%d sets", len(m.visibleSets), len(m.allSets))))
	return b.String()
}

func (m *model) viewSet(s uiStyles) string {
	set := m.sess.Parent()
	snaps := m.sess.Snapshots()
	sum := services.Summarize(services.PairsFromSnapshots(snaps))
	rs := m.sess.RolloutSummary()

	var b strings.Builder
	title := fmt.Sprintf("ApplicationSet %s", set.Name)
	if m.refreshing {
		title += " " + m.spin.View()
	}
	b.WriteString(fitLine(m.width, s.header.Render(title)))
	b.WriteString("\n")
	if set.RepoURL != "" {
		b.WriteString(fitLine(m.width, s.dim.Render(fmt.Sprintf("%s %s @ %s", set.RepoURL, set.Path, set.TargetRevision))))
		b.WriteString("\n")
	}
	b.WriteString(fitLine(m.width, s.hint.Render("Space toggle | a all | n none | o out-of-sync | p paused | d degraded | l label | r refresh | Esc back | q quit")))
	b.WriteString("\n")
	b.WriteString(fitLine(m.width, s.hint.Render("s sync | R resume | A abort | P promote-full | T retry | X restart | b rollback | c dismiss")))
	b.WriteString("\n\n")

	b.WriteString(fitLine(m.width, fmt.Sprintf("%s  %s  %s", tileDescriptor(sum.Tile).render(), renderHealthCounts(sum), renderSyncCounts(sum))))
	b.WriteString("\n")
	if rs.Paused > 0 || rs.Processing > 0 {
		p := rs.Progress()
		b.WriteString(fitLine(m.width, fmt.Sprintf("rollouts: %d paused, %d processing %s", rs.Paused, rs.Processing, renderProgressBar(p, 20))))
		b.WriteString("\n")
	}
	b.WriteString(fitLine(m.width, s.dim.Render(fmt.Sprintf("%d apps, %d fetched, %d selected", len(m.keys), len(snaps), len(m.sess.Selected())))))
	b.WriteString("\n\n")

	start, end := visibleRange(m.offset, m.listHeight(), len(m.keys))
	for i := start; i < end; i++ {
		k := m.keys[i]
		prefix := "  "
		if i == m.cursor {
			prefix = s.cursor.Render("> ")
		}
		check := fmt.Sprintf("[%s]", onOff(m.sess.IsSelected(k)))

		snap, ok := m.sess.Snapshot(k)
		if !ok {
			b.WriteString(fitLine(m.width, fmt.Sprintf("%s%s %-36s %s", prefix, check, truncate(k.Name, 36), s.dim.Render("not fetched"))))
			b.WriteString("\n")
			continue
		}
		line := fmt.Sprintf("%s%s %-36s %s %s %s",
			prefix, check, truncate(k.Name, 36),
			pad(healthDescriptor(snap.App.HealthStatus).render(), 14),
			pad(syncDescriptor(snap.App.SyncStatus).render(), 12),
			renderRollout(snap))
		if st, ok := m.statuses[k]; ok && m.lastSummary != nil {
			line += "  " + taskDescriptor(st).render()
		}
		b.WriteString(fitLine(m.width, line))
		b.WriteString("\n")
	}

	b.WriteString(m.viewNotifications(s))
	return b.String()
}

func (m *model) viewLabels(s uiStyles) string {
	var b strings.Builder
	b.WriteString(fitLine(m.width, s.header.Render("Select by label")))
	b.WriteString("\n")
	b.WriteString(fitLine(m.width, s.hint.Render("↑/↓ move | Enter select | Esc back")))
	b.WriteString("\n\n")
	if len(m.labelChoices) == 0 {
		b.WriteString(s.dim.Render("No labels on fetched applications."))
		b.WriteString("\n")
		return b.String()
	}
	start, end := visibleRange(m.offset, m.listHeight(), len(m.labelChoices))
	for i := start; i < end; i++ {
		c := m.labelChoices[i]
		prefix := "  "
		if i == m.cursor {
			prefix = s.cursor.Render("> ")
		}
		b.WriteString(fitLine(m.width, fmt.Sprintf("%s%s=%s", prefix, c.key, c.value)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *model) viewSyncOptions(s uiStyles) string {
	var b strings.Builder
	b.WriteString(fitLine(m.width, s.header.Render(fmt.Sprintf("Sync %d application(s)", len(m.sess.Selected())))))
	b.WriteString("\n")
	b.WriteString(fitLine(m.width, s.hint.Render("Enter sync | Ctrl+P prune | Ctrl+D dry run | Esc cancel")))
	b.WriteString("\n\n")
	b.WriteString(fitLine(m.width, m.revision.View()))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("[%s] prune\n", onOff(m.syncOpts.Prune)))
	b.WriteString(fmt.Sprintf("[%s] dry run\n", onOff(m.syncOpts.DryRun)))
	return b.String()
}

func (m *model) viewRollback(s uiStyles) string {
	var b strings.Builder
	b.WriteString(fitLine(m.width, s.header.Render(fmt.Sprintf("Rollback %d application(s)", len(m.sess.Selected())))))
	b.WriteString("\n")
	b.WriteString(fitLine(m.width, s.hint.Render("↑/↓ move | Enter rollback | Esc back")))
	b.WriteString("\n\n")
	if len(m.revisions) == 0 {
		b.WriteString(s.dim.Render("No deployment history for the selected applications."))
		b.WriteString("\n")
		return b.String()
	}
	start, end := visibleRange(m.offset, m.listHeight(), len(m.revisions))
	for i := start; i < end; i++ {
		e := m.revisions[i]
		prefix := "  "
		if i == m.cursor {
			prefix = s.cursor.Render("> ")
		}
		deployed := "-"
		if !e.DeployedAt.IsZero() {
			deployed = e.DeployedAt.Local().Format(time.DateTime)
		}
		by := e.InitiatedBy
		if e.Automated {
			by = "automated"
		}
		if by == "" {
			by = "-"
		}
		b.WriteString(fitLine(m.width, fmt.Sprintf("%s%-12s %3d apps  %s  %s",
			prefix, services.ShortRevision(e.Revision), e.Apps.Len(), deployed, s.dim.Render(by))))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *model) viewConfirm(s uiStyles) string {
	if m.pending == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(s.header.Render("Confirm"))
	b.WriteString("\n\n")
	b.WriteString(s.warn.Render(m.pending.Prompt(len(m.sess.Selected()))))
	b.WriteString("\n\n")
	b.WriteString(s.hint.Render("y/Enter confirm | n/Esc cancel"))
	return b.String()
}

func (m *model) viewRunning(s uiStyles) string {
	var b strings.Builder
	b.WriteString(fitLine(m.width, s.header.Render(fmt.Sprintf("%s %s", m.spin.View(), m.progress.Operation))))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("%d/%d done  %s elapsed\n\n", m.progress.Completed, m.progress.Total, time.Since(m.runStarted).Truncate(time.Second)))

	for _, k := range m.sess.Selected() {
		b.WriteString(fitLine(m.width, fmt.Sprintf("  %-40s %s", truncate(k.Name, 40), taskDescriptor(m.statuses[k]).render())))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *model) viewNotifications(s uiStyles) string {
	notes := m.sess.Notifications()
	if len(notes) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n")
	for _, n := range notes {
		style := s.ok
		if n.Kind == models.NotifyError {
			style = s.error
		}
		msg := n.Message
		if n.Sticky {
			msg += s.dim.Render("  (c to dismiss)")
		}
		b.WriteString(fitLine(m.width, style.Render(msg)))
		b.WriteString("\n")
	}
	return b.String()
}

func renderHealthCounts(sum services.Summary) string {
	var parts []string
	for _, h := range models.AllHealthStatuses {
		if n := sum.Health[h]; n > 0 {
			d := healthDescriptor(h)
			parts = append(parts, lipgloss.NewStyle().Foreground(d.Color).Render(fmt.Sprintf("%s%d", d.Glyph, n)))
		}
	}
	return strings.Join(parts, " ")
}

func renderSyncCounts(sum services.Summary) string {
	var parts []string
	for _, st := range models.AllSyncStatuses {
		if n := sum.Sync[st]; n > 0 {
			d := syncDescriptor(st)
			parts = append(parts, lipgloss.NewStyle().Foreground(d.Color).Render(fmt.Sprintf("%s%d", d.Glyph, n)))
		}
	}
	return strings.Join(parts, " ")
}

// renderRollout shows the rollout health, with pod progress while it is moving.
func renderRollout(snap models.ItemSnapshot) string {
	p := services.ComputeRolloutProgress(snap.App, snap.Tree)
	if p == nil {
		return ""
	}
	if p.TotalPods == 0 {
		return "rollout " + healthDescriptor(p.Status).render()
	}
	return "rollout " + healthDescriptor(p.Status).glyph() + " " + renderProgressBar(*p, 12)
}

func renderProgressBar(p models.RolloutProgress, width int) string {
	filled := int(p.Ratio() * float64(width))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("%s %d/%d %d%%", bar, p.UpdatedPods, p.TotalPods, p.Percent())
}
