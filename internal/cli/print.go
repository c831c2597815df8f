package cli

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/iamhalje/argo-appsets/internal/debugpods"
	"github.com/iamhalje/argo-appsets/internal/models"
	"github.com/iamhalje/argo-appsets/internal/services"

	"github.com/samber/lo"
	v1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/duration"
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/cli-runtime/pkg/printers"
)

func printTable(w io.Writer, noHeaders bool, table *v1.Table) error {
	printer := printers.NewTablePrinter(printers.PrintOptions{NoHeaders: noHeaders})
	if err := printer.PrintObj(table, w); err != nil {
		return fmt.Errorf("print table: %w", err)
	}
	return nil
}

func printSets(w io.Writer, all []models.ApplicationSet, favorites sets.Set[string]) error {
	table := &v1.Table{
		ColumnDefinitions: []v1.TableColumnDefinition{
			{Name: "FAV", Type: "string"},
			{Name: "NAME", Type: "string"},
			{Name: "NAMESPACE", Type: "string"},
			{Name: "STATUS", Type: "string"},
			{Name: "APPS", Type: "number"},
			{Name: "HEALTH", Type: "string"},
			{Name: "SYNC", Type: "string"},
			{Name: "AGE", Type: "string"},
		},
	}
	for _, s := range all {
		sum := services.Summarize(services.PairsFromResources(s.Resources))
		fav := ""
		if favorites.Has(s.Name) {
			fav = "*"
		}
		table.Rows = append(table.Rows, v1.TableRow{
			Cells: []interface{}{
				fav,
				s.Name,
				s.Namespace,
				string(sum.Tile),
				len(services.TrackedKeys(s)),
				formatCounts(models.AllHealthStatuses, sum.Health),
				formatCounts(models.AllSyncStatuses, sum.Sync),
				age(s.CreatedAt),
			},
		})
	}
	return printTable(w, false, table)
}

func printStatus(w io.Writer, keys []models.ItemKey, snaps map[models.ItemKey]models.ItemSnapshot) error {
	table := &v1.Table{
		ColumnDefinitions: []v1.TableColumnDefinition{
			{Name: "NAME", Type: "string"},
			{Name: "NAMESPACE", Type: "string"},
			{Name: "HEALTH", Type: "string"},
			{Name: "SYNC", Type: "string"},
			{Name: "ROLLOUT", Type: "string"},
			{Name: "REVISION", Type: "string"},
			{Name: "LABELS", Type: "string"},
		},
	}
	for _, k := range keys {
		snap, ok := snaps[k]
		if !ok {
			table.Rows = append(table.Rows, v1.TableRow{
				Cells: []interface{}{k.Name, k.Namespace, "<not fetched>", "", "", "", ""},
			})
			continue
		}
		table.Rows = append(table.Rows, v1.TableRow{
			Cells: []interface{}{
				k.Name,
				k.Namespace,
				string(snap.App.HealthStatus),
				string(snap.App.SyncStatus),
				formatRollout(snap),
				services.ShortRevision(snap.App.TargetRevision),
				formatLabels(snap.App.Labels),
			},
		})
	}
	return printTable(w, false, table)
}

func printHistory(w io.Writer, entries []models.RevisionEntry) error {
	table := &v1.Table{
		ColumnDefinitions: []v1.TableColumnDefinition{
			{Name: "REVISION", Type: "string"},
			{Name: "APPS", Type: "number"},
			{Name: "DEPLOYED", Type: "string"},
			{Name: "INITIATED BY", Type: "string"},
		},
	}
	for _, e := range entries {
		deployed := "-"
		if !e.DeployedAt.IsZero() {
			deployed = e.DeployedAt.UTC().Format(time.RFC3339)
		}
		by := e.InitiatedBy
		if e.Automated {
			by = "automated"
		}
		table.Rows = append(table.Rows, v1.TableRow{
			Cells: []interface{}{e.Revision, e.Apps.Len(), deployed, lo.Ternary(by == "", "-", by)},
		})
	}
	return printTable(w, false, table)
}

func printDebugPods(w io.Writer, pods []debugpods.DebugPod) error {
	table := &v1.Table{
		ColumnDefinitions: []v1.TableColumnDefinition{
			{Name: "NAME", Type: "string"},
			{Name: "NAMESPACE", Type: "string"},
			{Name: "CLUSTER", Type: "string"},
			{Name: "ENVIRONMENT", Type: "string"},
			{Name: "PHASE", Type: "string"},
			{Name: "CONTAINER", Type: "string"},
			{Name: "AGE", Type: "string"},
		},
	}
	for _, p := range pods {
		phase := lo.Ternary(p.Phase() == "", "-", p.Phase())
		state := p.ContainerState()
		table.Rows = append(table.Rows, v1.TableRow{
			Cells: []interface{}{
				p.Pod.Name,
				p.Pod.Namespace,
				p.Cluster,
				p.Environment,
				debugpods.PhaseGlyph(p.Phase()) + " " + phase,
				lo.Ternary(state == "", "-", debugpods.PhaseGlyph(state)+" "+state),
				age(p.Pod.CreationTimestamp.Time),
			},
		})
	}
	return printTable(w, false, table)
}

func formatCounts[T ~string](order []T, counts map[T]int) string {
	var parts []string
	for _, k := range order {
		if n := counts[k]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s:%d", k, n))
		}
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}

func formatRollout(snap models.ItemSnapshot) string {
	p := services.ComputeRolloutProgress(snap.App, snap.Tree)
	if p == nil {
		return "-"
	}
	if p.TotalPods == 0 {
		return string(p.Status)
	}
	return fmt.Sprintf("%s %d/%d (%d%%)", p.Status, p.UpdatedPods, p.TotalPods, p.Percent())
}

func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return "<none>"
	}
	pairs := make([]string, 0, len(labels))
	for k, v := range labels {
		pairs = append(pairs, fmt.Sprintf("%s=%s", k, v))
	}
	slices.Sort(pairs)
	return strings.Join(pairs, ",")
}

func age(t time.Time) string {
	if t.IsZero() {
		return "<unknown>"
	}
	return duration.HumanDuration(time.Since(t))
}
