package services

import (
	"slices"
	"strings"

	"github.com/iamhalje/argo-appsets/internal/argocd"
	"github.com/iamhalje/argo-appsets/internal/models"

	"k8s.io/apimachinery/pkg/util/sets"
)

// DefaultRecentRevisions is how many rollback candidates are offered.
const DefaultRecentRevisions = 10

// GroupHistory merges deployment histories of apps into one entry per revision,
// sorted oldest first. The representative fields come from the earliest deployment;
// entries without a deployment time sort first.
func GroupHistory(apps []models.Application) []models.RevisionEntry {
	var out []models.RevisionEntry
	idx := map[string]int{}

	for _, app := range apps {
		for _, h := range app.History {
			if h.Revision == "" {
				continue
			}
			i, ok := idx[h.Revision]
			if !ok {
				idx[h.Revision] = len(out)
				out = append(out, models.RevisionEntry{
					Revision:    h.Revision,
					DeployedAt:  h.DeployedAt,
					InitiatedBy: h.InitiatedBy,
					Automated:   h.Automated,
					Apps:        sets.New(app.Key.Name),
				})
				continue
			}
			e := &out[i]
			e.Apps.Insert(app.Key.Name)
			if !h.DeployedAt.IsZero() && !e.DeployedAt.IsZero() && h.DeployedAt.Before(e.DeployedAt) {
				e.DeployedAt = h.DeployedAt
				e.InitiatedBy = h.InitiatedBy
				e.Automated = h.Automated
			}
		}
	}

	slices.SortStableFunc(out, func(a, b models.RevisionEntry) int {
		switch {
		case a.DeployedAt.IsZero() && b.DeployedAt.IsZero():
			return 0
		case a.DeployedAt.IsZero():
			return -1
		case b.DeployedAt.IsZero():
			return 1
		}
		return a.DeployedAt.Compare(b.DeployedAt)
	})
	return out
}

// RecentRevisions returns up to n of the newest entries, newest first.
func RecentRevisions(entries []models.RevisionEntry, n int) []models.RevisionEntry {
	if n <= 0 || len(entries) == 0 {
		return nil
	}
	start := max(len(entries)-n, 0)
	out := slices.Clone(entries[start:])
	slices.Reverse(out)
	return out
}

// DefaultSyncOptions pre-fills a sync dialog from the first app's source.
func DefaultSyncOptions(apps []models.Application) models.SyncOptions {
	rev := ""
	if len(apps) > 0 {
		rev = strings.TrimSpace(apps[0].TargetRevision)
	}
	if rev == "" {
		rev = argocd.DefaultRevision
	}
	return models.SyncOptions{Revision: rev}
}

// ShortRevision trims commit SHAs for display.
func ShortRevision(rev string) string {
	if len(rev) == 40 && !strings.ContainsAny(rev, "./-_") {
		return rev[:7]
	}
	return rev
}
