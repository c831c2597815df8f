package services

import (
	"strconv"
	"strings"

	"github.com/iamhalje/argo-appsets/internal/models"
)

const (
	revisionInfoName   = "Revision"
	revisionInfoPrefix = "Rev:"
)

// ComputeRolloutProgress correlates the application's rollout with its newest replica set
// and the pods below it. Returns nil when the application has no rollout.
func ComputeRolloutProgress(app models.Application, tree *models.ResourceTree) *models.RolloutProgress {
	rollout, ok := app.Rollout()
	if !ok {
		return nil
	}

	health := rollout.Health
	if !health.InProgress() {
		return &models.RolloutProgress{Status: health}
	}

	var nodes []models.ResourceNode
	if tree != nil {
		nodes = tree.Nodes
	}

	var latest *models.ResourceNode
	latestRev := 0
	for i := range nodes {
		n := &nodes[i]
		if n.Group != models.GroupApps || n.Kind != models.KindReplicaSet {
			continue
		}
		if !n.HasParent(func(p models.ParentRef) bool {
			return p.Group == rollout.Group && p.Kind == rollout.Kind && p.Name == rollout.Name
		}) {
			continue
		}
		rev := ReplicaSetRevision(*n)
		// strict comparison keeps the first replica set on ties.
		if latest == nil || rev > latestRev {
			latest = n
			latestRev = rev
		}
	}
	if latest == nil {
		return &models.RolloutProgress{Status: health}
	}

	total, updated := 0, 0
	for _, n := range nodes {
		if n.Kind != models.KindPod {
			continue
		}
		if !n.HasParent(isReplicaSetRef) {
			continue
		}
		total++
		if n.HasParent(func(p models.ParentRef) bool { return isReplicaSetRef(p) && p.UID == latest.UID }) {
			updated++
		}
	}

	if total == 0 {
		return &models.RolloutProgress{Status: health}
	}
	if updated == total {
		return &models.RolloutProgress{Status: models.HealthHealthy}
	}
	return &models.RolloutProgress{Status: health, UpdatedPods: updated, TotalPods: total}
}

// ReplicaSetRevision parses the "Rev:<n>" info item, 0 when missing or malformed.
func ReplicaSetRevision(n models.ResourceNode) int {
	v, ok := n.InfoValue(revisionInfoName)
	if !ok {
		return 0
	}
	v = strings.TrimPrefix(strings.TrimSpace(v), revisionInfoPrefix)
	rev, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0
	}
	return rev
}

func isReplicaSetRef(p models.ParentRef) bool {
	return p.Group == models.GroupApps && p.Kind == models.KindReplicaSet
}

// NeedsResourceTree reports whether progress for app can only be computed from the tree.
func NeedsResourceTree(app models.Application) bool {
	h, ok := app.RolloutHealth()
	return ok && h.InProgress()
}
