package services

import (
	"slices"

	"github.com/iamhalje/argo-appsets/internal/models"

	"github.com/samber/lo"
)

type TileStatus string

const (
	TileDegraded   TileStatus = "degraded"
	TileWarning    TileStatus = "warning"
	TileProcessing TileStatus = "processing"
	TileSuspended  TileStatus = "suspended"
	TileUnknown    TileStatus = "unknown"
	TileHealthy    TileStatus = "healthy"
)

// StatusPair is the health/sync state of one child item.
type StatusPair struct {
	Health models.HealthStatus
	Sync   models.SyncStatus
}

type Summary struct {
	Health map[models.HealthStatus]int
	Sync   map[models.SyncStatus]int
	Tile   TileStatus
}

// Summarize counts statuses and picks the dominant tile status.
func Summarize(items []StatusPair) Summary {
	return Summary{
		Health: lo.CountValuesBy(items, func(p StatusPair) models.HealthStatus { return p.Health }),
		Sync:   lo.CountValuesBy(items, func(p StatusPair) models.SyncStatus { return p.Sync }),
		Tile:   tileStatus(items),
	}
}

// tileStatus applies the precedence degraded > warning > processing > suspended > unknown > healthy.
func tileStatus(items []StatusPair) TileStatus {
	switch {
	case lo.ContainsBy(items, func(p StatusPair) bool { return p.Health == models.HealthDegraded }):
		return TileDegraded
	case lo.ContainsBy(items, func(p StatusPair) bool {
		return p.Health == models.HealthMissing || p.Sync == models.SyncOutOfSync
	}):
		return TileWarning
	case lo.ContainsBy(items, func(p StatusPair) bool { return p.Health.InProgress() }):
		return TileProcessing
	case lo.ContainsBy(items, func(p StatusPair) bool { return p.Health == models.HealthSuspended }):
		return TileSuspended
	case lo.ContainsBy(items, func(p StatusPair) bool {
		return p.Health == models.HealthUnknown || p.Sync == models.SyncUnknown
	}):
		return TileUnknown
	default:
		return TileHealthy
	}
}

// PairsFromResources uses the statuses an ApplicationSet reports for its children.
func PairsFromResources(resources []models.ResourceStatus) []StatusPair {
	return lo.Map(resources, func(r models.ResourceStatus, _ int) StatusPair {
		return StatusPair{Health: r.Health, Sync: r.Sync}
	})
}

func PairsFromSnapshots(snaps []models.ItemSnapshot) []StatusPair {
	return lo.Map(snaps, func(s models.ItemSnapshot, _ int) StatusPair {
		return StatusPair{Health: s.App.HealthStatus, Sync: s.App.SyncStatus}
	})
}

type LabelGroup struct {
	Key    string
	Values []string
}

// GroupByLabel collects observed label values per key. Keys and values keep first-seen order
// (label keys of a single item are visited sorted).
func GroupByLabel(snaps []models.ItemSnapshot) []LabelGroup {
	var out []LabelGroup
	idx := map[string]int{}
	seen := map[string]map[string]struct{}{}
	for _, s := range snaps {
		for _, k := range sortedKeys(s.App.Labels) {
			v := s.App.Labels[k]
			i, ok := idx[k]
			if !ok {
				i = len(out)
				idx[k] = i
				out = append(out, LabelGroup{Key: k})
				seen[k] = map[string]struct{}{}
			}
			if _, dup := seen[k][v]; dup {
				continue
			}
			seen[k][v] = struct{}{}
			out[i].Values = append(out[i].Values, v)
		}
	}
	return out
}

type RolloutSummary struct {
	Paused      int
	Processing  int
	UpdatedPods int
	TotalPods   int
}

func (r RolloutSummary) Progress() models.RolloutProgress {
	return models.RolloutProgress{Status: models.HealthProgressing, UpdatedPods: r.UpdatedPods, TotalPods: r.TotalPods}
}

// SummarizeRollouts aggregates rollout state. Items without a rollout are ignored.
func SummarizeRollouts(snaps []models.ItemSnapshot) RolloutSummary {
	var out RolloutSummary
	for _, s := range snaps {
		health, ok := s.App.RolloutHealth()
		if !ok {
			continue
		}
		if health == models.HealthSuspended {
			out.Paused++
		}
		p := ComputeRolloutProgress(s.App, s.Tree)
		if p == nil || !p.Status.InProgress() {
			continue
		}
		out.Processing++
		out.UpdatedPods += p.UpdatedPods
		out.TotalPods += p.TotalPods
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := lo.Keys(m)
	slices.Sort(keys)
	return keys
}
