package services

import "github.com/iamhalje/argo-appsets/internal/models"

// TargetsForSelection pairs every selected key with its current snapshot.
// Keys without a snapshot are kept so the bulk run reports them as failed.
func TargetsForSelection(keys []models.ItemKey, snapshots map[models.ItemKey]models.ItemSnapshot) []BulkTarget {
	targets := make([]BulkTarget, 0, len(keys))
	for _, k := range keys {
		t := BulkTarget{Key: k}
		if snap, ok := snapshots[k]; ok {
			t.Snapshot = &snap
		}
		targets = append(targets, t)
	}
	return targets
}
