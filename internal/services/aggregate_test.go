package services

import (
	"testing"

	"github.com/iamhalje/argo-appsets/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestSummarizeTilePrecedence(t *testing.T) {
	tests := []struct {
		name  string
		items []StatusPair
		want  TileStatus
	}{
		{
			name: "degraded beats majority out of sync",
			items: []StatusPair{
				{models.HealthDegraded, models.SyncSynced},
				{models.HealthHealthy, models.SyncOutOfSync},
				{models.HealthHealthy, models.SyncOutOfSync},
				{models.HealthHealthy, models.SyncOutOfSync},
			},
			want: TileDegraded,
		},
		{
			name:  "missing is a warning",
			items: []StatusPair{{models.HealthMissing, models.SyncSynced}, {models.HealthProgressing, models.SyncSynced}},
			want:  TileWarning,
		},
		{
			name:  "progressing",
			items: []StatusPair{{models.HealthProgressing, models.SyncSynced}, {models.HealthSuspended, models.SyncSynced}},
			want:  TileProcessing,
		},
		{
			name:  "suspended",
			items: []StatusPair{{models.HealthSuspended, models.SyncSynced}, {models.HealthUnknown, models.SyncSynced}},
			want:  TileSuspended,
		},
		{
			name:  "unknown sync",
			items: []StatusPair{{models.HealthHealthy, models.SyncUnknown}},
			want:  TileUnknown,
		},
		{
			name:  "all healthy",
			items: []StatusPair{{models.HealthHealthy, models.SyncSynced}},
			want:  TileHealthy,
		},
		{
			name: "empty",
			want: TileHealthy,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Summarize(tt.items).Tile)
		})
	}
}

func TestSummarizeCounts(t *testing.T) {
	s := Summarize([]StatusPair{
		{models.HealthDegraded, models.SyncSynced},
		{models.HealthHealthy, models.SyncOutOfSync},
		{models.HealthHealthy, models.SyncOutOfSync},
	})
	assert.Equal(t, map[models.HealthStatus]int{models.HealthDegraded: 1, models.HealthHealthy: 2}, s.Health)
	assert.Equal(t, map[models.SyncStatus]int{models.SyncSynced: 1, models.SyncOutOfSync: 2}, s.Sync)
}

func TestGroupByLabel(t *testing.T) {
	snaps := []models.ItemSnapshot{
		{App: models.Application{Labels: map[string]string{"env": "prod", "team": "a"}}},
		{App: models.Application{Labels: map[string]string{"env": "staging"}}},
		{App: models.Application{Labels: map[string]string{"env": "prod"}}},
		{App: models.Application{}},
	}
	assert.Equal(t, []LabelGroup{
		{Key: "env", Values: []string{"prod", "staging"}},
		{Key: "team", Values: []string{"a"}},
	}, GroupByLabel(snaps))
}

func TestSummarizeRollouts(t *testing.T) {
	snaps := []models.ItemSnapshot{
		{App: app("paused", rolloutRes("paused", models.HealthSuspended))},
		{App: app("moving", rolloutRes("web", models.HealthProgressing)), Tree: progressingTree(6, 4)},
		{App: app("done", rolloutRes("web", models.HealthProgressing)), Tree: progressingTree(3, 0)},
		{App: app("plain", deploymentRes("plain"))},
	}
	got := SummarizeRollouts(snaps)
	assert.Equal(t, RolloutSummary{Paused: 1, Processing: 1, UpdatedPods: 6, TotalPods: 10}, got)
	assert.Equal(t, 60, got.Progress().Percent())
}

func TestPairsFromResources(t *testing.T) {
	pairs := PairsFromResources([]models.ResourceStatus{
		{Health: models.HealthHealthy, Sync: models.SyncSynced},
		{Health: models.HealthDegraded, Sync: models.SyncOutOfSync},
	})
	assert.Equal(t, []StatusPair{
		{models.HealthHealthy, models.SyncSynced},
		{models.HealthDegraded, models.SyncOutOfSync},
	}, pairs)
}
