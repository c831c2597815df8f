package services

import (
	"testing"
	"time"

	"github.com/iamhalje/argo-appsets/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupHistoryDedupe(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	a := app("a")
	a.History = []models.RevisionHistory{{ID: 1, Revision: "abc123", DeployedAt: t0.Add(time.Hour), InitiatedBy: "later"}}
	b := app("b")
	b.History = []models.RevisionHistory{{ID: 7, Revision: "abc123", DeployedAt: t0, InitiatedBy: "alice"}}

	got := GroupHistory([]models.Application{a, b})
	require.Len(t, got, 1)
	assert.Equal(t, "abc123", got[0].Revision)
	assert.Equal(t, 2, got[0].Apps.Len())
	assert.True(t, got[0].Apps.HasAll("a", "b"))
	assert.Equal(t, t0, got[0].DeployedAt)
	assert.Equal(t, "alice", got[0].InitiatedBy)
}

func TestGroupHistoryOrder(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	a := app("a")
	a.History = []models.RevisionHistory{
		{Revision: "new", DeployedAt: t0.Add(2 * time.Hour)},
		{Revision: "old", DeployedAt: t0},
		{Revision: "undated"},
		{Revision: ""},
	}

	got := GroupHistory([]models.Application{a})
	revs := make([]string, 0, len(got))
	for _, e := range got {
		revs = append(revs, e.Revision)
	}
	assert.Equal(t, []string{"undated", "old", "new"}, revs)
}

func TestGroupHistoryMissingTimeKeepsFirst(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	a := app("a")
	a.History = []models.RevisionHistory{{Revision: "abc", InitiatedBy: "first"}}
	b := app("b")
	b.History = []models.RevisionHistory{{Revision: "abc", DeployedAt: t0, InitiatedBy: "second"}}

	got := GroupHistory([]models.Application{a, b})
	require.Len(t, got, 1)
	assert.True(t, got[0].DeployedAt.IsZero())
	assert.Equal(t, "first", got[0].InitiatedBy)
}

func TestRecentRevisions(t *testing.T) {
	entries := []models.RevisionEntry{{Revision: "1"}, {Revision: "2"}, {Revision: "3"}}

	got := RecentRevisions(entries, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "3", got[0].Revision)
	assert.Equal(t, "2", got[1].Revision)
	assert.Equal(t, "1", entries[0].Revision)

	assert.Len(t, RecentRevisions(entries, 10), 3)
	assert.Nil(t, RecentRevisions(entries, 0))
}

func TestDefaultSyncOptions(t *testing.T) {
	a := app("a")
	a.TargetRevision = "release-1"
	assert.Equal(t, models.SyncOptions{Revision: "release-1"}, DefaultSyncOptions([]models.Application{a, app("b")}))
	assert.Equal(t, models.SyncOptions{Revision: "HEAD"}, DefaultSyncOptions(nil))
}

func TestShortRevision(t *testing.T) {
	assert.Equal(t, "0123456", ShortRevision("0123456789abcdef0123456789abcdef01234567"))
	assert.Equal(t, "v1.2.3", ShortRevision("v1.2.3"))
	assert.Equal(t, "main", ShortRevision("main"))
}
