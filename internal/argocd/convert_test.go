package argocd

import (
	"testing"
	"time"

	"github.com/iamhalje/argo-appsets/internal/models"

	argoappv1 "github.com/argoproj/argo-cd/v2/pkg/apis/application/v1alpha1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

func TestApplicationFromV1Defaults(t *testing.T) {
	in := &argoappv1.Application{ObjectMeta: metav1.ObjectMeta{Name: "web", Namespace: "argocd"}}

	out := applicationFromV1(in)
	assert.Equal(t, models.ItemKey{Namespace: "argocd", Name: "web"}, out.Key)
	assert.Equal(t, DefaultProject, out.Project)
	assert.Equal(t, DefaultRevision, out.TargetRevision)
	assert.Equal(t, models.HealthUnknown, out.HealthStatus)
	assert.Equal(t, models.SyncUnknown, out.SyncStatus)
	assert.NotNil(t, out.Labels)
	assert.Empty(t, out.History)
}

func TestApplicationFromV1(t *testing.T) {
	deployed := metav1.NewTime(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	in := &argoappv1.Application{
		ObjectMeta: metav1.ObjectMeta{Name: "web", Namespace: "argocd", Labels: map[string]string{"env": "prod"}},
		Spec: argoappv1.ApplicationSpec{
			Project: "payments",
			Sources: []argoappv1.ApplicationSource{{TargetRevision: "release-1"}},
		},
		Status: argoappv1.ApplicationStatus{
			Sync:   argoappv1.SyncStatus{Status: argoappv1.SyncStatusCodeOutOfSync},
			Health: argoappv1.HealthStatus{Status: "Progressing"},
			Resources: []argoappv1.ResourceStatus{{
				Group: "argoproj.io", Kind: "Rollout", Name: "web",
				Status: argoappv1.SyncStatusCodeSynced,
				Health: &argoappv1.HealthStatus{Status: "Suspended"},
			}},
			History: argoappv1.RevisionHistories{
				{ID: 1, Revisions: []string{"abc"}, DeployedAt: deployed, InitiatedBy: argoappv1.OperationInitiator{Automated: true}},
			},
			OperationState: &argoappv1.OperationState{Phase: "Running", Message: "syncing"},
		},
	}

	out := applicationFromV1(in)
	assert.Equal(t, "payments", out.Project)
	assert.Equal(t, "release-1", out.TargetRevision)
	assert.Equal(t, models.SyncOutOfSync, out.SyncStatus)
	assert.Equal(t, models.HealthProgressing, out.HealthStatus)
	assert.Equal(t, "Running", out.OperationPhase)

	r, ok := out.Rollout()
	require.True(t, ok)
	assert.Equal(t, models.HealthSuspended, r.Health)

	require.Len(t, out.History, 1)
	assert.Equal(t, "abc", out.History[0].Revision)
	assert.True(t, out.History[0].Automated)
	assert.Equal(t, deployed.Time, out.History[0].DeployedAt)
}

func TestResourceTreeFromV1(t *testing.T) {
	assert.Empty(t, resourceTreeFromV1(nil).Nodes)

	in := &argoappv1.ApplicationTree{Nodes: []argoappv1.ResourceNode{{
		ResourceRef: argoappv1.ResourceRef{Group: "apps", Kind: "ReplicaSet", Name: "web-1", UID: "u1"},
		ParentRefs:  []argoappv1.ResourceRef{{Group: "argoproj.io", Kind: "Rollout", Name: "web"}},
		Info:        []argoappv1.InfoItem{{Name: "Revision", Value: "Rev:3"}},
	}}}

	out := resourceTreeFromV1(in)
	require.Len(t, out.Nodes, 1)
	n := out.Nodes[0]
	assert.Equal(t, "u1", n.UID)
	assert.Equal(t, models.HealthUnknown, n.Health)
	v, ok := n.InfoValue("Revision")
	assert.True(t, ok)
	assert.Equal(t, "Rev:3", v)
	assert.True(t, n.HasParent(func(p models.ParentRef) bool { return p.Kind == "Rollout" && p.Name == "web" }))
}
