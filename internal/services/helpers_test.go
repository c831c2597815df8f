package services

import (
	"fmt"

	"github.com/iamhalje/argo-appsets/internal/models"
)

func key(name string) models.ItemKey {
	return models.ItemKey{Namespace: "argocd", Name: name}
}

func rolloutRes(name string, health models.HealthStatus) models.ResourceStatus {
	return models.ResourceStatus{
		ResourceRef: models.ResourceRef{Group: models.GroupArgoproj, Version: "v1alpha1", Kind: models.KindRollout, Namespace: "default", Name: name},
		Health:      health,
	}
}

func deploymentRes(name string) models.ResourceStatus {
	return models.ResourceStatus{
		ResourceRef: models.ResourceRef{Group: models.GroupApps, Version: "v1", Kind: models.KindDeployment, Namespace: "default", Name: name},
		Health:      models.HealthHealthy,
	}
}

func app(name string, res ...models.ResourceStatus) models.Application {
	return models.Application{
		Key:          key(name),
		HealthStatus: models.HealthHealthy,
		SyncStatus:   models.SyncSynced,
		Resources:    res,
	}
}

func replicaSet(uid, rollout, rev string) models.ResourceNode {
	return models.ResourceNode{
		ResourceRef: models.ResourceRef{Group: models.GroupApps, Kind: models.KindReplicaSet, Name: rollout + "-" + uid},
		UID:         uid,
		ParentRefs:  []models.ParentRef{{Group: models.GroupArgoproj, Kind: models.KindRollout, Name: rollout}},
		Info:        []models.InfoItem{{Name: "Revision", Value: rev}},
	}
}

func pods(rsUID string, n int) []models.ResourceNode {
	out := make([]models.ResourceNode, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.ResourceNode{
			ResourceRef: models.ResourceRef{Kind: models.KindPod, Name: fmt.Sprintf("%s-pod-%d", rsUID, i)},
			ParentRefs:  []models.ParentRef{{Group: models.GroupApps, Kind: models.KindReplicaSet, UID: rsUID}},
		})
	}
	return out
}
