package argocd

import (
	"strings"

	"github.com/iamhalje/argo-appsets/internal/models"

	argoappv1 "github.com/argoproj/argo-cd/v2/pkg/apis/application/v1alpha1"
)

// Defaults applied when the API server omits a field.
const (
	DefaultProject  = "default"
	DefaultRevision = "HEAD"
)

func healthOrUnknown(v string) models.HealthStatus {
	v = strings.TrimSpace(v)
	if v == "" {
		return models.HealthUnknown
	}
	return models.HealthStatus(v)
}

func syncOrUnknown(v string) models.SyncStatus {
	v = strings.TrimSpace(v)
	if v == "" {
		return models.SyncUnknown
	}
	return models.SyncStatus(v)
}

func labelsOrEmpty(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func resourceStatuses(in []argoappv1.ResourceStatus) []models.ResourceStatus {
	out := make([]models.ResourceStatus, 0, len(in))
	for _, r := range in {
		var health string
		if r.Health != nil {
			health = string(r.Health.Status)
		}
		out = append(out, models.ResourceStatus{
			ResourceRef: models.ResourceRef{
				Group:     r.Group,
				Version:   r.Version,
				Kind:      r.Kind,
				Namespace: r.Namespace,
				Name:      r.Name,
			},
			Sync:   syncOrUnknown(string(r.Status)),
			Health: healthOrUnknown(health),
		})
	}
	return out
}

func targetRevision(sources []argoappv1.ApplicationSource, source *argoappv1.ApplicationSource) string {
	if len(sources) > 0 && strings.TrimSpace(sources[0].TargetRevision) != "" {
		return sources[0].TargetRevision
	}
	if source != nil && strings.TrimSpace(source.TargetRevision) != "" {
		return source.TargetRevision
	}
	return DefaultRevision
}

func applicationFromV1(in *argoappv1.Application) models.Application {
	out := models.Application{
		Key:            models.ItemKey{Namespace: in.Namespace, Name: in.Name},
		Project:        in.Spec.Project,
		Labels:         labelsOrEmpty(in.Labels),
		SyncStatus:     syncOrUnknown(string(in.Status.Sync.Status)),
		HealthStatus:   healthOrUnknown(string(in.Status.Health.Status)),
		TargetRevision: targetRevision(in.Spec.Sources, in.Spec.Source),
		Resources:      resourceStatuses(in.Status.Resources),
		History:        make([]models.RevisionHistory, 0, len(in.Status.History)),
	}
	if out.Project == "" {
		out.Project = DefaultProject
	}
	if in.Status.OperationState != nil {
		out.OperationPhase = string(in.Status.OperationState.Phase)
		out.OperationMessage = in.Status.OperationState.Message
	}
	for _, h := range in.Status.History {
		revision := h.Revision
		if revision == "" && len(h.Revisions) > 0 {
			revision = h.Revisions[0]
		}
		out.History = append(out.History, models.RevisionHistory{
			ID:          h.ID,
			Revision:    revision,
			DeployedAt:  h.DeployedAt.Time,
			InitiatedBy: h.InitiatedBy.Username,
			Automated:   h.InitiatedBy.Automated,
		})
	}
	return out
}

func applicationSetFromV1(in *argoappv1.ApplicationSet) models.ApplicationSet {
	out := models.ApplicationSet{
		Name:           in.Name,
		Namespace:      in.Namespace,
		Labels:         labelsOrEmpty(in.Labels),
		CreatedAt:      in.CreationTimestamp.Time,
		Resources:      resourceStatuses(in.Status.Resources),
		TargetRevision: targetRevision(in.Spec.Template.Spec.Sources, in.Spec.Template.Spec.Source),
	}
	if src := in.Spec.Template.Spec.Source; src != nil {
		out.RepoURL = src.RepoURL
		out.Path = src.Path
	} else if len(in.Spec.Template.Spec.Sources) > 0 {
		out.RepoURL = in.Spec.Template.Spec.Sources[0].RepoURL
		out.Path = in.Spec.Template.Spec.Sources[0].Path
	}
	return out
}

func resourceTreeFromV1(in *argoappv1.ApplicationTree) *models.ResourceTree {
	out := &models.ResourceTree{}
	if in == nil {
		return out
	}
	out.Nodes = make([]models.ResourceNode, 0, len(in.Nodes))
	for _, n := range in.Nodes {
		node := models.ResourceNode{
			ResourceRef: models.ResourceRef{
				Group:     n.Group,
				Version:   n.Version,
				Kind:      n.Kind,
				Namespace: n.Namespace,
				Name:      n.Name,
			},
			UID:    n.UID,
			Health: models.HealthUnknown,
		}
		if n.Health != nil {
			node.Health = healthOrUnknown(string(n.Health.Status))
		}
		for _, p := range n.ParentRefs {
			node.ParentRefs = append(node.ParentRefs, models.ParentRef{
				Group:     p.Group,
				Kind:      p.Kind,
				Namespace: p.Namespace,
				Name:      p.Name,
				UID:       p.UID,
			})
		}
		for _, i := range n.Info {
			node.Info = append(node.Info, models.InfoItem{Name: i.Name, Value: i.Value})
		}
		out.Nodes = append(out.Nodes, node)
	}
	for _, h := range in.Hosts {
		out.Hosts = append(out.Hosts, models.Host{
			Name: h.Name,
			Info: []models.InfoItem{
				{Name: "kubelet", Value: h.SystemInfo.KubeletVersion},
				{Name: "os", Value: h.SystemInfo.OSImage},
				{Name: "arch", Value: h.SystemInfo.Architecture},
			},
		})
	}
	return out
}
