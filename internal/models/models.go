package models

import (
	"math"
	"time"

	"k8s.io/apimachinery/pkg/util/sets"
)

// contexts:
//   - name:
//     server:
//     user:
//
// current-context:
// servers:
//   - grpc-web-root-path: /
//     server:
//
// users:
//   - auth-token:
//     name:
type Cluster struct {
	ContextName     string
	Server          string
	Insecure        bool
	AuthToken       string
	GRPCWeb         bool
	GRPCWebRootPath string

	ServerVersion string
	ServerMajor   int
}

// https://github.com/argoproj/gitops-engine/blob/master/pkg/health/health.go
type HealthStatus string

const (
	HealthUnknown     HealthStatus = "Unknown"
	HealthMissing     HealthStatus = "Missing"
	HealthProcessing  HealthStatus = "Processing"
	HealthProgressing HealthStatus = "Progressing"
	HealthSuspended   HealthStatus = "Suspended"
	HealthDegraded    HealthStatus = "Degraded"
	HealthHealthy     HealthStatus = "Healthy"
)

// AllHealthStatuses lists every health code in display order.
var AllHealthStatuses = []HealthStatus{
	HealthHealthy, HealthProgressing, HealthProcessing, HealthSuspended, HealthDegraded, HealthMissing, HealthUnknown,
}

// InProgress reports whether the code means "rollout still moving".
func (h HealthStatus) InProgress() bool {
	return h == HealthProcessing || h == HealthProgressing
}

type SyncStatus string

const (
	SyncUnknown   SyncStatus = "Unknown"
	SyncOutOfSync SyncStatus = "OutOfSync"
	SyncSynced    SyncStatus = "Synced"
)

var AllSyncStatuses = []SyncStatus{SyncSynced, SyncOutOfSync, SyncUnknown}

const (
	GroupArgoproj = "argoproj.io"
	GroupApps     = "apps"

	KindApplication = "Application"
	KindRollout     = "Rollout"
	KindDeployment  = "Deployment"
	KindReplicaSet  = "ReplicaSet"
	KindPod         = "Pod"
)

// ItemKey identifies one child application tracked under an ApplicationSet.
type ItemKey struct {
	Namespace string
	Name      string
}

func (k ItemKey) String() string {
	if k.Namespace == "" {
		return k.Name
	}
	return k.Namespace + "/" + k.Name
}

func (k ItemKey) Ref() AppRef {
	return AppRef{Name: k.Name, Namespace: k.Namespace}
}

// AppRef identifies one application inside a single Argo CD instance.
type AppRef struct {
	Name      string
	Namespace string
}

// ResourceRef mirrors argocd's ResourceRef / SyncOperationResource identity fields.
type ResourceRef struct {
	Group     string
	Version   string
	Kind      string
	Namespace string
	Name      string
}

// ResourceStatus is one entry of application.status.resources (or applicationset.status.resources).
type ResourceStatus struct {
	ResourceRef
	Sync   SyncStatus
	Health HealthStatus
}

type RevisionHistory struct {
	ID          int64
	Revision    string
	DeployedAt  time.Time
	InitiatedBy string
	Automated   bool
}

type Application struct {
	Key     ItemKey
	Project string
	Labels  map[string]string

	// application.status.sync.status ("Synced", "OutOfSync").
	SyncStatus SyncStatus

	// application.status.health.status ("Healthy", "Degraded", "Progressing").
	HealthStatus HealthStatus

	// application.status.operationState.phase ("Running", "Succeeded", "Failed").
	OperationPhase   string
	OperationMessage string

	// sources[0].targetRevision, or source.targetRevision for single-source applications.
	TargetRevision string

	Resources []ResourceStatus
	History   []RevisionHistory
}

func (a Application) findResources(group, kind string) []ResourceStatus {
	var out []ResourceStatus
	for _, r := range a.Resources {
		if r.Group == group && r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

// Rollouts returns every argoproj.io/Rollout managed by the application.
func (a Application) Rollouts() []ResourceStatus {
	return a.findResources(GroupArgoproj, KindRollout)
}

// Rollout returns the first Rollout resource, if any.
func (a Application) Rollout() (ResourceStatus, bool) {
	rs := a.Rollouts()
	if len(rs) == 0 {
		return ResourceStatus{}, false
	}
	return rs[0], true
}

func (a Application) Deployment() (ResourceStatus, bool) {
	ds := a.findResources(GroupApps, KindDeployment)
	if len(ds) == 0 {
		return ResourceStatus{}, false
	}
	return ds[0], true
}

// RolloutHealth reports the declared health of the application's rollout.
func (a Application) RolloutHealth() (HealthStatus, bool) {
	r, ok := a.Rollout()
	if !ok {
		return "", false
	}
	return r.Health, true
}

// HistoryID resolves the deployment history id for a revision.
func (a Application) HistoryID(revision string) (int64, bool) {
	for _, h := range a.History {
		if h.Revision == revision {
			return h.ID, true
		}
	}
	return 0, false
}

type InfoItem struct {
	Name  string
	Value string
}

type ParentRef struct {
	Group     string
	Kind      string
	Namespace string
	Name      string
	UID       string
}

type ResourceNode struct {
	ResourceRef
	UID        string
	ParentRefs []ParentRef
	Info       []InfoItem
	Health     HealthStatus
}

func (n ResourceNode) InfoValue(name string) (string, bool) {
	for _, i := range n.Info {
		if i.Name == name {
			return i.Value, true
		}
	}
	return "", false
}

// HasParent reports whether any parent ref satisfies match.
func (n ResourceNode) HasParent(match func(ParentRef) bool) bool {
	for _, p := range n.ParentRefs {
		if match(p) {
			return true
		}
	}
	return false
}

type Host struct {
	Name string
	Info []InfoItem
}

type ResourceTree struct {
	Nodes []ResourceNode
	Hosts []Host
}

// ItemSnapshot is the last successful fetch of a tracked application.
// Tree is only populated while the application's rollout is in progress.
type ItemSnapshot struct {
	App  Application
	Tree *ResourceTree
}

type ApplicationSet struct {
	Name      string
	Namespace string
	Labels    map[string]string
	CreatedAt time.Time

	RepoURL        string
	Path           string
	TargetRevision string

	// applicationset.status.resources.
	Resources []ResourceStatus
}

// RolloutProgress is derived from a resource tree, never stored.
type RolloutProgress struct {
	Status      HealthStatus
	UpdatedPods int
	TotalPods   int
}

func (p RolloutProgress) Ratio() float64 {
	if p.UpdatedPods == 0 || p.TotalPods == 0 {
		return 0
	}
	return float64(p.UpdatedPods) / float64(p.TotalPods)
}

func (p RolloutProgress) Percent() int {
	return int(math.Round(p.Ratio() * 100))
}

// RevisionEntry groups one revision across many applications' histories.
type RevisionEntry struct {
	Revision    string
	DeployedAt  time.Time
	InitiatedBy string
	Automated   bool
	Apps        sets.Set[string]
}

type SyncOptions struct {
	Revision string
	Prune    bool
	DryRun   bool
}

type RefreshMode string

const (
	RefreshNone   RefreshMode = ""
	RefreshNormal RefreshMode = "normal"
	RefreshHard   RefreshMode = "hard"
)

// Rollout resource actions understood by argo-rollouts' lua actions.
const (
	ActionResume      = "resume"
	ActionAbort       = "abort"
	ActionPromoteFull = "promote-full"
	ActionRetry       = "retry"
	ActionRestart     = "restart"
)

var RolloutActions = []string{ActionResume, ActionAbort, ActionPromoteFull, ActionRetry, ActionRestart}

type TaskStatus string

const (
	TaskPending TaskStatus = "pending"
	TaskRunning TaskStatus = "running"
	TaskSuccess TaskStatus = "success"
	TaskFailed  TaskStatus = "failed"
)

// ProgressEvent streams bulk execution progress to the UI.
type ProgressEvent struct {
	At        time.Time
	Key       ItemKey
	Operation string
	Phase     TaskStatus
	Err       error

	Completed int
	Total     int
}

type BulkResult struct {
	Key     ItemKey
	Success bool
	Err     error
}

type BulkSummary struct {
	Total        int
	SuccessCount int
	Failed       []BulkResult
}

func (s BulkSummary) FailedNames() []string {
	out := make([]string, 0, len(s.Failed))
	for _, r := range s.Failed {
		out = append(out, r.Key.Name)
	}
	return out
}

type NotificationKind string

const (
	NotifySuccess NotificationKind = "success"
	NotifyError   NotificationKind = "error"
)

type Notification struct {
	Message   string
	Kind      NotificationKind
	Sticky    bool
	CreatedAt time.Time
}

// Expired reports whether a non-sticky notification outlived ttl.
func (n Notification) Expired(now time.Time, ttl time.Duration) bool {
	if n.Sticky {
		return false
	}
	return now.Sub(n.CreatedAt) >= ttl
}

// LogQuery selects a container log stream of an application's pod.
type LogQuery struct {
	App       AppRef
	Namespace string
	Pod       string
	Container string
	TailLines int64
	Follow    bool
	Filter    string
	Previous  bool
}

type LogEntry struct {
	Content   string
	Pod       string
	Timestamp time.Time
}
