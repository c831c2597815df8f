package debugpods

import (
	"strings"

	"github.com/samber/lo"
	corev1 "k8s.io/api/core/v1"
)

// DebugPod is a copy of a workload pod spawned by the debug-pod server extension.
type DebugPod struct {
	Environment string     `json:"environment"`
	ProjectID   string     `json:"projectId"`
	BastionHost string     `json:"bastionHost"`
	Region      string     `json:"region"`
	Cluster     string     `json:"cluster"`
	Pod         corev1.Pod `json:"pod"`
}

func (d DebugPod) Phase() string {
	return string(d.Pod.Status.Phase)
}

// ContainerState is waiting, running, terminated or unknown for the first container.
func (d DebugPod) ContainerState() string {
	if len(d.Pod.Status.ContainerStatuses) == 0 {
		return ""
	}
	st := d.Pod.Status.ContainerStatuses[0].State
	switch {
	case st.Waiting != nil:
		return "waiting"
	case st.Running != nil:
		return "running"
	case st.Terminated != nil:
		return "terminated"
	}
	return "unknown"
}

// Containers lists regular containers first, then init containers.
func (d DebugPod) Containers() []string {
	out := lo.Map(d.Pod.Spec.Containers, func(c corev1.Container, _ int) string { return c.Name })
	return append(out, lo.Map(d.Pod.Spec.InitContainers, func(c corev1.Container, _ int) string { return c.Name })...)
}

var phaseGlyphs = map[string]string{
	"waiting":     "◷",
	"pending":     "◷",
	"running":     "▶",
	"succeeded":   "●",
	"terminating": "○",
	"terminated":  "✗",
	"failed":      "✗",
	"unknown":     "?",
}

// PhaseGlyph maps a pod phase or container state to its glyph, case-insensitively.
func PhaseGlyph(phase string) string {
	if g, ok := phaseGlyphs[strings.ToLower(phase)]; ok {
		return g
	}
	return phaseGlyphs["unknown"]
}

// Filter keeps pods whose name contains search, ignoring case.
func Filter(pods []DebugPod, search string) []DebugPod {
	q := strings.ToLower(strings.TrimSpace(search))
	if q == "" {
		return pods
	}
	return lo.Filter(pods, func(p DebugPod, _ int) bool {
		return strings.Contains(strings.ToLower(p.Pod.Name), q)
	})
}
