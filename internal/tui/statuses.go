package tui

import (
	"github.com/iamhalje/argo-appsets/internal/models"
	"github.com/iamhalje/argo-appsets/internal/services"

	"github.com/charmbracelet/lipgloss"
)

// statusDescriptor is how one status code is drawn.
type statusDescriptor struct {
	Glyph string
	Label string
	Color lipgloss.Color
}

func (d statusDescriptor) render() string {
	return lipgloss.NewStyle().Foreground(d.Color).Render(d.Glyph + " " + d.Label)
}

func (d statusDescriptor) glyph() string {
	return lipgloss.NewStyle().Foreground(d.Color).Render(d.Glyph)
}

var healthDescriptors = map[models.HealthStatus]statusDescriptor{
	models.HealthHealthy:     {Glyph: "♥", Label: "Healthy", Color: "42"},
	models.HealthProgressing: {Glyph: "◌", Label: "Progressing", Color: "39"},
	models.HealthProcessing:  {Glyph: "◌", Label: "Processing", Color: "39"},
	models.HealthSuspended:   {Glyph: "⏸", Label: "Suspended", Color: "245"},
	models.HealthDegraded:    {Glyph: "✖", Label: "Degraded", Color: "196"},
	models.HealthMissing:     {Glyph: "◇", Label: "Missing", Color: "214"},
	models.HealthUnknown:     {Glyph: "?", Label: "Unknown", Color: "141"},
}

var syncDescriptors = map[models.SyncStatus]statusDescriptor{
	models.SyncSynced:    {Glyph: "✓", Label: "Synced", Color: "42"},
	models.SyncOutOfSync: {Glyph: "↑", Label: "OutOfSync", Color: "214"},
	models.SyncUnknown:   {Glyph: "?", Label: "Unknown", Color: "141"},
}

var tileDescriptors = map[services.TileStatus]statusDescriptor{
	services.TileDegraded:   {Glyph: "■", Label: "degraded", Color: "196"},
	services.TileWarning:    {Glyph: "■", Label: "warning", Color: "214"},
	services.TileProcessing: {Glyph: "■", Label: "processing", Color: "39"},
	services.TileSuspended:  {Glyph: "■", Label: "suspended", Color: "245"},
	services.TileUnknown:    {Glyph: "■", Label: "unknown", Color: "141"},
	services.TileHealthy:    {Glyph: "■", Label: "healthy", Color: "42"},
}

var taskDescriptors = map[models.TaskStatus]statusDescriptor{
	models.TaskPending: {Glyph: "·", Label: "pending", Color: "240"},
	models.TaskRunning: {Glyph: "…", Label: "running", Color: "214"},
	models.TaskSuccess: {Glyph: "✓", Label: "success", Color: "42"},
	models.TaskFailed:  {Glyph: "✗", Label: "failed", Color: "196"},
}

// Unknown codes fall back to the Unknown descriptor.
func healthDescriptor(h models.HealthStatus) statusDescriptor {
	if d, ok := healthDescriptors[h]; ok {
		return d
	}
	return healthDescriptors[models.HealthUnknown]
}

func syncDescriptor(s models.SyncStatus) statusDescriptor {
	if d, ok := syncDescriptors[s]; ok {
		return d
	}
	return syncDescriptors[models.SyncUnknown]
}

func tileDescriptor(t services.TileStatus) statusDescriptor {
	if d, ok := tileDescriptors[t]; ok {
		return d
	}
	return tileDescriptors[services.TileUnknown]
}

func taskDescriptor(t models.TaskStatus) statusDescriptor {
	if d, ok := taskDescriptors[t]; ok {
		return d
	}
	return taskDescriptors[models.TaskPending]
}
