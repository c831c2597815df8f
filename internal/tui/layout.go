package tui

import "github.com/charmbracelet/lipgloss"

func onOff(v bool) string {
	if v {
		return "x"
	}
	return " "
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func ensureOffset(offset, cursor, height, total int) int {
	if total <= 0 {
		return 0
	}
	if height <= 0 {
		height = 1
	}
	if cursor < offset {
		return cursor
	}
	if cursor >= offset+height {
		return cursor - height + 1
	}
	return offset
}

// visibleRange returns the [start, end) window of a scrolled list.
func visibleRange(offset, height, total int) (start, end int) {
	start = clamp(offset, 0, max(0, total-1))
	end = min(total, start+max(1, height))
	return start, end
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func fitLine(width int, s string) string {
	if width <= 0 {
		return s
	}
	return lipgloss.NewStyle().Width(width).MaxHeight(1).Render(s)
}

// pad renders s at least w cells wide, ignoring color codes.
func pad(s string, w int) string {
	return lipgloss.NewStyle().Width(w).Render(s)
}
