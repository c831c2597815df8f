package prettylogs

import (
	"strings"

	"github.com/iamhalje/argo-appsets/internal/store"

	"github.com/charmbracelet/lipgloss"
)

type Options struct {
	Mode   Mode
	Wrap   bool
	Width  int
	UIMode store.UIMode
}

type palette struct {
	time  lipgloss.Style
	msg   lipgloss.Style
	field lipgloss.Style
	level map[string]lipgloss.Style
}

func newPalette(mode store.UIMode) palette {
	text, dim := lipgloss.Color("252"), lipgloss.Color("244")
	if mode == store.UIModeBright {
		text, dim = lipgloss.Color("235"), lipgloss.Color("240")
	}
	level := func(c string) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(lipgloss.Color(c)).Bold(true)
	}
	return palette{
		time:  lipgloss.NewStyle().Foreground(dim),
		msg:   lipgloss.NewStyle().Foreground(text),
		field: lipgloss.NewStyle().Foreground(dim).Italic(true),
		level: map[string]lipgloss.Style{
			"trace":   level("245"),
			"debug":   level("39"),
			"info":    level("42"),
			"warn":    level("214"),
			"warning": level("214"),
			"error":   level("196"),
			"fatal":   level("201"),
			"panic":   level("201"),
		},
	}
}

// Render formats one raw line. In json mode structured lines become
// LEVEL time msg key=value...; everything else keeps its ANSI colors.
func Render(raw string, opts Options) string {
	p := newPalette(opts.UIMode)

	var out string
	line := ParseLine(raw)
	if opts.Mode == ModeJSON && line.Structured {
		out = renderStructured(line, p)
	} else {
		out = renderANSI(raw, p)
	}

	if opts.Width <= 0 {
		return out
	}
	if opts.Wrap {
		return lipgloss.NewStyle().Width(opts.Width).Render(out)
	}
	return lipgloss.NewStyle().MaxWidth(opts.Width).Render(out)
}

func renderStructured(l Line, p palette) string {
	lvl := strings.ToLower(l.Level)
	style, ok := p.level[lvl]
	if !ok {
		style = p.level[DefaultLevel]
	}

	parts := []string{style.Render(strings.ToUpper(l.Level))}
	if l.Time != "" {
		parts = append(parts, p.time.Render(l.Time))
	}
	parts = append(parts, p.msg.Render(l.Msg))
	for _, f := range l.Fields {
		parts = append(parts, p.field.Render(f.Key+"="+f.Value))
	}
	return strings.Join(parts, " ")
}

func renderANSI(raw string, p palette) string {
	var b strings.Builder
	for _, seg := range ParseANSI(raw) {
		if seg.Color == "" {
			b.WriteString(p.msg.Render(seg.Text))
			continue
		}
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(seg.Color)).Render(seg.Text))
	}
	return b.String()
}

// Match reports whether raw contains filter, ignoring case and color codes.
func Match(raw, filter string) bool {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return true
	}
	return strings.Contains(strings.ToLower(StripANSI(raw)), strings.ToLower(filter))
}
