package prettylogs

import (
	"regexp"
	"strings"
)

var ansiPattern = regexp.MustCompile(`\x1b\[([0-9;]*?)m`)

// ansiColors maps SGR foreground and background codes to hex colors.
var ansiColors = map[string]string{
	"30": "#000000", "31": "#e15353", "32": "#7adf47", "33": "#f4c030",
	"34": "#30a2f4", "35": "#ffa7c4", "36": "#00ffff", "37": "#ffffff",

	"90": "#808080", "91": "#ff6b6b", "92": "#6cbb3c", "93": "#ffd93d",
	"94": "#4dabf7", "95": "#ffa7c4", "96": "#00ffff", "97": "#ffffff",

	"40": "#000000", "41": "#e15353", "42": "#7adf47", "43": "#f4c030",
	"44": "#30a2f4", "45": "#ffa7c4", "46": "#00ffff", "47": "#ffffff",

	"100": "#808080", "101": "#ff6b6b", "102": "#6cbb3c", "103": "#ffd93d",
	"104": "#4dabf7", "105": "#ffa7c4", "106": "#00ffff", "107": "#ffffff",
}

// Segment is a run of text drawn in one color. Empty Color means default.
type Segment struct {
	Text  string
	Color string
}

// ParseANSI splits s on SGR escape sequences. A sequence containing 0 resets the color,
// otherwise its last code wins; unknown codes reset as well.
func ParseANSI(s string) []Segment {
	matches := ansiPattern.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return []Segment{{Text: s}}
	}

	var out []Segment
	color := ""
	pos := 0
	for _, m := range matches {
		if text := s[pos:m[0]]; text != "" {
			out = append(out, Segment{Text: text, Color: color})
		}
		pos = m[1]

		codes := strings.Split(s[m[2]:m[3]], ";")
		if containsReset(codes) {
			color = ""
			continue
		}
		color = ansiColors[codes[len(codes)-1]]
	}
	if text := s[pos:]; text != "" {
		out = append(out, Segment{Text: text, Color: color})
	}
	return out
}

// StripANSI drops every SGR sequence.
func StripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

func containsReset(codes []string) bool {
	for _, c := range codes {
		if c == "0" {
			return true
		}
	}
	return false
}
