package prettylogs

import "encoding/json"

type Mode string

const (
	ModeJSON Mode = "json"
	ModeRaw  Mode = "raw"
)

const (
	sampleSize = 10
	// detection stops once the buffer holds this many lines.
	detectLimit = 100
)

// DetectMode samples the last lines and picks json when more than half of them are valid JSON.
func DetectMode(lines []string) Mode {
	if len(lines) == 0 {
		return ModeJSON
	}
	n := min(sampleSize, len(lines))
	valid := 0
	for _, l := range lines[len(lines)-n:] {
		if json.Valid([]byte(l)) {
			valid++
		}
	}
	if valid*2 > n {
		return ModeJSON
	}
	return ModeRaw
}

// Buffer tracks streamed lines and keeps the detected mode current
// while the stream is young. Once detection stops only the last sampleSize
// lines are retained.
type Buffer struct {
	lines []string
	seen  int
	mode  Mode
}

func NewBuffer() *Buffer {
	return &Buffer{mode: ModeJSON}
}

func (b *Buffer) Append(lines ...string) {
	b.lines = append(b.lines, lines...)
	b.seen += len(lines)
	if b.seen > 0 && b.seen < detectLimit {
		b.mode = DetectMode(b.lines)
		return
	}
	if n := len(b.lines); n > sampleSize {
		b.lines = append(b.lines[:0], b.lines[n-sampleSize:]...)
	}
}

// Lines returns the retained lines, oldest first.
func (b *Buffer) Lines() []string { return b.lines }

func (b *Buffer) Mode() Mode { return b.mode }

// Len is the number of lines appended since the last Clear.
func (b *Buffer) Len() int { return b.seen }

func (b *Buffer) Clear() {
	b.lines = nil
	b.seen = 0
	b.mode = ModeJSON
}
