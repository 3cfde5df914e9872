package presence

import "sync"

// DefaultColors is the collaborator palette
var DefaultColors = []string{
	"#DA702C",
	"#D0A215",
	"#879A39",
	"#3AA99F",
	"#4385BE",
	"#D14D41",
	"#8B7EC8",
	"#CE5D97",
}

// Palette assigns each author a colour the first time it is seen, in
// round-robin order. Assignments are stable for the palette's lifetime and
// are local to it; two clients may colour the same author differently.
type Palette struct {
	mu       sync.Mutex
	colors   []string
	assigned map[string]string
	index    int
}

// NewPalette creates a palette over colors, or DefaultColors when none are given
func NewPalette(colors ...string) *Palette {
	if len(colors) == 0 {
		colors = DefaultColors
	}
	return &Palette{
		colors:   append([]string(nil), colors...),
		assigned: make(map[string]string),
	}
}

// Color returns the colour of author, assigning the next one if needed.
// The index is advanced before use, so the first author gets the second colour.
func (p *Palette) Color(author string) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.assigned[author]; ok {
		return c
	}
	p.index++
	if p.index >= len(p.colors) {
		p.index = 0
	}
	c := p.colors[p.index]
	p.assigned[author] = c
	return c
}

// Len returns how many authors have been assigned a colour
func (p *Palette) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.assigned)
}
