package flow

import "github.com/teranos/coflow/doc"

// Change is one event of a change batch emitted by the rendering surface.
// The set of changes is closed: Move, Resize, Select and Remove.
type Change interface {
	// Target is the id of the node or edge the change applies to
	Target() string
	kind() string
}

// Move sets a node's shared position
type Move struct {
	ID       string
	Position doc.Position
}

// Resize records a node's measured size. Local only.
type Resize struct {
	ID         string
	Dimensions Dimensions
}

// Select sets the local selection state of a node or edge
type Select struct {
	ID       string
	Selected bool
}

// Remove deletes a node or edge from the shared document
type Remove struct {
	ID string
}

func (c Move) Target() string   { return c.ID }
func (c Resize) Target() string { return c.ID }
func (c Select) Target() string { return c.ID }
func (c Remove) Target() string { return c.ID }

func (Move) kind() string   { return "move" }
func (Resize) kind() string { return "resize" }
func (Select) kind() string { return "select" }
func (Remove) kind() string { return "remove" }
