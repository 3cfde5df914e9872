// Package sym defines the glyphs coflow uses to mark commands and output.
// These symbols are stable across CLI help, tables and documentation.
package sym

// Graph glyphs
const (
	Flow = "⌗" // a shared flow (canvas)
	Node = "▢" // node of the graph
	Edge = "⟶" // edge between two nodes
)

// Collaboration glyphs
const (
	Self     = "⍟" // the local collaborator
	Cursor   = "✦" // a live cursor
	Presence = "⌬" // other collaborators in the flow
	Share    = "⇪" // share code export
)

// System glyphs
const (
	Config = "≡" // configuration
	DB     = "⊔" // flow database
)

// SymbolToCommand maps glyphs to the CLI command they mark
var SymbolToCommand = map[string]string{
	Flow:     "flows",
	Node:     "add-node",
	Edge:     "connect",
	Cursor:   "cursor",
	Presence: "presence",
	Share:    "share",
	Config:   "config",
}

// CommandToSymbol maps CLI commands to their glyph
var CommandToSymbol = map[string]string{
	"flows":    Flow,
	"add-node": Node,
	"connect":  Edge,
	"cursor":   Cursor,
	"presence": Presence,
	"share":    Share,
	"config":   Config,
}

// Mark prefixes a command's short description with its glyph, if it has one
func Mark(command, short string) string {
	if glyph, ok := CommandToSymbol[command]; ok {
		return glyph + " " + short
	}
	return short
}
