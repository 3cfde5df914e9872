package sym

import (
	"testing"
	"unicode/utf8"
)

func TestSymbolToCommandAndCommandToSymbolAreBidirectional(t *testing.T) {
	for symbol, cmd := range SymbolToCommand {
		got, ok := CommandToSymbol[cmd]
		if !ok {
			t.Errorf("SymbolToCommand has %q → %q, but CommandToSymbol has no entry for %q", symbol, cmd, cmd)
			continue
		}
		if got != symbol {
			t.Errorf("bidirectional mismatch: SymbolToCommand[%q] = %q, but CommandToSymbol[%q] = %q", symbol, cmd, cmd, got)
		}
	}
	if len(SymbolToCommand) != len(CommandToSymbol) {
		t.Errorf("map size mismatch: SymbolToCommand has %d entries, CommandToSymbol has %d",
			len(SymbolToCommand), len(CommandToSymbol))
	}
}

func TestGlyphsAreSingleRunes(t *testing.T) {
	for _, glyph := range []string{Flow, Node, Edge, Self, Cursor, Presence, Share, Config, DB} {
		if n := utf8.RuneCountInString(glyph); n != 1 {
			t.Errorf("glyph %q has %d runes, want 1", glyph, n)
		}
	}
}

func TestMark(t *testing.T) {
	if got := Mark("share", "Copy the code"); got != Share+" Copy the code" {
		t.Errorf("Mark(share) = %q", got)
	}
	if got := Mark("version", "Show version"); got != "Show version" {
		t.Errorf("Mark(version) = %q, want unchanged", got)
	}
}
