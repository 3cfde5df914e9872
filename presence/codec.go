package presence

import (
	"strconv"
	"strings"

	"github.com/teranos/coflow/errors"
)

// Wire format: fixed-order fields joined by "/", absent optionals as empty
// segments. Field values must not contain the separator; node ids and handles
// never do.
const separator = "/"

// EncodeCursor serializes c as "x/y/d" with d in {1, 0}
func EncodeCursor(c Cursor) string {
	dragging := "0"
	if c.Dragging {
		dragging = "1"
	}
	return strings.Join([]string{
		formatFloat(c.Position.X),
		formatFloat(c.Position.Y),
		dragging,
	}, separator)
}

// DecodeCursor parses the output of EncodeCursor.
// Malformed input is an invariant violation and returns an assertion failure.
func DecodeCursor(s string) (Cursor, error) {
	parts := strings.Split(s, separator)
	if len(parts) != 3 {
		return Cursor{}, errors.AssertionFailedf("malformed cursor %q: want 3 fields, got %d", s, len(parts))
	}

	var c Cursor
	var err error
	if c.Position.X, err = parseFloat(parts[0]); err != nil {
		return Cursor{}, errors.AssertionFailedf("malformed cursor %q: x: %v", s, err)
	}
	if c.Position.Y, err = parseFloat(parts[1]); err != nil {
		return Cursor{}, errors.AssertionFailedf("malformed cursor %q: y: %v", s, err)
	}
	switch parts[2] {
	case "1":
		c.Dragging = true
	case "0":
	default:
		return Cursor{}, errors.AssertionFailedf("malformed cursor %q: dragging flag %q", s, parts[2])
	}
	return c, nil
}

// EncodeConnection serializes c as
// "source/sourceRole/sourceHandle/target/targetRole/targetHandle/x/y"
func EncodeConnection(c Connection) string {
	return strings.Join([]string{
		c.Source,
		string(c.SourceRole),
		c.SourceHandle,
		c.Target,
		string(c.TargetRole),
		c.TargetHandle,
		formatFloat(c.Position.X),
		formatFloat(c.Position.Y),
	}, separator)
}

// DecodeConnection parses the output of EncodeConnection
func DecodeConnection(s string) (Connection, error) {
	parts := strings.Split(s, separator)
	if len(parts) != 8 {
		return Connection{}, errors.AssertionFailedf("malformed connection %q: want 8 fields, got %d", s, len(parts))
	}

	c := Connection{
		Source:       parts[0],
		SourceRole:   Role(parts[1]),
		SourceHandle: parts[2],
		Target:       parts[3],
		TargetRole:   Role(parts[4]),
		TargetHandle: parts[5],
	}
	if !validRole(c.SourceRole, false) {
		return Connection{}, errors.AssertionFailedf("malformed connection %q: source role %q", s, parts[1])
	}
	if !validRole(c.TargetRole, true) {
		return Connection{}, errors.AssertionFailedf("malformed connection %q: target role %q", s, parts[4])
	}

	var err error
	if c.Position.X, err = parseFloat(parts[6]); err != nil {
		return Connection{}, errors.AssertionFailedf("malformed connection %q: x: %v", s, err)
	}
	if c.Position.Y, err = parseFloat(parts[7]); err != nil {
		return Connection{}, errors.AssertionFailedf("malformed connection %q: y: %v", s, err)
	}
	return c, nil
}

func validRole(r Role, optional bool) bool {
	switch r {
	case RoleSource, RoleTarget:
		return true
	case "":
		return optional
	}
	return false
}

// formatFloat is the shortest representation that parses back to v
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}
