// Package presence implements ephemeral collaborator presence on top of
// append-only per-author feeds: live cursors and in-progress connection
// previews.
//
// Publishing goes Throttler -> Encode* -> doc.Feed.Append. Reading goes
// doc.FeedSnapshot -> Collector -> []Live. A feed has no notion of a current
// value, so the collector derives it as the latest fresh entry per author.
package presence

import (
	"time"

	"github.com/teranos/coflow/doc"
)

// Freshness thresholds. Entries older than these are treated as absent.
const (
	DefaultCursorFreshness     = 10 * time.Second
	DefaultConnectionFreshness = 5 * time.Second
)

// Role tells which end of a node a connection drag started from
type Role string

const (
	RoleSource Role = "source"
	RoleTarget Role = "target"
)

// Cursor is a collaborator's pointer on the canvas
type Cursor struct {
	Position doc.Position
	Dragging bool
}

// Connection is an in-progress connection drag.
// Empty strings mean the optional field is absent.
type Connection struct {
	Source       string
	SourceRole   Role
	SourceHandle string
	Target       string
	TargetRole   Role
	TargetHandle string
	Position     doc.Position
}

// ClearedConnection is published when a drag ends without a connection
func ClearedConnection() Connection {
	return Connection{SourceRole: RoleSource}
}

// Active reports whether c describes a drag in progress
func (c Connection) Active() bool {
	return c.Source != ""
}

// Live is one remote collaborator's current presence
type Live[P any] struct {
	Author  string
	Color   string
	Payload P
}
