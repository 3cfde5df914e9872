package logger

import (
	"go.uber.org/zap"
)

// Standard field names for consistent structured logging across coflow.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Identity
	FieldFlowID = "flow_id"
	FieldAuthor = "author"
	FieldNodeID = "node_id"
	FieldEdgeID = "edge_id"

	// Components
	FieldComponent = "component"

	// Operations
	FieldOperation = "operation"
	FieldChange    = "change"
	FieldFeed      = "feed"
	FieldState     = "state"
	FieldSeq       = "seq"

	// Errors
	FieldError = "error"

	// Counts and sizes
	FieldCount   = "count"
	FieldNodes   = "nodes"
	FieldEdges   = "edges"
	FieldReused  = "reused"
	FieldRebuilt = "rebuilt"
	FieldPurged  = "purged"

	// Files and paths
	FieldPath = "path"
)

// ComponentLogger returns a named logger for a specific component.
// This is the preferred way to get a logger for dependency injection.
//
// Example:
//
//	type Session struct {
//	    logger *zap.SugaredLogger
//	}
//
//	func Open(...) *Session {
//	    return &Session{logger: logger.ComponentLogger("flow.session")}
//	}
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}

// ChildLogger creates a child logger with additional context.
//
// Example:
//
//	flowLogger := logger.ChildLogger(baseLogger, logger.FieldFlowID, doc.ID())
func ChildLogger(parent *zap.SugaredLogger, keysAndValues ...interface{}) *zap.SugaredLogger {
	return parent.With(keysAndValues...)
}
