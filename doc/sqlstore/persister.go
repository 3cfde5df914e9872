// Package sqlstore persists flows in SQLite so that a flow created by one
// process can be joined by its share code from another.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/coflow/db"
	"github.com/teranos/coflow/doc"
	"github.com/teranos/coflow/errors"
	"github.com/teranos/coflow/logger"
)

// DefaultFeedRetention is how many entries per (flow, feed, author) are kept
const DefaultFeedRetention = 16

// Persister implements doc.Persister on a migrated SQLite database
type Persister struct {
	db        *sql.DB
	retention int
	now       func() time.Time
	logger    *zap.SugaredLogger
}

// Option configures a Persister
type Option func(*Persister)

// WithFeedRetention sets how many feed entries per author are kept. Values <= 0 keep the default.
func WithFeedRetention(n int) Option {
	return func(p *Persister) {
		if n > 0 {
			p.retention = n
		}
	}
}

// WithLogger sets the persister logger
func WithLogger(l *zap.SugaredLogger) Option {
	return func(p *Persister) {
		p.logger = l
	}
}

// New creates a persister on an already migrated database (see db.OpenWithMigrations)
func New(database *sql.DB, opts ...Option) *Persister {
	p := &Persister{
		db:        database,
		retention: DefaultFeedRetention,
		now:       time.Now,
		logger:    logger.ComponentLogger("sqlstore"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SaveFlow replaces the stored graph of a flow
func (p *Persister) SaveFlow(ctx context.Context, state *doc.FlowState) error {
	now := p.now().Format(time.RFC3339Nano)

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return p.wrap(err, "begin save of flow %s", state.ID)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO flows (id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			updated_at = excluded.updated_at
	`, state.ID, state.Name, now, now)
	if err != nil {
		return p.wrap(err, "failed to upsert flow %s", state.ID)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM flow_nodes WHERE flow_id = ?`, state.ID); err != nil {
		return p.wrap(err, "failed to clear nodes of flow %s", state.ID)
	}
	for i, n := range state.Nodes {
		data, err := json.Marshal(n.Data)
		if err != nil {
			return errors.Wrapf(err, "failed to encode data of node %s", n.ID)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO flow_nodes (flow_id, id, position, type, x, y, data)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, state.ID, n.ID, i, n.Type, n.Position.X, n.Position.Y, string(data))
		if err != nil {
			return p.wrap(err, "failed to insert node %s", n.ID)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM flow_edges WHERE flow_id = ?`, state.ID); err != nil {
		return p.wrap(err, "failed to clear edges of flow %s", state.ID)
	}
	for i, e := range state.Edges {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO flow_edges (flow_id, id, position, type, source, source_handle, target, target_handle)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, state.ID, e.ID, i, e.Type, e.Source, nullString(e.SourceHandle), e.Target, nullString(e.TargetHandle))
		if err != nil {
			return p.wrap(err, "failed to insert edge %s", e.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return p.wrap(err, "failed to commit flow %s", state.ID)
	}
	return nil
}

// AppendFeedEntry records a feed append and prunes the author's history to the retention limit
func (p *Persister) AppendFeedEntry(ctx context.Context, flowID, feed string, entry doc.FeedEntry) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return p.wrap(err, "begin feed append for flow %s", flowID)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO flow_feed_entries (flow_id, feed, author, made_at, value)
		VALUES (?, ?, ?, ?, ?)
	`, flowID, feed, entry.Author, entry.MadeAt.UTC().Format(time.RFC3339Nano), entry.Value)
	if err != nil {
		return p.wrap(err, "failed to append %s entry for flow %s", feed, flowID)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM flow_feed_entries
		WHERE flow_id = ? AND feed = ? AND author = ? AND seq NOT IN (
			SELECT seq FROM flow_feed_entries
			WHERE flow_id = ? AND feed = ? AND author = ?
			ORDER BY seq DESC LIMIT ?
		)
	`, flowID, feed, entry.Author, flowID, feed, entry.Author, p.retention)
	if err != nil {
		return p.wrap(err, "failed to prune %s entries for flow %s", feed, flowID)
	}

	if err := tx.Commit(); err != nil {
		return p.wrap(err, "failed to commit %s entry for flow %s", feed, flowID)
	}
	return nil
}

// LoadFlow reads a flow with its graph and both feeds
func (p *Persister) LoadFlow(ctx context.Context, id string) (*doc.FlowState, error) {
	state := &doc.FlowState{
		ID:          id,
		Nodes:       []*doc.NodeRecord{},
		Edges:       []*doc.EdgeRecord{},
		Cursors:     doc.FeedSnapshot{},
		Connections: doc.FeedSnapshot{},
	}

	err := p.db.QueryRowContext(ctx, `SELECT name FROM flows WHERE id = ?`, id).Scan(&state.Name)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("flow %s not found", id)
	}
	if err != nil {
		return nil, p.wrap(err, "failed to get flow %s", id)
	}

	if err := p.loadNodes(ctx, state); err != nil {
		return nil, err
	}
	if err := p.loadEdges(ctx, state); err != nil {
		return nil, err
	}
	if err := p.loadFeeds(ctx, state); err != nil {
		return nil, err
	}

	p.logger.Debugw("Flow read from database",
		logger.FieldFlowID, id,
		logger.FieldNodes, len(state.Nodes),
		logger.FieldEdges, len(state.Edges),
	)
	return state, nil
}

// DeleteFlow removes a flow and everything it owns
func (p *Persister) DeleteFlow(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, `DELETE FROM flows WHERE id = ?`, id)
	if err != nil {
		return p.wrap(err, "failed to delete flow %s", id)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return errors.NewNotFoundError("flow %s not found", id)
	}
	return nil
}

// FlowSummary is one row of ListFlows
type FlowSummary struct {
	ID        string
	Name      string
	Nodes     int
	Edges     int
	UpdatedAt time.Time
}

// ListFlows returns every stored flow, most recently updated first
func (p *Persister) ListFlows(ctx context.Context) ([]FlowSummary, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT f.id, f.name, f.updated_at,
			(SELECT COUNT(*) FROM flow_nodes n WHERE n.flow_id = f.id),
			(SELECT COUNT(*) FROM flow_edges e WHERE e.flow_id = f.id)
		FROM flows f
		ORDER BY f.updated_at DESC
	`)
	if err != nil {
		return nil, p.wrap(err, "failed to list flows")
	}
	defer rows.Close()

	var flows []FlowSummary
	for rows.Next() {
		var s FlowSummary
		var updatedAt string
		if err := rows.Scan(&s.ID, &s.Name, &updatedAt, &s.Nodes, &s.Edges); err != nil {
			return nil, p.wrap(err, "failed to scan flow")
		}
		if s.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
			return nil, p.wrap(err, "invalid updated_at of flow %s", s.ID)
		}
		flows = append(flows, s)
	}
	if err := rows.Err(); err != nil {
		return nil, p.wrap(err, "failed to list flows")
	}
	return flows, nil
}

func (p *Persister) loadNodes(ctx context.Context, state *doc.FlowState) error {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, type, x, y, data FROM flow_nodes
		WHERE flow_id = ? ORDER BY position ASC
	`, state.ID)
	if err != nil {
		return p.wrap(err, "failed to list nodes of flow %s", state.ID)
	}
	defer rows.Close()

	for rows.Next() {
		var n doc.NodeRecord
		var data string
		if err := rows.Scan(&n.ID, &n.Type, &n.Position.X, &n.Position.Y, &data); err != nil {
			return p.wrap(err, "failed to scan node")
		}
		if err := json.Unmarshal([]byte(data), &n.Data); err != nil {
			return errors.Wrapf(err, "failed to decode data of node %s", n.ID)
		}
		if n.Data == nil {
			n.Data = map[string]any{}
		}
		state.Nodes = append(state.Nodes, &n)
	}
	if err := rows.Err(); err != nil {
		return p.wrap(err, "failed to list nodes of flow %s", state.ID)
	}
	return nil
}

func (p *Persister) loadEdges(ctx context.Context, state *doc.FlowState) error {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, type, source, source_handle, target, target_handle FROM flow_edges
		WHERE flow_id = ? ORDER BY position ASC
	`, state.ID)
	if err != nil {
		return p.wrap(err, "failed to list edges of flow %s", state.ID)
	}
	defer rows.Close()

	for rows.Next() {
		var e doc.EdgeRecord
		var sourceHandle, targetHandle sql.NullString
		if err := rows.Scan(&e.ID, &e.Type, &e.Source, &sourceHandle, &e.Target, &targetHandle); err != nil {
			return p.wrap(err, "failed to scan edge")
		}
		e.SourceHandle = sourceHandle.String
		e.TargetHandle = targetHandle.String
		state.Edges = append(state.Edges, &e)
	}
	if err := rows.Err(); err != nil {
		return p.wrap(err, "failed to list edges of flow %s", state.ID)
	}
	return nil
}

func (p *Persister) loadFeeds(ctx context.Context, state *doc.FlowState) error {
	rows, err := p.db.QueryContext(ctx, `
		SELECT feed, author, made_at, value FROM flow_feed_entries
		WHERE flow_id = ? ORDER BY seq ASC
	`, state.ID)
	if err != nil {
		return p.wrap(err, "failed to list feed entries of flow %s", state.ID)
	}
	defer rows.Close()

	for rows.Next() {
		var feed, madeAt string
		var entry doc.FeedEntry
		if err := rows.Scan(&feed, &entry.Author, &madeAt, &entry.Value); err != nil {
			return p.wrap(err, "failed to scan feed entry")
		}
		if entry.MadeAt, err = time.Parse(time.RFC3339Nano, madeAt); err != nil {
			return p.wrap(err, "invalid made_at of %s entry by %s", feed, entry.Author)
		}

		switch feed {
		case doc.FeedCursors:
			state.Cursors[entry.Author] = append(state.Cursors[entry.Author], entry)
		case doc.FeedConnections:
			state.Connections[entry.Author] = append(state.Connections[entry.Author], entry)
		}
	}
	if err := rows.Err(); err != nil {
		return p.wrap(err, "failed to list feed entries of flow %s", state.ID)
	}
	return nil
}

// wrap marks database failures as transport failures
func (p *Persister) wrap(err error, format string, args ...interface{}) error {
	if db.IsDatabaseClosed(err) {
		err = errors.Mark(err, db.ErrDatabaseClosed)
	}
	return errors.Mark(errors.Wrapf(err, format, args...), errors.ErrTransport)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
