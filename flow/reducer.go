package flow

import (
	"github.com/teranos/coflow/doc"
	"github.com/teranos/coflow/logger"
	"github.com/teranos/coflow/metrics"
)

// ApplyNodeChanges applies a batch of node changes in order. Move and Remove
// are written to the shared document; Resize and Select only touch this
// session's view. Changes for unknown ids are skipped.
func (s *Session) ApplyNodeChanges(changes []Change) {
	if !s.active("apply_node_changes") {
		return
	}

	local := false
	for _, change := range changes {
		applied := false
		switch c := change.(type) {
		case Move:
			applied = s.document.UpdateNode(c.ID, func(n *doc.NodeRecord) {
				n.Position = c.Position
			})
		case Resize:
			applied = s.updateNodeView(c.ID, func(v ViewNode) ViewNode {
				d := c.Dimensions
				v.Measured = &d
				return v
			})
			local = local || applied
		case Select:
			applied = s.updateNodeView(c.ID, func(v ViewNode) ViewNode {
				v.Selected = c.Selected
				return v
			})
			local = local || applied
		case Remove:
			applied = s.removeNode(c.ID)
		}

		if applied {
			s.metrics.RecordChange(metrics.CollectionNodes, change.kind())
		} else {
			s.logger.Debugw("Skipping node change for unknown id",
				logger.FieldNodeID, change.Target(),
				logger.FieldChange, change.kind(),
			)
		}
	}

	// Local fields never reach the document, so no snapshot will announce them
	if local {
		s.emitView()
	}
}

// ApplyEdgeChanges applies a batch of edge changes in order. Only Select and
// Remove apply to edges; other kinds are ignored.
func (s *Session) ApplyEdgeChanges(changes []Change) {
	if !s.active("apply_edge_changes") {
		return
	}

	local := false
	for _, change := range changes {
		applied := false
		switch c := change.(type) {
		case Select:
			applied = s.updateEdgeView(c.ID, func(v ViewEdge) ViewEdge {
				v.Selected = c.Selected
				return v
			})
			local = local || applied
		case Remove:
			applied = s.removeEdge(c.ID)
		}

		if applied {
			s.metrics.RecordChange(metrics.CollectionEdges, change.kind())
		} else {
			s.logger.Debugw("Skipping edge change",
				logger.FieldEdgeID, change.Target(),
				logger.FieldChange, change.kind(),
			)
		}
	}

	if local {
		s.emitView()
	}
}

func (s *Session) updateNodeView(id string, fn func(ViewNode) ViewNode) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nodes.Update(id, fn)
}

func (s *Session) updateEdgeView(id string, fn func(ViewEdge) ViewEdge) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.edges.Update(id, fn)
}

// removeNode drops the cache entry, then removes the node from the document
// if it is still there. Removing twice is a no-op.
func (s *Session) removeNode(id string) bool {
	s.mu.Lock()
	cached := s.nodes.Delete(id)
	s.mu.Unlock()

	return s.document.RemoveNode(id) || cached
}

func (s *Session) removeEdge(id string) bool {
	s.mu.Lock()
	cached := s.edges.Delete(id)
	s.mu.Unlock()

	return s.document.RemoveEdge(id) || cached
}
