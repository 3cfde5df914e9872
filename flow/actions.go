package flow

import (
	"github.com/teranos/coflow/doc"
	"github.com/teranos/coflow/logger"
)

// DefaultNodeLabel is the label of a node added without data
const DefaultNodeLabel = "New Node"

// NodeInput describes a node to add. Zero fields take defaults.
type NodeInput struct {
	Type     string
	Position doc.Position
	Data     map[string]any
}

// EdgeInput describes an edge to add
type EdgeInput struct {
	Type         string
	Source       string
	SourceHandle string
	Target       string
	TargetHandle string
}

// TextNode is the input for a free text node at position
func TextNode(position doc.Position) NodeInput {
	return NodeInput{
		Type:     "text",
		Position: position,
		Data: map[string]any{
			"label":       "Text Input",
			"value":       "",
			"placeholder": "Enter text...",
		},
	}
}

// CheckboxNode is the input for an unchecked checkbox node at position
func CheckboxNode(position doc.Position) NodeInput {
	return NodeInput{
		Type:     "checkbox",
		Position: position,
		Data: map[string]any{
			"label":   "New Checkbox",
			"checked": false,
		},
	}
}

// AddNode appends a node to the shared document and returns its id.
// Returns "" when the session is closed.
func (s *Session) AddNode(in NodeInput) string {
	if !s.active("add_node") {
		return ""
	}
	if in.Type == "" {
		in.Type = doc.DefaultNodeType
	}
	if in.Data == nil {
		in.Data = map[string]any{"label": DefaultNodeLabel}
	}

	rec := s.document.AppendNode(doc.NodeRecord{
		Type:     in.Type,
		Position: in.Position,
		Data:     in.Data,
	})
	s.logger.Debugw("Node added", logger.FieldNodeID, rec.ID)
	return rec.ID
}

// AddEdge appends an edge to the shared document and returns its id.
// Returns "" when the session is closed.
func (s *Session) AddEdge(in EdgeInput) string {
	if !s.active("add_edge") {
		return ""
	}
	if in.Type == "" {
		in.Type = doc.DefaultEdgeType
	}

	rec := s.document.AppendEdge(doc.EdgeRecord{
		Type:         in.Type,
		Source:       in.Source,
		SourceHandle: in.SourceHandle,
		Target:       in.Target,
		TargetHandle: in.TargetHandle,
	})
	s.logger.Debugw("Edge added", logger.FieldEdgeID, rec.ID)
	return rec.ID
}

// Connect creates a default edge from a completed connection gesture.
// Does nothing and returns "" unless both source and target are set.
func (s *Session) Connect(source, sourceHandle, target, targetHandle string) string {
	if source == "" || target == "" {
		return ""
	}
	return s.AddEdge(EdgeInput{
		Type:         doc.DefaultEdgeType,
		Source:       source,
		SourceHandle: sourceHandle,
		Target:       target,
		TargetHandle: targetHandle,
	})
}

// UpdateNodeData merges data into a node's shared data, key by key.
// Returns false for an unknown id or a closed session.
func (s *Session) UpdateNodeData(id string, data map[string]any) bool {
	if !s.active("update_node_data") {
		return false
	}
	return s.document.UpdateNode(id, func(n *doc.NodeRecord) {
		for k, v := range data {
			n.Data[k] = v
		}
	})
}
