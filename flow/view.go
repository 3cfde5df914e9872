package flow

import "github.com/teranos/coflow/doc"

// Dimensions is a node's measured size as reported by the rendering surface
type Dimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ViewNode is the render form of a node. Selected and Measured are local to
// this session and never written to the shared document.
type ViewNode struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Position doc.Position   `json:"position"`
	Data     map[string]any `json:"data"`
	Selected bool           `json:"selected,omitempty"`
	Measured *Dimensions    `json:"measured,omitempty"`
}

// ViewEdge is the render form of an edge
type ViewEdge struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Source       string `json:"source"`
	SourceHandle string `json:"source_handle,omitempty"`
	Target       string `json:"target"`
	TargetHandle string `json:"target_handle,omitempty"`
	Selected     bool   `json:"selected,omitempty"`
}

// View is what the rendering surface draws. Items are shared between
// successive views while their records are unchanged; treat them as read-only.
type View struct {
	Nodes []*ViewNode
	Edges []*ViewEdge
}

func nodeKey(n *doc.NodeRecord) string { return n.ID }
func edgeKey(e *doc.EdgeRecord) string { return e.ID }

// buildNode merges rec over the local fields of prev
func buildNode(rec *doc.NodeRecord, prev *ViewNode) *ViewNode {
	v := &ViewNode{
		ID:       rec.ID,
		Type:     rec.Type,
		Position: rec.Position,
		Data:     make(map[string]any, len(rec.Data)),
	}
	for k, val := range rec.Data {
		v.Data[k] = val
	}
	if prev != nil {
		v.Selected = prev.Selected
		v.Measured = prev.Measured
	}
	return v
}

func buildEdge(rec *doc.EdgeRecord, prev *ViewEdge) *ViewEdge {
	v := &ViewEdge{
		ID:           rec.ID,
		Type:         rec.Type,
		Source:       rec.Source,
		SourceHandle: rec.SourceHandle,
		Target:       rec.Target,
		TargetHandle: rec.TargetHandle,
	}
	if prev != nil {
		v.Selected = prev.Selected
	}
	return v
}
