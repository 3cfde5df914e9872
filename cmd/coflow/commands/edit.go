package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/coflow/doc"
	"github.com/teranos/coflow/errors"
	"github.com/teranos/coflow/flow"
	"github.com/teranos/coflow/sym"
)

// Node kinds accepted by add-node
const (
	KindText     = "text"
	KindCheckbox = "checkbox"
	KindPlain    = "plain"
)

// AddNodeCmd appends a node to a flow
var AddNodeCmd = &cobra.Command{
	Use:   "add-node <code>",
	Short: sym.Mark("add-node", "Add a node to a flow"),
	Long: `Add a node to a flow and print its id.

Kinds:
  text      free text input (default)
  checkbox  unchecked checkbox
  plain     node with only a label

Examples:
  coflow add-node co_z3Fq... --x 120 --y 40
  coflow add-node co_z3Fq... --kind checkbox
  coflow add-node co_z3Fq... --kind plain --label "Start"`,
	Args: cobra.ExactArgs(1),
	RunE: runAddNode,
}

// ConnectCmd adds an edge between two nodes
var ConnectCmd = &cobra.Command{
	Use:   "connect <code> <source[:handle]> <target[:handle]>",
	Short: sym.Mark("connect", "Connect two nodes with an edge"),
	Args:  cobra.ExactArgs(3),
	RunE:  runConnect,
}

// MoveCmd moves a node
var MoveCmd = &cobra.Command{
	Use:   "move <code> <node> <x> <y>",
	Short: "Move a node to a new position",
	Args:  cobra.ExactArgs(4),
	RunE:  runMove,
}

// RmCmd removes nodes or edges
var RmCmd = &cobra.Command{
	Use:   "rm <code> <id>...",
	Short: "Remove nodes or edges from a flow",
	Long: `Remove nodes or edges by id. Edges attached to a removed node are kept;
remove them explicitly.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runRm,
}

// SetCmd merges data into a node
var SetCmd = &cobra.Command{
	Use:   "set <code> <node> <key=value>...",
	Short: "Set data fields on a node",
	Long: `Merge key=value pairs into a node's data. Values true and false are
stored as booleans, numbers as numbers, anything else as text.

Examples:
  coflow set co_z3Fq... n_8Hk... value="buy milk"
  coflow set co_z3Fq... n_2Lp... checked=true`,
	Args: cobra.MinimumNArgs(3),
	RunE: runSet,
}

var (
	addNodeKind  string
	addNodeType  string
	addNodeLabel string
	addNodeX     float64
	addNodeY     float64
)

func init() {
	AddNodeCmd.Flags().StringVar(&addNodeKind, "kind", KindText, "Node kind: text, checkbox or plain")
	AddNodeCmd.Flags().StringVar(&addNodeType, "type", "", "Node type for plain nodes (default \"text\")")
	AddNodeCmd.Flags().StringVar(&addNodeLabel, "label", "", "Node label")
	AddNodeCmd.Flags().Float64Var(&addNodeX, "x", 0, "X position")
	AddNodeCmd.Flags().Float64Var(&addNodeY, "y", 0, "Y position")
}

// nodeInput builds the node to add for a kind
func nodeInput(kind, nodeType, label string, pos doc.Position) (flow.NodeInput, error) {
	var in flow.NodeInput
	switch kind {
	case KindText:
		in = flow.TextNode(pos)
	case KindCheckbox:
		in = flow.CheckboxNode(pos)
	case KindPlain:
		in = flow.NodeInput{Type: nodeType, Position: pos}
		if label != "" {
			in.Data = map[string]any{"label": label}
		}
		return in, nil
	default:
		return in, errors.WithHint(errors.Newf("unknown node kind %q", kind), "use text, checkbox or plain")
	}
	if label != "" {
		in.Data["label"] = label
	}
	return in, nil
}

func runAddNode(cmd *cobra.Command, args []string) error {
	in, err := nodeInput(addNodeKind, addNodeType, addNodeLabel, doc.Position{X: addNodeX, Y: addNodeY})
	if err != nil {
		return err
	}

	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	defer ws.Close()

	session, err := ws.join(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	id := session.AddNode(in)
	pterm.Success.Printfln("Added %s node", in.Type)
	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}

func runConnect(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	defer ws.Close()

	session, err := ws.join(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	source, sourceHandle := splitEndpoint(args[1])
	target, targetHandle := splitEndpoint(args[2])
	nodes := session.Snapshot().Nodes
	for _, id := range []string{source, target} {
		if doc.IndexOfNode(nodes, id) < 0 {
			return errors.Newf("node %s not found in flow %s", id, session.ID())
		}
	}

	id := session.Connect(source, sourceHandle, target, targetHandle)
	pterm.Success.Printfln("Connected %s to %s", source, target)
	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}

func runMove(cmd *cobra.Command, args []string) error {
	pos, err := parsePosition(args[2], args[3])
	if err != nil {
		return err
	}

	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	defer ws.Close()

	session, err := ws.join(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if doc.IndexOfNode(session.Snapshot().Nodes, args[1]) < 0 {
		return errors.Newf("node %s not found in flow %s", args[1], session.ID())
	}
	session.ApplyNodeChanges([]flow.Change{flow.Move{ID: args[1], Position: pos}})
	pterm.Success.Printfln("Moved %s to (%s, %s)", args[1], formatCoord(pos.X), formatCoord(pos.Y))
	return nil
}

func runRm(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	defer ws.Close()

	session, err := ws.join(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	snap := session.Snapshot()
	var nodeChanges, edgeChanges []flow.Change
	for _, id := range args[1:] {
		switch {
		case doc.IndexOfNode(snap.Nodes, id) >= 0:
			nodeChanges = append(nodeChanges, flow.Remove{ID: id})
		case doc.IndexOfEdge(snap.Edges, id) >= 0:
			edgeChanges = append(edgeChanges, flow.Remove{ID: id})
		default:
			pterm.Warning.Printfln("No node or edge %s", id)
		}
	}
	session.ApplyNodeChanges(nodeChanges)
	session.ApplyEdgeChanges(edgeChanges)
	pterm.Success.Printfln("Removed %d nodes and %d edges", len(nodeChanges), len(edgeChanges))
	return nil
}

func runSet(cmd *cobra.Command, args []string) error {
	data, err := parseAssignments(args[2:])
	if err != nil {
		return err
	}

	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	defer ws.Close()

	session, err := ws.join(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if !session.UpdateNodeData(args[1], data) {
		return errors.Newf("node %s not found in flow %s", args[1], session.ID())
	}
	pterm.Success.Printfln("Updated %d fields on %s", len(data), args[1])
	return nil
}

// parseAssignments turns key=value arguments into node data
func parseAssignments(args []string) (map[string]any, error) {
	data := make(map[string]any, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, errors.Newf("expected key=value, got %q", arg)
		}
		data[key] = parseValue(value)
	}
	return data, nil
}

func parseValue(s string) any {
	if b, err := strconv.ParseBool(s); err == nil && (s == "true" || s == "false") {
		return b
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func splitEndpoint(s string) (id, handle string) {
	id, handle, _ = strings.Cut(s, ":")
	return id, handle
}
