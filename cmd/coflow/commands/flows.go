package commands

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/coflow/display"
	"github.com/teranos/coflow/flow"
	"github.com/teranos/coflow/sym"
)

// NewCmd creates a flow and prints its share code
var NewCmd = &cobra.Command{
	Use:   "new",
	Short: sym.Flow + " Create a new flow",
	Long: `Create an empty flow and print its share code.

Anyone with the code can join and edit the flow.

Examples:
  coflow new
  coflow new --author alice`,
	Args: cobra.NoArgs,
	RunE: runNew,
}

// ShowCmd prints the graph of a flow
var ShowCmd = &cobra.Command{
	Use:   "show <code>",
	Short: sym.Flow + " Show the nodes and edges of a flow",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

// FlowsCmd lists and deletes stored flows
var FlowsCmd = &cobra.Command{
	Use:   "flows",
	Short: sym.Mark("flows", "Manage stored flows"),
	Long: `List or delete the flows held in the local database.

Examples:
  coflow flows ls
  coflow flows rm co_z3Fq...`,
}

var flowsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List stored flows, most recently updated first",
	Args:  cobra.NoArgs,
	RunE:  runFlowsLs,
}

var flowsRmCmd = &cobra.Command{
	Use:   "rm <code>",
	Short: "Delete a stored flow",
	Args:  cobra.ExactArgs(1),
	RunE:  runFlowsRm,
}

func init() {
	FlowsCmd.AddCommand(flowsLsCmd)
	FlowsCmd.AddCommand(flowsRmCmd)
	ShowCmd.Flags().BoolP("json", "j", false, "Output the flow as JSON")
	flowsLsCmd.Flags().BoolP("json", "j", false, "Output the list as JSON")
}

// flowJSON is the machine-readable form of show
type flowJSON struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Nodes []flow.ViewNode `json:"nodes"`
	Edges []flow.ViewEdge `json:"edges"`
}

// flowSummaryJSON is one entry of flows ls --json
type flowSummaryJSON struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Nodes     int       `json:"nodes"`
	Edges     int       `json:"edges"`
	UpdatedAt time.Time `json:"updated_at"`
}

func runNew(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	defer ws.Close()

	session, err := ws.manager.CreateFlow(cmd.Context())
	if err != nil {
		return err
	}
	pterm.Success.Printfln("Created flow %q", session.Name())
	fmt.Fprintln(cmd.OutOrStdout(), session.ID())
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	defer ws.Close()

	session, err := ws.join(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if display.ShouldOutputJSON(cmd) {
		view := session.View()
		out := flowJSON{ID: session.ID(), Name: session.Name(), Nodes: make([]flow.ViewNode, 0, len(view.Nodes)), Edges: make([]flow.ViewEdge, 0, len(view.Edges))}
		for _, n := range view.Nodes {
			out.Nodes = append(out.Nodes, *n)
		}
		for _, e := range view.Edges {
			out.Edges = append(out.Edges, *e)
		}
		return display.OutputJSON(cmd.OutOrStdout(), out)
	}
	renderView(cmd, session)
	return nil
}

func renderView(cmd *cobra.Command, session *flow.Session) {
	view := session.View()
	pterm.DefaultSection.Printfln("%s (%s)", session.Name(), session.ID())

	if len(view.Nodes) == 0 {
		pterm.Info.Println("No nodes")
	} else {
		rows := pterm.TableData{{"ID", "Type", "X", "Y", "Label"}}
		for _, n := range view.Nodes {
			rows = append(rows, []string{n.ID, n.Type, formatCoord(n.Position.X), formatCoord(n.Position.Y), label(n.Data)})
		}
		pterm.DefaultTable.WithHasHeader().WithWriter(cmd.OutOrStdout()).WithData(rows).Render()
	}

	if len(view.Edges) == 0 {
		return
	}
	rows := pterm.TableData{{"ID", "Source", "Target", "Type"}}
	for _, e := range view.Edges {
		rows = append(rows, []string{e.ID, endpoint(e.Source, e.SourceHandle), endpoint(e.Target, e.TargetHandle), e.Type})
	}
	pterm.Println()
	pterm.DefaultTable.WithHasHeader().WithWriter(cmd.OutOrStdout()).WithData(rows).Render()
}

func runFlowsLs(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	defer ws.Close()

	flows, err := ws.persister.ListFlows(cmd.Context())
	if err != nil {
		return err
	}
	if display.ShouldOutputJSON(cmd) {
		out := make([]flowSummaryJSON, 0, len(flows))
		for _, f := range flows {
			out = append(out, flowSummaryJSON(f))
		}
		return display.OutputJSON(cmd.OutOrStdout(), out)
	}
	if len(flows) == 0 {
		pterm.Info.Println("No flows stored in " + ws.cfg.Database.Path)
		return nil
	}

	rows := pterm.TableData{{"Code", "Name", "Nodes", "Edges", "Updated"}}
	for _, f := range flows {
		rows = append(rows, []string{
			f.ID, f.Name,
			strconv.Itoa(f.Nodes), strconv.Itoa(f.Edges),
			f.UpdatedAt.Local().Format(time.DateTime),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithWriter(cmd.OutOrStdout()).WithData(rows).Render()
}

func runFlowsRm(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	defer ws.Close()

	if err := ws.persister.DeleteFlow(cmd.Context(), args[0]); err != nil {
		return err
	}
	pterm.Success.Printfln("Deleted flow %s", args[0])
	return nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func label(data map[string]any) string {
	if l, ok := data["label"].(string); ok {
		return l
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return ""
	}
	return fmt.Sprintf("%s=%v", keys[0], data[keys[0]])
}

func endpoint(id, handle string) string {
	if handle == "" {
		return id
	}
	return id + ":" + handle
}
