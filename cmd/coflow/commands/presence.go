package commands

import (
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/coflow/display"
	"github.com/teranos/coflow/doc"
	"github.com/teranos/coflow/errors"
	"github.com/teranos/coflow/flow"
	"github.com/teranos/coflow/presence"
	"github.com/teranos/coflow/sym"
)

// CursorCmd publishes the local cursor
var CursorCmd = &cobra.Command{
	Use:   "cursor <code> <x> <y>",
	Short: sym.Mark("cursor", "Publish your cursor position to a flow"),
	Args:  cobra.ExactArgs(3),
	RunE:  runCursor,
}

// PresenceCmd lists collaborators currently live in a flow
var PresenceCmd = &cobra.Command{
	Use:   "presence <code>",
	Short: sym.Mark("presence", "Show the cursors and connection drags of other collaborators"),
	Long: `Show the live cursors and in-progress connections of every other
collaborator. Entries older than the configured freshness are hidden.

Examples:
  coflow presence co_z3Fq...
  coflow presence co_z3Fq... --metrics`,
	Args: cobra.ExactArgs(1),
	RunE: runPresence,
}

var (
	cursorDragging  bool
	presenceMetrics bool
)

func init() {
	CursorCmd.Flags().BoolVar(&cursorDragging, "dragging", false, "Mark the cursor as dragging")
	PresenceCmd.Flags().BoolVar(&presenceMetrics, "metrics", false, "Print collected metrics after the listing")
	PresenceCmd.Flags().BoolP("json", "j", false, "Output presence as JSON")
}

type liveJSON struct {
	Author string `json:"author"`
	Color  string `json:"color"`
}

type cursorJSON struct {
	liveJSON
	Position doc.Position `json:"position"`
	Dragging bool         `json:"dragging"`
}

type connectionJSON struct {
	liveJSON
	Source       string       `json:"source"`
	SourceRole   string       `json:"source_role"`
	SourceHandle string       `json:"source_handle,omitempty"`
	Target       string       `json:"target,omitempty"`
	TargetRole   string       `json:"target_role,omitempty"`
	TargetHandle string       `json:"target_handle,omitempty"`
	Position     doc.Position `json:"position"`
}

type presenceJSON struct {
	Cursors     []cursorJSON     `json:"cursors"`
	Connections []connectionJSON `json:"connections"`
}

func presenceToJSON(session *flow.Session) presenceJSON {
	out := presenceJSON{Cursors: []cursorJSON{}, Connections: []connectionJSON{}}
	for _, c := range session.Cursors() {
		out.Cursors = append(out.Cursors, cursorJSON{
			liveJSON: liveJSON{Author: c.Author, Color: c.Color},
			Position: c.Payload.Position,
			Dragging: c.Payload.Dragging,
		})
	}
	for _, c := range session.Connections() {
		p := c.Payload
		out.Connections = append(out.Connections, connectionJSON{
			liveJSON:     liveJSON{Author: c.Author, Color: c.Color},
			Source:       p.Source,
			SourceRole:   string(p.SourceRole),
			SourceHandle: p.SourceHandle,
			Target:       p.Target,
			TargetRole:   string(p.TargetRole),
			TargetHandle: p.TargetHandle,
			Position:     p.Position,
		})
	}
	return out
}

func runCursor(cmd *cobra.Command, args []string) error {
	pos, err := parsePosition(args[1], args[2])
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
	session.UpdateCursor(presence.Cursor{Position: pos, Dragging: cursorDragging})
	session.FlushPresence()
	pterm.Success.Printfln("Published cursor at (%s, %s) as %s", formatCoord(pos.X), formatCoord(pos.Y), session.Author())
	return nil
}

func runPresence(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if presenceMetrics {
		cfg.Metrics.Enabled = true
	}
	ws, err := newWorkspace(cfg, resolveAuthor(cfg))
	if err != nil {
		return err
	}
	defer ws.Close()

	session, err := ws.join(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if display.ShouldOutputJSON(cmd) {
		if err := display.OutputJSON(cmd.OutOrStdout(), presenceToJSON(session)); err != nil {
			return err
		}
	} else {
		renderPresence(cmd, session)
	}

	if presenceMetrics {
		pterm.Println()
		pterm.DefaultSection.Println("Metrics")
		if err := ws.metrics.WriteText(cmd.OutOrStdout()); err != nil {
			return err
		}
	}
	return nil
}

func renderPresence(cmd *cobra.Command, session *flow.Session) {
	cursors := session.Cursors()
	connections := activeConnections(session.Connections())
	if len(cursors) == 0 && len(connections) == 0 {
		pterm.Info.Println("Nobody else is here")
		return
	}

	if len(cursors) > 0 {
		rows := pterm.TableData{{"Author", "X", "Y", "Dragging"}}
		for _, c := range cursors {
			rows = append(rows, []string{
				colored(c.Color, c.Author),
				formatCoord(c.Payload.Position.X), formatCoord(c.Payload.Position.Y),
				strconv.FormatBool(c.Payload.Dragging),
			})
		}
		pterm.DefaultTable.WithHasHeader().WithWriter(cmd.OutOrStdout()).WithData(rows).Render()
	}

	if len(connections) > 0 {
		rows := pterm.TableData{{"Author", "From", "Role", "To", "At"}}
		for _, c := range connections {
			p := c.Payload
			rows = append(rows, []string{
				colored(c.Color, c.Author),
				endpoint(p.Source, p.SourceHandle), string(p.SourceRole),
				endpoint(p.Target, p.TargetHandle),
				formatCoord(p.Position.X) + "," + formatCoord(p.Position.Y),
			})
		}
		pterm.Println()
		pterm.DefaultTable.WithHasHeader().WithWriter(cmd.OutOrStdout()).WithData(rows).Render()
	}
}

// activeConnections drops cleared drags; they are only kept in --json output
func activeConnections(all []presence.Live[presence.Connection]) []presence.Live[presence.Connection] {
	var out []presence.Live[presence.Connection]
	for _, c := range all {
		if c.Payload.Active() {
			out = append(out, c)
		}
	}
	return out
}

// colored renders text in a collaborator's #RRGGBB colour
func colored(hex, text string) string {
	v, err := strconv.ParseUint(strings.TrimPrefix(hex, "#"), 16, 32)
	if err != nil || len(hex) != 7 {
		return text
	}
	return pterm.NewRGB(uint8(v>>16), uint8(v>>8), uint8(v)).Sprint(text)
}

func parsePosition(xs, ys string) (doc.Position, error) {
	x, err := strconv.ParseFloat(xs, 64)
	if err != nil {
		return doc.Position{}, errors.Wrapf(err, "invalid x %q", xs)
	}
	y, err := strconv.ParseFloat(ys, 64)
	if err != nil {
		return doc.Position{}, errors.Wrapf(err, "invalid y %q", ys)
	}
	return doc.Position{X: x, Y: y}, nil
}
