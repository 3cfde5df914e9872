package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/coflow/config"
	"github.com/teranos/coflow/doc"
	"github.com/teranos/coflow/presence"
)

// useTempWorkspace points the global flags at a fresh database and an empty config file
func useTempWorkspace(t *testing.T, author string) string {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "coflow.toml")
	require.NoError(t, os.WriteFile(cfgPath, nil, 0644))

	saved := Globals
	t.Cleanup(func() { Globals = saved })
	Globals.ConfigPath = cfgPath
	Globals.DBPath = filepath.Join(dir, "flows.db")
	Globals.Author = author
	return dir
}

// run invokes a command's RunE with captured output
func run(t *testing.T, fn func(*cobra.Command, []string) error, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	cmd.SetOut(&out)
	err := fn(cmd, args)
	return out.String(), err
}

func mustRun(t *testing.T, fn func(*cobra.Command, []string) error, args ...string) string {
	t.Helper()
	out, err := run(t, fn, args...)
	require.NoError(t, err)
	return strings.TrimSpace(out)
}

func setAddNodeFlags(t *testing.T, kind, label string, x, y float64) {
	t.Helper()
	addNodeKind, addNodeType, addNodeLabel, addNodeX, addNodeY = kind, "", label, x, y
	t.Cleanup(func() {
		addNodeKind, addNodeType, addNodeLabel, addNodeX, addNodeY = KindText, "", "", 0, 0
	})
}

func TestCommands_EditLifecycle(t *testing.T) {
	useTempWorkspace(t, "alice")

	code := mustRun(t, runNew)
	require.True(t, doc.LooksLikeFlowID(code), code)

	setAddNodeFlags(t, KindText, "", 10, 20)
	textID := mustRun(t, runAddNode, code)
	setAddNodeFlags(t, KindCheckbox, "Done?", 50, 20)
	boxID := mustRun(t, runAddNode, code)
	require.NotEqual(t, textID, boxID)

	edgeID := mustRun(t, runConnect, code, textID+":out", boxID)
	require.NotEmpty(t, edgeID)

	mustRun(t, runMove, code, textID, "12.5", "-3")
	mustRun(t, runSet, code, boxID, "checked=true")

	// Every command opens a fresh engine, so this reads back from the database
	ws, err := openWorkspace()
	require.NoError(t, err)
	session, err := ws.join(context.Background(), code)
	require.NoError(t, err)
	view := session.View()
	require.Len(t, view.Nodes, 2)
	assert.Equal(t, textID, view.Nodes[0].ID)
	assert.Equal(t, doc.Position{X: 12.5, Y: -3}, view.Nodes[0].Position)
	assert.Equal(t, "Text Input", view.Nodes[0].Data["label"])
	assert.Equal(t, "Done?", view.Nodes[1].Data["label"])
	assert.Equal(t, true, view.Nodes[1].Data["checked"])
	require.Len(t, view.Edges, 1)
	assert.Equal(t, "out", view.Edges[0].SourceHandle)
	ws.Close()

	shown := mustRun(t, runShow, code)
	assert.Contains(t, shown, textID)
	assert.Contains(t, shown, "Text Input")
	assert.Contains(t, shown, textID+":out")

	mustRun(t, runRm, code, boxID, edgeID)
	shown = mustRun(t, runShow, code)
	assert.NotContains(t, shown, boxID)
	assert.NotContains(t, shown, edgeID)

	listed := mustRun(t, runFlowsLs)
	assert.Contains(t, listed, code)

	mustRun(t, runFlowsRm, code)
	_, err = run(t, runShow, code)
	assert.Error(t, err)
}

func TestCommands_JoinUnknownCode(t *testing.T) {
	useTempWorkspace(t, "alice")

	_, err := run(t, runShow, "co_zmissing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid flow code")
}

func TestCommands_UnknownNode(t *testing.T) {
	useTempWorkspace(t, "alice")
	code := mustRun(t, runNew)

	_, err := run(t, runMove, code, "nope", "1", "2")
	assert.ErrorContains(t, err, "node nope not found")
	_, err = run(t, runSet, code, "nope", "a=b")
	assert.ErrorContains(t, err, "node nope not found")
	_, err = run(t, runConnect, code, "a", "b")
	assert.ErrorContains(t, err, "node a not found")
}

func TestCommands_PresenceAcrossAuthors(t *testing.T) {
	useTempWorkspace(t, "alice")
	code := mustRun(t, runNew)
	mustRun(t, runCursor, code, "40", "60")

	out := mustRun(t, runPresence, code)
	assert.NotContains(t, out, "alice", "own cursor is not listed")

	Globals.Author = "bob"
	presenceMetrics = true
	t.Cleanup(func() { presenceMetrics = false })

	out = mustRun(t, runPresence, code)
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "40")
	assert.Contains(t, out, "coflow_flow_operations_total")
}

func TestCommands_ConfigShow(t *testing.T) {
	useTempWorkspace(t, "carol")

	out := mustRun(t, runConfigShow)
	assert.Contains(t, out, "[database]")
	assert.Contains(t, out, "flows.db")
	assert.Contains(t, out, "carol")
}

func TestNodeInput(t *testing.T) {
	pos := doc.Position{X: 1, Y: 2}

	in, err := nodeInput(KindText, "", "", pos)
	require.NoError(t, err)
	assert.Equal(t, "text", in.Type)
	assert.Equal(t, "Enter text...", in.Data["placeholder"])

	in, err = nodeInput(KindCheckbox, "", "Ship it", pos)
	require.NoError(t, err)
	assert.Equal(t, "Ship it", in.Data["label"])
	assert.Equal(t, false, in.Data["checked"])

	in, err = nodeInput(KindPlain, "custom", "", pos)
	require.NoError(t, err)
	assert.Equal(t, "custom", in.Type)
	assert.Nil(t, in.Data, "plain nodes take the default label")

	_, err = nodeInput("radio", "", "", pos)
	assert.Error(t, err)
}

func TestParseAssignments(t *testing.T) {
	data, err := parseAssignments([]string{"checked=true", "count=3", "value=buy milk", "empty=", "flag=1"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"checked": true,
		"count":   3.0,
		"value":   "buy milk",
		"empty":   "",
		"flag":    1.0,
	}, data)

	_, err = parseAssignments([]string{"novalue"})
	assert.Error(t, err)
	_, err = parseAssignments([]string{"=x"})
	assert.Error(t, err)
}

func TestResolveAuthor(t *testing.T) {
	saved := Globals
	t.Cleanup(func() { Globals = saved })
	t.Setenv("USER", "")

	cfg, err := loadConfigForTest(t)
	require.NoError(t, err)

	Globals.Author = ""
	assert.Equal(t, DefaultAuthor, resolveAuthor(cfg))

	t.Setenv("USER", "shell-user")
	assert.Equal(t, "shell-user", resolveAuthor(cfg))

	cfg.Identity.Author = "configured"
	assert.Equal(t, "configured", resolveAuthor(cfg))

	Globals.Author = " flagged "
	assert.Equal(t, "flagged", resolveAuthor(cfg))
}

func loadConfigForTest(t *testing.T) (*config.Config, error) {
	t.Helper()
	useTempWorkspace(t, "")
	return loadConfig()
}

func TestActiveConnections(t *testing.T) {
	drag := presence.Connection{Source: "n1", SourceRole: presence.RoleSource}
	all := []presence.Live[presence.Connection]{
		{Author: "bob", Payload: presence.ClearedConnection()},
		{Author: "carol", Payload: drag},
	}

	got := activeConnections(all)
	require.Len(t, got, 1)
	assert.Equal(t, "carol", got[0].Author)
	assert.Empty(t, activeConnections(all[:1]))
}

func TestSplitEndpoint(t *testing.T) {
	id, handle := splitEndpoint("n1:out")
	assert.Equal(t, "n1", id)
	assert.Equal(t, "out", handle)

	id, handle = splitEndpoint("n2")
	assert.Equal(t, "n2", id)
	assert.Empty(t, handle)
}

func TestCommands_JSONOutput(t *testing.T) {
	useTempWorkspace(t, "alice")
	code := mustRun(t, runNew)
	setAddNodeFlags(t, KindPlain, "Start", 1, 2)
	nodeID := mustRun(t, runAddNode, code)

	t.Setenv("COFLOW_JSON", "true")

	var shown flowJSON
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, runShow, code)), &shown))
	assert.Equal(t, code, shown.ID)
	require.Len(t, shown.Nodes, 1)
	assert.Equal(t, nodeID, shown.Nodes[0].ID)
	assert.Equal(t, "Start", shown.Nodes[0].Data["label"])
	assert.Empty(t, shown.Edges)

	var listed []flowSummaryJSON
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, runFlowsLs)), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, 1, listed[0].Nodes)

	var live presenceJSON
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, runPresence, code)), &live))
	assert.Empty(t, live.Cursors)
	assert.Empty(t, live.Connections)
}
