package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/coflow/app"
	"github.com/teranos/coflow/sym"
)

// ShareCmd copies a flow's share code to the clipboard
var ShareCmd = &cobra.Command{
	Use:   "share <code>",
	Short: sym.Mark("share", "Copy a flow's share code to the clipboard"),
	Long: `Join a flow and copy its share code to the system clipboard.

When no clipboard is available the code is printed instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runShare,
}

func runShare(cmd *cobra.Command, args []string) error {
	var outcome app.Notification
	ws, err := openWorkspace(app.WithNotifier(app.NotifierFunc(func(n app.Notification) {
		outcome = n
	})))
	if err != nil {
		return err
	}
	defer ws.Close()

	session, err := ws.join(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	ws.manager.Share()
	if outcome.Failed {
		pterm.Warning.Println(outcome.Message)
		fmt.Fprintln(cmd.OutOrStdout(), session.ID())
		return nil
	}
	pterm.Success.Println(outcome.Message)
	return nil
}
