package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/coflow/cmd/coflow/commands"
	"github.com/teranos/coflow/logger"
)

var rootCmd = &cobra.Command{
	Use:   "coflow",
	Short: "coflow - collaborative flow editing",
	Long: `coflow - collaborative editing of node graphs.

A flow is a graph of nodes and edges that anyone holding its share code can
join and edit. Collaborators see each other's cursors and in-progress
connections.

Examples:
  coflow new                               # Create a flow, print its code
  coflow add-node <code> --x 100 --y 50    # Add a text node
  coflow connect <code> <source> <target>  # Connect two nodes
  coflow show <code>                       # Print nodes and edges
  coflow presence <code>                   # Who else is in the flow
  coflow share <code>                      # Copy the code to the clipboard`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Initialize(commands.Globals.JSONLogs, commands.Globals.Verbosity); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.CountVarP(&commands.Globals.Verbosity, "verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	flags.BoolVar(&commands.Globals.JSONLogs, "json-logs", false, "Write logs as JSON")
	flags.StringVar(&commands.Globals.ConfigPath, "config", "", "Read configuration from this file only")
	flags.StringVar(&commands.Globals.DBPath, "db", "", "Flow database path (overrides database.path)")
	flags.StringVar(&commands.Globals.Author, "author", "", "Collaborator identity (overrides identity.author)")

	rootCmd.AddCommand(commands.NewCmd)
	rootCmd.AddCommand(commands.ShowCmd)
	rootCmd.AddCommand(commands.FlowsCmd)
	rootCmd.AddCommand(commands.AddNodeCmd)
	rootCmd.AddCommand(commands.ConnectCmd)
	rootCmd.AddCommand(commands.MoveCmd)
	rootCmd.AddCommand(commands.RmCmd)
	rootCmd.AddCommand(commands.SetCmd)
	rootCmd.AddCommand(commands.CursorCmd)
	rootCmd.AddCommand(commands.PresenceCmd)
	rootCmd.AddCommand(commands.ShareCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
