package commands

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/coflow/config"
	"github.com/teranos/coflow/sym"
)

// ConfigCmd shows the effective configuration
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: sym.Mark("config", "Show coflow configuration"),
	Long: `Display coflow configuration.

Configuration sources (in order of precedence):
1. Command line flags (--db, --author)
2. Environment variables (COFLOW_* prefix, e.g. COFLOW_DATABASE_PATH)
3. Project config (nearest coflow.toml walking up from the working directory)
4. User config (~/.coflow/coflow.toml)
5. System config (/etc/coflow/coflow.toml)
6. Default values

Examples:
  coflow config show
  coflow config paths`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as TOML",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configPathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "List the config files coflow reads",
	Args:  cobra.NoArgs,
	RunE:  runConfigPaths,
}

func init() {
	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configPathsCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if Globals.Author != "" {
		cfg.Identity.Author = Globals.Author
	}
	data, err := cfg.TOML()
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

func runConfigPaths(cmd *cobra.Command, args []string) error {
	for _, path := range config.SearchPaths() {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			pterm.Success.Println(path)
		} else {
			pterm.Info.Println(path + " (not found)")
		}
	}
	if Globals.ConfigPath != "" {
		pterm.Warning.Println("--config " + Globals.ConfigPath + " overrides the files above")
	}
	return nil
}
