package display

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// JSONEnv forces JSON output when set to a true value
const JSONEnv = "COFLOW_JSON"

// ShouldOutputJSON determines if a command should output JSON based on flags and COFLOW_JSON
func ShouldOutputJSON(cmd *cobra.Command) bool {
	if cmd == nil {
		return jsonFromEnv()
	}

	// An explicit --json=false wins over the environment
	if f := cmd.Flags().Lookup("json"); f != nil && f.Changed {
		jsonFlag, _ := cmd.Flags().GetBool("json")
		return jsonFlag
	}

	return jsonFromEnv()
}

// OutputJSON marshals v with MarshalJSON and writes it to w
func OutputJSON(w io.Writer, v interface{}) error {
	data, err := MarshalJSON(v)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
