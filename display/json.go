// Package display chooses between human and JSON output for CLI commands.
package display

import (
	"encoding/json"
	"os"
	"strconv"
)

// MarshalJSON marshals JSON with pretty formatting for terminals,
// compact formatting when COFLOW_JSON requests machine output
func MarshalJSON(v interface{}) ([]byte, error) {
	if jsonFromEnv() {
		return json.Marshal(v)
	}
	return json.MarshalIndent(v, "", "  ")
}

func jsonFromEnv() bool {
	on, err := strconv.ParseBool(os.Getenv(JSONEnv))
	return err == nil && on
}
