package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// stdoutIsTerminal reports whether output goes to a terminal (can be
// replaced in tests)
var stdoutIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// resolveFormat validates an output format, picking table for terminals and
// JSON for pipes when none is given.
func resolveFormat(format string) (string, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case "":
		if stdoutIsTerminal() {
			return "table", nil
		}
		return "json", nil
	case "table", "json", "yaml":
		return format, nil
	default:
		return "", fmt.Errorf("invalid format %q (use table, json or yaml)", format)
	}
}

func outputJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func outputYAML(v any) error {
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return enc.Close()
}
