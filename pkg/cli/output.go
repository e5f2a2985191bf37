// Package cli provides output helpers shared by the hearsay command-line
// tools: structured result printing (YAML/JSON) and styled terminal
// reports.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-yaml"
)

// OutputFormat selects how results are printed.
type OutputFormat string

const (
	// FormatYAML is the default terminal format.
	FormatYAML OutputFormat = "yaml"
	// FormatJSON prints indented JSON.
	FormatJSON OutputFormat = "json"
	// FormatReport prints a styled terminal report where a command
	// supports one.
	FormatReport OutputFormat = "report"
)

// OutputOptions configures Output.
type OutputOptions struct {
	// Format of the output; FormatYAML when empty.
	Format OutputFormat

	// File receives the output instead of stdout when set.
	File string

	// Writer overrides File and stdout when set.
	Writer io.Writer
}

// Output writes a result value to the configured destination.
func Output(result any, opts OutputOptions) error {
	var w io.Writer = os.Stdout
	if opts.Writer != nil {
		w = opts.Writer
	} else if opts.File != "" {
		f, err := os.Create(opts.File)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch opts.Format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case FormatYAML, FormatReport, "":
		data, err := yaml.Marshal(result)
		if err != nil {
			return fmt.Errorf("format output: %w", err)
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("unsupported output format: %s", opts.Format)
	}
}

// PrintSuccess prints a success message with a checkmark.
func PrintSuccess(format string, args ...any) {
	fmt.Printf("✓ "+format+"\n", args...)
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}

// PrintWarning prints a warning message.
func PrintWarning(format string, args ...any) {
	fmt.Printf("⚠ "+format+"\n", args...)
}
