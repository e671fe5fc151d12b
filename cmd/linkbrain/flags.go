package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/barabonda/linkbrain/cmd/linkbrain/internal"
)

// GlobalFlags holds global flags available to all commands
type GlobalFlags struct {
	Verbose      bool
	OutputFormat string
	ConfigFile   string
}

var globalFlags = &GlobalFlags{}

// RegisterGlobalFlags registers persistent flags on the root command
func RegisterGlobalFlags(cmd *cobra.Command, flags *GlobalFlags) {
	cmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "Enable verbose output and debug logging")
	cmd.PersistentFlags().StringVarP(&flags.OutputFormat, "output", "o", "text", "Output format (text|json)")
	cmd.PersistentFlags().StringVar(&flags.ConfigFile, "config", "", "Path to config file (default: ./linkbrain.yaml if present)")
}

// Validate checks flag values that cobra cannot check itself.
func (f *GlobalFlags) Validate() error {
	switch internal.OutputFormat(f.OutputFormat) {
	case internal.FormatText, internal.FormatJSON:
		return nil
	default:
		return internal.NewCLIError(internal.ExitConfigError,
			fmt.Sprintf("invalid output format %q (want text or json)", f.OutputFormat))
	}
}

// GetOutputFormat returns the parsed OutputFormat enum
func (f *GlobalFlags) GetOutputFormat() internal.OutputFormat {
	if f.OutputFormat == string(internal.FormatJSON) {
		return internal.FormatJSON
	}
	return internal.FormatText
}

// IsVerbose returns true if verbose mode is enabled
func (f *GlobalFlags) IsVerbose() bool {
	return f.Verbose
}
