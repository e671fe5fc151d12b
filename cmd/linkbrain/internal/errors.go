package internal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/barabonda/linkbrain/internal/agent"
	"github.com/barabonda/linkbrain/internal/graph"
	"github.com/barabonda/linkbrain/internal/types"
)

// Exit code constants for the CLI
const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitError indicates a general error
	ExitError = 1
	// ExitTimeout indicates the operation timed out
	ExitTimeout = 3
	// ExitCancelled indicates the operation was cancelled
	ExitCancelled = 4
	// ExitConfigError indicates a configuration error
	ExitConfigError = 10
	// ExitToolError indicates a tool could not be found, validated or reached
	ExitToolError = 11
	// ExitGraphError indicates a graph store error
	ExitGraphError = 12
	// ExitModelError indicates the model could not be reached
	ExitModelError = 13
)

// CLIError represents a CLI-specific error with an exit code
type CLIError struct {
	Code    int
	Message string
	Cause   error
}

// Error implements the error interface
func (e *CLIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *CLIError) Unwrap() error {
	return e.Cause
}

// WrapError creates a new CLIError wrapping an existing error
func WrapError(code int, message string, err error) *CLIError {
	return &CLIError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// NewCLIError creates a new CLIError with the given code and message
func NewCLIError(code int, message string) *CLIError {
	return &CLIError{
		Code:    code,
		Message: message,
	}
}

// HandleError prints err to the command's error output and returns the
// exit code for it.
func HandleError(cmd *cobra.Command, err error) int {
	if err == nil {
		return ExitSuccess
	}

	if errors.Is(err, context.DeadlineExceeded) {
		cmd.PrintErrln("Operation timed out")
		return ExitTimeout
	}

	if types.IsCancelled(err) {
		cmd.PrintErrln("Operation cancelled")
		return ExitCancelled
	}

	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		cmd.PrintErrln("Error:", cliErr.Message)
		if cliErr.Cause != nil && verboseRequested(cmd) {
			cmd.PrintErrln("Cause:", cliErr.Cause)
		}
		return cliErr.Code
	}

	var lbErr *types.LinkbrainError
	if errors.As(err, &lbErr) {
		cmd.PrintErrln("Error:", lbErr.Error())
		if verboseRequested(cmd) {
			cmd.PrintErrf("  code: %s\n", lbErr.Code)
			cmd.PrintErrf("  retryable: %t\n", lbErr.Retryable)
		}
		return ExitCodeFor(lbErr.Code)
	}

	cmd.PrintErrln("Error:", err)
	return ExitError
}

// ExitCodeFor maps an error code to a CLI exit code.
func ExitCodeFor(code types.ErrorCode) int {
	switch code {
	case types.ErrCodeCancelled:
		return ExitCancelled
	case types.CONFIG_LOAD_FAILED, types.CONFIG_PARSE_FAILED, types.CONFIG_VALIDATION_FAILED,
		graph.ErrCodeGraphInvalidConfig, agent.ErrCodeInvalidTeam:
		return ExitConfigError
	case types.ErrCodeConnectivity, types.ErrCodeQuery, types.ErrCodeSerialization:
		return ExitGraphError
	case types.ErrCodeValidation, types.ErrCodeToolNotFound:
		return ExitToolError
	case types.ErrCodeModelFailed:
		return ExitModelError
	}
	switch {
	case strings.HasPrefix(string(code), "REMOTE_TOOL_"):
		return ExitToolError
	case strings.HasPrefix(string(code), "LLM_"):
		return ExitModelError
	}
	return ExitError
}

func verboseRequested(cmd *cobra.Command) bool {
	flag := cmd.Flag("verbose")
	return flag != nil && flag.Changed
}

// IsVerbose checks if verbose mode is enabled via environment variable or flag.
// Used by panic recovery, which runs before flags are parsed.
func IsVerbose() bool {
	if os.Getenv("LINKBRAIN_VERBOSE") != "" {
		return true
	}

	for _, arg := range os.Args {
		if arg == "-v" || arg == "--verbose" {
			return true
		}
	}

	return false
}
