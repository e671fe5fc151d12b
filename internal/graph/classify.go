package graph

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/barabonda/linkbrain/internal/types"
)

// Security codes that mean the session or its credentials were invalidated.
// Any other security failure (e.g. Forbidden) is a query fault.
var sessionInvalidatedCodes = map[string]bool{
	"Neo.ClientError.Security.Unauthorized":         true,
	"Neo.ClientError.Security.AuthorizationExpired": true,
	"Neo.ClientError.Security.TokenExpired":         true,
	"Neo.ClientError.Security.CredentialsExpired":   true,
}

// Classify maps a backend error onto the failure taxonomy. Errors that
// already carry a linkbrain code keep it. A deadline on a store call is a
// connectivity fault; cancellation is reported separately and never retried.
func Classify(err error) types.ErrorCode {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) {
		return types.ErrCodeCancelled
	}

	var le *types.LinkbrainError
	if errors.As(err, &le) {
		return le.Code
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return types.ErrCodeConnectivity
	}
	if neo4j.IsConnectivityError(err) {
		return types.ErrCodeConnectivity
	}

	var neoErr *neo4j.Neo4jError
	if errors.As(err, &neoErr) {
		return classifyServerCode(neoErr.Code)
	}
	if neo4j.IsUsageError(err) {
		return types.ErrCodeQuery
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return types.ErrCodeConnectivity
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return types.ErrCodeConnectivity
	}

	return types.ErrCodeUnknown
}

func classifyServerCode(code string) types.ErrorCode {
	switch {
	case sessionInvalidatedCodes[code]:
		return types.ErrCodeConnectivity
	case code == "Neo.TransientError.General.DatabaseUnavailable",
		strings.HasPrefix(code, "Neo.ClientError.Cluster."),
		strings.HasPrefix(code, "Neo.TransientError.Cluster."):
		return types.ErrCodeConnectivity
	case strings.HasPrefix(code, "Neo.ClientError."):
		return types.ErrCodeQuery
	default:
		return types.ErrCodeUnknown
	}
}
