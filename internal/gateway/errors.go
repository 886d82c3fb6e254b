package gateway

import "errors"

var (
	// ErrUnknownTool is returned for a tool name with no registered provider.
	ErrUnknownTool = errors.New("gateway: unknown tool")
	// ErrInvalidParams is returned when params fail the provider's schema.
	// Terminal for the invocation; the gateway never retries.
	ErrInvalidParams = errors.New("gateway: invalid tool parameters")
	// ErrAccessDenied is returned when a path parameter falls outside the
	// allowed roots. Terminal for the invocation.
	ErrAccessDenied = errors.New("gateway: access denied")
	// ErrTimedOut is returned when the provider does not finish (or observe
	// cancellation) within the invoke timeout. The provider goroutine may
	// keep running in the background until it completes on its own.
	ErrTimedOut = errors.New("gateway: invocation timed out")
	// ErrProviderFault wraps an unexpected provider failure. Full detail is
	// logged; callers only see this opaque error.
	ErrProviderFault = errors.New("gateway: provider fault")
)
