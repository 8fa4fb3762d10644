// Package classify maps remote failures to the categories users are shown.
package classify

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/rbright/musegen/internal/hub"
)

// Category is a user-facing failure class.
type Category string

const (
	MissingDependency   Category = "missing-dependency"
	IncompatibleLibrary Category = "incompatible-library-version"
	InvalidToken        Category = "invalid-token"
	Network             Category = "network-or-timeout"
	Generic             Category = "generic-failure"
)

// Error is a classified failure. It unwraps to the original cause.
type Error struct {
	Category Category
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return string(e.Category)
	}
	return string(e.Category) + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Wrap classifies err. Nil stays nil; already classified errors are returned as-is.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return err
	}
	return &Error{Category: Of(err), Cause: err}
}

// Of returns the category for err. Structured hub codes and timeouts are
// authoritative; only uncoded errors fall back to message matching.
func Of(err error) Category {
	if err == nil {
		return Generic
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Category
	}

	switch hub.CodeOf(err) {
	case hub.CodeUnauthenticated:
		return InvalidToken
	case hub.CodeIncompatible:
		return IncompatibleLibrary
	case hub.CodeDependency:
		return MissingDependency
	case hub.CodeUnavailable, hub.CodeTimeout:
		return Network
	case hub.CodeTaskUnsupported, hub.CodeModelNotFound, hub.CodeBadArgument:
		return Generic
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Network
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Network
	}

	return byMessage(err.Error())
}

// byMessage matches known error fragments. Order matters: the dataset
// version fragments also mention other keywords.
func byMessage(msg string) Category {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "LargeList"),
		strings.Contains(msg, "HubDatasetModuleFactoryWithoutScript"),
		strings.Contains(lower, "datasets"):
		return IncompatibleLibrary
	case strings.Contains(msg, "No module named"),
		strings.Contains(lower, "not installed"):
		return MissingDependency
	case strings.Contains(lower, "token"):
		return InvalidToken
	case strings.Contains(lower, "network"),
		strings.Contains(lower, "timeout"),
		strings.Contains(lower, "timed out"):
		return Network
	default:
		return Generic
	}
}

// Message renders the text shown to users for err. Only network failures get
// their own wording; everything else shows the raw cause.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if Of(err) == Network {
		return "Network failure. Check the network connection and try again."
	}
	return "Generation failed: " + cause(err) + "\nRetry any time; there is no usage quota."
}

func cause(err error) string {
	var classified *Error
	if errors.As(err, &classified) && classified.Cause != nil {
		return classified.Cause.Error()
	}
	return err.Error()
}
