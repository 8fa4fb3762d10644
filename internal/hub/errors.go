package hub

import (
	"errors"
	"fmt"
	"strings"
)

// Code is a structured failure category reported by the remote.
type Code int

const (
	CodeUnknown Code = iota
	CodeUnauthenticated
	CodeTaskUnsupported
	CodeModelNotFound
	CodeBadArgument
	CodeDependency
	CodeIncompatible
	CodeUnavailable
	CodeTimeout
)

var codeNames = map[Code]string{
	CodeUnknown:         "unknown",
	CodeUnauthenticated: "unauthenticated",
	CodeTaskUnsupported: "task_unsupported",
	CodeModelNotFound:   "model_not_found",
	CodeBadArgument:     "bad_argument",
	CodeDependency:      "missing_dependency",
	CodeIncompatible:    "incompatible",
	CodeUnavailable:     "unavailable",
	CodeTimeout:         "timeout",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// ParseCode maps a wire code name to a Code; unknown names map to CodeUnknown.
func ParseCode(raw string) Code {
	raw = strings.ToLower(strings.TrimSpace(raw))
	for code, name := range codeNames {
		if name == raw {
			return code
		}
	}
	return CodeUnknown
}

// Error is a remote failure with an optional structured code.
type Error struct {
	Code    Code
	Op      string // "open" or "call"
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Code != CodeUnknown {
		b.WriteString(e.Code.String())
		b.WriteString(": ")
	}
	switch {
	case e.Message != "":
		b.WriteString(e.Message)
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		b.WriteString("remote failure")
	}
	if e.Message != "" && e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the first structured code in err's chain, or CodeUnknown.
func CodeOf(err error) Code {
	var hubErr *Error
	if errors.As(err, &hubErr) {
		return hubErr.Code
	}
	return CodeUnknown
}
