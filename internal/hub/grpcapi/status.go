package grpcapi

import (
	"context"

	"github.com/rbright/musegen/internal/hub"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorDomain tags ErrorInfo details whose Reason carries a hub code name.
const ErrorDomain = "musegen.hub.v1"

// fromStatus maps a gRPC failure to a hub error. An ErrorInfo detail in
// ErrorDomain wins over the status code.
func fromStatus(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	st, ok := status.FromError(err)
	if !ok {
		return &hub.Error{Code: hub.CodeUnavailable, Op: op, Err: err}
	}

	code := codeForStatus(st.Code())
	for _, detail := range st.Details() {
		info, ok := detail.(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != ErrorDomain {
			continue
		}
		if parsed := hub.ParseCode(info.GetReason()); parsed != hub.CodeUnknown {
			code = parsed
		}
	}
	return &hub.Error{Code: code, Op: op, Message: st.Code().String() + ": " + st.Message()}
}

func codeForStatus(code codes.Code) hub.Code {
	switch code {
	case codes.Unauthenticated, codes.PermissionDenied:
		return hub.CodeUnauthenticated
	case codes.Unimplemented:
		return hub.CodeTaskUnsupported
	case codes.NotFound:
		return hub.CodeModelNotFound
	case codes.InvalidArgument:
		return hub.CodeBadArgument
	case codes.FailedPrecondition:
		return hub.CodeDependency
	case codes.Unavailable, codes.ResourceExhausted:
		return hub.CodeUnavailable
	case codes.DeadlineExceeded:
		return hub.CodeTimeout
	default:
		return hub.CodeUnknown
	}
}
