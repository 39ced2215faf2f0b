package errmap

import (
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pyresume/dashclient/internal/domain"
)

// grpcMappings maps gRPC status codes to domain errors.
//
// Mapping follows gRPC status codes reference:
// https://grpc.github.io/grpc/core/md_doc_statuscodes.html
var grpcMappings = map[codes.Code]error{
	codes.Unauthenticated:    domain.ErrUnauthorized,
	codes.PermissionDenied:   domain.ErrForbidden,
	codes.NotFound:           domain.ErrNotFound,
	codes.AlreadyExists:      domain.ErrAlreadyExists,
	codes.InvalidArgument:    domain.ErrInvalidInput,
	codes.FailedPrecondition: domain.ErrInvalidInput,
	codes.OutOfRange:         domain.ErrInvalidInput,
	codes.ResourceExhausted:  domain.ErrRateLimited,
	codes.Unavailable:        domain.ErrUnavailable,
	codes.DeadlineExceeded:   domain.ErrUnavailable,
	codes.Internal:           domain.ErrServer,
	codes.Unknown:            domain.ErrServer,
	codes.DataLoss:           domain.ErrServer,
	codes.Unimplemented:      domain.ErrServer,
}

// FromGRPCStatus converts a gRPC status error into an error wrapping the
// matching domain sentinel. Errors that already match a domain sentinel,
// errors without a gRPC status, and codes.Canceled pass through unchanged.
func FromGRPCStatus(err error) error {
	if err == nil {
		return nil
	}
	if domain.IsClientError(err) || domain.IsRetryable(err) {
		return err
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	target, ok := grpcMappings[st.Code()]
	if !ok {
		return err
	}
	return fmt.Errorf("%w: %s", target, st.Message())
}

// Code extracts the gRPC status code from an error.
// Returns codes.Unknown if the error is not a gRPC status error.
func Code(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	if st, ok := status.FromError(err); ok {
		return st.Code()
	}
	return codes.Unknown
}
