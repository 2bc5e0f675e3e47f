package control

import (
	"fmt"
	"strings"

	"github.com/core-tools/hsu-watchdog/pkg/errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const errorDomain = "watchdog.hsu"

var errorCodes = map[errors.ErrorType]codes.Code{
	errors.ErrorTypeInvalidConfig:     codes.InvalidArgument,
	errors.ErrorTypeValidation:        codes.InvalidArgument,
	errors.ErrorTypeUnknownTarget:     codes.NotFound,
	errors.ErrorTypeUnsupported:       codes.Unimplemented,
	errors.ErrorTypeTimeout:           codes.DeadlineExceeded,
	errors.ErrorTypeConflict:          codes.FailedPrecondition,
	errors.ErrorTypeCancelled:         codes.Canceled,
	errors.ErrorTypeDriverUnavailable: codes.Unavailable,
	errors.ErrorTypeRestartFailed:     codes.Aborted,
	errors.ErrorTypeIO:                codes.Internal,
	errors.ErrorTypeInternal:          codes.Internal,
}

// toStatusError encodes a domain error as a gRPC status carrying the error type as ErrorInfo.
func toStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	errorType := errors.TypeOf(err)
	if errorType == "" {
		errorType = errors.ErrorTypeInternal
	}
	code, ok := errorCodes[errorType]
	if !ok {
		code = codes.Internal
	}

	st := status.New(code, err.Error())
	detailed, detailErr := st.WithDetails(&errdetails.ErrorInfo{
		Reason: string(errorType),
		Domain: errorDomain,
	})
	if detailErr != nil {
		return st.Err()
	}
	return detailed.Err()
}

// fromStatusError restores the domain error type from a gRPC status.
func fromStatusError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return errors.NewInternalError("control call failed", err)
	}

	for _, detail := range st.Details() {
		if info, ok := detail.(*errdetails.ErrorInfo); ok && info.Domain == errorDomain {
			message := strings.TrimPrefix(st.Message(), info.Reason+": ")
			return errors.NewDomainError(errors.ErrorType(info.Reason), message, nil)
		}
	}

	switch st.Code() {
	case codes.InvalidArgument:
		return errors.NewValidationError(st.Message(), nil)
	case codes.NotFound:
		return errors.NewUnknownTargetError(st.Message(), nil)
	case codes.Unimplemented:
		return errors.NewUnsupportedError(st.Message(), nil)
	case codes.DeadlineExceeded:
		return errors.NewTimeoutError(st.Message(), nil)
	case codes.Canceled:
		return errors.NewCancelledError(st.Message(), nil)
	case codes.Unavailable:
		return errors.NewIOError(fmt.Sprintf("watchdog unavailable: %s", st.Message()), nil)
	default:
		return errors.NewInternalError(st.Message(), nil)
	}
}
