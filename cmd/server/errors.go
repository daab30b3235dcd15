package main

import (
	"context"

	"github.com/pkg/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/drericflores/hstp/pkg/lib"
)

// toStatus maps library errors onto gRPC status codes.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	code := codes.Internal
	switch {
	case lib.IsValidation(err):
		code = codes.InvalidArgument
	case lib.IsNotFound(err):
		code = codes.NotFound
	case lib.IsDuplicateID(err):
		code = codes.AlreadyExists
	case lib.IsJobConflict(err), lib.IsNotCancellable(err):
		code = codes.FailedPrecondition
	case lib.IsClosed(err):
		code = codes.Unavailable
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	}
	return status.Error(code, err.Error())
}
