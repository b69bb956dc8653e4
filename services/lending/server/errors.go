package server

import (
	"context"
	"errors"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"microlend/native/lending"
	"microlend/services/lending/engine"
)

// CodeTrailer carries the numeric lending code of a failed call.
const CodeTrailer = "x-lending-code"

// grpcCode maps a lending code onto the closest gRPC status code.
func grpcCode(code lending.Code) codes.Code {
	switch code {
	case lending.CodeOK:
		return codes.OK
	case lending.CodeInvalidAmount, lending.CodeInvalidDuration, lending.CodeInvalidCaller, lending.CodeArithmeticOverflow:
		return codes.InvalidArgument
	case lending.CodeLoanNotFound:
		return codes.NotFound
	case lending.CodeLoanNotActive, lending.CodeLoanNotOverdue, lending.CodeTransferFailed:
		return codes.FailedPrecondition
	case lending.CodeInsufficientTreasury, lending.CodeInsufficientCollateral:
		return codes.ResourceExhausted
	case lending.CodeModulePaused:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// toStatus converts an engine failure into a gRPC status. The returned code
// is published in the trailer and is CodeOK when the failure is not a lending
// outcome.
func toStatus(err error) (lending.Code, error) {
	if err == nil {
		return lending.CodeOK, nil
	}
	if _, ok := status.FromError(err); ok {
		return lending.CodeOK, err
	}
	switch {
	case errors.Is(err, engine.ErrInvalidAddress), errors.Is(err, engine.ErrInvalidModule), errors.Is(err, engine.ErrInvalidCount):
		return lending.CodeOK, status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, engine.ErrUnavailable):
		return lending.CodeOK, status.Error(codes.Unavailable, "lending engine unavailable")
	}
	code := lending.CodeOf(err)
	if code == lending.CodeInternal {
		return code, status.Error(codes.Internal, "internal error")
	}
	return code, status.Error(grpcCode(code), err.Error())
}

func setCodeTrailer(ctx context.Context, code lending.Code) {
	if code == lending.CodeOK {
		return
	}
	_ = grpc.SetTrailer(ctx, metadata.Pairs(CodeTrailer, strconv.FormatUint(uint64(code), 10)))
}

// CodeFromTrailer reads the lending code from a call trailer.
func CodeFromTrailer(md metadata.MD) (lending.Code, bool) {
	values := md.Get(CodeTrailer)
	if len(values) == 0 {
		return lending.CodeOK, false
	}
	parsed, err := strconv.ParseUint(values[0], 10, 32)
	if err != nil {
		return lending.CodeOK, false
	}
	return lending.Code(parsed), true
}
