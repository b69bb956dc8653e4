package server

import (
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"microlend/native/lending"
	"microlend/services/lending/engine"
)

func TestToStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		code    codes.Code
		lending lending.Code
		message string
	}{
		{
			name:    "invalid amount",
			err:     fmt.Errorf("wrap: %w", lending.ErrInvalidAmount),
			code:    codes.InvalidArgument,
			lending: lending.CodeInvalidAmount,
		},
		{
			name:    "loan not found",
			err:     lending.ErrLoanNotFound,
			code:    codes.NotFound,
			lending: lending.CodeLoanNotFound,
		},
		{
			name:    "not overdue",
			err:     lending.ErrLoanNotOverdue,
			code:    codes.FailedPrecondition,
			lending: lending.CodeLoanNotOverdue,
		},
		{
			name:    "insufficient treasury",
			err:     fmt.Errorf("wrap: %w", lending.ErrInsufficientTreasury),
			code:    codes.ResourceExhausted,
			lending: lending.CodeInsufficientTreasury,
		},
		{
			name:    "paused",
			err:     lending.ErrModulePaused,
			code:    codes.Unavailable,
			lending: lending.CodeModulePaused,
		},
		{
			name:    "invalid caller",
			err:     lending.ErrInvalidCaller,
			code:    codes.InvalidArgument,
			lending: lending.CodeInvalidCaller,
		},
		{
			name:    "internal",
			err:     errors.New("disk on fire"),
			code:    codes.Internal,
			lending: lending.CodeInternal,
			message: "internal error",
		},
		{
			name:    "invalid address",
			err:     fmt.Errorf("%w: bad checksum", engine.ErrInvalidAddress),
			code:    codes.InvalidArgument,
			lending: lending.CodeOK,
		},
		{
			name:    "unavailable",
			err:     engine.ErrUnavailable,
			code:    codes.Unavailable,
			lending: lending.CodeOK,
			message: "lending engine unavailable",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			code, err := toStatus(tc.err)
			if code != tc.lending {
				t.Fatalf("expected lending code %s, got %s", tc.lending, code)
			}
			st, ok := status.FromError(err)
			if !ok {
				t.Fatalf("expected status error, got %v", err)
			}
			if st.Code() != tc.code {
				t.Fatalf("expected grpc code %s, got %s", tc.code, st.Code())
			}
			if tc.message != "" && st.Message() != tc.message {
				t.Fatalf("expected message %q, got %q", tc.message, st.Message())
			}
		})
	}
}

func TestToStatusPassesThroughStatusErrors(t *testing.T) {
	t.Parallel()

	original := status.Error(codes.PermissionDenied, "nope")
	code, err := toStatus(original)
	if code != lending.CodeOK {
		t.Fatalf("unexpected lending code %s", code)
	}
	if status.Code(err) != codes.PermissionDenied {
		t.Fatalf("expected passthrough, got %v", err)
	}
	if code, err := toStatus(nil); code != lending.CodeOK || err != nil {
		t.Fatalf("expected nil mapping, got %s %v", code, err)
	}
}

func TestCodeFromTrailer(t *testing.T) {
	t.Parallel()

	code, ok := CodeFromTrailer(metadata.Pairs(CodeTrailer, "106"))
	if !ok || code != lending.CodeLoanNotOverdue {
		t.Fatalf("expected LoanNotOverdue, got %s (%v)", code, ok)
	}
	if _, ok := CodeFromTrailer(metadata.MD{}); ok {
		t.Fatalf("expected missing trailer")
	}
	if _, ok := CodeFromTrailer(metadata.Pairs(CodeTrailer, "abc")); ok {
		t.Fatalf("expected malformed trailer to be rejected")
	}
}
