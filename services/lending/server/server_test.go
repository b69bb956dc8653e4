package server

import (
	"context"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	lendingv1 "microlend/api/lending/v1"
	"microlend/native/lending"
	"microlend/services/lending/engine"
)

func TestServiceTrimsAmounts(t *testing.T) {
	t.Parallel()

	var gotAmount, gotPrincipal string
	var gotDuration uint64
	svc := New(&fakeEngine{
		contributeFn: func(_ context.Context, amount string) (uint64, error) {
			gotAmount = amount
			return 7, nil
		},
		requestFn: func(_ context.Context, principal string, duration uint64) (uint64, error) {
			gotPrincipal = principal
			gotDuration = duration
			return 3, nil
		},
	}, nil)

	contributed, err := svc.Contribute(context.Background(), &lendingv1.ContributeRequest{Amount: "  100 "})
	if err != nil {
		t.Fatalf("contribute: %v", err)
	}
	if contributed.ContributionID != 7 || gotAmount != "100" {
		t.Fatalf("unexpected contribute result %+v amount %q", contributed, gotAmount)
	}

	requested, err := svc.RequestLoan(context.Background(), &lendingv1.RequestLoanRequest{Principal: " 500 ", Duration: 12})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if requested.LoanID != 3 || gotPrincipal != "500" || gotDuration != 12 {
		t.Fatalf("unexpected request result %+v principal %q duration %d", requested, gotPrincipal, gotDuration)
	}
}

func TestServiceMapsEngineErrors(t *testing.T) {
	t.Parallel()

	svc := New(&fakeEngine{
		liquidateFn: func(context.Context, uint64) (string, error) {
			return "", lending.ErrLoanNotOverdue
		},
		repayFn: func(context.Context, uint64) (bool, error) {
			return false, lending.ErrLoanNotFound
		},
	}, nil)

	_, err := svc.LiquidateLoan(context.Background(), &lendingv1.LiquidateLoanRequest{LoanID: 0})
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("expected failed precondition, got %v", err)
	}
	_, err = svc.RepayLoan(context.Background(), &lendingv1.RepayLoanRequest{LoanID: 9})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestServiceContextErrors(t *testing.T) {
	t.Parallel()

	svc := New(&fakeEngine{
		heightFn: func(ctx context.Context) (uint64, error) {
			return 0, ctx.Err()
		},
	}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.GetHeight(ctx, &lendingv1.GetHeightRequest{})
	if status.Code(err) != codes.Canceled {
		t.Fatalf("expected canceled, got %v", err)
	}
}

func TestServiceGetLoanAbsent(t *testing.T) {
	t.Parallel()

	svc := New(&fakeEngine{}, nil)
	resp, err := svc.GetLoan(context.Background(), &lendingv1.GetLoanRequest{LoanID: 42})
	if err != nil {
		t.Fatalf("get loan: %v", err)
	}
	if resp.Found || resp.Loan != nil {
		t.Fatalf("expected absent loan, got %+v", resp)
	}

	svc = New(&fakeEngine{
		getLoanFn: func(_ context.Context, id uint64) (engine.Loan, bool, error) {
			return engine.Loan{ID: id, Status: "active", Principal: "1"}, true, nil
		},
	}, nil)
	resp, err = svc.GetLoan(context.Background(), &lendingv1.GetLoanRequest{LoanID: 2})
	if err != nil {
		t.Fatalf("get loan: %v", err)
	}
	if !resp.Found || resp.Loan == nil || resp.Loan.ID != 2 {
		t.Fatalf("unexpected loan response %+v", resp)
	}
}

func TestServiceValidatesQueries(t *testing.T) {
	t.Parallel()

	svc := New(&fakeEngine{}, nil)
	if _, err := svc.ListLoans(context.Background(), &lendingv1.ListLoansRequest{Borrower: "  "}); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected invalid argument for blank borrower, got %v", err)
	}
	if _, err := svc.GetPosition(context.Background(), &lendingv1.GetPositionRequest{}); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected invalid argument for blank address, got %v", err)
	}
	if _, err := svc.Contribute(context.Background(), nil); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected invalid argument for nil request, got %v", err)
	}
	resp, err := svc.ListLoans(context.Background(), &lendingv1.ListLoansRequest{Borrower: "ml1x"})
	if err != nil {
		t.Fatalf("list loans: %v", err)
	}
	if resp.Loans == nil {
		t.Fatalf("expected empty slice, got nil")
	}
}

func TestServiceRequiresEngine(t *testing.T) {
	t.Parallel()

	svc := New(nil, nil)
	_, err := svc.GetTreasury(context.Background(), &lendingv1.GetTreasuryRequest{})
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("expected failed precondition, got %v", err)
	}
}
