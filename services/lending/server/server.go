package server

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	lendingv1 "microlend/api/lending/v1"
	"microlend/native/lending"
	"microlend/services/lending/engine"
)

// Service implements the lending.v1 gRPC interface and proxies requests into
// the lending engine.
type Service struct {
	engine engine.Engine
	logger *slog.Logger
}

var _ lendingv1.LendingServiceServer = (*Service)(nil)

// New constructs a new lending service instance.
func New(engine engine.Engine, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{engine: engine, logger: logger}
}

// Contribute adds the caller's funds to the lender pool.
func (s *Service) Contribute(ctx context.Context, req *lendingv1.ContributeRequest) (*lendingv1.ContributeResponse, error) {
	if err := s.ensureEngine(); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request required")
	}
	id, err := s.engine.Contribute(ctx, strings.TrimSpace(req.Amount))
	if err != nil {
		return nil, s.translateEngineError(ctx, "contribute", err)
	}
	return &lendingv1.ContributeResponse{ContributionID: id}, nil
}

// DepositCollateral credits the caller's unencumbered collateral.
func (s *Service) DepositCollateral(ctx context.Context, req *lendingv1.DepositCollateralRequest) (*lendingv1.DepositCollateralResponse, error) {
	if err := s.ensureEngine(); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request required")
	}
	id, err := s.engine.DepositCollateral(ctx, strings.TrimSpace(req.Amount))
	if err != nil {
		return nil, s.translateEngineError(ctx, "deposit_collateral", err)
	}
	return &lendingv1.DepositCollateralResponse{DepositID: id}, nil
}

// WithdrawCollateral returns unencumbered collateral to the caller.
func (s *Service) WithdrawCollateral(ctx context.Context, req *lendingv1.WithdrawCollateralRequest) (*lendingv1.WithdrawCollateralResponse, error) {
	if err := s.ensureEngine(); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request required")
	}
	remaining, err := s.engine.WithdrawCollateral(ctx, strings.TrimSpace(req.Amount))
	if err != nil {
		return nil, s.translateEngineError(ctx, "withdraw_collateral", err)
	}
	return &lendingv1.WithdrawCollateralResponse{Remaining: remaining}, nil
}

// RequestLoan originates a loan for the caller.
func (s *Service) RequestLoan(ctx context.Context, req *lendingv1.RequestLoanRequest) (*lendingv1.RequestLoanResponse, error) {
	if err := s.ensureEngine(); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request required")
	}
	id, err := s.engine.RequestLoan(ctx, strings.TrimSpace(req.Principal), req.Duration)
	if err != nil {
		return nil, s.translateEngineError(ctx, "request_loan", err)
	}
	return &lendingv1.RequestLoanResponse{LoanID: id}, nil
}

// RepayLoan settles a loan. Any caller may repay.
func (s *Service) RepayLoan(ctx context.Context, req *lendingv1.RepayLoanRequest) (*lendingv1.RepayLoanResponse, error) {
	if err := s.ensureEngine(); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request required")
	}
	repaid, err := s.engine.RepayLoan(ctx, req.LoanID)
	if err != nil {
		return nil, s.translateEngineError(ctx, "repay_loan", err)
	}
	return &lendingv1.RepayLoanResponse{Repaid: repaid}, nil
}

// LiquidateLoan seizes the collateral of an overdue loan.
func (s *Service) LiquidateLoan(ctx context.Context, req *lendingv1.LiquidateLoanRequest) (*lendingv1.LiquidateLoanResponse, error) {
	if err := s.ensureEngine(); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request required")
	}
	seized, err := s.engine.LiquidateLoan(ctx, req.LoanID)
	if err != nil {
		return nil, s.translateEngineError(ctx, "liquidate_loan", err)
	}
	return &lendingv1.LiquidateLoanResponse{Seized: seized}, nil
}

// GetLoan returns a loan by identifier. Unknown identifiers yield
// Found=false rather than an error.
func (s *Service) GetLoan(ctx context.Context, req *lendingv1.GetLoanRequest) (*lendingv1.GetLoanResponse, error) {
	if err := s.ensureEngine(); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request required")
	}
	loan, ok, err := s.engine.GetLoan(ctx, req.LoanID)
	if err != nil {
		return nil, s.translateEngineError(ctx, "get_loan", err)
	}
	if !ok {
		return &lendingv1.GetLoanResponse{}, nil
	}
	return &lendingv1.GetLoanResponse{Found: true, Loan: &loan}, nil
}

// ListLoans enumerates the loans originated by a borrower.
func (s *Service) ListLoans(ctx context.Context, req *lendingv1.ListLoansRequest) (*lendingv1.ListLoansResponse, error) {
	if err := s.ensureEngine(); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request required")
	}
	borrower := strings.TrimSpace(req.Borrower)
	if borrower == "" {
		return nil, status.Error(codes.InvalidArgument, "borrower required")
	}
	loans, err := s.engine.LoansByBorrower(ctx, borrower)
	if err != nil {
		return nil, s.translateEngineError(ctx, "list_loans", err)
	}
	if loans == nil {
		loans = []lendingv1.Loan{}
	}
	return &lendingv1.ListLoansResponse{Loans: loans}, nil
}

func (s *Service) GetTreasury(ctx context.Context, _ *lendingv1.GetTreasuryRequest) (*lendingv1.GetTreasuryResponse, error) {
	if err := s.ensureEngine(); err != nil {
		return nil, err
	}
	treasury, err := s.engine.GetTreasury(ctx)
	if err != nil {
		return nil, s.translateEngineError(ctx, "get_treasury", err)
	}
	return &lendingv1.GetTreasuryResponse{Treasury: treasury}, nil
}

// GetPosition fetches the wallet balance and lending footprint of an account.
func (s *Service) GetPosition(ctx context.Context, req *lendingv1.GetPositionRequest) (*lendingv1.GetPositionResponse, error) {
	if err := s.ensureEngine(); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request required")
	}
	address := strings.TrimSpace(req.Address)
	if address == "" {
		return nil, status.Error(codes.InvalidArgument, "address required")
	}
	position, err := s.engine.GetPosition(ctx, address)
	if err != nil {
		return nil, s.translateEngineError(ctx, "get_position", err)
	}
	return &lendingv1.GetPositionResponse{Position: position}, nil
}

func (s *Service) QuoteLoan(ctx context.Context, req *lendingv1.QuoteLoanRequest) (*lendingv1.QuoteLoanResponse, error) {
	if err := s.ensureEngine(); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request required")
	}
	quote, err := s.engine.Quote(ctx, strings.TrimSpace(req.Principal), req.Duration)
	if err != nil {
		return nil, s.translateEngineError(ctx, "quote_loan", err)
	}
	return &lendingv1.QuoteLoanResponse{Quote: quote}, nil
}

func (s *Service) GetHeight(ctx context.Context, _ *lendingv1.GetHeightRequest) (*lendingv1.GetHeightResponse, error) {
	if err := s.ensureEngine(); err != nil {
		return nil, err
	}
	height, err := s.engine.Height(ctx)
	if err != nil {
		return nil, s.translateEngineError(ctx, "get_height", err)
	}
	return &lendingv1.GetHeightResponse{Height: height}, nil
}

// MineBlocks advances the chain height. Operator only.
func (s *Service) MineBlocks(ctx context.Context, req *lendingv1.MineBlocksRequest) (*lendingv1.MineBlocksResponse, error) {
	if err := s.ensureEngine(); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request required")
	}
	height, err := s.engine.MineBlocks(ctx, req.Count)
	if err != nil {
		return nil, s.translateEngineError(ctx, "mine_blocks", err)
	}
	return &lendingv1.MineBlocksResponse{Height: height}, nil
}

// SetPaused toggles a module pause switch. Operator only.
func (s *Service) SetPaused(ctx context.Context, req *lendingv1.SetPausedRequest) (*lendingv1.SetPausedResponse, error) {
	if err := s.ensureEngine(); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request required")
	}
	paused, err := s.engine.SetPaused(ctx, req.Module, req.Paused)
	if err != nil {
		return nil, s.translateEngineError(ctx, "set_paused", err)
	}
	s.log().Warn("module pause updated",
		slog.String("module", req.Module),
		slog.Bool("paused", req.Paused),
		slog.Bool("operator_authenticated", isAuthenticated(ctx)))
	if paused == nil {
		paused = []string{}
	}
	return &lendingv1.SetPausedResponse{Paused: paused}, nil
}

func (s *Service) ensureEngine() error {
	if s == nil || s.engine == nil {
		return status.Error(codes.FailedPrecondition, "lending engine unavailable")
	}
	return nil
}

func (s *Service) translateEngineError(ctx context.Context, action string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	code, stErr := toStatus(err)
	setCodeTrailer(ctx, code)
	if code == lending.CodeInternal {
		s.log().Error("lending engine error", slog.String("action", action), slog.Any("error", err))
	}
	return stErr
}

func (s *Service) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
