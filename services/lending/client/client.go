package client

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	lendingv1 "microlend/api/lending/v1"
	"microlend/crypto"
	"microlend/native/lending"
	"microlend/network"
	"microlend/services/lending/server"
)

// Option configures Dial.
type Option func(*options)

type options struct {
	transport credentials.TransportCredentials
	token     string
	signer    *crypto.PrivateKey
	extra     []grpc.DialOption
	now       func() time.Time
}

// WithInsecure dials without TLS. Intended for local development.
func WithInsecure() Option {
	return func(o *options) { o.transport = insecure.NewCredentials() }
}

// WithTLSConfig dials with the supplied TLS configuration.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(o *options) {
		var clone *tls.Config
		if cfg == nil {
			clone = &tls.Config{MinVersion: tls.VersionTLS12}
		} else {
			clone = cfg.Clone()
			if clone.MinVersion < tls.VersionTLS12 {
				clone.MinVersion = tls.VersionTLS12
			}
		}
		o.transport = credentials.NewTLS(clone)
	}
}

// WithToken attaches an operator API token to every call.
func WithToken(token string) Option {
	return func(o *options) { o.token = token }
}

// WithSigner signs the caller envelope of mutating calls with key.
func WithSigner(key *crypto.PrivateKey) Option {
	return func(o *options) { o.signer = key }
}

// WithDialOptions forwards raw gRPC dial options.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(o *options) { o.extra = append(o.extra, opts...) }
}

// Client provides typed helpers over the lending gRPC API.
type Client struct {
	conn *grpc.ClientConn
	raw  lendingv1.LendingServiceClient
}

// Dial connects to a lending service endpoint. TLS with the host trust store
// is used unless another transport is configured.
func Dial(ctx context.Context, target string, opts ...Option) (*Client, error) {
	cfg := options{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.transport == nil {
		cfg.transport = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(cfg.transport),
		grpc.WithChainUnaryInterceptor(envelopeInterceptor(cfg.token, cfg.signer, cfg.now)),
	}
	dialOpts = append(dialOpts, cfg.extra...)
	conn, err := grpc.DialContext(ctx, target, dialOpts...)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, raw: lendingv1.NewLendingServiceClient(conn)}, nil
}

// Close tears down the underlying connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Raw exposes the underlying service client for advanced usage.
func (c *Client) Raw() lendingv1.LendingServiceClient {
	if c == nil {
		return nil
	}
	return c.raw
}

func envelopeInterceptor(token string, signer *crypto.PrivateKey, now func() time.Time) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if token != "" {
			ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
		}
		if signer != nil && lendingv1.IsMsgMethod(method) {
			body, err := lendingv1.Codec{}.Marshal(req)
			if err != nil {
				return fmt.Errorf("encode request: %w", err)
			}
			headers, err := network.SignedHeaders(signer, method, body, now())
			if err != nil {
				return err
			}
			for key, value := range headers {
				ctx = metadata.AppendToOutgoingContext(ctx, key, value)
			}
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// Error reports a failed lending call. It unwraps to the lending sentinel
// named by the numeric code so errors.Is and lending.CodeOf work on it.
type Error struct {
	Code    lending.Code
	Message string
	status  *status.Status
}

// GRPCStatus exposes the transport status to status.Code and friends.
func (e *Error) GRPCStatus() *status.Status {
	if e == nil {
		return nil
	}
	return e.status
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("lending call failed (code %d %s): %s", uint32(e.Code), e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	if sentinel := lending.ErrorForCode(e.Code); sentinel != nil {
		return sentinel
	}
	return nil
}

// callError converts err into an *Error when the trailer carries a lending
// code. Other failures are returned untouched.
func callError(err error, trailer metadata.MD) error {
	if err == nil {
		return nil
	}
	code, ok := server.CodeFromTrailer(trailer)
	if !ok || code == lending.CodeOK {
		return err
	}
	st := status.Convert(err)
	return &Error{Code: code, Message: st.Message(), status: st}
}

func (c *Client) ready() error {
	if c == nil || c.raw == nil {
		return grpc.ErrClientConnClosing
	}
	return nil
}

// Contribute adds amount from the signer's wallet to the lender pool.
func (c *Client) Contribute(ctx context.Context, amount string) (uint64, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}
	var trailer metadata.MD
	resp, err := c.raw.Contribute(ctx, &lendingv1.ContributeRequest{Amount: amount}, grpc.Trailer(&trailer))
	if err != nil {
		return 0, callError(err, trailer)
	}
	return resp.ContributionID, nil
}

// DepositCollateral moves amount from the signer's wallet into the vault.
func (c *Client) DepositCollateral(ctx context.Context, amount string) (uint64, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}
	var trailer metadata.MD
	resp, err := c.raw.DepositCollateral(ctx, &lendingv1.DepositCollateralRequest{Amount: amount}, grpc.Trailer(&trailer))
	if err != nil {
		return 0, callError(err, trailer)
	}
	return resp.DepositID, nil
}

// WithdrawCollateral returns unencumbered collateral and reports the
// remaining balance.
func (c *Client) WithdrawCollateral(ctx context.Context, amount string) (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}
	var trailer metadata.MD
	resp, err := c.raw.WithdrawCollateral(ctx, &lendingv1.WithdrawCollateralRequest{Amount: amount}, grpc.Trailer(&trailer))
	if err != nil {
		return "", callError(err, trailer)
	}
	return resp.Remaining, nil
}

func (c *Client) RequestLoan(ctx context.Context, principal string, duration uint64) (uint64, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}
	var trailer metadata.MD
	resp, err := c.raw.RequestLoan(ctx, &lendingv1.RequestLoanRequest{Principal: principal, Duration: duration}, grpc.Trailer(&trailer))
	if err != nil {
		return 0, callError(err, trailer)
	}
	return resp.LoanID, nil
}

func (c *Client) RepayLoan(ctx context.Context, loanID uint64) (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}
	var trailer metadata.MD
	resp, err := c.raw.RepayLoan(ctx, &lendingv1.RepayLoanRequest{LoanID: loanID}, grpc.Trailer(&trailer))
	if err != nil {
		return false, callError(err, trailer)
	}
	return resp.Repaid, nil
}

// LiquidateLoan seizes an overdue loan's collateral and returns the amount.
func (c *Client) LiquidateLoan(ctx context.Context, loanID uint64) (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}
	var trailer metadata.MD
	resp, err := c.raw.LiquidateLoan(ctx, &lendingv1.LiquidateLoanRequest{LoanID: loanID}, grpc.Trailer(&trailer))
	if err != nil {
		return "", callError(err, trailer)
	}
	return resp.Seized, nil
}

// GetLoan returns the loan with loanID, or nil when no such loan exists.
func (c *Client) GetLoan(ctx context.Context, loanID uint64) (*lendingv1.Loan, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var trailer metadata.MD
	resp, err := c.raw.GetLoan(ctx, &lendingv1.GetLoanRequest{LoanID: loanID}, grpc.Trailer(&trailer))
	if err != nil {
		return nil, callError(err, trailer)
	}
	if !resp.Found {
		return nil, nil
	}
	return resp.Loan, nil
}

func (c *Client) ListLoans(ctx context.Context, borrower string) ([]lendingv1.Loan, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var trailer metadata.MD
	resp, err := c.raw.ListLoans(ctx, &lendingv1.ListLoansRequest{Borrower: borrower}, grpc.Trailer(&trailer))
	if err != nil {
		return nil, callError(err, trailer)
	}
	return resp.Loans, nil
}

func (c *Client) GetTreasury(ctx context.Context) (lendingv1.Treasury, error) {
	if err := c.ready(); err != nil {
		return lendingv1.Treasury{}, err
	}
	var trailer metadata.MD
	resp, err := c.raw.GetTreasury(ctx, &lendingv1.GetTreasuryRequest{}, grpc.Trailer(&trailer))
	if err != nil {
		return lendingv1.Treasury{}, callError(err, trailer)
	}
	return resp.Treasury, nil
}

func (c *Client) GetPosition(ctx context.Context, address string) (lendingv1.Position, error) {
	if err := c.ready(); err != nil {
		return lendingv1.Position{}, err
	}
	var trailer metadata.MD
	resp, err := c.raw.GetPosition(ctx, &lendingv1.GetPositionRequest{Address: address}, grpc.Trailer(&trailer))
	if err != nil {
		return lendingv1.Position{}, callError(err, trailer)
	}
	return resp.Position, nil
}

func (c *Client) Quote(ctx context.Context, principal string, duration uint64) (lendingv1.Quote, error) {
	if err := c.ready(); err != nil {
		return lendingv1.Quote{}, err
	}
	var trailer metadata.MD
	resp, err := c.raw.QuoteLoan(ctx, &lendingv1.QuoteLoanRequest{Principal: principal, Duration: duration}, grpc.Trailer(&trailer))
	if err != nil {
		return lendingv1.Quote{}, callError(err, trailer)
	}
	return resp.Quote, nil
}

func (c *Client) Height(ctx context.Context) (uint64, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}
	resp, err := c.raw.GetHeight(ctx, &lendingv1.GetHeightRequest{})
	if err != nil {
		return 0, err
	}
	return resp.Height, nil
}

// MineBlocks advances the chain by count blocks. Requires an operator token.
func (c *Client) MineBlocks(ctx context.Context, count uint64) (uint64, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}
	resp, err := c.raw.MineBlocks(ctx, &lendingv1.MineBlocksRequest{Count: count})
	if err != nil {
		return 0, err
	}
	return resp.Height, nil
}

// SetPaused toggles a module pause switch. Requires an operator token.
func (c *Client) SetPaused(ctx context.Context, module string, paused bool) ([]string, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	resp, err := c.raw.SetPaused(ctx, &lendingv1.SetPausedRequest{Module: module, Paused: paused})
	if err != nil {
		return nil, err
	}
	return resp.Paused, nil
}
