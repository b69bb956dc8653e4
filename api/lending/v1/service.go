package lendingv1

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "microlend.lending.v1.LendingService"

const (
	LendingService_Contribute_FullMethodName         = "/" + ServiceName + "/Contribute"
	LendingService_DepositCollateral_FullMethodName  = "/" + ServiceName + "/DepositCollateral"
	LendingService_WithdrawCollateral_FullMethodName = "/" + ServiceName + "/WithdrawCollateral"
	LendingService_RequestLoan_FullMethodName        = "/" + ServiceName + "/RequestLoan"
	LendingService_RepayLoan_FullMethodName          = "/" + ServiceName + "/RepayLoan"
	LendingService_LiquidateLoan_FullMethodName      = "/" + ServiceName + "/LiquidateLoan"
	LendingService_GetLoan_FullMethodName            = "/" + ServiceName + "/GetLoan"
	LendingService_ListLoans_FullMethodName          = "/" + ServiceName + "/ListLoans"
	LendingService_GetTreasury_FullMethodName        = "/" + ServiceName + "/GetTreasury"
	LendingService_GetPosition_FullMethodName        = "/" + ServiceName + "/GetPosition"
	LendingService_QuoteLoan_FullMethodName          = "/" + ServiceName + "/QuoteLoan"
	LendingService_GetHeight_FullMethodName          = "/" + ServiceName + "/GetHeight"
	LendingService_MineBlocks_FullMethodName         = "/" + ServiceName + "/MineBlocks"
	LendingService_SetPaused_FullMethodName          = "/" + ServiceName + "/SetPaused"
)

// LendingServiceServer is the server API for the lending service.
type LendingServiceServer interface {
	Contribute(context.Context, *ContributeRequest) (*ContributeResponse, error)
	DepositCollateral(context.Context, *DepositCollateralRequest) (*DepositCollateralResponse, error)
	WithdrawCollateral(context.Context, *WithdrawCollateralRequest) (*WithdrawCollateralResponse, error)
	RequestLoan(context.Context, *RequestLoanRequest) (*RequestLoanResponse, error)
	RepayLoan(context.Context, *RepayLoanRequest) (*RepayLoanResponse, error)
	LiquidateLoan(context.Context, *LiquidateLoanRequest) (*LiquidateLoanResponse, error)
	GetLoan(context.Context, *GetLoanRequest) (*GetLoanResponse, error)
	ListLoans(context.Context, *ListLoansRequest) (*ListLoansResponse, error)
	GetTreasury(context.Context, *GetTreasuryRequest) (*GetTreasuryResponse, error)
	GetPosition(context.Context, *GetPositionRequest) (*GetPositionResponse, error)
	QuoteLoan(context.Context, *QuoteLoanRequest) (*QuoteLoanResponse, error)
	GetHeight(context.Context, *GetHeightRequest) (*GetHeightResponse, error)
	MineBlocks(context.Context, *MineBlocksRequest) (*MineBlocksResponse, error)
	SetPaused(context.Context, *SetPausedRequest) (*SetPausedResponse, error)
}

// RegisterLendingServiceServer registers srv on s.
func RegisterLendingServiceServer(s grpc.ServiceRegistrar, srv LendingServiceServer) {
	s.RegisterService(&LendingService_ServiceDesc, srv)
}

func unaryHandler[Req, Resp any](fullMethod string, call func(LendingServiceServer, context.Context, *Req) (*Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LendingServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(LendingServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// LendingService_ServiceDesc describes the lending service for grpc.Server.
var LendingService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LendingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Contribute", Handler: unaryHandler(LendingService_Contribute_FullMethodName, LendingServiceServer.Contribute)},
		{MethodName: "DepositCollateral", Handler: unaryHandler(LendingService_DepositCollateral_FullMethodName, LendingServiceServer.DepositCollateral)},
		{MethodName: "WithdrawCollateral", Handler: unaryHandler(LendingService_WithdrawCollateral_FullMethodName, LendingServiceServer.WithdrawCollateral)},
		{MethodName: "RequestLoan", Handler: unaryHandler(LendingService_RequestLoan_FullMethodName, LendingServiceServer.RequestLoan)},
		{MethodName: "RepayLoan", Handler: unaryHandler(LendingService_RepayLoan_FullMethodName, LendingServiceServer.RepayLoan)},
		{MethodName: "LiquidateLoan", Handler: unaryHandler(LendingService_LiquidateLoan_FullMethodName, LendingServiceServer.LiquidateLoan)},
		{MethodName: "GetLoan", Handler: unaryHandler(LendingService_GetLoan_FullMethodName, LendingServiceServer.GetLoan)},
		{MethodName: "ListLoans", Handler: unaryHandler(LendingService_ListLoans_FullMethodName, LendingServiceServer.ListLoans)},
		{MethodName: "GetTreasury", Handler: unaryHandler(LendingService_GetTreasury_FullMethodName, LendingServiceServer.GetTreasury)},
		{MethodName: "GetPosition", Handler: unaryHandler(LendingService_GetPosition_FullMethodName, LendingServiceServer.GetPosition)},
		{MethodName: "QuoteLoan", Handler: unaryHandler(LendingService_QuoteLoan_FullMethodName, LendingServiceServer.QuoteLoan)},
		{MethodName: "GetHeight", Handler: unaryHandler(LendingService_GetHeight_FullMethodName, LendingServiceServer.GetHeight)},
		{MethodName: "MineBlocks", Handler: unaryHandler(LendingService_MineBlocks_FullMethodName, LendingServiceServer.MineBlocks)},
		{MethodName: "SetPaused", Handler: unaryHandler(LendingService_SetPaused_FullMethodName, LendingServiceServer.SetPaused)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "lending/v1/lending.json",
}

// IsMsgMethod reports whether fullMethod mutates lending state on behalf of a
// caller.
func IsMsgMethod(fullMethod string) bool {
	switch fullMethod {
	case LendingService_Contribute_FullMethodName,
		LendingService_DepositCollateral_FullMethodName,
		LendingService_WithdrawCollateral_FullMethodName,
		LendingService_RequestLoan_FullMethodName,
		LendingService_RepayLoan_FullMethodName,
		LendingService_LiquidateLoan_FullMethodName:
		return true
	default:
		return false
	}
}

// IsAdminMethod reports whether fullMethod is an operator control.
func IsAdminMethod(fullMethod string) bool {
	return fullMethod == LendingService_MineBlocks_FullMethodName ||
		fullMethod == LendingService_SetPaused_FullMethodName
}

// LendingServiceClient is the client API for the lending service.
type LendingServiceClient interface {
	Contribute(ctx context.Context, in *ContributeRequest, opts ...grpc.CallOption) (*ContributeResponse, error)
	DepositCollateral(ctx context.Context, in *DepositCollateralRequest, opts ...grpc.CallOption) (*DepositCollateralResponse, error)
	WithdrawCollateral(ctx context.Context, in *WithdrawCollateralRequest, opts ...grpc.CallOption) (*WithdrawCollateralResponse, error)
	RequestLoan(ctx context.Context, in *RequestLoanRequest, opts ...grpc.CallOption) (*RequestLoanResponse, error)
	RepayLoan(ctx context.Context, in *RepayLoanRequest, opts ...grpc.CallOption) (*RepayLoanResponse, error)
	LiquidateLoan(ctx context.Context, in *LiquidateLoanRequest, opts ...grpc.CallOption) (*LiquidateLoanResponse, error)
	GetLoan(ctx context.Context, in *GetLoanRequest, opts ...grpc.CallOption) (*GetLoanResponse, error)
	ListLoans(ctx context.Context, in *ListLoansRequest, opts ...grpc.CallOption) (*ListLoansResponse, error)
	GetTreasury(ctx context.Context, in *GetTreasuryRequest, opts ...grpc.CallOption) (*GetTreasuryResponse, error)
	GetPosition(ctx context.Context, in *GetPositionRequest, opts ...grpc.CallOption) (*GetPositionResponse, error)
	QuoteLoan(ctx context.Context, in *QuoteLoanRequest, opts ...grpc.CallOption) (*QuoteLoanResponse, error)
	GetHeight(ctx context.Context, in *GetHeightRequest, opts ...grpc.CallOption) (*GetHeightResponse, error)
	MineBlocks(ctx context.Context, in *MineBlocksRequest, opts ...grpc.CallOption) (*MineBlocksResponse, error)
	SetPaused(ctx context.Context, in *SetPausedRequest, opts ...grpc.CallOption) (*SetPausedResponse, error)
}

type lendingServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewLendingServiceClient returns a client that speaks the JSON codec.
func NewLendingServiceClient(cc grpc.ClientConnInterface) LendingServiceClient {
	return &lendingServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *lendingServiceClient) Contribute(ctx context.Context, in *ContributeRequest, opts ...grpc.CallOption) (*ContributeResponse, error) {
	return invoke[ContributeResponse](ctx, c.cc, LendingService_Contribute_FullMethodName, in, opts)
}

func (c *lendingServiceClient) DepositCollateral(ctx context.Context, in *DepositCollateralRequest, opts ...grpc.CallOption) (*DepositCollateralResponse, error) {
	return invoke[DepositCollateralResponse](ctx, c.cc, LendingService_DepositCollateral_FullMethodName, in, opts)
}

func (c *lendingServiceClient) WithdrawCollateral(ctx context.Context, in *WithdrawCollateralRequest, opts ...grpc.CallOption) (*WithdrawCollateralResponse, error) {
	return invoke[WithdrawCollateralResponse](ctx, c.cc, LendingService_WithdrawCollateral_FullMethodName, in, opts)
}

func (c *lendingServiceClient) RequestLoan(ctx context.Context, in *RequestLoanRequest, opts ...grpc.CallOption) (*RequestLoanResponse, error) {
	return invoke[RequestLoanResponse](ctx, c.cc, LendingService_RequestLoan_FullMethodName, in, opts)
}

func (c *lendingServiceClient) RepayLoan(ctx context.Context, in *RepayLoanRequest, opts ...grpc.CallOption) (*RepayLoanResponse, error) {
	return invoke[RepayLoanResponse](ctx, c.cc, LendingService_RepayLoan_FullMethodName, in, opts)
}

func (c *lendingServiceClient) LiquidateLoan(ctx context.Context, in *LiquidateLoanRequest, opts ...grpc.CallOption) (*LiquidateLoanResponse, error) {
	return invoke[LiquidateLoanResponse](ctx, c.cc, LendingService_LiquidateLoan_FullMethodName, in, opts)
}

func (c *lendingServiceClient) GetLoan(ctx context.Context, in *GetLoanRequest, opts ...grpc.CallOption) (*GetLoanResponse, error) {
	return invoke[GetLoanResponse](ctx, c.cc, LendingService_GetLoan_FullMethodName, in, opts)
}

func (c *lendingServiceClient) ListLoans(ctx context.Context, in *ListLoansRequest, opts ...grpc.CallOption) (*ListLoansResponse, error) {
	return invoke[ListLoansResponse](ctx, c.cc, LendingService_ListLoans_FullMethodName, in, opts)
}

func (c *lendingServiceClient) GetTreasury(ctx context.Context, in *GetTreasuryRequest, opts ...grpc.CallOption) (*GetTreasuryResponse, error) {
	return invoke[GetTreasuryResponse](ctx, c.cc, LendingService_GetTreasury_FullMethodName, in, opts)
}

func (c *lendingServiceClient) GetPosition(ctx context.Context, in *GetPositionRequest, opts ...grpc.CallOption) (*GetPositionResponse, error) {
	return invoke[GetPositionResponse](ctx, c.cc, LendingService_GetPosition_FullMethodName, in, opts)
}

func (c *lendingServiceClient) QuoteLoan(ctx context.Context, in *QuoteLoanRequest, opts ...grpc.CallOption) (*QuoteLoanResponse, error) {
	return invoke[QuoteLoanResponse](ctx, c.cc, LendingService_QuoteLoan_FullMethodName, in, opts)
}

func (c *lendingServiceClient) GetHeight(ctx context.Context, in *GetHeightRequest, opts ...grpc.CallOption) (*GetHeightResponse, error) {
	return invoke[GetHeightResponse](ctx, c.cc, LendingService_GetHeight_FullMethodName, in, opts)
}

func (c *lendingServiceClient) MineBlocks(ctx context.Context, in *MineBlocksRequest, opts ...grpc.CallOption) (*MineBlocksResponse, error) {
	return invoke[MineBlocksResponse](ctx, c.cc, LendingService_MineBlocks_FullMethodName, in, opts)
}

func (c *lendingServiceClient) SetPaused(ctx context.Context, in *SetPausedRequest, opts ...grpc.CallOption) (*SetPausedResponse, error) {
	return invoke[SetPausedResponse](ctx, c.cc, LendingService_SetPaused_FullMethodName, in, opts)
}
