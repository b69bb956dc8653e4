package lendingv1

// Amounts are base-10 integer strings so values above 2^53 survive JSON.

// Loan is the wire view of a loan record.
type Loan struct {
	ID               uint64 `json:"id"`
	Borrower         string `json:"borrower"`
	Principal        string `json:"principal"`
	CollateralLocked string `json:"collateralLocked"`
	Interest         string `json:"interest"`
	AmountDue        string `json:"amountDue"`
	StartHeight      uint64 `json:"startHeight"`
	Duration         uint64 `json:"duration"`
	DueHeight        uint64 `json:"dueHeight"`
	Status           string `json:"status"`
	ClosedHeight     uint64 `json:"closedHeight,omitempty"`
	ClosedBy         string `json:"closedBy,omitempty"`
}

// Treasury merges the pool, vault and registry snapshots.
type Treasury struct {
	ModuleAddress        string `json:"moduleAddress"`
	Asset                string `json:"asset"`
	Height               uint64 `json:"height"`
	PoolBalance          string `json:"poolBalance"`
	TotalContributed     string `json:"totalContributed"`
	TotalRepaid          string `json:"totalRepaid"`
	CollateralAbsorbed   string `json:"collateralAbsorbed"`
	OutstandingPrincipal string `json:"outstandingPrincipal"`
	ContributionCount    uint64 `json:"contributionCount"`
	CollateralFree       string `json:"collateralUnencumbered"`
	CollateralLocked     string `json:"collateralLocked"`
	DepositCount         uint64 `json:"depositCount"`
	NextLoanID           uint64 `json:"nextLoanId"`
	ActiveLoans          uint64 `json:"activeLoans"`
	InterestPerBlockPPM  uint64 `json:"interestPerBlockPpm"`
	CollateralRatioBps   uint64 `json:"collateralRatioBps"`
}

// Position reports an account's wallet balance and lending footprint.
type Position struct {
	Address       string   `json:"address"`
	WalletBalance string   `json:"walletBalance"`
	Collateral    string   `json:"collateral"`
	Contribution  string   `json:"contribution"`
	LoanIDs       []uint64 `json:"loanIds"`
}

// Quote previews a loan request.
type Quote struct {
	Principal          string `json:"principal"`
	Duration           uint64 `json:"duration"`
	Interest           string `json:"interest"`
	AmountDue          string `json:"amountDue"`
	RequiredCollateral string `json:"requiredCollateral"`
	DueHeight          uint64 `json:"dueHeight"`
}

type ContributeRequest struct {
	Amount string `json:"amount"`
}

type ContributeResponse struct {
	ContributionID uint64 `json:"contributionId"`
}

type DepositCollateralRequest struct {
	Amount string `json:"amount"`
}

type DepositCollateralResponse struct {
	DepositID uint64 `json:"depositId"`
}

type WithdrawCollateralRequest struct {
	Amount string `json:"amount"`
}

type WithdrawCollateralResponse struct {
	Remaining string `json:"remaining"`
}

type RequestLoanRequest struct {
	Principal string `json:"principal"`
	Duration  uint64 `json:"duration"`
}

type RequestLoanResponse struct {
	LoanID uint64 `json:"loanId"`
}

type RepayLoanRequest struct {
	LoanID uint64 `json:"loanId"`
}

type RepayLoanResponse struct {
	Repaid bool `json:"repaid"`
}

type LiquidateLoanRequest struct {
	LoanID uint64 `json:"loanId"`
}

type LiquidateLoanResponse struct {
	Seized string `json:"seized"`
}

type GetLoanRequest struct {
	LoanID uint64 `json:"loanId"`
}

// GetLoanResponse reports Found=false for unknown identifiers.
type GetLoanResponse struct {
	Found bool  `json:"found"`
	Loan  *Loan `json:"loan,omitempty"`
}

type ListLoansRequest struct {
	Borrower string `json:"borrower"`
}

type ListLoansResponse struct {
	Loans []Loan `json:"loans"`
}

type GetTreasuryRequest struct{}

type GetTreasuryResponse struct {
	Treasury Treasury `json:"treasury"`
}

type GetPositionRequest struct {
	Address string `json:"address"`
}

type GetPositionResponse struct {
	Position Position `json:"position"`
}

type QuoteLoanRequest struct {
	Principal string `json:"principal"`
	Duration  uint64 `json:"duration"`
}

type QuoteLoanResponse struct {
	Quote Quote `json:"quote"`
}

type GetHeightRequest struct{}

type GetHeightResponse struct {
	Height uint64 `json:"height"`
}

type MineBlocksRequest struct {
	Count uint64 `json:"count"`
}

type MineBlocksResponse struct {
	Height uint64 `json:"height"`
}

type SetPausedRequest struct {
	Module string `json:"module"`
	Paused bool   `json:"paused"`
}

type SetPausedResponse struct {
	Paused []string `json:"paused"`
}
