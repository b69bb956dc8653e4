package lending

import (
	"errors"
	"math/big"
	"testing"

	"microlend/core/events"
	"microlend/crypto"
	nativecommon "microlend/native/common"
)

type harness struct {
	engine   *Engine
	state    *mockEngineState
	assets   *fakeAssets
	module   crypto.Address
	lender   crypto.Address
	borrower crypto.Address
	events   *events.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		state:    newMockEngineState(),
		assets:   newFakeAssets(),
		module:   makeAddress(crypto.ContractPrefix, 0xAA),
		lender:   makeAddress(crypto.AccountPrefix, 0x01),
		borrower: makeAddress(crypto.AccountPrefix, 0x02),
		events:   &events.Buffer{},
	}
	h.assets.credit(h.lender, 10_000_000)
	h.assets.credit(h.borrower, 3_000_100)
	h.engine = NewEngine(h.module, DefaultConfig())
	h.engine.SetState(h.state)
	h.engine.SetAssets(h.assets)
	h.engine.SetEmitter(h.events)
	return h
}

func (h *harness) fund(t *testing.T) {
	t.Helper()
	if _, err := h.engine.Contribute(h.lender, big.NewInt(10_000_000)); err != nil {
		t.Fatalf("contribute: %v", err)
	}
	if _, err := h.engine.DepositCollateral(h.borrower, big.NewInt(3_000_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
}

func requireAmount(t *testing.T, label string, got *big.Int, want int64) {
	t.Helper()
	if got == nil || got.Cmp(big.NewInt(want)) != 0 {
		t.Fatalf("%s: expected %d, got %v", label, want, got)
	}
}

func TestConcreteScenario(t *testing.T) {
	h := newHarness(t)

	contributionID, err := h.engine.Contribute(h.lender, big.NewInt(10_000_000))
	if err != nil || contributionID != 1 {
		t.Fatalf("contribute: id=%d err=%v", contributionID, err)
	}
	depositID, err := h.engine.DepositCollateral(h.borrower, big.NewInt(3_000_000))
	if err != nil || depositID != 1 {
		t.Fatalf("deposit: id=%d err=%v", depositID, err)
	}
	loanID, err := h.engine.RequestLoan(h.borrower, big.NewInt(1_000_000), 10)
	if err != nil || loanID != 0 {
		t.Fatalf("request: id=%d err=%v", loanID, err)
	}
	loan, ok, err := h.engine.Loan(loanID)
	if err != nil || !ok {
		t.Fatalf("loan lookup: ok=%v err=%v", ok, err)
	}
	requireAmount(t, "amount due", loan.AmountDue(), 1_000_100)

	repaid, err := h.engine.RepayLoan(h.borrower, loanID)
	if err != nil || !repaid {
		t.Fatalf("repay: ok=%v err=%v", repaid, err)
	}
	if _, err := h.engine.LiquidateLoan(h.lender, loanID); !errors.Is(err, ErrLoanNotActive) {
		t.Fatalf("expected ErrLoanNotActive, got %v", err)
	}
}

func TestRepayRoundTripReturnsInterestToPool(t *testing.T) {
	h := newHarness(t)
	h.fund(t)

	treasury, _ := h.engine.Treasury()
	poolBefore := new(big.Int).Set(treasury.PoolBalance)

	id, err := h.engine.RequestLoan(h.borrower, big.NewInt(1_000_000), 10)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	collateral, _ := h.state.GetCollateral(h.borrower)
	requireAmount(t, "collateral after lock", collateral, 1_500_000)
	requireAmount(t, "borrower wallet after disbursal", h.assets.balance(h.borrower), 1_000_100)

	h.engine.SetBlockHeight(4)
	if _, err := h.engine.RepayLoan(h.borrower, id); err != nil {
		t.Fatalf("repay: %v", err)
	}

	treasury, _ = h.engine.Treasury()
	gain := new(big.Int).Sub(treasury.PoolBalance, poolBefore)
	requireAmount(t, "pool gain", gain, 100)
	requireAmount(t, "outstanding", treasury.OutstandingPrincipal, 0)
	collateral, _ = h.state.GetCollateral(h.borrower)
	requireAmount(t, "collateral restored", collateral, 3_000_000)

	loan, _, _ := h.engine.Loan(id)
	if loan.Status != LoanStatusRepaid || loan.ClosedHeight != 4 {
		t.Fatalf("unexpected loan after repay: %+v", loan)
	}
	vault, _ := h.engine.Vault()
	requireAmount(t, "vault locked", vault.TotalLocked, 0)
	requireAmount(t, "vault unencumbered", vault.TotalUnencumbered, 3_000_000)
}

func TestLoanIDsAreSequentialFromZero(t *testing.T) {
	h := newHarness(t)
	h.fund(t)
	for want := uint64(0); want < 3; want++ {
		id, err := h.engine.RequestLoan(h.borrower, big.NewInt(100_000), 5)
		if err != nil {
			t.Fatalf("request %d: %v", want, err)
		}
		if id != want {
			t.Fatalf("expected id %d, got %d", want, id)
		}
	}
	loans, err := h.engine.LoansByBorrower(h.borrower)
	if err != nil || len(loans) != 3 {
		t.Fatalf("loans by borrower: %d err=%v", len(loans), err)
	}
	registry, _ := h.engine.Registry()
	if registry.NextLoanID != 3 || registry.ActiveLoans != 3 {
		t.Fatalf("unexpected registry %+v", registry)
	}
}

func TestContributionAndDepositCountersStartAtOne(t *testing.T) {
	h := newHarness(t)
	for want := uint64(1); want <= 2; want++ {
		id, err := h.engine.Contribute(h.lender, big.NewInt(10))
		if err != nil || id != want {
			t.Fatalf("contribution %d: id=%d err=%v", want, id, err)
		}
		id, err = h.engine.DepositCollateral(h.borrower, big.NewInt(10))
		if err != nil || id != want {
			t.Fatalf("deposit %d: id=%d err=%v", want, id, err)
		}
	}
	contribution, _ := h.state.GetContribution(h.lender)
	requireAmount(t, "contribution", contribution, 20)
}

func TestRequestLoanCheckOrder(t *testing.T) {
	h := newHarness(t)

	cases := []struct {
		name      string
		principal *big.Int
		duration  uint64
		want      error
	}{
		{name: "zero principal beats zero duration", principal: big.NewInt(0), duration: 0, want: ErrInvalidAmount},
		{name: "nil principal", principal: nil, duration: 5, want: ErrInvalidAmount},
		{name: "zero duration beats empty pool", principal: big.NewInt(5), duration: 0, want: ErrInvalidDuration},
		{name: "empty pool beats missing collateral", principal: big.NewInt(5), duration: 5, want: ErrInsufficientTreasury},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := h.engine.RequestLoan(h.borrower, tc.principal, tc.duration); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	if _, err := h.engine.Contribute(h.lender, big.NewInt(1_000_000)); err != nil {
		t.Fatalf("contribute: %v", err)
	}
	if _, err := h.engine.DepositCollateral(h.borrower, big.NewInt(1_499_999)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := h.engine.RequestLoan(h.borrower, big.NewInt(1_000_000), 5); !errors.Is(err, ErrInsufficientCollateral) {
		t.Fatalf("expected ErrInsufficientCollateral, got %v", err)
	}
	if CodeOf(ErrInsufficientCollateral) != CodeInsufficientCollateral {
		t.Fatalf("unexpected code mapping")
	}
}

func TestFailedRequestLeavesStateUntouched(t *testing.T) {
	h := newHarness(t)
	h.fund(t)
	writes := h.state.writes
	treasury, _ := h.engine.Treasury()

	h.assets.fail = errors.New("token contract rejected transfer")
	_, err := h.engine.RequestLoan(h.borrower, big.NewInt(1_000_000), 10)
	if !errors.Is(err, ErrTransferFailed) || CodeOf(err) != CodeTransferFailed {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	if h.state.writes != writes {
		t.Fatalf("state mutated on failure: %d writes", h.state.writes-writes)
	}
	after, _ := h.engine.Treasury()
	if after.PoolBalance.Cmp(treasury.PoolBalance) != 0 {
		t.Fatalf("pool changed: %s -> %s", treasury.PoolBalance, after.PoolBalance)
	}
	if _, ok, _ := h.engine.Loan(0); ok {
		t.Fatalf("loan must not exist after failed request")
	}
}

func TestContributeTransferFailure(t *testing.T) {
	h := newHarness(t)
	if _, err := h.engine.Contribute(h.lender, big.NewInt(20_000_000)); !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	if h.state.writes != 0 {
		t.Fatalf("expected no writes, got %d", h.state.writes)
	}
	if _, err := h.engine.Contribute(h.lender, big.NewInt(-1)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestLiquidationRequiresOverdue(t *testing.T) {
	h := newHarness(t)
	h.fund(t)
	h.engine.SetBlockHeight(100)
	id, err := h.engine.RequestLoan(h.borrower, big.NewInt(1_000_000), 10)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	for _, height := range []uint64{100, 105, 110} {
		h.engine.SetBlockHeight(height)
		if _, err := h.engine.LiquidateLoan(h.lender, id); !errors.Is(err, ErrLoanNotOverdue) {
			t.Fatalf("height %d: expected ErrLoanNotOverdue, got %v", height, err)
		}
	}

	h.engine.SetBlockHeight(111)
	seized, err := h.engine.LiquidateLoan(h.lender, id)
	if err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	requireAmount(t, "seized", seized, 1_500_000)

	treasury, _ := h.engine.Treasury()
	requireAmount(t, "pool after liquidation", treasury.PoolBalance, 10_500_000)
	requireAmount(t, "absorbed", treasury.CollateralAbsorbed, 1_500_000)
	requireAmount(t, "outstanding", treasury.OutstandingPrincipal, 0)
	collateral, _ := h.state.GetCollateral(h.borrower)
	requireAmount(t, "borrower unencumbered", collateral, 1_500_000)

	if _, err := h.engine.RepayLoan(h.borrower, id); !errors.Is(err, ErrLoanNotActive) {
		t.Fatalf("expected ErrLoanNotActive on repay, got %v", err)
	}
	if _, err := h.engine.LiquidateLoan(h.lender, id); !errors.Is(err, ErrLoanNotActive) {
		t.Fatalf("expected ErrLoanNotActive on second liquidation, got %v", err)
	}
	loan, _, _ := h.engine.Loan(id)
	if loan.Status != LoanStatusLiquidated || loan.ClosedBy.String() != h.lender.String() {
		t.Fatalf("unexpected loan %+v", loan)
	}
}

func TestUnknownLoan(t *testing.T) {
	h := newHarness(t)
	if _, err := h.engine.RepayLoan(h.borrower, 9); !errors.Is(err, ErrLoanNotFound) {
		t.Fatalf("expected ErrLoanNotFound, got %v", err)
	}
	if _, err := h.engine.LiquidateLoan(h.borrower, 9); !errors.Is(err, ErrLoanNotFound) {
		t.Fatalf("expected ErrLoanNotFound, got %v", err)
	}
	if _, ok, err := h.engine.Loan(9); ok || err != nil {
		t.Fatalf("expected absent loan, ok=%v err=%v", ok, err)
	}
}

func TestThirdPartyRepaymentReturnsCollateralToBorrower(t *testing.T) {
	h := newHarness(t)
	h.fund(t)
	id, err := h.engine.RequestLoan(h.borrower, big.NewInt(1_000_000), 10)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	payer := makeAddress(crypto.AccountPrefix, 0x03)
	h.assets.credit(payer, 2_000_000)
	if _, err := h.engine.RepayLoan(payer, id); err != nil {
		t.Fatalf("repay: %v", err)
	}
	requireAmount(t, "payer wallet", h.assets.balance(payer), 999_900)
	collateral, _ := h.state.GetCollateral(h.borrower)
	requireAmount(t, "borrower collateral", collateral, 3_000_000)
	payerCollateral, _ := h.state.GetCollateral(payer)
	requireAmount(t, "payer collateral", payerCollateral, 0)
}

func TestWithdrawCollateral(t *testing.T) {
	h := newHarness(t)
	h.fund(t)
	if _, err := h.engine.RequestLoan(h.borrower, big.NewInt(1_000_000), 10); err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := h.engine.WithdrawCollateral(h.borrower, big.NewInt(1_500_001)); !errors.Is(err, ErrInsufficientCollateral) {
		t.Fatalf("expected ErrInsufficientCollateral, got %v", err)
	}
	remaining, err := h.engine.WithdrawCollateral(h.borrower, big.NewInt(500_000))
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	requireAmount(t, "remaining", remaining, 1_000_000)
	requireAmount(t, "wallet", h.assets.balance(h.borrower), 1_500_100)
}

func TestGuardBlocksMutation(t *testing.T) {
	h := newHarness(t)
	h.engine.SetPauses(stubPauseView{modules: map[string]bool{"lending": true}})
	_, err := h.engine.Contribute(h.lender, big.NewInt(100))
	if !errors.Is(err, nativecommon.ErrModulePaused) || CodeOf(err) != CodeModulePaused {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	requireAmount(t, "lender wallet", h.assets.balance(h.lender), 10_000_000)
	if h.assets.calls != 0 {
		t.Fatalf("expected no transfers while paused")
	}
	if _, err := h.engine.Treasury(); err != nil {
		t.Fatalf("queries must work while paused: %v", err)
	}
}

func TestInvalidCallerRejected(t *testing.T) {
	h := newHarness(t)
	h.fund(t)
	loanID, err := h.engine.RequestLoan(h.borrower, big.NewInt(1_000_000), 10)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	before, err := h.engine.Treasury()
	if err != nil {
		t.Fatalf("treasury: %v", err)
	}
	moduleWallet := h.assets.balance(h.module)

	one := big.NewInt(1)
	ops := map[string]func(crypto.Address) error{
		"contribute": func(c crypto.Address) error { _, err := h.engine.Contribute(c, one); return err },
		"deposit":    func(c crypto.Address) error { _, err := h.engine.DepositCollateral(c, one); return err },
		"withdraw":   func(c crypto.Address) error { _, err := h.engine.WithdrawCollateral(c, one); return err },
		"request":    func(c crypto.Address) error { _, err := h.engine.RequestLoan(c, one, 10); return err },
		"repay":      func(c crypto.Address) error { _, err := h.engine.RepayLoan(c, loanID); return err },
		"liquidate":  func(c crypto.Address) error { _, err := h.engine.LiquidateLoan(c, loanID); return err },
	}
	callers := []struct {
		name   string
		caller crypto.Address
	}{
		{name: "zero", caller: crypto.Address{}},
		{name: "module", caller: h.module},
	}
	for _, tc := range callers {
		for name, op := range ops {
			t.Run(tc.name+"/"+name, func(t *testing.T) {
				calls := h.assets.calls
				if err := op(tc.caller); !errors.Is(err, ErrInvalidCaller) {
					t.Fatalf("expected ErrInvalidCaller, got %v", err)
				}
				if h.assets.calls != calls {
					t.Fatalf("asset transfer attempted for rejected caller")
				}
			})
		}
	}

	after, err := h.engine.Treasury()
	if err != nil {
		t.Fatalf("treasury: %v", err)
	}
	requireAmount(t, "pool balance", after.PoolBalance, before.PoolBalance.Int64())
	requireAmount(t, "total contributed", after.TotalContributed, before.TotalContributed.Int64())
	requireAmount(t, "module wallet", h.assets.balance(h.module), moduleWallet.Int64())
}

func TestModuleCannotFundPoolFromCollateral(t *testing.T) {
	h := newHarness(t)
	if _, err := h.engine.DepositCollateral(h.borrower, big.NewInt(3_000_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := h.engine.Contribute(h.module, big.NewInt(3_000_000)); !errors.Is(err, ErrInvalidCaller) {
		t.Fatalf("expected ErrInvalidCaller, got %v", err)
	}
	if _, err := h.engine.RequestLoan(h.borrower, big.NewInt(1_000_000), 10); !errors.Is(err, ErrInsufficientTreasury) {
		t.Fatalf("expected ErrInsufficientTreasury, got %v", err)
	}
}

func TestNilStateGuard(t *testing.T) {
	var engine *Engine
	if _, err := engine.Contribute(makeAddress(crypto.AccountPrefix, 1), big.NewInt(1)); CodeOf(err) != CodeInternal {
		t.Fatalf("expected internal error, got %v", err)
	}
	engine = NewEngine(makeAddress(crypto.ContractPrefix, 1), DefaultConfig())
	if _, err := engine.Treasury(); err == nil {
		t.Fatalf("expected error without state")
	}
}

func TestEventsEmittedInOrder(t *testing.T) {
	h := newHarness(t)
	h.fund(t)
	id, _ := h.engine.RequestLoan(h.borrower, big.NewInt(1_000_000), 10)
	if _, err := h.engine.RepayLoan(h.borrower, id); err != nil {
		t.Fatalf("repay: %v", err)
	}
	got := h.events.Drain()
	want := []string{EventTypeContribution, EventTypeCollateralDeposited, EventTypeLoanRequested, EventTypeLoanRepaid}
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(got))
	}
	for i, evt := range got {
		if evt.EventType() != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], evt.EventType())
		}
	}
	repaid := got[3].Event()
	if repaid.Attributes["amountDue"] != "1000100" || repaid.Attributes["status"] != "repaid" {
		t.Fatalf("unexpected repaid attributes %v", repaid.Attributes)
	}
}

func TestPositionAndQuote(t *testing.T) {
	h := newHarness(t)
	h.fund(t)
	h.engine.SetBlockHeight(7)
	quote, err := h.engine.Quote(big.NewInt(1_000_000), 10)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	requireAmount(t, "quote interest", quote.Interest, 100)
	requireAmount(t, "quote due", quote.AmountDue, 1_000_100)
	requireAmount(t, "quote collateral", quote.RequiredCollateral, 1_500_000)
	if quote.DueHeight != 17 {
		t.Fatalf("expected due height 17, got %d", quote.DueHeight)
	}
	if _, err := h.engine.Quote(big.NewInt(1), 0); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("expected ErrInvalidDuration, got %v", err)
	}

	if _, err := h.engine.RequestLoan(h.borrower, big.NewInt(1_000_000), 10); err != nil {
		t.Fatalf("request: %v", err)
	}
	position, err := h.engine.Position(h.borrower)
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	requireAmount(t, "position collateral", position.Collateral, 1_500_000)
	requireAmount(t, "position wallet", position.WalletBalance, 1_000_100)
	if len(position.LoanIDs) != 1 || position.LoanIDs[0] != 0 {
		t.Fatalf("unexpected loan ids %v", position.LoanIDs)
	}
	lender, _ := h.engine.Position(h.lender)
	requireAmount(t, "lender contribution", lender.Contribution, 10_000_000)
}

func TestModuleWalletCoversLiabilities(t *testing.T) {
	h := newHarness(t)
	h.fund(t)
	id, _ := h.engine.RequestLoan(h.borrower, big.NewInt(1_000_000), 10)
	h.engine.SetBlockHeight(11)
	if _, err := h.engine.LiquidateLoan(h.lender, id); err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	treasury, _ := h.engine.Treasury()
	vault, _ := h.engine.Vault()
	held := new(big.Int).Add(treasury.PoolBalance, vault.TotalUnencumbered)
	held.Add(held, vault.TotalLocked)
	if h.assets.balance(h.module).Cmp(held) != 0 {
		t.Fatalf("module wallet %s does not match pool+collateral %s", h.assets.balance(h.module), held)
	}
}
