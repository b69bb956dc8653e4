package lending

import (
	"math/big"
	"math/bits"

	"microlend/core/events"
	"microlend/core/types"
	"microlend/crypto"
	nativecommon "microlend/native/common"
)

const moduleName = "lending"

// ModuleName is the identifier consulted by the pause switch.
const ModuleName = moduleName

// AssetTransfer moves the lending asset between accounts. Implementations must
// either move the full amount or fail without side effects.
type AssetTransfer interface {
	Transfer(from, to crypto.Address, amount *big.Int) error
}

// BalanceReader is implemented by asset capabilities that can report wallet
// balances. Position queries use it when available.
type BalanceReader interface {
	BalanceOf(addr crypto.Address) (*big.Int, error)
}

// engineState abstracts the persistence required by the lending engine.
type engineState interface {
	GetTreasury() (*Treasury, error)
	PutTreasury(treasury *Treasury) error
	GetVault() (*Vault, error)
	PutVault(vault *Vault) error
	GetRegistry() (*Registry, error)
	PutRegistry(registry *Registry) error
	GetContribution(addr crypto.Address) (*big.Int, error)
	PutContribution(addr crypto.Address, amount *big.Int) error
	GetCollateral(addr crypto.Address) (*big.Int, error)
	PutCollateral(addr crypto.Address, amount *big.Int) error
	GetLoan(id uint64) (*Loan, bool, error)
	PutLoan(loan *Loan) error
	IndexBorrowerLoan(addr crypto.Address, id uint64) error
	BorrowerLoanIDs(addr crypto.Address) ([]uint64, error)
}

// Engine orchestrates the loan lifecycle: pool contributions, collateral
// custody, origination, repayment and liquidation.
type Engine struct {
	state         engineState
	assets        AssetTransfer
	moduleAddress crypto.Address
	config        Config
	interest      InterestCalculator
	blockHeight   uint64
	pauses        nativecommon.PauseView
	emitter       events.Emitter
}

// NewEngine constructs a lending engine holding funds at moduleAddr.
func NewEngine(moduleAddr crypto.Address, cfg Config) *Engine {
	cfg = cfg.Normalize()
	return &Engine{
		moduleAddress: moduleAddr,
		config:        cfg,
		interest:      NewInterestCalculator(cfg.InterestPerBlockPPM),
		emitter:       events.NoopEmitter{},
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetAssets wires the asset capability used for every value movement.
func (e *Engine) SetAssets(assets AssetTransfer) {
	if e == nil {
		return
	}
	e.assets = assets
}

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetBlockHeight records the height used as a loan's start and when judging
// whether a loan is overdue.
func (e *Engine) SetBlockHeight(height uint64) {
	if e == nil {
		return
	}
	e.blockHeight = height
}

// SetEmitter configures the sink for lending events.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

// ModuleAddress returns the account that custodies pool and collateral funds.
func (e *Engine) ModuleAddress() crypto.Address {
	if e == nil {
		return crypto.Address{}
	}
	return e.moduleAddress
}

// Config returns the active module configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return DefaultConfig()
	}
	return e.config
}

func (e *Engine) treasury() TreasuryLedger { return TreasuryLedger{state: e.state} }
func (e *Engine) vault() CollateralVault { return CollateralVault{state: e.state} }
func (e *Engine) registry() LoanRegistry { return LoanRegistry{state: e.state} }

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return nil
}

func (e *Engine) readyForMutation(caller crypto.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return ErrModulePaused
	}
	if e.assets == nil {
		return errNilAsset
	}
	if caller.IsZero() || caller.Bytes() == nil {
		return ErrInvalidCaller
	}
	// The module account holds pool and collateral funds; it never calls in.
	if caller.Raw() == e.moduleAddress.Raw() {
		return ErrInvalidCaller
	}
	return nil
}

func (e *Engine) emit(payload *types.Event) {
	if e.emitter == nil || payload == nil {
		return
	}
	e.emitter.Emit(Event{payload: payload})
}

func (e *Engine) transfer(from, to crypto.Address, amount *big.Int) error {
	if err := e.assets.Transfer(from, to, new(big.Int).Set(amount)); err != nil {
		return transferFailed(err)
	}
	return nil
}

// Contribute moves amount from the contributor into the pool and returns the
// contribution sequence number.
func (e *Engine) Contribute(contributor crypto.Address, amount *big.Int) (uint64, error) {
	if err := e.readyForMutation(contributor); err != nil {
		return 0, err
	}
	if !positive(amount) {
		return 0, ErrInvalidAmount
	}
	if err := e.transfer(contributor, e.moduleAddress, amount); err != nil {
		return 0, err
	}
	id, err := e.treasury().RecordContribution(contributor, amount)
	if err != nil {
		return 0, err
	}
	treasury, err := e.treasury().Load()
	if err != nil {
		return 0, err
	}
	e.emit(NewContributionEvent(contributor, amount, id, treasury.PoolBalance))
	return id, nil
}

// DepositCollateral moves amount from the owner into the vault and returns the
// deposit sequence number.
func (e *Engine) DepositCollateral(owner crypto.Address, amount *big.Int) (uint64, error) {
	if err := e.readyForMutation(owner); err != nil {
		return 0, err
	}
	if !positive(amount) {
		return 0, ErrInvalidAmount
	}
	if err := e.transfer(owner, e.moduleAddress, amount); err != nil {
		return 0, err
	}
	id, err := e.vault().Deposit(owner, amount)
	if err != nil {
		return 0, err
	}
	e.emit(NewCollateralDepositedEvent(owner, amount, id))
	return id, nil
}

// WithdrawCollateral returns unencumbered collateral to the owner's wallet and
// reports the balance left in the vault.
func (e *Engine) WithdrawCollateral(owner crypto.Address, amount *big.Int) (*big.Int, error) {
	if err := e.readyForMutation(owner); err != nil {
		return nil, err
	}
	if !positive(amount) {
		return nil, ErrInvalidAmount
	}
	balance, err := e.vault().Balance(owner)
	if err != nil {
		return nil, err
	}
	if balance.Cmp(amount) < 0 {
		return nil, ErrInsufficientCollateral
	}
	if err := e.transfer(e.moduleAddress, owner, amount); err != nil {
		return nil, err
	}
	remaining, err := e.vault().Withdraw(owner, amount)
	if err != nil {
		return nil, err
	}
	e.emit(NewCollateralWithdrawnEvent(owner, amount, remaining))
	return remaining, nil
}

// RequestLoan disburses principal from the pool to the borrower, locking the
// required collateral, and returns the new loan identifier.
func (e *Engine) RequestLoan(borrower crypto.Address, principal *big.Int, duration uint64) (uint64, error) {
	if err := e.readyForMutation(borrower); err != nil {
		return 0, err
	}
	if !positive(principal) {
		return 0, ErrInvalidAmount
	}
	if duration == 0 {
		return 0, ErrInvalidDuration
	}
	funded, err := e.treasury().CanFund(principal)
	if err != nil {
		return 0, err
	}
	if !funded {
		return 0, ErrInsufficientTreasury
	}
	required, err := RequiredCollateral(principal, e.config.CollateralRatioBps)
	if err != nil {
		return 0, err
	}
	available, err := e.vault().Balance(borrower)
	if err != nil {
		return 0, err
	}
	if available.Cmp(required) < 0 {
		return 0, ErrInsufficientCollateral
	}
	interest, err := e.interest.Interest(principal, duration)
	if err != nil {
		return 0, err
	}
	if _, err := checkedAdd(principal, interest); err != nil {
		return 0, err
	}
	dueHeight, carry := bits.Add64(e.blockHeight, duration, 0)
	if carry != 0 {
		return 0, ErrArithmeticOverflow
	}

	if err := e.transfer(e.moduleAddress, borrower, principal); err != nil {
		return 0, err
	}
	if err := e.treasury().Disburse(principal); err != nil {
		return 0, err
	}
	if err := e.vault().Lock(borrower, required); err != nil {
		return 0, err
	}
	loan := &Loan{
		Borrower:         borrower,
		Principal:        new(big.Int).Set(principal),
		CollateralLocked: required,
		Interest:         interest,
		StartHeight:      e.blockHeight,
		Duration:         duration,
		DueHeight:        dueHeight,
	}
	id, err := e.registry().Create(loan)
	if err != nil {
		return 0, err
	}
	e.emit(NewLoanRequestedEvent(loan))
	return id, nil
}

// RepayLoan settles an active loan. Any caller may pay the amount due; the
// locked collateral always returns to the borrower.
func (e *Engine) RepayLoan(payer crypto.Address, id uint64) (bool, error) {
	if err := e.readyForMutation(payer); err != nil {
		return false, err
	}
	loan, err := e.registry().GetActive(id)
	if err != nil {
		return false, err
	}
	amountDue := loan.AmountDue()
	if err := e.transfer(payer, e.moduleAddress, amountDue); err != nil {
		return false, err
	}
	if err := e.treasury().RecordRepayment(loan.Principal, amountDue); err != nil {
		return false, err
	}
	if err := e.vault().Release(loan.Borrower, loan.CollateralLocked); err != nil {
		return false, err
	}
	if err := e.registry().Close(loan, LoanStatusRepaid, e.blockHeight, payer); err != nil {
		return false, err
	}
	e.emit(NewLoanRepaidEvent(loan))
	return true, nil
}

// LiquidateLoan seizes the collateral of an overdue loan into the pool and
// returns the seized amount.
func (e *Engine) LiquidateLoan(liquidator crypto.Address, id uint64) (*big.Int, error) {
	if err := e.readyForMutation(liquidator); err != nil {
		return nil, err
	}
	loan, err := e.registry().GetActive(id)
	if err != nil {
		return nil, err
	}
	if !loan.Overdue(e.blockHeight) {
		return nil, ErrLoanNotOverdue
	}
	seized := cloneAmount(loan.CollateralLocked)
	if err := e.vault().Seize(seized); err != nil {
		return nil, err
	}
	if err := e.treasury().AbsorbCollateral(loan.Principal, seized); err != nil {
		return nil, err
	}
	if err := e.registry().Close(loan, LoanStatusLiquidated, e.blockHeight, liquidator); err != nil {
		return nil, err
	}
	e.emit(NewLoanLiquidatedEvent(loan))
	return seized, nil
}

// Loan returns the loan with the provided identifier. The boolean reports
// whether it exists.
func (e *Engine) Loan(id uint64) (*Loan, bool, error) {
	if err := e.ready(); err != nil {
		return nil, false, err
	}
	loan, ok, err := e.state.GetLoan(id)
	if err != nil || !ok {
		return nil, false, err
	}
	return loan.Clone(), true, nil
}

// LoansByBorrower lists every loan originated by addr, terminal ones included.
func (e *Engine) LoansByBorrower(addr crypto.Address) ([]*Loan, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.registry().ByBorrower(addr)
}

// Treasury returns the current pool snapshot.
func (e *Engine) Treasury() (*Treasury, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.treasury().Load()
}

// Vault returns aggregate collateral custody totals.
func (e *Engine) Vault() (*Vault, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.vault().Load()
}

// Registry returns the loan sequence counters.
func (e *Engine) Registry() (*Registry, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.registry().Load()
}

// Position summarises the lending footprint of addr.
func (e *Engine) Position(addr crypto.Address) (*Position, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	collateral, err := e.vault().Balance(addr)
	if err != nil {
		return nil, err
	}
	contribution, err := e.treasury().Contribution(addr)
	if err != nil {
		return nil, err
	}
	ids, err := e.state.BorrowerLoanIDs(addr)
	if err != nil {
		return nil, err
	}
	position := &Position{
		Address:      addr,
		Collateral:   collateral,
		Contribution: contribution,
		LoanIDs:      ids,
	}
	if reader, ok := e.assets.(BalanceReader); ok && reader != nil {
		balance, err := reader.BalanceOf(addr)
		if err != nil {
			return nil, err
		}
		position.WalletBalance = cloneAmount(balance)
	}
	return position, nil
}

// Quote prices a prospective loan at the current height without touching
// state.
func (e *Engine) Quote(principal *big.Int, duration uint64) (*Quote, error) {
	if e == nil {
		return nil, errNilState
	}
	if !positive(principal) {
		return nil, ErrInvalidAmount
	}
	if duration == 0 {
		return nil, ErrInvalidDuration
	}
	interest, err := e.interest.Interest(principal, duration)
	if err != nil {
		return nil, err
	}
	due, err := checkedAdd(principal, interest)
	if err != nil {
		return nil, err
	}
	required, err := RequiredCollateral(principal, e.config.CollateralRatioBps)
	if err != nil {
		return nil, err
	}
	dueHeight, carry := bits.Add64(e.blockHeight, duration, 0)
	if carry != 0 {
		return nil, ErrArithmeticOverflow
	}
	return &Quote{
		Principal:          new(big.Int).Set(principal),
		Duration:           duration,
		Interest:           interest,
		AmountDue:          due,
		RequiredCollateral: required,
		DueHeight:          dueHeight,
	}, nil
}
