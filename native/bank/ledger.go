package bank

import (
	"errors"
	"fmt"
	"math/big"

	"microlend/core/events"
	"microlend/core/types"
	"microlend/crypto"
)

var (
	ErrInvalidAmount       = errors.New("bank: amount must be positive")
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	ErrInvalidAddress      = errors.New("bank: address required")
	ErrSelfTransfer        = errors.New("bank: sender and recipient are the same account")

	errNilState = errors.New("bank: state not initialised")
)

// accountState is the slice of the state manager the ledger needs.
type accountState interface {
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
}

// Ledger moves the single lending asset between wallet accounts.
type Ledger struct {
	state   accountState
	asset   string
	emitter events.Emitter
}

// NewLedger constructs a ledger over state for the named asset.
func NewLedger(state accountState, asset string) *Ledger {
	return &Ledger{state: state, asset: asset, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the sink for transfer events.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if l == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	l.emitter = emitter
}

// BalanceOf returns the wallet balance of addr, zero for unknown accounts.
func (l *Ledger) BalanceOf(addr crypto.Address) (*big.Int, error) {
	account, err := l.load(addr)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(account.Balance), nil
}

// Transfer debits from and credits to atomically: both accounts are written
// or neither is.
func (l *Ledger) Transfer(from, to crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if from.IsZero() || to.IsZero() {
		return ErrInvalidAddress
	}
	if from.Raw() == to.Raw() {
		return ErrSelfTransfer
	}
	sender, err := l.load(from)
	if err != nil {
		return err
	}
	if sender.Balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, sender.Balance, amount)
	}
	recipient, err := l.load(to)
	if err != nil {
		return err
	}
	sender.Balance = new(big.Int).Sub(sender.Balance, amount)
	recipient.Balance = new(big.Int).Add(recipient.Balance, amount)
	if err := l.state.PutAccount(from.Bytes(), sender); err != nil {
		return err
	}
	if err := l.state.PutAccount(to.Bytes(), recipient); err != nil {
		return err
	}
	l.emitter.Emit(events.Transfer{Asset: l.asset, From: from, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

// Mint credits amount to addr. It is only used to apply genesis allocations.
func (l *Ledger) Mint(to crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if to.IsZero() {
		return ErrInvalidAddress
	}
	account, err := l.load(to)
	if err != nil {
		return err
	}
	account.Balance = new(big.Int).Add(account.Balance, amount)
	if err := l.state.PutAccount(to.Bytes(), account); err != nil {
		return err
	}
	l.emitter.Emit(events.Mint{Asset: l.asset, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

func (l *Ledger) load(addr crypto.Address) (*types.Account, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	account, err := l.state.GetAccount(addr.Bytes())
	if err != nil {
		return nil, err
	}
	if account == nil {
		account = &types.Account{}
	}
	if account.Balance == nil {
		account.Balance = big.NewInt(0)
	}
	return account, nil
}
