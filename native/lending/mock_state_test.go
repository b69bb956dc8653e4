package lending

import (
	"errors"
	"math/big"

	"microlend/crypto"
)

type mockEngineState struct {
	treasury      *Treasury
	vault         *Vault
	registry      *Registry
	contributions map[[crypto.AddressLength]byte]*big.Int
	collateral    map[[crypto.AddressLength]byte]*big.Int
	loans         map[uint64]*Loan
	borrowers     map[[crypto.AddressLength]byte][]uint64
	writes        int
}

func newMockEngineState() *mockEngineState {
	return &mockEngineState{
		contributions: make(map[[crypto.AddressLength]byte]*big.Int),
		collateral:    make(map[[crypto.AddressLength]byte]*big.Int),
		loans:         make(map[uint64]*Loan),
		borrowers:     make(map[[crypto.AddressLength]byte][]uint64),
	}
}

func (m *mockEngineState) GetTreasury() (*Treasury, error) { return m.treasury.Clone(), nil }
func (m *mockEngineState) PutTreasury(t *Treasury) error {
	m.writes++
	m.treasury = t.Clone()
	return nil
}
func (m *mockEngineState) GetVault() (*Vault, error) { return m.vault.Clone(), nil }
func (m *mockEngineState) PutVault(v *Vault) error {
	m.writes++
	m.vault = v.Clone()
	return nil
}
func (m *mockEngineState) GetRegistry() (*Registry, error) { return m.registry.Clone(), nil }
func (m *mockEngineState) PutRegistry(r *Registry) error {
	m.writes++
	m.registry = r.Clone()
	return nil
}
func (m *mockEngineState) GetContribution(addr crypto.Address) (*big.Int, error) {
	return cloneAmount(m.contributions[addr.Raw()]), nil
}
func (m *mockEngineState) PutContribution(addr crypto.Address, amount *big.Int) error {
	m.writes++
	m.contributions[addr.Raw()] = cloneAmount(amount)
	return nil
}
func (m *mockEngineState) GetCollateral(addr crypto.Address) (*big.Int, error) {
	return cloneAmount(m.collateral[addr.Raw()]), nil
}
func (m *mockEngineState) PutCollateral(addr crypto.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return errors.New("negative collateral")
	}
	m.writes++
	m.collateral[addr.Raw()] = cloneAmount(amount)
	return nil
}
func (m *mockEngineState) GetLoan(id uint64) (*Loan, bool, error) {
	loan, ok := m.loans[id]
	if !ok {
		return nil, false, nil
	}
	return loan.Clone(), true, nil
}
func (m *mockEngineState) PutLoan(loan *Loan) error {
	m.writes++
	m.loans[loan.ID] = loan.Clone()
	return nil
}
func (m *mockEngineState) IndexBorrowerLoan(addr crypto.Address, id uint64) error {
	m.writes++
	m.borrowers[addr.Raw()] = append(m.borrowers[addr.Raw()], id)
	return nil
}
func (m *mockEngineState) BorrowerLoanIDs(addr crypto.Address) ([]uint64, error) {
	return append([]uint64(nil), m.borrowers[addr.Raw()]...), nil
}

type fakeAssets struct {
	balances map[[crypto.AddressLength]byte]*big.Int
	fail     error
	calls    int
}

func newFakeAssets() *fakeAssets {
	return &fakeAssets{balances: make(map[[crypto.AddressLength]byte]*big.Int)}
}

func (f *fakeAssets) credit(addr crypto.Address, amount int64) {
	f.balances[addr.Raw()] = new(big.Int).Add(f.balance(addr), big.NewInt(amount))
}

func (f *fakeAssets) balance(addr crypto.Address) *big.Int {
	return cloneAmount(f.balances[addr.Raw()])
}

func (f *fakeAssets) BalanceOf(addr crypto.Address) (*big.Int, error) {
	return f.balance(addr), nil
}

func (f *fakeAssets) Transfer(from, to crypto.Address, amount *big.Int) error {
	f.calls++
	if f.fail != nil {
		return f.fail
	}
	if from.Raw() == to.Raw() {
		return errors.New("self transfer")
	}
	if f.balance(from).Cmp(amount) < 0 {
		return errors.New("insufficient balance")
	}
	f.balances[from.Raw()] = new(big.Int).Sub(f.balance(from), amount)
	f.balances[to.Raw()] = new(big.Int).Add(f.balance(to), amount)
	return nil
}

type stubPauseView struct {
	modules map[string]bool
}

func (s stubPauseView) IsPaused(module string) bool {
	if s.modules == nil {
		return false
	}
	return s.modules[module]
}

func makeAddress(prefix crypto.AddressPrefix, b byte) crypto.Address {
	var raw [crypto.AddressLength]byte
	for i := range raw {
		raw[i] = b
	}
	return crypto.MustNewAddress(prefix, raw)
}
