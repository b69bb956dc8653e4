package lending

import (
	"sort"

	"microlend/crypto"
)

// LoanRegistry assigns loan identifiers and guards lifecycle transitions.
type LoanRegistry struct {
	state engineState
}

func (r LoanRegistry) Load() (*Registry, error) {
	registry, err := r.state.GetRegistry()
	if err != nil {
		return nil, err
	}
	if registry == nil {
		registry = &Registry{}
	}
	return registry, nil
}

// Create stores loan under the next identifier, starting at 0, and indexes it
// by borrower.
func (r LoanRegistry) Create(loan *Loan) (uint64, error) {
	registry, err := r.Load()
	if err != nil {
		return 0, err
	}
	loan.ID = registry.NextLoanID
	loan.Status = LoanStatusActive
	registry.NextLoanID++
	registry.ActiveLoans++
	if err := r.state.PutLoan(loan); err != nil {
		return 0, err
	}
	if err := r.state.IndexBorrowerLoan(loan.Borrower, loan.ID); err != nil {
		return 0, err
	}
	if err := r.state.PutRegistry(registry); err != nil {
		return 0, err
	}
	return loan.ID, nil
}

// Get returns the loan or ErrLoanNotFound.
func (r LoanRegistry) Get(id uint64) (*Loan, error) {
	loan, ok, err := r.state.GetLoan(id)
	if err != nil {
		return nil, err
	}
	if !ok || loan == nil {
		return nil, ErrLoanNotFound
	}
	return loan, nil
}

// GetActive returns the loan when it exists and has not reached a terminal
// state.
func (r LoanRegistry) GetActive(id uint64) (*Loan, error) {
	loan, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	if loan.Status != LoanStatusActive {
		return nil, ErrLoanNotActive
	}
	return loan, nil
}

// Close moves an active loan into a terminal status. Terminal records are
// retained.
func (r LoanRegistry) Close(loan *Loan, status LoanStatus, height uint64, by crypto.Address) error {
	if loan == nil {
		return ErrLoanNotFound
	}
	if loan.Status != LoanStatusActive {
		return ErrLoanNotActive
	}
	if !status.Terminal() {
		return ErrLoanNotActive
	}
	registry, err := r.Load()
	if err != nil {
		return err
	}
	loan.Status = status
	loan.ClosedHeight = height
	loan.ClosedBy = by
	if registry.ActiveLoans > 0 {
		registry.ActiveLoans--
	}
	if err := r.state.PutLoan(loan); err != nil {
		return err
	}
	return r.state.PutRegistry(registry)
}

// ByBorrower returns every loan originated by addr in identifier order.
func (r LoanRegistry) ByBorrower(addr crypto.Address) ([]*Loan, error) {
	ids, err := r.state.BorrowerLoanIDs(addr)
	if err != nil {
		return nil, err
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	loans := make([]*Loan, 0, len(ids))
	for _, id := range ids {
		loan, ok, err := r.state.GetLoan(id)
		if err != nil {
			return nil, err
		}
		if ok && loan != nil {
			loans = append(loans, loan)
		}
	}
	return loans, nil
}
