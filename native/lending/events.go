package lending

import (
	"math/big"
	"strconv"

	"microlend/core/types"
	"microlend/crypto"
)

const (
	EventTypeContribution        = "lending.contribution"
	EventTypeCollateralDeposited = "lending.collateral.deposited"
	EventTypeCollateralWithdrawn = "lending.collateral.withdrawn"
	EventTypeLoanRequested       = "lending.loan.requested"
	EventTypeLoanRepaid          = "lending.loan.repaid"
	EventTypeLoanLiquidated      = "lending.loan.liquidated"
)

// Event wraps a canonical payload so it can travel through events.Emitter.
type Event struct {
	payload *types.Event
}

func (e Event) EventType() string {
	if e.payload == nil {
		return ""
	}
	return e.payload.Type
}

func (e Event) Event() *types.Event { return e.payload }

// NewContributionEvent returns the payload emitted when a lender funds the
// pool.
func NewContributionEvent(contributor crypto.Address, amount *big.Int, id uint64, pool *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeContribution,
		Attributes: map[string]string{
			"contributor":    contributor.String(),
			"amount":         formatAmount(amount),
			"contributionId": strconv.FormatUint(id, 10),
			"poolBalance":    formatAmount(pool),
		},
	}
}

// NewCollateralDepositedEvent returns the payload for a collateral deposit.
func NewCollateralDepositedEvent(owner crypto.Address, amount *big.Int, id uint64) *types.Event {
	return &types.Event{
		Type: EventTypeCollateralDeposited,
		Attributes: map[string]string{
			"owner":     owner.String(),
			"amount":    formatAmount(amount),
			"depositId": strconv.FormatUint(id, 10),
		},
	}
}

// NewCollateralWithdrawnEvent returns the payload for a collateral withdrawal.
func NewCollateralWithdrawnEvent(owner crypto.Address, amount, remaining *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeCollateralWithdrawn,
		Attributes: map[string]string{
			"owner":     owner.String(),
			"amount":    formatAmount(amount),
			"remaining": formatAmount(remaining),
		},
	}
}

// NewLoanRequestedEvent returns the payload for a disbursed loan.
func NewLoanRequestedEvent(loan *Loan) *types.Event {
	return newLoanEvent(EventTypeLoanRequested, loan)
}

// NewLoanRepaidEvent returns the payload for a repaid loan.
func NewLoanRepaidEvent(loan *Loan) *types.Event {
	return newLoanEvent(EventTypeLoanRepaid, loan)
}

// NewLoanLiquidatedEvent returns the payload for a liquidated loan.
func NewLoanLiquidatedEvent(loan *Loan) *types.Event {
	return newLoanEvent(EventTypeLoanLiquidated, loan)
}

func newLoanEvent(eventType string, loan *Loan) *types.Event {
	attrs := make(map[string]string)
	if loan != nil {
		attrs["loanId"] = strconv.FormatUint(loan.ID, 10)
		attrs["borrower"] = loan.Borrower.String()
		attrs["principal"] = formatAmount(loan.Principal)
		attrs["interest"] = formatAmount(loan.Interest)
		attrs["amountDue"] = formatAmount(loan.AmountDue())
		attrs["collateral"] = formatAmount(loan.CollateralLocked)
		attrs["startHeight"] = strconv.FormatUint(loan.StartHeight, 10)
		attrs["dueHeight"] = strconv.FormatUint(loan.DueHeight, 10)
		attrs["status"] = loan.Status.String()
		if loan.Status.Terminal() {
			attrs["closedHeight"] = strconv.FormatUint(loan.ClosedHeight, 10)
			if !loan.ClosedBy.IsZero() {
				attrs["closedBy"] = loan.ClosedBy.String()
			}
		}
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
