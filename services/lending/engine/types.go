package engine

import (
	"math/big"

	lendingv1 "microlend/api/lending/v1"
	"microlend/native/lending"
)

type (
	Loan     = lendingv1.Loan
	Treasury = lendingv1.Treasury
	Position = lendingv1.Position
	Quote    = lendingv1.Quote
)

// LoanFromRecord converts an engine record.
func LoanFromRecord(loan *lending.Loan) Loan {
	if loan == nil {
		return Loan{}
	}
	out := Loan{
		ID:               loan.ID,
		Borrower:         loan.Borrower.String(),
		Principal:        FormatAmount(loan.Principal),
		CollateralLocked: FormatAmount(loan.CollateralLocked),
		Interest:         FormatAmount(loan.Interest),
		AmountDue:        FormatAmount(loan.AmountDue()),
		StartHeight:      loan.StartHeight,
		Duration:         loan.Duration,
		DueHeight:        loan.DueHeight,
		Status:           loan.Status.String(),
		ClosedHeight:     loan.ClosedHeight,
	}
	if !loan.ClosedBy.IsZero() {
		out.ClosedBy = loan.ClosedBy.String()
	}
	return out
}

// FormatAmount renders v in base 10, treating nil as zero.
func FormatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
