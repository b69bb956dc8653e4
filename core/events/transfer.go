package events

import (
	"math/big"

	"microlend/core/types"
	"microlend/crypto"
)

const (
	// TypeTransfer is emitted for every wallet balance movement.
	TypeTransfer = "transfer.native"
	// TypeMint is emitted when genesis allocations credit a wallet.
	TypeMint = "transfer.mint"
)

type Transfer struct {
	Asset  string
	From   crypto.Address
	To     crypto.Address
	Amount *big.Int
}

func (Transfer) EventType() string { return TypeTransfer }

func (e Transfer) Event() *types.Event {
	attrs := map[string]string{}
	if asset := normalizeAsset(e.Asset); asset != "" {
		attrs["asset"] = asset
	}
	attrs["from"] = e.From.String()
	attrs["to"] = e.To.String()
	attrs["amount"] = formatAmount(e.Amount)
	return &types.Event{Type: TypeTransfer, Attributes: attrs}
}

type Mint struct {
	Asset  string
	To     crypto.Address
	Amount *big.Int
}

func (Mint) EventType() string { return TypeMint }

func (e Mint) Event() *types.Event {
	attrs := map[string]string{
		"to":     e.To.String(),
		"amount": formatAmount(e.Amount),
	}
	if asset := normalizeAsset(e.Asset); asset != "" {
		attrs["asset"] = asset
	}
	return &types.Event{Type: TypeMint, Attributes: attrs}
}
