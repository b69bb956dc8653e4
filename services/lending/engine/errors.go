package engine

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"microlend/crypto"
	"microlend/native/lending"
)

var (
	ErrInvalidAddress = errors.New("lending service: invalid address")
	ErrInvalidModule  = errors.New("lending service: unknown module")
	ErrInvalidCount   = errors.New("lending service: block count must be positive")
	ErrUnavailable    = errors.New("lending service: engine unavailable")
)

// ParseAmount parses a base-10 amount. Malformed input maps to
// lending.ErrInvalidAmount so callers see the same code as a zero amount.
func ParseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: amount required", lending.ErrInvalidAmount)
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a base-10 integer", lending.ErrInvalidAmount, trimmed)
	}
	return value, nil
}

// ParseAddress decodes a bech32 account address.
func ParseAddress(raw string) (crypto.Address, error) {
	addr, err := crypto.DecodeAddress(raw)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return addr, nil
}
