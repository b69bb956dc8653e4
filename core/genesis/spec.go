// core/genesis/spec.go
package genesis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"sort"
	"strings"

	"microlend/crypto"
)

// GenesisSpec describes the wallet balances minted when a node first starts.
type GenesisSpec struct {
	InitialHeight uint64            `json:"initialHeight"`
	Alloc         map[string]string `json:"alloc"` // addr -> amount

	allocations []Allocation
}

// Allocation is a validated genesis credit.
type Allocation struct {
	Address crypto.Address
	Amount  *big.Int
}

// LoadGenesisSpec reads and validates a JSON genesis file.
func LoadGenesisSpec(path string) (*GenesisSpec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	var spec GenesisSpec
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode genesis spec %q: %w", path, err)
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid genesis spec %q: %w", path, err)
	}
	return &spec, nil
}

// FromAllocations builds a validated spec from an address to amount map.
func FromAllocations(alloc map[string]string, initialHeight uint64) (*GenesisSpec, error) {
	spec := &GenesisSpec{InitialHeight: initialHeight, Alloc: alloc}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

// Validate parses every allocation. Allocations are ordered by address so
// that applying them is deterministic.
func (s *GenesisSpec) Validate() error {
	allocations := make([]Allocation, 0, len(s.Alloc))
	for addrStr, amountStr := range s.Alloc {
		addr, err := crypto.DecodeAddress(addrStr)
		if err != nil {
			return fmt.Errorf("alloc %q: %w", addrStr, err)
		}
		amount, err := parseAmountString(amountStr)
		if err != nil {
			return fmt.Errorf("alloc %q: %w", addrStr, err)
		}
		if amount.Sign() == 0 {
			continue
		}
		allocations = append(allocations, Allocation{Address: addr, Amount: amount})
	}
	sort.Slice(allocations, func(i, j int) bool {
		return bytes.Compare(allocations[i].Address.Bytes(), allocations[j].Address.Bytes()) < 0
	})
	for i := 1; i < len(allocations); i++ {
		if bytes.Equal(allocations[i-1].Address.Bytes(), allocations[i].Address.Bytes()) {
			return fmt.Errorf("duplicate allocation for %s", allocations[i].Address)
		}
	}
	s.allocations = allocations
	return nil
}

// Allocations returns the validated credits in deterministic order.
func (s *GenesisSpec) Allocations() []Allocation {
	if s == nil {
		return nil
	}
	out := make([]Allocation, len(s.allocations))
	for i, alloc := range s.allocations {
		out[i] = Allocation{Address: alloc.Address, Amount: new(big.Int).Set(alloc.Amount)}
	}
	return out
}

func parseAmountString(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount must not be empty")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return amount, nil
}
