package lending

import (
	"errors"
	"math"
	"math/big"
	"testing"

	"microlend/crypto"
)

func TestInterestFormula(t *testing.T) {
	calc := NewInterestCalculator(DefaultInterestPerBlockPPM)
	cases := []struct {
		principal int64
		duration  uint64
		want      int64
	}{
		{principal: 1_000_000, duration: 10, want: 100},
		{principal: 1_000_000, duration: 1, want: 10},
		{principal: 99_999, duration: 1, want: 0},
		{principal: 150_000, duration: 3, want: 4},
		{principal: 0, duration: 50, want: 0},
	}
	for _, tc := range cases {
		got, err := calc.Interest(big.NewInt(tc.principal), tc.duration)
		if err != nil {
			t.Fatalf("interest(%d,%d): %v", tc.principal, tc.duration, err)
		}
		if got.Cmp(big.NewInt(tc.want)) != 0 {
			t.Fatalf("interest(%d,%d): expected %d, got %s", tc.principal, tc.duration, tc.want, got)
		}
	}
	due, err := calc.AmountDue(big.NewInt(1_000_000), 10)
	if err != nil || due.Cmp(big.NewInt(1_000_100)) != 0 {
		t.Fatalf("amount due: %v err=%v", due, err)
	}
}

func TestInterestOverflow(t *testing.T) {
	calc := NewInterestCalculator(DefaultInterestPerBlockPPM)
	if _, err := calc.Interest(big.NewInt(1), math.MaxUint64); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected overflow for rate*duration, got %v", err)
	}
	huge := new(big.Int).Lsh(big.NewInt(1), 255)
	if _, err := calc.Interest(huge, 1000); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected overflow for principal*factor, got %v", err)
	}
	tooWide := new(big.Int).Lsh(big.NewInt(1), 256)
	if _, err := calc.Interest(tooWide, 1); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected overflow for principal beyond 256 bits, got %v", err)
	}
	if _, err := calc.Interest(big.NewInt(-1), 1); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestRequiredCollateralRoundsUp(t *testing.T) {
	cases := []struct {
		principal int64
		ratio     uint64
		want      int64
	}{
		{principal: 1_000_000, ratio: 15_000, want: 1_500_000},
		{principal: 1, ratio: 15_000, want: 2},
		{principal: 3, ratio: 15_000, want: 5},
		{principal: 7, ratio: 10_000, want: 7},
	}
	for _, tc := range cases {
		got, err := RequiredCollateral(big.NewInt(tc.principal), tc.ratio)
		if err != nil {
			t.Fatalf("required(%d,%d): %v", tc.principal, tc.ratio, err)
		}
		if got.Cmp(big.NewInt(tc.want)) != 0 {
			t.Fatalf("required(%d,%d): expected %d, got %s", tc.principal, tc.ratio, tc.want, got)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if err := (Config{CollateralRatioBps: 9_999}).Validate(); err == nil {
		t.Fatalf("expected under-collateralised ratio to be rejected")
	}
	if err := (Config{InterestPerBlockPPM: PPMDenominator + 1, CollateralRatioBps: 15_000}).Validate(); err == nil {
		t.Fatalf("expected excessive rate to be rejected")
	}
	if normalized := (Config{}).Normalize(); normalized != DefaultConfig() {
		t.Fatalf("zero config must normalize to defaults, got %+v", normalized)
	}
	interestFree := Config{CollateralRatioBps: 20_000}.Normalize()
	if interestFree.InterestPerBlockPPM != 0 || interestFree.Asset != DefaultAsset {
		t.Fatalf("unexpected normalized config %+v", interestFree)
	}
	if engine := NewEngine(makeAddress(crypto.ContractPrefix, 1), Config{}); engine.Config().InterestPerBlockPPM != DefaultInterestPerBlockPPM {
		t.Fatalf("engine built from zero config charges %d ppm", engine.Config().InterestPerBlockPPM)
	}
}

func TestResultTagging(t *testing.T) {
	ok := Ok[uint64](3)
	if !ok.OK || ok.Code != CodeOK || ok.Value != 3 {
		t.Fatalf("unexpected ok result %+v", ok)
	}
	failed := ResultOf[uint64](0, ErrLoanNotOverdue)
	if failed.OK || failed.Code != CodeLoanNotOverdue {
		t.Fatalf("unexpected failure result %+v", failed)
	}
	if _, err := failed.Unwrap(); !errors.Is(err, ErrLoanNotOverdue) {
		t.Fatalf("expected unwrap to surface sentinel, got %v", err)
	}
	decoded := Result[bool]{Code: CodeLoanNotFound}
	if _, err := decoded.Unwrap(); !errors.Is(err, ErrLoanNotFound) {
		t.Fatalf("expected code-only result to map to sentinel, got %v", err)
	}
	if CodeOf(errors.New("boom")) != CodeInternal {
		t.Fatalf("untagged errors must be internal")
	}
	if CodeLoanNotActive.String() != "LoanNotActive" {
		t.Fatalf("unexpected code name %s", CodeLoanNotActive)
	}
}
