package lending

import "fmt"

const (
	// PPMDenominator scales InterestPerBlockPPM.
	PPMDenominator = 1_000_000
	// BasisPointDenominator scales CollateralRatioBps.
	BasisPointDenominator = 10_000

	DefaultInterestPerBlockPPM = 10
	DefaultCollateralRatioBps  = 15_000
	DefaultAsset               = "MLT"
)

// Config captures the runtime configuration for the native lending module.
type Config struct {
	// InterestPerBlockPPM is the simple interest charged per block of nominal
	// duration, in parts per million of principal.
	InterestPerBlockPPM uint64 `toml:"InterestPerBlockPPM"`
	// CollateralRatioBps is the collateral required per unit of principal in
	// basis points. 15000 demands 150% cover.
	CollateralRatioBps uint64 `toml:"CollateralRatioBps"`
	// Asset labels the single unit shared by loans and collateral.
	Asset string `toml:"Asset"`
}

// DefaultConfig returns the module defaults.
func DefaultConfig() Config {
	return Config{
		InterestPerBlockPPM: DefaultInterestPerBlockPPM,
		CollateralRatioBps:  DefaultCollateralRatioBps,
		Asset:               DefaultAsset,
	}
}

// Normalize fills unset fields with defaults. A zero-value Config becomes
// DefaultConfig; a zero interest rate is kept only alongside other set fields.
func (c Config) Normalize() Config {
	if c == (Config{}) {
		return DefaultConfig()
	}
	if c.CollateralRatioBps == 0 {
		c.CollateralRatioBps = DefaultCollateralRatioBps
	}
	if c.Asset == "" {
		c.Asset = DefaultAsset
	}
	return c
}

// Validate ensures the configuration is internally consistent.
func (c Config) Validate() error {
	if c.InterestPerBlockPPM > PPMDenominator {
		return fmt.Errorf("lending: interest per block %d ppm exceeds %d", c.InterestPerBlockPPM, PPMDenominator)
	}
	if c.CollateralRatioBps < BasisPointDenominator {
		return fmt.Errorf("lending: collateral ratio %d bps must be at least %d", c.CollateralRatioBps, BasisPointDenominator)
	}
	return nil
}
