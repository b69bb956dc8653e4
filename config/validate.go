package config

import (
	"fmt"

	"microlend/storage"
)

var validLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}
	switch cfg.StorageBackend {
	case storage.BackendMemory, storage.BackendLevelDB, storage.BackendBolt, storage.BackendPebble:
	default:
		return fmt.Errorf("storage: unknown backend %q", cfg.StorageBackend)
	}
	if cfg.LoanCacheSize < 0 {
		return fmt.Errorf("node: loan cache size must not be negative")
	}
	if err := cfg.Lending.Validate(); err != nil {
		return err
	}
	if _, ok := validLogLevels[cfg.Logging.Level]; !ok {
		return fmt.Errorf("logging: unknown level %q", cfg.Logging.Level)
	}
	return nil
}
