package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"microlend/native/lending"
	"microlend/storage"
)

type Config struct {
	DataDir        string `toml:"DataDir"`
	StorageBackend string `toml:"StorageBackend"`
	GenesisFile    string `toml:"GenesisFile"`
	// BlockIntervalMs drives the local auto-miner. Zero leaves height to the
	// explicit MineBlocks call.
	BlockIntervalMs uint64 `toml:"BlockIntervalMs"`
	LoanCacheSize   int    `toml:"LoanCacheSize"`

	Lending lending.Config `toml:"lending"`
	Global  Global         `toml:"global"`
	Logging Logging        `toml:"logging"`
}

// Load loads the configuration from the given path. A default file is written
// when none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	// Keys omitted from the [lending] section keep their defaults.
	cfg := &Config{Lending: lending.DefaultConfig()}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s: unknown key %s", path, undecoded[0].String())
	}

	cfg.normalize()
	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the configuration written for a fresh node.
func Default() *Config {
	cfg := &Config{
		DataDir:        "./microlend-data",
		StorageBackend: storage.BackendLevelDB,
		LoanCacheSize:  1024,
		Lending:        lending.DefaultConfig(),
	}
	cfg.Logging = defaultLogging()
	return cfg
}

// BlockInterval converts BlockIntervalMs into a duration.
func (c *Config) BlockInterval() time.Duration {
	if c == nil {
		return 0
	}
	return time.Duration(c.BlockIntervalMs) * time.Millisecond
}

func (c *Config) normalize() {
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./microlend-data"
	}
	c.StorageBackend = strings.ToLower(strings.TrimSpace(c.StorageBackend))
	if c.StorageBackend == "" {
		c.StorageBackend = storage.BackendLevelDB
	}
	c.GenesisFile = strings.TrimSpace(c.GenesisFile)
	c.Lending = c.Lending.Normalize()
	c.Logging.normalize()
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
