package config

// Pauses lists the native modules that start paused.
type Pauses struct {
	Lending bool `toml:"Lending"`
}

// Global bundles runtime policy switches enforced by ValidateConfig.
type Global struct {
	Pauses Pauses `toml:"pauses"`
}

// Logging configures the optional rotating file sink. An empty File keeps
// logs on stdout only.
type Logging struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
	Compress   bool   `toml:"Compress"`
}
