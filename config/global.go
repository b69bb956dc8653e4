package config

import (
	"strings"

	"microlend/native/lending"
)

// PausedModules returns the module names flagged as paused.
func (g Global) PausedModules() []string {
	var modules []string
	if g.Pauses.Lending {
		modules = append(modules, lending.ModuleName)
	}
	return modules
}

func defaultLogging() Logging {
	return Logging{
		Level:      "info",
		MaxSizeMB:  100,
		MaxBackups: 5,
		MaxAgeDays: 28,
	}
}

func (l *Logging) normalize() {
	l.Level = strings.ToLower(strings.TrimSpace(l.Level))
	if l.Level == "" {
		l.Level = "info"
	}
	l.File = strings.TrimSpace(l.File)
	defaults := defaultLogging()
	if l.MaxSizeMB <= 0 {
		l.MaxSizeMB = defaults.MaxSizeMB
	}
	if l.MaxBackups < 0 {
		l.MaxBackups = 0
	}
	if l.MaxAgeDays < 0 {
		l.MaxAgeDays = 0
	}
}
