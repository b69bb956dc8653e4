package passphrase

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// ErrMismatch is returned when a confirmed passphrase differs from the first
// entry.
var ErrMismatch = errors.New("passphrases do not match")

// Source lazily resolves a keystore passphrase from an environment variable or
// by prompting on the terminal. The first result is cached.
type Source struct {
	envVar string
	prompt string

	once        sync.Once
	value       string
	err         error
	interactive bool

	// readPassword is swapped in tests.
	readPassword func(prompt string) (string, error)
}

// NewSource checks envVar before prompting with label.
func NewSource(envVar, label string) *Source {
	label = strings.TrimSpace(label)
	if label == "" {
		label = "keystore passphrase"
	}
	return &Source{envVar: strings.TrimSpace(envVar), prompt: label, readPassword: readTerminal}
}

// Get returns the passphrase. Whitespace-only values are rejected so a
// keystore is never written unprotected.
func (s *Source) Get() (string, error) {
	s.once.Do(s.resolve)
	return s.value, s.err
}

// Confirmed behaves like Get and, when the value was typed interactively,
// asks for it a second time. Use it before creating a keystore.
func (s *Source) Confirmed() (string, error) {
	value, err := s.Get()
	if err != nil || !s.interactive {
		return value, err
	}
	again, err := s.readPassword("Repeat " + s.prompt)
	if err != nil {
		return "", err
	}
	if again != value {
		return "", ErrMismatch
	}
	return value, nil
}

func (s *Source) resolve() {
	if s.envVar != "" {
		if value, ok := os.LookupEnv(s.envVar); ok {
			if strings.TrimSpace(value) == "" {
				s.err = fmt.Errorf("%s is set but empty", s.envVar)
				return
			}
			s.value = value
			return
		}
	}
	raw, err := s.readPassword("Enter " + s.prompt)
	if err != nil {
		if s.envVar != "" {
			err = fmt.Errorf("%w; set %s to avoid the prompt", err, s.envVar)
		}
		s.err = err
		return
	}
	if strings.TrimSpace(raw) == "" {
		s.err = errors.New("passphrase cannot be empty")
		return
	}
	s.value = raw
	s.interactive = true
}

func readTerminal(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("passphrase required and no terminal available")
	}
	fmt.Fprintf(os.Stderr, "%s: ", prompt)
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	return string(raw), nil
}
