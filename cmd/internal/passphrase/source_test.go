package passphrase

import (
	"errors"
	"strings"
	"testing"
)

func TestSourceReadsEnvironmentOnce(t *testing.T) {
	t.Setenv("LENDCTL_TEST_PASS", "s3cret")
	src := NewSource("LENDCTL_TEST_PASS", "")
	got, err := src.Get()
	if err != nil || got != "s3cret" {
		t.Fatalf("unexpected passphrase %q err=%v", got, err)
	}
	t.Setenv("LENDCTL_TEST_PASS", "changed")
	if again, _ := src.Get(); again != "s3cret" {
		t.Fatalf("expected cached passphrase, got %q", again)
	}
}

func TestSourceRejectsBlankEnvironment(t *testing.T) {
	t.Setenv("LENDCTL_TEST_PASS", "   ")
	if _, err := NewSource("LENDCTL_TEST_PASS", "key").Get(); err == nil {
		t.Fatal("expected blank passphrase to be rejected")
	}
}

func scripted(answers ...string) func(string) (string, error) {
	return func(string) (string, error) {
		if len(answers) == 0 {
			return "", errors.New("no more input")
		}
		next := answers[0]
		answers = answers[1:]
		return next, nil
	}
}

func TestConfirmedPromptsTwice(t *testing.T) {
	src := NewSource("", "key")
	src.readPassword = scripted("hunter2", "hunter2")
	got, err := src.Confirmed()
	if err != nil || got != "hunter2" {
		t.Fatalf("unexpected passphrase %q err=%v", got, err)
	}

	src = NewSource("", "key")
	src.readPassword = scripted("hunter2", "hunter3")
	if _, err := src.Confirmed(); !errors.Is(err, ErrMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
}

func TestConfirmedSkipsRepeatForEnvironment(t *testing.T) {
	t.Setenv("LENDCTL_TEST_PASS", "s3cret")
	src := NewSource("LENDCTL_TEST_PASS", "key")
	src.readPassword = scripted()
	if got, err := src.Confirmed(); err != nil || got != "s3cret" {
		t.Fatalf("unexpected passphrase %q err=%v", got, err)
	}
}

func TestPromptFailureMentionsEnvVar(t *testing.T) {
	src := NewSource("LENDCTL_TEST_UNSET", "key")
	src.readPassword = scripted()
	_, err := src.Get()
	if err == nil || !strings.Contains(err.Error(), "LENDCTL_TEST_UNSET") {
		t.Fatalf("expected env hint, got %v", err)
	}
}
