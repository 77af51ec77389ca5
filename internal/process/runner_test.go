package process

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
)

func TestValidArgument(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"dbuser", true},
		{"alice@EXAMPLE.COM", true},
		{"svc.db2-prod", true},
		{"", false},
		{"user name", false},
		{"user;rm", false},
		{"user$(id)", false},
		{"user`id`", false},
		{"-kt", true}, // flag-shaped but within the character allow-list
		{"user|id", false},
	}

	for _, tt := range tests {
		if got := ValidArgument(tt.input); got != tt.want {
			t.Errorf("ValidArgument(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestRun_DisallowedHelper(t *testing.T) {
	r := NewRunner()

	_, err := r.Run(context.Background(), Command{Name: "bash", Args: []string{"-c", "true"}})
	if !errors.Is(err, ErrNotAllowed) {
		t.Errorf("Run(bash) error = %v, want ErrNotAllowed", err)
	}

	_, err = r.Run(context.Background(), Command{Name: "/usr/bin/which", Args: []string{"ls"}})
	if !errors.Is(err, ErrNotAllowed) {
		t.Errorf("Run(absolute path) error = %v, want ErrNotAllowed", err)
	}
}

func TestRun_Which(t *testing.T) {
	if _, err := exec.LookPath("which"); err != nil {
		t.Skip("which not available")
	}

	r := NewRunner()

	out, err := r.Run(context.Background(), Command{Name: "which", Args: []string{"which"}})
	if err != nil {
		t.Fatalf("Run(which which) error = %v", err)
	}
	if strings.TrimSpace(string(out)) == "" {
		t.Error("Run(which which) produced no output")
	}
}

func TestRun_NonZeroExit(t *testing.T) {
	if _, err := exec.LookPath("which"); err != nil {
		t.Skip("which not available")
	}

	r := NewRunner()

	_, err := r.Run(context.Background(), Command{
		Name: "which",
		Args: []string{"definitely-not-a-real-binary-name"},
	})
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("Run() error = %v, want *ExitError", err)
	}
	if exitErr.Name != "which" {
		t.Errorf("ExitError.Name = %q, want which", exitErr.Name)
	}
	if exitErr.Code == 0 {
		t.Error("ExitError.Code = 0, want non-zero")
	}
}
