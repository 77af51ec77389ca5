package process

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

// allowedHelpers is the fixed set of executables the runner will spawn.
// Anything else is refused before path resolution.
var allowedHelpers = map[string]struct{}{
	"kinit": {},
	"klist": {},
	"which": {},
}

// argumentPattern restricts values placed on a helper argv: letters,
// digits, dot, hyphen, at-sign. Prevents argument and command injection
// through principal or username strings.
var argumentPattern = regexp.MustCompile(`^[A-Za-z0-9.@-]+$`)

// defaultTimeout bounds a helper run when the command does not set one.
const defaultTimeout = 30 * time.Second

// Sentinel errors for helper invocation.
var (
	// ErrNotAllowed indicates the requested executable is not in the
	// allow-list.
	ErrNotAllowed = errors.New("process: helper not in allow-list")

	// ErrInvalidArgument indicates a value failed the argv allow-list
	// pattern.
	ErrInvalidArgument = errors.New("process: argument failed validation")
)

// ExitError reports a helper that ran but exited non-zero.
type ExitError struct {
	Name   string
	Code   int
	Output string
}

func (e *ExitError) Error() string {
	out := strings.TrimSpace(e.Output)
	if out == "" {
		return fmt.Sprintf("process: %s exited with code %d", e.Name, e.Code)
	}
	return fmt.Sprintf("process: %s exited with code %d: %s", e.Name, e.Code, out)
}

// ValidArgument reports whether a caller-supplied string is safe to
// place on a helper argument vector.
func ValidArgument(s string) bool {
	return s != "" && argumentPattern.MatchString(s)
}

// Logger defines the logging interface for the runner.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Command describes one helper invocation.
type Command struct {
	// Name is the bare executable name. It must be in the allow-list;
	// the runner resolves it through PATH itself.
	Name string

	// Args is the discrete argument vector. No shell is ever involved,
	// so nothing here is subject to word splitting or interpolation.
	Args []string

	// Stdin, when non-empty, is piped to the helper. Used to feed a
	// password to interactive ticket acquisition so it never appears
	// on a command line.
	Stdin string

	// Timeout bounds the run. Zero means defaultTimeout.
	Timeout time.Duration
}

// Runner executes allow-listed external helpers to completion.
type Runner struct {
	logger Logger
}

// NewRunner creates a Runner.
func NewRunner() *Runner {
	return &Runner{logger: noopLogger{}}
}

// SetLogger sets the logger for the runner.
func (r *Runner) SetLogger(logger Logger) {
	r.logger = logger
}

// Run executes the helper and returns its combined output.
//
// A non-zero exit is returned as *ExitError with the captured output
// attached. The context plus the command timeout bound the run; an
// expired deadline kills the helper.
func (r *Runner) Run(ctx context.Context, cmd Command) ([]byte, error) {
	if _, ok := allowedHelpers[cmd.Name]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotAllowed, cmd.Name)
	}

	path, err := exec.LookPath(cmd.Name)
	if err != nil {
		return nil, fmt.Errorf("locating helper %s: %w", cmd.Name, err)
	}

	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	r.logger.Debug("running helper", "name", cmd.Name, "args", cmd.Args)

	c := exec.CommandContext(runCtx, path, cmd.Args...) //nolint:gosec // name is allow-listed, argv is discrete
	if cmd.Stdin != "" {
		c.Stdin = strings.NewReader(cmd.Stdin)
	}

	out, err := c.CombinedOutput()
	if err != nil {
		if ctxErr := runCtx.Err(); ctxErr != nil {
			return out, fmt.Errorf("helper %s: %w", cmd.Name, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return out, &ExitError{
				Name:   cmd.Name,
				Code:   exitErr.ExitCode(),
				Output: string(out),
			}
		}
		return out, fmt.Errorf("running helper %s: %w", cmd.Name, err)
	}

	return out, nil
}
