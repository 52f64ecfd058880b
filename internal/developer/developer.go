// Package developer adapts the opaque AI developer backend: a
// subprocess given a prompt and a working directory, producing free-form
// text. The default binding invokes the `claude` CLI the same way the
// orchestrator's worker execution loop does; any other backend need only
// implement Backend.
package developer

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/taskfleet/taskfleet/internal/orcherr"
)

// Result is the raw outcome of one developer-backend invocation.
type Result struct {
	RawOutput string
	Duration  time.Duration
}

// Backend is the contract a developer tool must satisfy.
type Backend interface {
	// Initialize verifies the backend is reachable, retrying internally.
	Initialize(ctx context.Context) error
	// ExecutePrompt runs prompt with workDir as the subprocess's working
	// directory and returns its combined output.
	ExecutePrompt(ctx context.Context, prompt, workDir string) (*Result, error)
}

// Config configures the CLI-backed developer.
type Config struct {
	// BinaryName is the executable to resolve on PATH (default "claude").
	BinaryName string
	// Model, if set, is passed via --model.
	Model string
	// Timeout bounds a single ExecutePrompt call.
	Timeout time.Duration
	// InitRetries bounds Initialize's resolution attempts.
	InitRetries int
	// InitRetryDelay is the base linear backoff between Initialize attempts.
	InitRetryDelay time.Duration
}

// DefaultConfig returns sensible defaults grounded in the orchestrator's
// own claude-CLI invocation (worker.go): a 30-minute timeout per
// ExecutePrompt call, three initialization attempts with linear backoff.
func DefaultConfig() Config {
	return Config{
		BinaryName:     "claude",
		Timeout:        30 * time.Minute,
		InitRetries:    3,
		InitRetryDelay: 2 * time.Second,
	}
}

// CLI invokes a developer tool CLI as a subprocess.
type CLI struct {
	cfg      Config
	resolved string
}

// New creates a CLI-backed developer using cfg.
func New(cfg Config) *CLI {
	if cfg.BinaryName == "" {
		cfg.BinaryName = "claude"
	}
	if cfg.InitRetries <= 0 {
		cfg.InitRetries = 3
	}
	if cfg.InitRetryDelay <= 0 {
		cfg.InitRetryDelay = 2 * time.Second
	}
	return &CLI{cfg: cfg}
}

// Initialize resolves cfg.BinaryName on PATH, retrying linearly.
func (c *CLI) Initialize(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.InitRetries; attempt++ {
		path, err := exec.LookPath(c.cfg.BinaryName)
		if err == nil {
			c.resolved = path
			return nil
		}
		lastErr = err
		if attempt < c.cfg.InitRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * c.cfg.InitRetryDelay):
			}
		}
	}
	return orcherr.Wrap(orcherr.KindPermanentExternal,
		fmt.Sprintf("developer backend %q not found on PATH", c.cfg.BinaryName), lastErr)
}

// ExecutePrompt runs the resolved binary with prompt against workDir.
func (c *CLI) ExecutePrompt(ctx context.Context, prompt, workDir string) (*Result, error) {
	binary := c.resolved
	if binary == "" {
		binary = c.cfg.BinaryName
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if c.cfg.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	args := []string{"-p", prompt, "--dangerously-skip-permissions"}
	if c.cfg.Model != "" {
		args = append(args, "--model", c.cfg.Model)
	}

	cmd := exec.CommandContext(runCtx, binary, args...)
	cmd.Dir = workDir
	setProcAttr(cmd)

	start := time.Now()
	output, err := cmd.CombinedOutput()
	elapsed := time.Since(start)

	if err != nil {
		if runCtx.Err() != nil {
			if cmd.Process != nil {
				killProcessGroup(cmd.Process.Pid)
			}
			return nil, orcherr.New(orcherr.KindTransientExternal, "developer backend timed out", string(output))
		}
		return nil, orcherr.Classify(fmt.Errorf("developer backend exited with error: %w: %s", err, output))
	}

	return &Result{RawOutput: string(output), Duration: elapsed}, nil
}

// Resolver locates a developer backend executable, allowing
// configuration-driven selection among several installed tools.
func Resolver(candidates []string) (string, error) {
	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("none of %v found on PATH", candidates)
}
