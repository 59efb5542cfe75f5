package process

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/inquiry/internal/logging"
	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// EnvPrefix prefixes every argument passed to a tool through its environment.
const EnvPrefix = "INQUIRY_ARG_"

// InlineKey is the integration argument holding an ad-hoc command.
// It is honoured only when inline execution is enabled.
const InlineKey = "x-exec"

// Runner implements ports.IntegrationRunner by executing allow-listed local processes.
// Arguments are passed as environment variables, never as command flags.
type Runner struct {
	registry    map[string]ToolConfig
	allowInline bool
	baseDir     string
	timeout     time.Duration
	logger      *slog.Logger
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithRegistry allow-lists the tools of a loaded config.
func WithRegistry(tools map[string]ToolConfig) RunnerOption {
	return func(r *Runner) {
		for name, tool := range tools {
			tool.Name = name
			r.registry[name] = tool
		}
	}
}

// WithInlineExecution enables the x-exec argument. Only for trusted graphs.
func WithInlineExecution(allow bool) RunnerOption {
	return func(r *Runner) {
		r.allowInline = allow
	}
}

// WithBaseDir sets the working directory of executed processes.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// WithDefaultTimeout bounds tools that have no timeout of their own.
func WithDefaultTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.timeout = d
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a runner with an empty allow-list.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		registry: make(map[string]ToolConfig),
		timeout:  30 * time.Second,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register allow-lists a command under name.
func (r *Runner) Register(name, command string, args ...string) {
	r.registry[name] = ToolConfig{Name: name, Command: command, Args: args}
}

// Tools returns the registered tool names, sorted.
func (r *Runner) Tools() []string {
	names := make([]string, 0, len(r.registry))
	for name := range r.registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// inlineSpec is the decoded form of the x-exec argument.
type inlineSpec struct {
	Command string        `mapstructure:"command"`
	Args    []string      `mapstructure:"args"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func decodeInline(raw any) (ToolConfig, error) {
	var spec inlineSpec
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &spec,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return ToolConfig{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return ToolConfig{}, fmt.Errorf("invalid %s: %w", InlineKey, err)
	}
	if spec.Command == "" {
		return ToolConfig{}, fmt.Errorf("invalid %s: command is required", InlineKey)
	}
	return ToolConfig{Name: InlineKey, Command: spec.Command, Args: spec.Args, Timeout: spec.Timeout}, nil
}

// Execute runs the tool named by the call. Tool failures are reported in the
// result (IsError) rather than as a Go error.
func (r *Runner) Execute(ctx context.Context, call domain.IntegrationCall) (domain.IntegrationResult, error) {
	result := domain.IntegrationResult{ID: call.ID}

	tool, ok := r.registry[call.Tool]
	if !ok && r.allowInline {
		if raw, exists := call.Args[InlineKey]; exists {
			inline, err := decodeInline(raw)
			if err != nil {
				result.IsError = true
				result.Error = err.Error()
				return result, nil
			}
			tool, ok = inline, true
		}
	}
	if !ok {
		result.IsError = true
		result.Error = fmt.Sprintf("integration tool not registered: %s", call.Tool)
		return result, nil
	}

	timeout := tool.Timeout
	if timeout <= 0 {
		timeout = r.timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, tool.Command, tool.Args...)
	cmd.Dir = r.baseDir
	// Ask politely first; kill if the tool ignores the interrupt.
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = 2 * time.Second

	env := cmd.Environ()
	for k, v := range tool.Environment {
		env = append(env, k+"="+v)
	}
	env = append(env, "INQUIRY_NODE_ID="+call.NodeID)
	for k, v := range call.Args {
		if k == InlineKey {
			continue
		}
		env = append(env, EnvPrefix+envName(k)+"="+envValue(v))
	}
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	r.logger.Debug("integration finished",
		"tool", call.Tool,
		"node_id", call.NodeID,
		"duration", time.Since(start),
		"ok", err == nil)

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			result.IsError = true
			result.Error = fmt.Sprintf("tool %s timed out after %s", call.Tool, timeout)
			return result, nil
		}
		result.IsError = true
		result.Error = fmt.Sprintf("execution failed: %v. Stderr: %s", err, strings.TrimSpace(stderr.String()))
		return result, nil
	}

	result.Result = decodeOutput(stdout.String())
	return result, nil
}

var unsafeEnv = regexp.MustCompile(`[^A-Z0-9_]`)

func envName(k string) string {
	return unsafeEnv.ReplaceAllString(strings.ToUpper(k), "_")
}

func envValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int, int64, float64, bool:
		return fmt.Sprintf("%v", t)
	default:
		if b, err := json.Marshal(t); err == nil {
			return string(b)
		}
		return fmt.Sprintf("%v", t)
	}
}

// decodeOutput returns parsed JSON for object or array output, otherwise the trimmed text.
func decodeOutput(out string) any {
	trimmed := strings.TrimSpace(out)
	if (strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}")) ||
		(strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]")) {
		var v any
		if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
			return v
		}
	}
	return trimmed
}
