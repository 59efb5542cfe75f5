package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/inquiry/internal/config"
	"github.com/aretw0/inquiry/pkg/adapters/file"
	"github.com/aretw0/inquiry/pkg/adapters/memory"
	"github.com/aretw0/inquiry/pkg/adapters/process"
	redisadapter "github.com/aretw0/inquiry/pkg/adapters/redis"
	"github.com/aretw0/inquiry/pkg/adapters/sqlite"
	"github.com/aretw0/inquiry/pkg/kv"
	"github.com/aretw0/inquiry/pkg/narration"
	"github.com/aretw0/inquiry/pkg/persistence/middleware"
	"github.com/aretw0/inquiry/pkg/ports"
	"github.com/aretw0/inquiry/pkg/reasoning"
	"github.com/aretw0/inquiry/pkg/registry"
)

// Services bundles the adapters selected by configuration.
type Services struct {
	Repo      ports.Repository
	Backend   kv.Backend
	Locker    ports.Locker // nil unless storage is redis
	Reasoning *reasoning.Client
	// Tools runs built-in Go tools and falls back to tools.yaml processes.
	Tools     *registry.Registry
	Narrator  ports.Narrator // nil unless narration is enabled

	closers []func() error
}

// NewServices wires storage, reasoning, tools and narration from cfg.
func NewServices(cfg *config.Config, logger *slog.Logger) (*Services, error) {
	s := &Services{}

	if err := s.openStorage(cfg.Storage); err != nil {
		return nil, err
	}
	if err := s.secureStorage(cfg.Storage); err != nil {
		_ = s.Close()
		return nil, err
	}

	transport, err := NewTransport(cfg.Reasoning)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.Reasoning = reasoning.NewClient(transport,
		reasoning.WithLogger(logger),
		reasoning.WithTimeout(cfg.Reasoning.Timeout))
	s.closers = append(s.closers, s.Reasoning.Close)

	tools, err := process.LoadTools(cfg.Tools.File)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("load tools: %w", err)
	}
	processes := process.NewRunner(
		process.WithRegistry(tools),
		process.WithInlineExecution(cfg.Tools.AllowInline),
		process.WithBaseDir(filepath.Dir(cfg.Tools.File)),
		process.WithDefaultTimeout(cfg.Tools.Timeout),
		process.WithLogger(logger),
	)
	s.Tools = registry.NewRegistry(registry.WithBuiltins(), registry.WithFallback(processes))

	if cfg.Sessions.Narration {
		async := narration.NewAsync(narration.NewLog(logger), narration.WithLogger(logger))
		s.Narrator = async
		s.closers = append(s.closers, func() error { async.Close(); return nil })
	}
	return s, nil
}

func (s *Services) openStorage(cfg config.StorageConfig) error {
	switch cfg.Driver {
	case "memory":
		s.Repo = memory.NewRepository()
		s.Backend = kv.NewMemoryBackend(time.Minute)
	case "file":
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return fmt.Errorf("storage path: %w", err)
		}
		s.Repo = file.New(cfg.Path)
		s.Backend = kv.NewMemoryBackend(time.Minute)
	case "sqlite":
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("storage path: %w", err)
			}
		}
		repo, err := sqlite.Open(cfg.Path)
		if err != nil {
			return err
		}
		s.Repo = repo
		s.Backend = kv.NewMemoryBackend(time.Minute)
		s.closers = append(s.closers, repo.Close)
	case "redis":
		repo := redisadapter.New(cfg.RedisAddr, redisadapter.WithPrefix(cfg.Prefix))
		client := repo.Client()
		s.Repo = repo
		s.Backend = kv.NewRedisBackend(client, cfg.Prefix+"kv:")
		s.Locker = redisadapter.NewLocker(client, cfg.Prefix)
		s.closers = append(s.closers, client.Close)
	default:
		return fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
	return nil
}

// secureStorage layers encryption over the kv backend and PII masking over
// the repository when configured.
func (s *Services) secureStorage(cfg config.StorageConfig) error {
	if cfg.EncryptionKey != "" {
		keys, err := middleware.ParseKeys(cfg.EncryptionKey, cfg.FallbackKeys...)
		if err != nil {
			return fmt.Errorf("storage encryption: %w", err)
		}
		seal, err := middleware.NewEncryptionMiddleware(keys)
		if err != nil {
			return fmt.Errorf("storage encryption: %w", err)
		}
		s.Backend = seal(s.Backend)
	}
	if cfg.MaskPII || len(cfg.PIIPatterns) > 0 {
		patterns := cfg.PIIPatterns
		if len(patterns) == 0 {
			patterns = middleware.DefaultPIIPatterns
		}
		mask, err := middleware.NewPIIMiddleware(patterns)
		if err != nil {
			return err
		}
		s.Repo = mask(s.Repo)
	}
	return nil
}

// Close releases connections in reverse order of creation.
func (s *Services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	s.closers = nil
	return errors.Join(errs...)
}

// NewTransport builds the reasoning transport for cfg.
func NewTransport(cfg config.ReasoningConfig) (reasoning.Transport, error) {
	switch cfg.Driver {
	case "rules", "":
		return reasoning.NewLoopback(reasoning.NewRules()), nil
	case "http":
		var opts []reasoning.HTTPOption
		for k, v := range cfg.Headers {
			opts = append(opts, reasoning.WithHeader(k, v))
		}
		return reasoning.NewHTTP(cfg.URL, opts...), nil
	default:
		return nil, fmt.Errorf("unknown reasoning driver %q", cfg.Driver)
	}
}
