package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/google/uuid"
)

// Repository implements ports.Repository on the local filesystem.
//
// Layout under BasePath:
//
//	<inquiry>.json                 graph document
//	<inquiry>.responses/<id>.json  one file per submission
type Repository struct {
	BasePath string
	mu       sync.Mutex
}

// New creates a repository rooted at basePath ("." when empty).
func New(basePath string) *Repository {
	if basePath == "" {
		basePath = "."
	}
	return &Repository{BasePath: basePath}
}

var safeID = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

func checkID(id string) error {
	if !safeID.MatchString(id) || strings.Contains(id, "..") {
		return fmt.Errorf("invalid inquiry id %q", id)
	}
	return nil
}

func (r *Repository) graphPath(inquiryID string) string {
	return filepath.Join(r.BasePath, inquiryID+".json")
}

func (r *Repository) responsesDir(inquiryID string) string {
	return filepath.Join(r.BasePath, inquiryID+".responses")
}

// LoadGraph reads and decodes the graph document.
func (r *Repository) LoadGraph(ctx context.Context, inquiryID string) (*domain.Graph, error) {
	if err := checkID(inquiryID); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(r.graphPath(inquiryID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrInquiryNotFound, inquiryID)
		}
		return nil, fmt.Errorf("failed to read graph file: %w", err)
	}
	return domain.DecodeGraph(data)
}

// SaveGraph writes the graph document atomically.
func (r *Repository) SaveGraph(ctx context.Context, inquiryID string, g *domain.Graph) error {
	if err := checkID(inquiryID); err != nil {
		return err
	}
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal graph: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return writeAtomic(r.BasePath, r.graphPath(inquiryID), data)
}

// AppendResponse writes the submission to its own file.
func (r *Repository) AppendResponse(ctx context.Context, inquiryID string, sub domain.Submission) (string, error) {
	if err := checkID(inquiryID); err != nil {
		return "", err
	}
	if _, err := os.Stat(r.graphPath(inquiryID)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", domain.ErrInquiryNotFound, inquiryID)
		}
		return "", err
	}

	// Time-ordered ids keep directory listing in append order.
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	sub.ID = id.String()
	sub.InquiryID = inquiryID

	data, err := json.MarshalIndent(sub, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal response: %w", err)
	}

	dir := r.responsesDir(inquiryID)
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to ensure responses directory: %w", err)
	}
	if err := writeAtomic(dir, filepath.Join(dir, sub.ID+".json"), data); err != nil {
		return "", err
	}
	return sub.ID, nil
}

// ListResponses reads every submission of an inquiry in append order.
func (r *Repository) ListResponses(ctx context.Context, inquiryID string) ([]domain.Submission, error) {
	if err := checkID(inquiryID); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(r.responsesDir(inquiryID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") && !strings.HasPrefix(e.Name(), "tmp-") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := make([]domain.Submission, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(r.responsesDir(inquiryID), name))
		if err != nil {
			return nil, err
		}
		var sub domain.Submission
		if err := json.Unmarshal(data, &sub); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", name, err)
		}
		out = append(out, sub)
	}
	return out, nil
}

// writeAtomic writes to a temp file in dir, syncs it, then renames it over dest.
func writeAtomic(dir, dest string, data []byte) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to ensure directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "tmp-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	// os.Rename does not replace an existing file on Windows.
	if _, err := os.Stat(dest); err == nil {
		if err := os.Remove(dest); err != nil {
			return fmt.Errorf("failed to replace %s: %w", dest, err)
		}
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
