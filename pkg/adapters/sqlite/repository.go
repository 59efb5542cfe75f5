// Package sqlite stores inquiry graphs and responses in a single SQLite file
// using the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Repository implements ports.Repository on SQLite.
type Repository struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and migrates it.
// Use ":memory:" for a throwaway database.
func Open(path string) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps ":memory:" shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

// Close closes the database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// LoadGraph reads the graph document.
func (r *Repository) LoadGraph(ctx context.Context, inquiryID string) (*domain.Graph, error) {
	var raw string
	err := r.db.QueryRowContext(ctx, "SELECT graph FROM inquiries WHERE id = ?", inquiryID).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrInquiryNotFound, inquiryID)
		}
		return nil, fmt.Errorf("failed to load graph: %w", err)
	}
	return domain.DecodeGraph([]byte(raw))
}

// SaveGraph upserts the graph document.
func (r *Repository) SaveGraph(ctx context.Context, inquiryID string, g *domain.Graph) error {
	data, err := domain.EncodeGraph(g)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO inquiries (id, graph, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET graph = excluded.graph, updated_at = excluded.updated_at`,
		inquiryID, string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save graph: %w", err)
	}
	return nil
}

// AppendResponse inserts one response row.
func (r *Repository) AppendResponse(ctx context.Context, inquiryID string, sub domain.Submission) (string, error) {
	var exists int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM inquiries WHERE id = ?", inquiryID).Scan(&exists); err != nil {
		return "", fmt.Errorf("failed to check inquiry: %w", err)
	}
	if exists == 0 {
		return "", fmt.Errorf("%w: %s", domain.ErrInquiryNotFound, inquiryID)
	}

	sub.ID = uuid.NewString()
	sub.InquiryID = inquiryID
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = time.Now()
	}
	payload, err := json.Marshal(sub)
	if err != nil {
		return "", fmt.Errorf("failed to marshal response: %w", err)
	}

	var email sql.NullString
	if sub.Respondent != nil {
		email = sql.NullString{String: sub.Respondent.Email, Valid: true}
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO responses (id, inquiry_id, session_id, payload, submitted_at, respondent_email)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sub.ID, inquiryID, sub.SessionID, string(payload), sub.SubmittedAt.UTC(), email)
	if err != nil {
		return "", fmt.Errorf("failed to insert response: %w", err)
	}
	return sub.ID, nil
}

// ListResponses returns an inquiry's responses in insertion order.
func (r *Repository) ListResponses(ctx context.Context, inquiryID string) ([]domain.Submission, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT payload FROM responses WHERE inquiry_id = ? ORDER BY seq", inquiryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list responses: %w", err)
	}
	defer rows.Close()

	var out []domain.Submission
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var sub domain.Submission
		if err := json.Unmarshal([]byte(raw), &sub); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// CountByRespondent returns how many responses an email address has submitted to an inquiry.
func (r *Repository) CountByRespondent(ctx context.Context, inquiryID, email string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM responses WHERE inquiry_id = ? AND respondent_email = ?",
		inquiryID, email).Scan(&n)
	return n, err
}
