package tickets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ziadkadry99/supportbot/internal/db"
)

// Store persists tickets. It is the ticket half of the storage collaborator.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Save inserts a new ticket row.
func (s *Store) Save(ctx context.Context, t Ticket) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tickets (
			id, session_id, problem_type, problem_details, identity,
			status, response, closed_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.SessionID, t.ProblemType, t.ProblemDetails, t.Identity,
		string(t.Status), nullable(t.Response), nullable(string(t.ClosedBy)),
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting ticket %s: %w", t.ID, err)
	}
	return nil
}

// UpdateStatus sets the ticket status and stamps updated_at with at. A
// closed row is never reopened.
func (s *Store) UpdateStatus(ctx context.Context, id string, status Status, closedBy ClosedBy, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tickets SET status = ?, closed_by = ?, updated_at = ?
		WHERE id = ? AND status != 'closed'`,
		string(status), nullable(string(closedBy)), formatTime(at), id,
	)
	if err != nil {
		return fmt.Errorf("updating ticket %s status: %w", id, err)
	}
	return nil
}

// UpdateResponse stores the operator response, marks an open ticket answered
// and stamps updated_at with at.
func (s *Store) UpdateResponse(ctx context.Context, id, response string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tickets SET
			response = ?,
			status = CASE WHEN status = 'closed' THEN status ELSE 'answered' END,
			updated_at = ?
		WHERE id = ?`,
		response, formatTime(at), id,
	)
	if err != nil {
		return fmt.Errorf("updating ticket %s response: %w", id, err)
	}
	return nil
}

// Get loads one ticket.
func (s *Store) Get(ctx context.Context, id string) (*Ticket, error) {
	row := s.db.QueryRowContext(ctx, selectTickets+" WHERE id = ?", id)
	t, err := scanInto(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	return t, err
}

// List returns tickets with any of the given statuses, newest first. No
// statuses means all tickets.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]Ticket, error) {
	query := selectTickets
	var args []any
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, st := range statuses {
			placeholders[i] = "?"
			args = append(args, string(st))
		}
		query += " WHERE status IN (" + strings.Join(placeholders, ", ") + ")"
	}
	query += " ORDER BY created_at DESC, rowid DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tickets: %w", err)
	}
	defer rows.Close()

	var out []Ticket
	for rows.Next() {
		t, err := scanInto(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

const selectTickets = `SELECT id, session_id, problem_type, problem_details, identity,
	status, response, closed_by, created_at, updated_at FROM tickets`

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanInto(sc scanner) (*Ticket, error) {
	var (
		t                  Ticket
		status             string
		response, closedBy sql.NullString
		created, updated   string
	)
	err := sc.Scan(&t.ID, &t.SessionID, &t.ProblemType, &t.ProblemDetails, &t.Identity,
		&status, &response, &closedBy, &created, &updated)
	if err != nil {
		return nil, err
	}
	t.Status = Status(status)
	t.Response = response.String
	t.ClosedBy = ClosedBy(closedBy.String)
	t.CreatedAt = parseTime(created)
	t.UpdatedAt = parseTime(updated)
	return &t, nil
}

func nullable(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.DateTime)
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(time.DateTime, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}
