package notify

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Notification kinds. Reschedules re-confirm the new time, status changes
// land as system messages, reminders come from a future scheduler.
const (
	TypeAppointmentConfirmation = "appointment_confirmation"
	TypeAppointmentCancelled    = "appointment_cancelled"
	TypeAppointmentReminder     = "appointment_reminder"
	TypeSystemMessage           = "system_message"
)

// Notification is one message recorded for a recipient. The row is the
// durable record; email delivery on top of it is best effort.
type Notification struct {
	ID            uuid.UUID `json:"id"`
	RecipientID   uuid.UUID `json:"recipient_id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	Type          string    `json:"type"`
	Subject       string    `json:"subject"`
	Body          string    `json:"body"`
	CreatedAt     time.Time `json:"created_at"`
}

// Store persists notifications.
type Store interface {
	Insert(ctx context.Context, n *Notification) error
	ListForRecipient(ctx context.Context, recipientID uuid.UUID, limit int32) ([]*Notification, error)
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps notifications in the relational database.
type PostgresStore struct {
	q querier
}

// NewPostgresStore initializes a store backed by pgxpool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("notify: pgx pool required")
	}
	return &PostgresStore{q: pool}
}

func newPostgresStoreWithQuerier(q querier) *PostgresStore {
	return &PostgresStore{q: q}
}

// Insert writes one notification row.
func (s *PostgresStore) Insert(ctx context.Context, n *Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	query := `
		INSERT INTO notifications (id, recipient_id, appointment_id, type, subject, body)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	if err := s.q.QueryRow(ctx, query,
		n.ID, n.RecipientID, n.AppointmentID, n.Type, n.Subject, n.Body,
	).Scan(&n.CreatedAt); err != nil {
		return fmt.Errorf("notify: insert notification: %w", err)
	}
	return nil
}

// ListForRecipient returns the newest notifications for a recipient.
func (s *PostgresStore) ListForRecipient(ctx context.Context, recipientID uuid.UUID, limit int32) ([]*Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, recipient_id, appointment_id, type, subject, body, created_at
		FROM notifications
		WHERE recipient_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.q.Query(ctx, query, recipientID, limit)
	if err != nil {
		return nil, fmt.Errorf("notify: list notifications: %w", err)
	}
	defer rows.Close()

	var out []*Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.AppointmentID, &n.Type, &n.Subject, &n.Body, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("notify: scan notification: %w", err)
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

var _ Store = (*PostgresStore)(nil)

// MemoryStore is an in-memory Store for tests and local runs.
type MemoryStore struct {
	mu            sync.Mutex
	notifications []*Notification
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Insert(_ context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	n.CreatedAt = time.Now().UTC()
	cp := *n
	s.notifications = append(s.notifications, &cp)
	return nil
}

func (s *MemoryStore) ListForRecipient(_ context.Context, recipientID uuid.UUID, limit int32) ([]*Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Notification
	for _, n := range s.notifications {
		if n.RecipientID == recipientID {
			cp := *n
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && int32(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

// All returns every stored notification, oldest first.
func (s *MemoryStore) All() []*Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Notification(nil), s.notifications...)
}

var _ Store = (*MemoryStore)(nil)
