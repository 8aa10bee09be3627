package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session is a named chat session.
type Session struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Message is one persisted chat turn.
type Message struct {
	SessionID string
	ModelID   string
	// Name is the display name of the model; filled in on read.
	Name      string
	Role      string
	Content   string
	Timestamp time.Time
}

// CreateSession inserts a new session with a random id.
func (d *DB) CreateSession(ctx context.Context, name string) (Session, error) {
	s := Session{ID: uuid.NewString(), Name: name, CreatedAt: time.Now()}
	if _, err := d.db.ExecContext(ctx, `INSERT INTO sessions (id, name, created_at) VALUES (?, ?, ?)`,
		s.ID, s.Name, s.CreatedAt.Unix()); err != nil {
		return Session{}, fmt.Errorf("insert session: %w", err)
	}
	return s, nil
}

// Sessions lists sessions, newest first.
func (d *DB) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id, name, created_at FROM sessions ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Session
	for rows.Next() {
		var s Session
		var created int64
		if err := rows.Scan(&s.ID, &s.Name, &created); err != nil {
			return nil, err
		}
		s.CreatedAt = time.Unix(created, 0)
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteSession removes a session and its messages.
func (d *DB) DeleteSession(ctx context.Context, id string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// AddMessages appends msgs in order within one transaction.
func (d *DB) AddMessages(ctx context.Context, msgs ...Message) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, m := range msgs {
		ts := m.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages (session_id, model_id, role, content, timestamp)
			VALUES (?, ?, ?, ?, ?)`,
			m.SessionID, m.ModelID, m.Role, m.Content, ts.Unix()); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}
	return tx.Commit()
}

// Messages returns the messages of a session in insertion order.
func (d *DB) Messages(ctx context.Context, sessionID string) ([]Message, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT m.session_id, m.model_id, COALESCE(mdl.model_name, m.model_id), m.role, m.content, m.timestamp
		FROM messages AS m
		LEFT JOIN models AS mdl ON m.model_id = mdl.model_id
		WHERE m.session_id = ? ORDER BY m.id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Message
	for rows.Next() {
		var m Message
		var ts int64
		if err := rows.Scan(&m.SessionID, &m.ModelID, &m.Name, &m.Role, &m.Content, &ts); err != nil {
			return nil, err
		}
		m.Timestamp = time.Unix(ts, 0)
		out = append(out, m)
	}
	return out, rows.Err()
}
