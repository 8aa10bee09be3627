package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Storage statuses of a model's local copy.
const (
	StatusReady   = "ready"
	StatusMissing = "missing"
)

// Model is a registered model.
type Model struct {
	ModelID    string
	Name       string
	Quantized  bool
	Uncensored bool
	CreatedAt  time.Time
}

// StorageStatus tracks where and whether a model is available on disk.
type StorageStatus struct {
	ModelID   string
	Status    string
	Progress  int
	LocalPath string
}

// RegisterModel records m and marks its local copy at localPath ready.
// Registering an existing model id updates it.
func (d *DB) RegisterModel(ctx context.Context, m Model, localPath string) error {
	if m.ModelID == "" {
		return errors.New("model id is required")
	}
	if m.Name == "" {
		m.Name = m.ModelID
	}
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO models (model_id, model_name, is_quantized, is_uncensored, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(model_id) DO UPDATE SET
			model_name = excluded.model_name,
			is_quantized = excluded.is_quantized,
			is_uncensored = excluded.is_uncensored`,
		m.ModelID, m.Name, m.Quantized, m.Uncensored, time.Now().Unix()); err != nil {
		return fmt.Errorf("insert model: %w", err)
	}
	if err := upsertStatus(ctx, tx, StorageStatus{ModelID: m.ModelID, Status: StatusReady, Progress: 100, LocalPath: localPath}); err != nil {
		return err
	}
	return tx.Commit()
}

// SetStorageStatus records the storage status of a model.
func (d *DB) SetStorageStatus(ctx context.Context, s StorageStatus) error {
	return upsertStatus(ctx, d.db, s)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertStatus(ctx context.Context, ex execer, s StorageStatus) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO download_tasks (model_id, status, progress, local_path)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(model_id) DO UPDATE SET
			status = excluded.status,
			progress = excluded.progress,
			local_path = excluded.local_path`,
		s.ModelID, s.Status, s.Progress, nullString(s.LocalPath))
	if err != nil {
		return fmt.Errorf("upsert storage status: %w", err)
	}
	return nil
}

// Models lists registered models in registration order.
func (d *DB) Models(ctx context.Context) ([]Model, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT model_id, model_name, is_quantized, is_uncensored, created_at
		FROM models ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Model
	for rows.Next() {
		var m Model
		var created int64
		if err := rows.Scan(&m.ModelID, &m.Name, &m.Quantized, &m.Uncensored, &created); err != nil {
			return nil, err
		}
		m.CreatedAt = time.Unix(created, 0)
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteModel removes a model and its storage status. Files on disk are
// left alone.
func (d *DB) DeleteModel(ctx context.Context, modelID string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx, `DELETE FROM models WHERE model_id = ?`, modelID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	res, err = tx.ExecContext(ctx, `DELETE FROM download_tasks WHERE model_id = ?`, modelID)
	if err != nil {
		return err
	}
	m, _ := res.RowsAffected()
	if n+m == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// StorageStatuses lists the storage status of every model.
func (d *DB) StorageStatuses(ctx context.Context) ([]StorageStatus, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT model_id, status, progress, local_path FROM download_tasks ORDER BY model_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StorageStatus
	for rows.Next() {
		var s StorageStatus
		var path sql.NullString
		if err := rows.Scan(&s.ModelID, &s.Status, &s.Progress, &path); err != nil {
			return nil, err
		}
		s.LocalPath = path.String
		out = append(out, s)
	}
	return out, rows.Err()
}

// ModelDir returns the local directory of a model whose copy is ready, or
// "" when there is none.
func (d *DB) ModelDir(ctx context.Context, modelID string) (string, error) {
	var path sql.NullString
	err := d.db.QueryRowContext(ctx, `
		SELECT local_path FROM download_tasks WHERE model_id = ? AND status = ?`,
		modelID, StatusReady).Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup model dir: %w", err)
	}
	return path.String, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
