package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/thecxx/fcstream"
)

var _ fcstream.Sink = (*DB)(nil)

// Load implements fcstream.Sink.
func (d *DB) Load(ctx context.Context, id string) (*fcstream.Conversation, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT id, title, provider, model, created_at, updated_at
		FROM conversations WHERE id = ?
	`, id)

	var (
		conv                   fcstream.Conversation
		createdStr, updatedStr string
	)
	err := row.Scan(&conv.ID, &conv.Title, &conv.Provider, &conv.Model, &createdStr, &updatedStr)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	conv.CreatedAt, _ = time.Parse(timeLayout, createdStr)
	conv.UpdatedAt, _ = time.Parse(timeLayout, updatedStr)

	rows, err := d.db.QueryContext(ctx, `
		SELECT body FROM messages WHERE conversation_id = ? ORDER BY seq
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	conv.Messages = []fcstream.Message{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		msg, err := fcstream.DecodeMessage([]byte(body))
		if err != nil {
			return nil, fmt.Errorf("conversation %s: %w", id, err)
		}
		conv.Messages = append(conv.Messages, msg)
	}
	return &conv, rows.Err()
}

// Save implements fcstream.Sink. The whole history is rewritten in one
// transaction; writes to the same conversation are serialized. An existing
// title is kept so a stale working copy cannot undo SetTitle.
func (d *DB) Save(ctx context.Context, conv *fcstream.Conversation) error {
	unlock := d.locks.Lock(conv.ID)
	defer unlock()

	bodies := make([][]byte, 0, len(conv.Messages))
	for _, msg := range conv.Messages {
		body, err := fcstream.EncodeMessage(msg)
		if err != nil {
			return fmt.Errorf("encode message: %w", err)
		}
		bodies = append(bodies, body)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now().UTC()
	}
	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = conv.CreatedAt
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (id, title, provider, model, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			provider = excluded.provider,
			model = excluded.model,
			updated_at = excluded.updated_at
	`, conv.ID, conv.Title, conv.Provider, conv.Model,
		conv.CreatedAt.UTC().Format(timeLayout), conv.UpdatedAt.UTC().Format(timeLayout)); err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, conv.ID); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}
	for i, body := range bodies {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages (conversation_id, seq, role, body) VALUES (?, ?, ?, ?)
		`, conv.ID, i, conv.Messages[i].Role, string(body)); err != nil {
			return fmt.Errorf("insert message %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// SetTitle implements fcstream.Sink.
func (d *DB) SetTitle(ctx context.Context, id, title string) (bool, error) {
	unlock := d.locks.Lock(id)
	defer unlock()

	res, err := d.db.ExecContext(ctx, `UPDATE conversations SET title = ? WHERE id = ?`, title, id)
	if err != nil {
		return false, fmt.Errorf("set title: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Delete implements fcstream.Sink.
func (d *DB) Delete(ctx context.Context, id string) (bool, error) {
	unlock := d.locks.Lock(id)
	defer unlock()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, id); err != nil {
		return false, fmt.Errorf("delete messages: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, tx.Commit()
}

// List implements fcstream.Sink.
func (d *DB) List(ctx context.Context) ([]fcstream.ConversationSummary, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, title, provider, model, created_at, updated_at
		FROM conversations ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []fcstream.ConversationSummary{}
	for rows.Next() {
		var (
			s                      fcstream.ConversationSummary
			createdStr, updatedStr string
		)
		if err := rows.Scan(&s.ID, &s.Title, &s.Provider, &s.Model, &createdStr, &updatedStr); err != nil {
			return nil, err
		}
		s.CreatedAt, _ = time.Parse(timeLayout, createdStr)
		s.UpdatedAt, _ = time.Parse(timeLayout, updatedStr)
		out = append(out, s)
	}
	return out, rows.Err()
}
