package store

import (
	"context"

	"github.com/thecxx/fcstream/function"
)

var _ function.TopicSource = (*DB)(nil)

// AddTopic records a hot topic.
func (d *DB) AddTopic(ctx context.Context, t function.Topic) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO topics (title, description, source, category) VALUES (?, ?, ?, ?)
	`, t.Title, t.Description, t.Source, t.Category)
	return err
}

// Topics implements function.TopicSource, newest first. An empty category
// matches every topic.
func (d *DB) Topics(ctx context.Context, category string, limit int) ([]function.Topic, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT title, description, source, category FROM topics
		WHERE ? = '' OR category = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, category, category, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	topics := []function.Topic{}
	for rows.Next() {
		var t function.Topic
		if err := rows.Scan(&t.Title, &t.Description, &t.Source, &t.Category); err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}
