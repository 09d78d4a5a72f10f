package repository

import (
	"context"
	"time"

	"github.com/platerelay/platerelay/internal/model"
)

// RecordMessage appends one entry to the message log.
// SentAt is assigned by the database at insert time, which keeps
// timestamps monotonically non-decreasing per insert and gives
// read-your-writes for subsequent counts on the same store.
func (r *Repository) RecordMessage(ctx context.Context, senderID, recipientID, plateID int64, text string) (*model.Message, error) {
	query := `
		INSERT INTO messages (sender_id, recipient_id, plate_id, text)
		VALUES ($1, $2, $3, $4)
		RETURNING id, sender_id, recipient_id, plate_id, text, sent_at
	`

	var m model.Message
	err := r.pool.QueryRow(ctx, query, senderID, recipientID, plateID, text).Scan(
		&m.ID,
		&m.SenderID,
		&m.RecipientID,
		&m.PlateID,
		&m.Text,
		&m.SentAt,
	)

	if err != nil {
		return nil, wrapStoreErr("record message", err)
	}

	return &m, nil
}

// CountMessagesSince counts messages by a sender with sent_at >= cutoff.
func (r *Repository) CountMessagesSince(ctx context.Context, senderID int64, cutoff time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM messages
		WHERE sender_id = $1 AND sent_at >= $2
	`

	var count int
	if err := r.pool.QueryRow(ctx, query, senderID, cutoff).Scan(&count); err != nil {
		return 0, wrapStoreErr("count messages since", err)
	}

	return count, nil
}

// RecentMessagesBySender returns up to limit messages by a sender,
// newest first.
func (r *Repository) RecentMessagesBySender(ctx context.Context, senderID int64, limit int) ([]*model.Message, error) {
	query := `
		SELECT id, sender_id, recipient_id, plate_id, text, sent_at
		FROM messages
		WHERE sender_id = $1
		ORDER BY sent_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, senderID, limit)
	if err != nil {
		return nil, wrapStoreErr("recent messages by sender", err)
	}
	defer rows.Close()

	var messages []*model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.PlateID, &m.Text, &m.SentAt); err != nil {
			return nil, wrapStoreErr("scan message", err)
		}
		messages = append(messages, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapStoreErr("iterate messages", err)
	}

	return messages, nil
}

// MessagesByRecipient returns up to limit messages received by a user,
// newest first, joined with the plate number each message referenced.
func (r *Repository) MessagesByRecipient(ctx context.Context, recipientID int64, limit int) ([]*model.InboxEntry, error) {
	query := `
		SELECT m.id, m.sender_id, m.recipient_id, m.plate_id, m.text, m.sent_at, p.number
		FROM messages m
		JOIN plates p ON m.plate_id = p.id
		WHERE m.recipient_id = $1
		ORDER BY m.sent_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, recipientID, limit)
	if err != nil {
		return nil, wrapStoreErr("messages by recipient", err)
	}
	defer rows.Close()

	var entries []*model.InboxEntry
	for rows.Next() {
		var e model.InboxEntry
		if err := rows.Scan(&e.ID, &e.SenderID, &e.RecipientID, &e.PlateID, &e.Text, &e.SentAt, &e.PlateNumber); err != nil {
			return nil, wrapStoreErr("scan inbox entry", err)
		}
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapStoreErr("iterate inbox entries", err)
	}

	return entries, nil
}
