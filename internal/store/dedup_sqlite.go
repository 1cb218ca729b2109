package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

func (s *SQLiteStore) RecordInbound(messageID, userID string) (bool, error) {
	result, err := s.db.Exec(
		`INSERT OR IGNORE INTO inbound_dedup (message_id, user_id, received_at) VALUES (?, ?, ?)`,
		messageID, userID, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("record inbound failed: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record inbound failed: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) MarkProcessed(messageID, reply string) error {
	_, err := s.db.Exec(
		`UPDATE inbound_dedup SET processed_at = ?, reply = ? WHERE message_id = ?`,
		time.Now().UTC(), reply, messageID,
	)
	if err != nil {
		return fmt.Errorf("mark processed failed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ProcessedReply(messageID string) (string, bool, error) {
	var reply sql.NullString
	var processedAt sql.NullTime
	err := s.db.QueryRow(
		`SELECT reply, processed_at FROM inbound_dedup WHERE message_id = ?`, messageID,
	).Scan(&reply, &processedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("dedup lookup failed: %w", err)
	}
	if !processedAt.Valid {
		return "", false, nil
	}
	return reply.String, true, nil
}
