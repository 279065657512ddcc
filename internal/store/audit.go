package store

import (
	"context"

	"stock-service/internal/models"
)

// AppendHistory writes one audit record. The log is append-only: entries are
// never updated, and deleting a transfer order leaves its history behind.
func (s *Store) AppendHistory(ctx context.Context, entry *models.HistoryEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transfer_history (id, ts, action, transfer_order_id, from_name, to_name, item_count, username)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.Timestamp, entry.Action, entry.TransferOrderID,
		entry.FromName, entry.ToName, entry.ItemCount, entry.User)
	return err
}

// ListHistory retrieves audit records newest first
func (s *Store) ListHistory(ctx context.Context, limit int) ([]models.HistoryEntry, error) {
	if limit <= 0 {
		limit = 200
	}
	var entries []models.HistoryEntry
	err := s.db.SelectContext(ctx, &entries,
		"SELECT * FROM transfer_history ORDER BY ts DESC LIMIT $1", limit)
	return entries, err
}

// ClearHistory wipes the audit log. Exposed for explicit operator resets
// only; nothing in the service calls it on its own.
func (s *Store) ClearHistory(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM transfer_history")
	return err
}
