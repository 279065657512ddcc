package store

import (
	"context"
	"database/sql"
	"fmt"

	"stock-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreateTransferOrder inserts an order and its items in one transaction so a
// half-written order can never show up in the pending overlay.
func (s *Store) CreateTransferOrder(ctx context.Context, order *models.PendingTransferOrder) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transfer_orders (id, from_warehouse_id, to_warehouse_id, status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		order.ID, order.FromWarehouseID, order.ToWarehouseID, order.Status,
		order.CreatedBy, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert transfer order: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		err = tx.GetContext(ctx, &item.ID, `
			INSERT INTO transfer_items (order_id, product_id, qty)
			VALUES ($1, $2, $3)
			RETURNING id`,
			order.ID, item.ProductID, item.Qty)
		if err != nil {
			return fmt.Errorf("failed to insert transfer item: %w", err)
		}
	}

	return tx.Commit()
}

// GetTransferOrderByID retrieves a transfer order with its items
func (s *Store) GetTransferOrderByID(ctx context.Context, id string) (*models.PendingTransferOrder, error) {
	var order models.PendingTransferOrder
	err := s.db.GetContext(ctx, &order, "SELECT * FROM transfer_orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("transfer order not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	err = s.db.SelectContext(ctx, &order.Items,
		"SELECT * FROM transfer_items WHERE order_id = $1 ORDER BY id", id)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListPendingTransferOrders retrieves all orders still awaiting confirmation,
// items included.
func (s *Store) ListPendingTransferOrders(ctx context.Context) ([]models.PendingTransferOrder, error) {
	var orders []models.PendingTransferOrder
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM transfer_orders WHERE status = $1 ORDER BY created_at DESC",
		models.TransferStatusPending)
	if err != nil {
		return nil, err
	}
	return s.attachItems(ctx, orders)
}

// ListTransferOrders retrieves all orders regardless of status
func (s *Store) ListTransferOrders(ctx context.Context) ([]models.PendingTransferOrder, error) {
	var orders []models.PendingTransferOrder
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM transfer_orders ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	return s.attachItems(ctx, orders)
}

func (s *Store) attachItems(ctx context.Context, orders []models.PendingTransferOrder) ([]models.PendingTransferOrder, error) {
	if len(orders) == 0 {
		return orders, nil
	}
	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		index[orders[i].ID] = i
	}

	query, args, err := sqlx.In("SELECT * FROM transfer_items WHERE order_id IN (?) ORDER BY id", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var items []models.TransferItem
	if err := s.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, err
	}
	for _, item := range items {
		i := index[item.OrderID]
		orders[i].Items = append(orders[i].Items, item)
	}
	return orders, nil
}

// ConfirmTransferOrder moves an order from pending to received. Only pending
// orders transition; confirming twice is a no-op reported as not found.
func (s *Store) ConfirmTransferOrder(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE transfer_orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3",
		models.TransferStatusReceived, id, models.TransferStatusPending)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("pending transfer order not found: %s", id)
	}
	return nil
}

// DeleteTransferOrder removes an order and its items
func (s *Store) DeleteTransferOrder(ctx context.Context, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM transfer_items WHERE order_id = $1", id); err != nil {
		return fmt.Errorf("failed to delete transfer items: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM transfer_orders WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete transfer order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("transfer order not found: %s", id)
	}
	return tx.Commit()
}
