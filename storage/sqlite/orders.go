package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"atomic-swap-go/order"
)

var orderSchema = []string{
	`CREATE TABLE IF NOT EXISTS sequences (
		name TEXT PRIMARY KEY,
		next INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id INTEGER PRIMARY KEY,
		status INTEGER NOT NULL,
		maker_address TEXT NOT NULL,
		desired_taker TEXT NOT NULL,
		taker_address TEXT NOT NULL DEFAULT '',
		payload TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders (status)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_maker ON orders (maker_address)`,
}

// OrderStore 订单注册表，实现 order.Store。
type OrderStore struct {
	db *sql.DB
}

var _ order.Store = (*OrderStore)(nil)

// OpenOrderStore 打开（或创建）订单库。
func OpenOrderStore(path string) (*OrderStore, error) {
	db, err := open(path, orderSchema)
	if err != nil {
		return nil, err
	}
	return &OrderStore{db: db}, nil
}

func (s *OrderStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// NextID 在事务内递增序列，分配出去的 ID 不会回收。
func (s *OrderStore) NextID(ctx context.Context) (uint64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO sequences (name, next) VALUES ('orders', 0)`); err != nil {
		return 0, fmt.Errorf("init sequence: %w", err)
	}
	var next int64
	if err := tx.QueryRowContext(ctx, `SELECT next FROM sequences WHERE name = 'orders'`).Scan(&next); err != nil {
		return 0, fmt.Errorf("read sequence: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE sequences SET next = next + 1 WHERE name = 'orders'`); err != nil {
		return 0, fmt.Errorf("advance sequence: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return uint64(next), nil
}

func (s *OrderStore) Insert(ctx context.Context, o order.Order) error {
	payload, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO orders (id, status, maker_address, desired_taker, taker_address, payload, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(o.ID), int(o.Status), string(o.Maker.MakerAddress), string(o.Maker.DesiredTaker),
		string(o.Taker.TakerAddress), string(payload), o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return order.ErrExists
		}
		return fmt.Errorf("insert order %d: %w", o.ID, err)
	}
	return nil
}

func (s *OrderStore) Update(ctx context.Context, o order.Order) error {
	payload, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = ?, taker_address = ?, payload = ?, updated_at = ? WHERE id = ?`,
		int(o.Status), string(o.Taker.TakerAddress), string(payload), o.UpdatedAt, int64(o.ID),
	)
	if err != nil {
		return fmt.Errorf("update order %d: %w", o.ID, err)
	}
	return affectedOne(res)
}

func (s *OrderStore) Delete(ctx context.Context, id uint64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, int64(id))
	if err != nil {
		return fmt.Errorf("delete order %d: %w", id, err)
	}
	return affectedOne(res)
}

func (s *OrderStore) Get(ctx context.Context, id uint64) (order.Order, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM orders WHERE id = ?`, int64(id)).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return order.Order{}, order.ErrNotFound
	}
	if err != nil {
		return order.Order{}, fmt.Errorf("get order %d: %w", id, err)
	}
	return decodeOrder(payload)
}

// List 过滤条件下推到 SQL，按 ID 升序。
func (s *OrderStore) List(ctx context.Context, f order.Filter) ([]order.Order, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.Status != nil {
		where = append(where, "status = ?")
		args = append(args, int(*f.Status))
	}
	if f.Maker != "" {
		where = append(where, "maker_address = ?")
		args = append(args, string(f.Maker))
	}
	if f.Taker != "" {
		where = append(where, "(desired_taker = ? OR taker_address = ?)")
		args = append(args, string(f.Taker), string(f.Taker))
	}
	query := `SELECT payload FROM orders`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	out := make([]order.Order, 0)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o, err := decodeOrder(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func decodeOrder(payload string) (order.Order, error) {
	var o order.Order
	if err := json.Unmarshal([]byte(payload), &o); err != nil {
		return order.Order{}, fmt.Errorf("decode order: %w", err)
	}
	return o, nil
}

func affectedOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return order.ErrNotFound
	}
	return nil
}
