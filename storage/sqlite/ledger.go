package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"atomic-swap-go/asset"
)

var ledgerSchema = []string{
	`CREATE TABLE IF NOT EXISTS balances (
		asset TEXT NOT NULL,
		owner TEXT NOT NULL,
		amount TEXT NOT NULL,
		PRIMARY KEY (asset, owner)
	)`,
	`CREATE TABLE IF NOT EXISTS allowances (
		asset TEXT NOT NULL,
		owner TEXT NOT NULL,
		spender TEXT NOT NULL,
		amount TEXT NOT NULL,
		PRIMARY KEY (asset, owner, spender)
	)`,
}

// Ledger 持久化账本，实现 asset.Book。每个会话对应一个数据库事务。
type Ledger struct {
	db *sql.DB
}

var _ asset.Book = (*Ledger)(nil)

// OpenLedger 打开（或创建）账本库。账本与订单库必须是不同文件。
func OpenLedger(path string) (*Ledger, error) {
	db, err := open(path, ledgerSchema)
	if err != nil {
		return nil, err
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Begin 开启事务；连接被占用时在 ctx 上等待。
func (l *Ledger) Begin(ctx context.Context) (asset.Session, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin ledger tx: %w", err)
	}
	return &session{tx: tx}, nil
}

func (l *Ledger) Mint(ctx context.Context, id asset.ID, to asset.Address, amount asset.Amount) error {
	if id.IsZero() {
		return asset.ErrZeroAsset
	}
	if to.IsZero() {
		return asset.ErrZeroAddress
	}
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	have, err := readBalance(ctx, tx, id, to)
	if err != nil {
		return err
	}
	if have > math.MaxUint64-amount {
		return asset.ErrOverflow
	}
	if err := writeBalance(ctx, tx, id, to, have+amount); err != nil {
		return err
	}
	return tx.Commit()
}

func (l *Ledger) Approve(ctx context.Context, id asset.ID, owner, spender asset.Address, amount asset.Amount) error {
	if id.IsZero() {
		return asset.ErrZeroAsset
	}
	if owner.IsZero() || spender.IsZero() {
		return asset.ErrZeroAddress
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO allowances (asset, owner, spender, amount) VALUES (?, ?, ?, ?)
		 ON CONFLICT (asset, owner, spender) DO UPDATE SET amount = excluded.amount`,
		string(id), string(owner), string(spender), formatAmount(amount),
	)
	if err != nil {
		return fmt.Errorf("approve: %w", err)
	}
	return nil
}

func (l *Ledger) BalanceOf(ctx context.Context, id asset.ID, owner asset.Address) (asset.Amount, error) {
	return readBalance(ctx, l.db, id, owner)
}

func (l *Ledger) Allowance(ctx context.Context, id asset.ID, owner, spender asset.Address) (asset.Amount, error) {
	return readAllowance(ctx, l.db, id, owner, spender)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func readBalance(ctx context.Context, q queryer, id asset.ID, owner asset.Address) (asset.Amount, error) {
	var s string
	err := q.QueryRowContext(ctx, `SELECT amount FROM balances WHERE asset = ? AND owner = ?`, string(id), string(owner)).Scan(&s)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return parseAmount(s)
}

func writeBalance(ctx context.Context, q queryer, id asset.ID, owner asset.Address, amount asset.Amount) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO balances (asset, owner, amount) VALUES (?, ?, ?)
		 ON CONFLICT (asset, owner) DO UPDATE SET amount = excluded.amount`,
		string(id), string(owner), formatAmount(amount),
	)
	if err != nil {
		return fmt.Errorf("write balance: %w", err)
	}
	return nil
}

func readAllowance(ctx context.Context, q queryer, id asset.ID, owner, spender asset.Address) (asset.Amount, error) {
	var s string
	err := q.QueryRowContext(ctx,
		`SELECT amount FROM allowances WHERE asset = ? AND owner = ? AND spender = ?`,
		string(id), string(owner), string(spender),
	).Scan(&s)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read allowance: %w", err)
	}
	return parseAmount(s)
}

// session 与内存账本的会话语义保持一致。
type session struct {
	tx     *sql.Tx
	closed bool
}

func (s *session) Transfer(ctx context.Context, id asset.ID, from, to asset.Address, amount asset.Amount) error {
	if err := s.check(ctx, id, from, to); err != nil {
		return err
	}
	return s.move(ctx, id, from, to, amount)
}

func (s *session) TransferFrom(ctx context.Context, id asset.ID, spender, from, to asset.Address, amount asset.Amount) error {
	if err := s.check(ctx, id, from, to); err != nil {
		return err
	}
	if spender.IsZero() {
		return asset.ErrZeroAddress
	}
	allowed, err := readAllowance(ctx, s.tx, id, from, spender)
	if err != nil {
		return err
	}
	if allowed < amount {
		return fmt.Errorf("%w: %s allows %s %d of %s, need %d", asset.ErrInsufficientAllowance, from, spender, allowed, id, amount)
	}
	if err := s.move(ctx, id, from, to, amount); err != nil {
		return err
	}
	_, err = s.tx.ExecContext(ctx,
		`UPDATE allowances SET amount = ? WHERE asset = ? AND owner = ? AND spender = ?`,
		formatAmount(allowed-amount), string(id), string(from), string(spender),
	)
	if err != nil {
		return fmt.Errorf("consume allowance: %w", err)
	}
	return nil
}

func (s *session) check(ctx context.Context, id asset.ID, from, to asset.Address) error {
	if s.closed {
		return asset.ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if id.IsZero() {
		return asset.ErrZeroAsset
	}
	if from.IsZero() || to.IsZero() {
		return asset.ErrZeroAddress
	}
	return nil
}

func (s *session) move(ctx context.Context, id asset.ID, from, to asset.Address, amount asset.Amount) error {
	have, err := readBalance(ctx, s.tx, id, from)
	if err != nil {
		return err
	}
	if have < amount {
		return fmt.Errorf("%w: %s holds %d of %s, need %d", asset.ErrInsufficientBalance, from, have, id, amount)
	}
	if from == to {
		return nil
	}
	dst, err := readBalance(ctx, s.tx, id, to)
	if err != nil {
		return err
	}
	if dst > math.MaxUint64-amount {
		return asset.ErrOverflow
	}
	if err := writeBalance(ctx, s.tx, id, from, have-amount); err != nil {
		return err
	}
	return writeBalance(ctx, s.tx, id, to, dst+amount)
}

func (s *session) Commit() error {
	if s.closed {
		return asset.ErrSessionClosed
	}
	s.closed = true
	return s.tx.Commit()
}

func (s *session) Rollback() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.tx.Rollback()
}
