package asset

import (
	"context"
	"fmt"
	"math"
)

type holding struct {
	id    ID
	owner Address
}

type grant struct {
	id      ID
	owner   Address
	spender Address
}

// MemLedger 内存多资产账本，语义与 ERC-20 一致：TransferFrom 消耗授权额度。
// 会话独占账本，写入在 Commit 时一次性生效。
type MemLedger struct {
	sem        chan struct{}
	balances   map[holding]Amount
	allowances map[grant]Amount
}

func NewMemLedger() *MemLedger {
	return &MemLedger{
		sem:        make(chan struct{}, 1),
		balances:   make(map[holding]Amount),
		allowances: make(map[grant]Amount),
	}
}

func (l *MemLedger) acquire(ctx context.Context) error {
	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *MemLedger) release() { <-l.sem }

// Begin 开启会话，阻塞直到账本空闲或 ctx 结束。
func (l *MemLedger) Begin(ctx context.Context) (Session, error) {
	if err := l.acquire(ctx); err != nil {
		return nil, err
	}
	return &memSession{
		l:          l,
		balances:   make(map[holding]Amount),
		allowances: make(map[grant]Amount),
	}, nil
}

// Mint 直接记账，仅供初始化与测试。
func (l *MemLedger) Mint(ctx context.Context, id ID, to Address, amount Amount) error {
	if id.IsZero() {
		return ErrZeroAsset
	}
	if to.IsZero() {
		return ErrZeroAddress
	}
	if err := l.acquire(ctx); err != nil {
		return err
	}
	defer l.release()
	k := holding{id, to}
	sum, err := add(l.balances[k], amount)
	if err != nil {
		return err
	}
	l.balances[k] = sum
	return nil
}

// Approve 设置 spender 可代 owner 转出的额度（覆盖旧值）。
func (l *MemLedger) Approve(ctx context.Context, id ID, owner, spender Address, amount Amount) error {
	if id.IsZero() {
		return ErrZeroAsset
	}
	if owner.IsZero() || spender.IsZero() {
		return ErrZeroAddress
	}
	if err := l.acquire(ctx); err != nil {
		return err
	}
	defer l.release()
	l.allowances[grant{id, owner, spender}] = amount
	return nil
}

func (l *MemLedger) BalanceOf(ctx context.Context, id ID, owner Address) (Amount, error) {
	if err := l.acquire(ctx); err != nil {
		return 0, err
	}
	defer l.release()
	return l.balances[holding{id, owner}], nil
}

func (l *MemLedger) Allowance(ctx context.Context, id ID, owner, spender Address) (Amount, error) {
	if err := l.acquire(ctx); err != nil {
		return 0, err
	}
	defer l.release()
	return l.allowances[grant{id, owner, spender}], nil
}

type memSession struct {
	l          *MemLedger
	balances   map[holding]Amount
	allowances map[grant]Amount
	closed     bool
}

func (s *memSession) balance(k holding) Amount {
	if v, ok := s.balances[k]; ok {
		return v
	}
	return s.l.balances[k]
}

func (s *memSession) allowance(k grant) Amount {
	if v, ok := s.allowances[k]; ok {
		return v
	}
	return s.l.allowances[k]
}

func (s *memSession) Transfer(ctx context.Context, id ID, from, to Address, amount Amount) error {
	if err := s.check(ctx, id, from, to); err != nil {
		return err
	}
	return s.move(id, from, to, amount)
}

func (s *memSession) TransferFrom(ctx context.Context, id ID, spender, from, to Address, amount Amount) error {
	if err := s.check(ctx, id, from, to); err != nil {
		return err
	}
	if spender.IsZero() {
		return ErrZeroAddress
	}
	g := grant{id, from, spender}
	allowed := s.allowance(g)
	if allowed < amount {
		return fmt.Errorf("%w: %s allows %s %d of %s, need %d", ErrInsufficientAllowance, from, spender, allowed, id, amount)
	}
	if err := s.move(id, from, to, amount); err != nil {
		return err
	}
	s.allowances[g] = allowed - amount
	return nil
}

func (s *memSession) check(ctx context.Context, id ID, from, to Address) error {
	if s.closed {
		return ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if id.IsZero() {
		return ErrZeroAsset
	}
	if from.IsZero() || to.IsZero() {
		return ErrZeroAddress
	}
	return nil
}

func (s *memSession) move(id ID, from, to Address, amount Amount) error {
	src, dst := holding{id, from}, holding{id, to}
	have := s.balance(src)
	if have < amount {
		return fmt.Errorf("%w: %s holds %d of %s, need %d", ErrInsufficientBalance, from, have, id, amount)
	}
	if from == to {
		return nil
	}
	credited, err := add(s.balance(dst), amount)
	if err != nil {
		return err
	}
	s.balances[src] = have - amount
	s.balances[dst] = credited
	return nil
}

func (s *memSession) Commit() error {
	if s.closed {
		return ErrSessionClosed
	}
	for k, v := range s.balances {
		s.l.balances[k] = v
	}
	for k, v := range s.allowances {
		s.l.allowances[k] = v
	}
	s.closed = true
	s.l.release()
	return nil
}

// Rollback 丢弃缓冲写入；已关闭的会话上调用为空操作，便于 defer。
func (s *memSession) Rollback() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.l.release()
	return nil
}

func add(a, b Amount) (Amount, error) {
	if a > math.MaxUint64-b {
		return 0, ErrOverflow
	}
	return a + b, nil
}
