package asset

import (
	"context"
	"errors"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrOverflow              = errors.New("amount overflow")
	ErrSessionClosed         = errors.New("ledger session closed")
	ErrZeroAddress           = errors.New("zero address")
	ErrZeroAsset             = errors.New("zero asset")
)

// Capability 外部资产转账能力。托管引擎只依赖这两个调用。
//
// Transfer 中 from 为隐式调用者（引擎托管地址）；TransferFrom 由 spender
// 代 from 转出，需要 from 事先授权。失败必须以 error 返回，不允许静默忽略。
type Capability interface {
	Transfer(ctx context.Context, id ID, from, to Address, amount Amount) error
	TransferFrom(ctx context.Context, id ID, spender, from, to Address, amount Amount) error
}

// Session 一次操作内的转账会话，Commit 前对外不可见。
type Session interface {
	Capability
	Commit() error
	Rollback() error
}

// Ledger 由宿主环境提供的账本，保证单次操作内多笔转账的原子性。
type Ledger interface {
	Begin(ctx context.Context) (Session, error)
}

// Book 可查询余额/授权的账本（管理接口与测试使用）。
type Book interface {
	Ledger
	Mint(ctx context.Context, id ID, to Address, amount Amount) error
	Approve(ctx context.Context, id ID, owner, spender Address, amount Amount) error
	BalanceOf(ctx context.Context, id ID, owner Address) (Amount, error)
	Allowance(ctx context.Context, id ID, owner, spender Address) (Amount, error)
}
