package escrow

import (
	"context"
	"fmt"

	"atomic-swap-go/asset"
	"atomic-swap-go/infrastructure/logger"
)

// Alerter 托管异常的告警出口。
type Alerter interface {
	SendCritical(message string, fields map[string]interface{}) error
}

// movement 一笔托管相关的资产移动。
type movement struct {
	step    string
	asset   asset.ID
	spender asset.Address // 非空时走 TransferFrom
	from    asset.Address
	to      asset.Address
	amount  asset.Amount
}

// custody 协调资产移动与注册表写入：校验 -> 外部调用 -> 提交。
type custody struct {
	ledger  asset.Ledger
	vault   asset.Address
	log     *logger.Logger
	alerts  Alerter
	onFail  func(op string)
	onDrift func()
}

// commitFunc 写注册表；成功时返回撤销函数，供账本提交失败时回滚。
type commitFunc func(ctx context.Context) (undo func(context.Context) error, err error)

// run 在一个账本会话内完成全部移动并写入注册表。任一步失败都不留下部分效果。
func (c *custody) run(ctx context.Context, op string, orderID uint64, moves []movement, commit commitFunc) error {
	sess, err := c.ledger.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin session: %w", ErrTransferFailed, err)
	}
	defer sess.Rollback()

	for _, mv := range moves {
		if err := c.apply(ctx, sess, mv); err != nil {
			c.fail(op)
			c.log.LogError(err, map[string]interface{}{"op": op, "step": mv.step, "asset": mv.asset, "amount": mv.amount})
			return fmt.Errorf("%w: %s: %w", ErrTransferFailed, mv.step, err)
		}
	}

	undo, err := commit(ctx)
	if err != nil {
		return fmt.Errorf("%s: write registry: %w", op, err)
	}

	if err := sess.Commit(); err != nil {
		c.fail(op)
		if uerr := undo(context.WithoutCancel(ctx)); uerr != nil {
			fields := map[string]interface{}{"op": op, "order_id": orderID, "commit_error": err.Error(), "undo_error": uerr.Error()}
			c.log.LogError(uerr, fields)
			if c.onDrift != nil {
				c.onDrift()
			}
			if c.alerts != nil {
				_ = c.alerts.SendCritical("escrow registry diverged from ledger", fields)
			}
			return fmt.Errorf("%w: order %d: %w", ErrCustodyInconsistent, orderID, uerr)
		}
		return fmt.Errorf("%w: commit: %w", ErrTransferFailed, err)
	}

	for _, mv := range moves {
		c.log.LogCustody(mv.step, map[string]interface{}{
			"op":       op,
			"order_id": orderID,
			"asset":    mv.asset,
			"from":     mv.from,
			"to":       mv.to,
			"amount":   mv.amount,
		})
	}
	return nil
}

func (c *custody) apply(ctx context.Context, s asset.Session, mv movement) error {
	if mv.spender != "" {
		return s.TransferFrom(ctx, mv.asset, mv.spender, mv.from, mv.to, mv.amount)
	}
	return s.Transfer(ctx, mv.asset, mv.from, mv.to, mv.amount)
}

func (c *custody) fail(op string) {
	if c.onFail != nil {
		c.onFail(op)
	}
}
