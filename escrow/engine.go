package escrow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"atomic-swap-go/asset"
	"atomic-swap-go/infrastructure/logger"
	"atomic-swap-go/infrastructure/monitor"
	"atomic-swap-go/notify"
	"atomic-swap-go/order"
)

const (
	opMake   = "make"
	opTake   = "take"
	opCancel = "cancel"
)

// Config 引擎配置
type Config struct {
	// CustodyAddress 引擎自身身份，托管资产记在该地址名下。
	CustodyAddress asset.Address
}

// Components 引擎依赖组件。Store/Ledger 必填，其余可选。
type Components struct {
	Store    order.Store
	Ledger   asset.Ledger
	Clock    Clock
	Notifier notify.Notifier
	Logger   *logger.Logger
	Monitor  *monitor.Monitor
	Alerts   Alerter
}

// Engine 原子互换托管引擎：挂单、成交、撤单三种操作，每个都是不可分割的单元。
//
// 同一订单上的操作通过 LockSet 串行化；状态 OPEN 是唯一可写入的状态，
// 赢得状态转换的操作是该订单生命周期内唯一的写入者。
type Engine struct {
	vault    asset.Address
	store    order.Store
	clock    Clock
	notifier notify.Notifier
	logger   *logger.Logger
	monitor  *monitor.Monitor
	sm       *order.StateMachine
	locks    *order.LockSet
	custody  *custody
}

// New 创建托管引擎
func New(cfg Config, c Components) (*Engine, error) {
	if cfg.CustodyAddress.IsZero() {
		return nil, errors.New("invalid config: custody address is required")
	}
	if c.Store == nil {
		return nil, errors.New("invalid components: order store is required")
	}
	if c.Ledger == nil {
		return nil, errors.New("invalid components: ledger is required")
	}
	if c.Clock == nil {
		c.Clock = SystemClock
	}
	if c.Notifier == nil {
		c.Notifier = notify.Nop{}
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	e := &Engine{
		vault:    cfg.CustodyAddress,
		store:    c.Store,
		clock:    c.Clock,
		notifier: c.Notifier,
		logger:   c.Logger,
		monitor:  c.Monitor,
		sm:       order.NewStateMachine(),
		locks:    order.NewLockSet(),
	}
	e.custody = &custody{
		ledger: c.Ledger,
		vault:  cfg.CustodyAddress,
		log:    c.Logger,
		alerts: c.Alerts,
	}
	if c.Monitor != nil {
		e.custody.onFail = c.Monitor.RecordTransferFailure
		e.custody.onDrift = c.Monitor.RecordCustodyInconsistency
	}
	return e, nil
}

// CustodyAddress 引擎托管地址，maker/taker 需要向其授权。
func (e *Engine) CustodyAddress() asset.Address {
	return e.vault
}

// Make 创建订单：把卖出资产从调用者划入托管，分配订单号并记录为 OPEN。
func (e *Engine) Make(ctx context.Context, caller asset.Address, req MakeRequest) (id uint64, err error) {
	start := time.Now()
	defer func() { e.observe(opMake, start, err) }()

	now := e.clock.Now().Unix()
	if err := e.validateMake(caller, req, now); err != nil {
		return 0, err
	}

	var (
		created order.Order
		unlock  func()
	)
	moves := []movement{{
		step:    "lock_sell_asset",
		asset:   req.SellAsset.Asset,
		spender: e.vault,
		from:    caller,
		to:      e.vault,
		amount:  req.SellAsset.Amount,
	}}
	err = e.custody.run(ctx, opMake, 0, moves, func(ctx context.Context) (func(context.Context) error, error) {
		next, err := e.store.NextID(ctx)
		if err != nil {
			return nil, fmt.Errorf("allocate order id: %w", err)
		}
		// 账本提交前持有新订单的锁，成交/撤单只能看到已生效的订单
		unlock, err = e.locks.Lock(ctx, next)
		if err != nil {
			return nil, err
		}
		created = order.Order{
			ID: next,
			Maker: order.Maker{
				SellAsset:             req.SellAsset,
				BuyAsset:              req.BuyAsset,
				MakerAddress:          caller,
				MakerReceivingAddress: req.MakerReceivingAddress,
				DesiredTaker:          req.DesiredTaker,
				ExpirationTimestamp:   req.ExpirationTimestamp,
			},
			Status:    order.StatusOpen,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := e.store.Insert(ctx, created); err != nil {
			return nil, err
		}
		return func(ctx context.Context) error { return e.store.Delete(ctx, next) }, nil
	})
	if unlock != nil {
		unlock()
	}
	if err != nil {
		return 0, err
	}

	e.logger.LogOrder("created", created.ID, map[string]interface{}{
		"maker":         caller,
		"sell_asset":    req.SellAsset.Asset,
		"sell_amount":   req.SellAsset.Amount,
		"buy_asset":     req.BuyAsset.Asset,
		"buy_amount":    req.BuyAsset.Amount,
		"desired_taker": req.DesiredTaker,
		"expiration":    req.ExpirationTimestamp,
	})
	e.publish(notify.OrderCreated(created, now))
	return created.ID, nil
}

// Take 成交：taker 向 maker 收款地址支付买入资产，同时托管的卖出资产释放给 taker 收款地址。
func (e *Engine) Take(ctx context.Context, caller asset.Address, id uint64, req TakeRequest) (settled order.Order, err error) {
	start := time.Now()
	defer func() { e.observe(opTake, start, err) }()

	unlock, err := e.locks.Lock(ctx, id)
	if err != nil {
		return order.Order{}, err
	}
	defer unlock()

	o, err := e.load(ctx, id)
	if err != nil {
		return order.Order{}, err
	}
	now := e.clock.Now().Unix()
	if err := e.validateTake(caller, o, req, now); err != nil {
		return o, err
	}
	next, err := e.sm.Transition(o, order.StatusCompleted)
	if err != nil {
		return o, fmt.Errorf("%w: %w", ErrOrderAlreadySettled, err)
	}
	next.Taker = order.Taker{
		SellAsset:             req.SellAsset,
		TakerAddress:          caller,
		TakerReceivingAddress: req.TakerReceivingAddress,
	}
	next.UpdatedAt = now

	moves := []movement{
		{
			step:    "pay_maker",
			asset:   req.SellAsset.Asset,
			spender: e.vault,
			from:    caller,
			to:      o.Maker.MakerReceivingAddress,
			amount:  req.SellAsset.Amount,
		},
		{
			step:   "release_to_taker",
			asset:  o.Maker.SellAsset.Asset,
			from:   e.vault,
			to:     req.TakerReceivingAddress,
			amount: o.Maker.SellAsset.Amount,
		},
	}
	if err := e.custody.run(ctx, opTake, id, moves, e.replace(o, next)); err != nil {
		return o, err
	}

	e.logger.LogOrder("settled", id, map[string]interface{}{
		"taker":           caller,
		"taker_receiving": req.TakerReceivingAddress,
		"paid_asset":      req.SellAsset.Asset,
		"paid_amount":     req.SellAsset.Amount,
	})
	e.publish(notify.OrderSettled(next, now))
	return next, nil
}

// Cancel 撤单：托管的卖出资产退回 maker 收款地址。过期后仍可撤单。
func (e *Engine) Cancel(ctx context.Context, caller asset.Address, id uint64) (cancelled order.Order, err error) {
	start := time.Now()
	defer func() { e.observe(opCancel, start, err) }()

	unlock, err := e.locks.Lock(ctx, id)
	if err != nil {
		return order.Order{}, err
	}
	defer unlock()

	o, err := e.load(ctx, id)
	if err != nil {
		return order.Order{}, err
	}
	if err := e.validateCancel(caller, o); err != nil {
		return o, err
	}
	next, err := e.sm.Transition(o, order.StatusCancelled)
	if err != nil {
		return o, fmt.Errorf("%w: %w", ErrOrderNotCancellable, err)
	}
	now := e.clock.Now().Unix()
	next.UpdatedAt = now

	moves := []movement{{
		step:   "refund_maker",
		asset:  o.Maker.SellAsset.Asset,
		from:   e.vault,
		to:     o.Maker.MakerReceivingAddress,
		amount: o.Maker.SellAsset.Amount,
	}}
	if err := e.custody.run(ctx, opCancel, id, moves, e.replace(o, next)); err != nil {
		return o, err
	}

	e.logger.LogOrder("cancelled", id, map[string]interface{}{
		"maker":   caller,
		"expired": o.Expired(now),
	})
	e.publish(notify.OrderCancelled(next, now))
	return next, nil
}

// Order 按订单号查询完整记录（含历史终态订单）。
func (e *Engine) Order(ctx context.Context, id uint64) (order.Order, error) {
	return e.load(ctx, id)
}

// Orders 按条件列出订单。
func (e *Engine) Orders(ctx context.Context, f order.Filter) ([]order.Order, error) {
	return e.store.List(ctx, f)
}

func (e *Engine) load(ctx context.Context, id uint64) (order.Order, error) {
	o, err := e.store.Get(ctx, id)
	if errors.Is(err, order.ErrNotFound) {
		return order.Order{}, fmt.Errorf("%w: %d", ErrOrderNotFound, id)
	}
	if err != nil {
		return order.Order{}, fmt.Errorf("load order %d: %w", id, err)
	}
	return o, nil
}

// replace 写入新记录，撤销时写回旧记录。
func (e *Engine) replace(prev, next order.Order) commitFunc {
	return func(ctx context.Context) (func(context.Context) error, error) {
		if err := e.store.Update(ctx, next); err != nil {
			return nil, err
		}
		return func(ctx context.Context) error { return e.store.Update(ctx, prev) }, nil
	}
}

func (e *Engine) publish(ev notify.Event) {
	e.notifier.Publish(ev)
	if e.monitor != nil {
		e.monitor.RecordEvent(string(ev.Type))
	}
}

func (e *Engine) observe(op string, start time.Time, err error) {
	if e.monitor != nil {
		e.monitor.RecordLatency(op, time.Since(start).Seconds())
	}
	if err != nil {
		kind := KindOf(err)
		if e.monitor != nil {
			e.monitor.RecordReject(op, string(kind))
		}
		e.logger.LogReject(op, err, map[string]interface{}{"kind": string(kind)})
		return
	}
	if e.monitor == nil {
		return
	}
	switch op {
	case opMake:
		e.monitor.RecordOrderCreated()
	case opTake:
		e.monitor.RecordOrderSettled()
	case opCancel:
		e.monitor.RecordOrderCancelled()
	}
}
