package order

import (
	"context"
	"errors"
	"sort"
	"sync"

	"atomic-swap-go/asset"
)

var (
	ErrNotFound = errors.New("order not found")
	ErrExists   = errors.New("order already exists")
)

// Store 订单注册表：按 ID 存取订单并分配单调递增的 ID。
type Store interface {
	NextID(ctx context.Context) (uint64, error)
	Insert(ctx context.Context, o Order) error
	Update(ctx context.Context, o Order) error
	Delete(ctx context.Context, id uint64) error
	Get(ctx context.Context, id uint64) (Order, error)
	List(ctx context.Context, f Filter) ([]Order, error)
}

// Filter 历史查询条件，零值字段不参与过滤。
type Filter struct {
	Status *Status
	Maker  asset.Address
	Taker  asset.Address
	Limit  int
}

// Match 判断订单是否满足过滤条件。
func (f Filter) Match(o Order) bool {
	if f.Status != nil && o.Status != *f.Status {
		return false
	}
	if f.Maker != "" && o.Maker.MakerAddress != f.Maker {
		return false
	}
	if f.Taker != "" && o.Maker.DesiredTaker != f.Taker && o.Taker.TakerAddress != f.Taker {
		return false
	}
	return true
}

// MemStore 内存注册表，实例间互不共享状态。
type MemStore struct {
	mu     sync.RWMutex
	orders map[uint64]Order
	nextID uint64
}

func NewMemStore() *MemStore {
	return &MemStore{orders: make(map[uint64]Order)}
}

// NextID 分配下一个 ID；即使订单最终未写入也不会复用。
func (m *MemStore) NextID(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	return id, nil
}

func (m *MemStore) Insert(ctx context.Context, o Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.ID]; ok {
		return ErrExists
	}
	m.orders[o.ID] = o
	return nil
}

func (m *MemStore) Update(ctx context.Context, o Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.ID]; !ok {
		return ErrNotFound
	}
	m.orders[o.ID] = o
	return nil
}

// Delete 仅用于撤回尚未生效的插入。
func (m *MemStore) Delete(ctx context.Context, id uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[id]; !ok {
		return ErrNotFound
	}
	delete(m.orders, id)
	return nil
}

func (m *MemStore) Get(ctx context.Context, id uint64) (Order, error) {
	if err := ctx.Err(); err != nil {
		return Order{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o, nil
}

// List 按 ID 升序返回满足条件的订单。
func (m *MemStore) List(ctx context.Context, f Filter) ([]Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	out := make([]Order, 0, len(m.orders))
	for _, o := range m.orders {
		if f.Match(o) {
			out = append(out, o)
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}
