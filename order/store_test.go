package order

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"atomic-swap-go/asset"
)

func sampleOrder(id uint64, maker string) Order {
	return Order{
		ID: id,
		Maker: Maker{
			MakerAddress: asset.Address(maker),
			DesiredTaker: "0xtaker",
		},
		Status: StatusOpen,
	}
}

func TestMemStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	for want := uint64(0); want < 3; want++ {
		id, err := s.NextID(ctx)
		if err != nil || id != want {
			t.Fatalf("NextID = %d, %v; want %d", id, err, want)
		}
		if err := s.Insert(ctx, sampleOrder(id, "0xmaker")); err != nil {
			t.Fatalf("insert %d: %v", id, err)
		}
	}
	if err := s.Insert(ctx, sampleOrder(1, "0xmaker")); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	o, err := s.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	o.Status = StatusCancelled
	if err := s.Update(ctx, o); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := s.Update(ctx, sampleOrder(9, "0xmaker")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	open := StatusOpen
	list, _ := s.List(ctx, Filter{Status: &open})
	if len(list) != 2 || list[0].ID != 0 || list[1].ID != 2 {
		t.Fatalf("unexpected open list %+v", list)
	}
	list, _ = s.List(ctx, Filter{Limit: 1})
	if len(list) != 1 || list[0].ID != 0 {
		t.Fatalf("unexpected limited list %+v", list)
	}

	if err := s.Delete(ctx, 2); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, 2); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	// 删除后 ID 不复用
	if id, _ := s.NextID(ctx); id != 3 {
		t.Fatalf("id reused: %d", id)
	}
}

func TestMemStoreInstancesAreIndependent(t *testing.T) {
	ctx := context.Background()
	a, b := NewMemStore(), NewMemStore()
	a.NextID(ctx)
	a.NextID(ctx)
	if id, _ := b.NextID(ctx); id != 0 {
		t.Fatalf("allocator shared between instances: %d", id)
	}
}

func TestCachedStore(t *testing.T) {
	ctx := context.Background()
	inner := NewMemStore()
	c, err := NewCachedStore(inner, 2)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	if err := c.Insert(ctx, sampleOrder(0, "0xmaker")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	o := sampleOrder(0, "0xmaker")
	o.Status = StatusCompleted
	if err := c.Update(ctx, o); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := c.Get(ctx, 0)
	if err != nil || got.Status != StatusCompleted {
		t.Fatalf("cached get = %+v, %v", got, err)
	}
	if err := c.Update(ctx, sampleOrder(7, "0xmaker")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := c.Delete(ctx, 0); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := c.Get(ctx, 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("stale cache entry after delete: %v", err)
	}
}

// readDuringDelete 在底层删除生效前执行一次读，模拟并发查询。
type readDuringDelete struct {
	Store
	read func()
}

func (s *readDuringDelete) Delete(ctx context.Context, id uint64) error {
	s.read()
	return s.Store.Delete(ctx, id)
}

func TestCachedStoreDeleteNotRecachedByConcurrentRead(t *testing.T) {
	ctx := context.Background()
	inner := &readDuringDelete{Store: NewMemStore()}
	c, err := NewCachedStore(inner, 4)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	if err := c.Insert(ctx, sampleOrder(0, "0xmaker")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	c.cache.Remove(0)
	inner.read = func() {
		if _, err := c.Get(ctx, 0); err != nil {
			t.Fatalf("read before delete: %v", err)
		}
	}
	if err := c.Delete(ctx, 0); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := c.Get(ctx, 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted order served from cache: %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("cache still holds %d entries", c.Len())
	}
}

func TestLockSetSerializesSameKey(t *testing.T) {
	ls := NewLockSet()
	ctx := context.Background()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := ls.Lock(ctx, 42)
			if err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Fatalf("critical section entered concurrently: %d", maxSeen)
	}
	if ls.Len() != 0 {
		t.Fatalf("lock entries leaked: %d", ls.Len())
	}
}

func TestLockSetContextCancel(t *testing.T) {
	ls := NewLockSet()
	unlock, err := ls.Lock(context.Background(), 1)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := ls.Lock(ctx, 1); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	// 其他订单不受影响
	other, err := ls.Lock(context.Background(), 2)
	if err != nil {
		t.Fatalf("lock other: %v", err)
	}
	other()
}
