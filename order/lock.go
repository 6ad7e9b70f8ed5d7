package order

import (
	"context"
	"sync"
)

// LockSet 按订单 ID 划分的互斥域。同一订单上的成交/撤单串行执行，
// 不同订单互不阻塞；条目在无人持有时回收。
type LockSet struct {
	mu    sync.Mutex
	locks map[uint64]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

func NewLockSet() *LockSet {
	return &LockSet{locks: make(map[uint64]*keyLock)}
}

// Lock 获取 id 对应的锁，返回释放函数。ctx 结束时放弃等待。
func (s *LockSet) Lock(ctx context.Context, id uint64) (func(), error) {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &keyLock{ch: make(chan struct{}, 1)}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
	case <-ctx.Done():
		s.unref(id, l)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.ch
			s.unref(id, l)
		})
	}, nil
}

func (s *LockSet) unref(id uint64, l *keyLock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, id)
	}
}

// Len 当前存活的锁条目数。
func (s *LockSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}
