package notify

import "sync"

// Publisher 一个轻量事件分发器，订阅者来不及消费时直接丢弃。
type Publisher struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
	buf  int
}

func NewPublisher(buffer int) *Publisher {
	if buffer <= 0 {
		buffer = 16
	}
	return &Publisher{subs: make(map[int]chan Event), buf: buffer}
}

// Subscribe 返回事件通道与取消函数；取消后通道被关闭。
func (p *Publisher) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, p.buf)
	p.mu.Lock()
	id := p.next
	p.next++
	p.subs[id] = ch
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
			close(ch)
		})
	}
}

func (p *Publisher) Publish(e Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, ch := range p.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribers 当前订阅者数量。
func (p *Publisher) Subscribers() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subs)
}
