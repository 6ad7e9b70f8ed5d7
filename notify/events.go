package notify

import (
	"encoding/json"

	"atomic-swap-go/order"
)

// Type 通知类型。
type Type string

const (
	TypeOrderCreated   Type = "OrderCreated"
	TypeOrderSettled   Type = "OrderSettled"
	TypeOrderCancelled Type = "OrderCancelled"
)

// Event 对外发布的订单通知，尽力投递，不属于正确性契约。
type Event struct {
	Type      Type         `json:"type"`
	OrderID   uint64       `json:"orderId"`
	Timestamp int64        `json:"timestamp"`
	Maker     *order.Maker `json:"maker,omitempty"`
	Taker     *order.Taker `json:"taker,omitempty"`
}

func OrderCreated(o order.Order, ts int64) Event {
	m := o.Maker
	return Event{Type: TypeOrderCreated, OrderID: o.ID, Timestamp: ts, Maker: &m}
}

func OrderSettled(o order.Order, ts int64) Event {
	t := o.Taker
	return Event{Type: TypeOrderSettled, OrderID: o.ID, Timestamp: ts, Taker: &t}
}

func OrderCancelled(o order.Order, ts int64) Event {
	return Event{Type: TypeOrderCancelled, OrderID: o.ID, Timestamp: ts}
}

func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Notifier 通知出口。实现不得阻塞调用方。
type Notifier interface {
	Publish(Event)
}

// Nop 丢弃所有通知。
type Nop struct{}

func (Nop) Publish(Event) {}

// Multi 依次转发给多个出口。
type Multi []Notifier

func (m Multi) Publish(e Event) {
	for _, n := range m {
		if n != nil {
			n.Publish(e)
		}
	}
}
