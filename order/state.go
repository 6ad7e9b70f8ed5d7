package order

import (
	"strings"

	"atomic-swap-go/asset"
)

// Status 订单生命周期状态。数值与链上观测一致：Cancelled 读回为 2。
type Status uint8

const (
	StatusOpen Status = iota
	StatusCompleted
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "OPEN"
	case StatusCompleted:
		return "COMPLETED"
	case StatusCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// ParseStatus 解析 String() 的输出，大小写不敏感。
func ParseStatus(s string) (Status, bool) {
	for _, st := range []Status{StatusOpen, StatusCompleted, StatusCancelled} {
		if strings.EqualFold(st.String(), s) {
			return st, true
		}
	}
	return 0, false
}

// Maker 挂单方提交的条款，创建后不可变。
type Maker struct {
	SellAsset             asset.Ref     `json:"sellAsset"`
	BuyAsset              asset.Ref     `json:"buyAsset"`
	MakerAddress          asset.Address `json:"makerAddress"`
	MakerReceivingAddress asset.Address `json:"makerReceivingAddress"`
	DesiredTaker          asset.Address `json:"desiredTaker"`
	ExpirationTimestamp   int64         `json:"expirationTimestamp"`
}

// Taker 成交后填充；挂单期间为零值。
type Taker struct {
	SellAsset             asset.Ref     `json:"sellAsset"`
	TakerAddress          asset.Address `json:"takerAddress"`
	TakerReceivingAddress asset.Address `json:"takerReceivingAddress"`
}

// Order 托管订单。ID 从 0 开始顺序分配，永不复用。
type Order struct {
	ID        uint64 `json:"orderId"`
	Maker     Maker  `json:"maker"`
	Taker     Taker  `json:"taker"`
	Status    Status `json:"status"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

// Expired 逻辑时间严格大于过期时间才算过期。
func (o Order) Expired(now int64) bool {
	return now > o.Maker.ExpirationTimestamp
}
