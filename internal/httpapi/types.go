package httpapi

import (
	"atomic-swap-go/asset"
	"atomic-swap-go/order"
)

type makeRequest struct {
	SellAsset             asset.Ref     `json:"sellAsset"`
	BuyAsset              asset.Ref     `json:"buyAsset"`
	MakerReceivingAddress asset.Address `json:"makerReceivingAddress"`
	DesiredTaker          asset.Address `json:"desiredTaker"`
	ExpirationTimestamp   int64         `json:"expirationTimestamp"`
}

type takeRequest struct {
	SellAsset             asset.Ref     `json:"sellAsset"`
	TakerReceivingAddress asset.Address `json:"takerReceivingAddress"`
}

type mintRequest struct {
	Asset  asset.ID      `json:"asset"`
	To     asset.Address `json:"to"`
	Amount asset.Amount  `json:"amount"`
}

// approveRequest 授权方为调用者本人。
type approveRequest struct {
	Asset   asset.ID      `json:"asset"`
	Spender asset.Address `json:"spender"`
	Amount  asset.Amount  `json:"amount"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// orderView 订单 + 可读状态名。
type orderView struct {
	order.Order
	StatusName string `json:"statusName"`
}

func viewOf(o order.Order) orderView {
	return orderView{Order: o, StatusName: o.Status.String()}
}
