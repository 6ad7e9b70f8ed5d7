package escrow

import (
	"fmt"

	"atomic-swap-go/asset"
	"atomic-swap-go/order"
)

// MakeRequest 挂单参数，调用者即 maker。
type MakeRequest struct {
	SellAsset             asset.Ref     `json:"sellAsset"`
	BuyAsset              asset.Ref     `json:"buyAsset"`
	MakerReceivingAddress asset.Address `json:"makerReceivingAddress"`
	DesiredTaker          asset.Address `json:"desiredTaker"`
	ExpirationTimestamp   int64         `json:"expirationTimestamp"`
}

// TakeRequest 吃单参数，调用者即 taker。
type TakeRequest struct {
	SellAsset             asset.Ref     `json:"sellAsset"`
	TakerReceivingAddress asset.Address `json:"takerReceivingAddress"`
}

// custodyParty 托管地址不能作为任何一方出现：与自身之间的划转不移动资产，
// 托管余额会被记到不存在的义务上。
func custodyParty(err error) error {
	return fmt.Errorf("%w: custody address cannot be a party", err)
}

// validateMake 按固定顺序检查，第一个失败的条件决定返回的错误。
func (e *Engine) validateMake(caller asset.Address, req MakeRequest, now int64) error {
	switch {
	case req.SellAsset.Asset.IsZero():
		return ErrInvalidSellAsset
	case req.SellAsset.Amount == 0:
		return ErrInvalidSellAmount
	case req.BuyAsset.Amount == 0:
		return ErrInvalidBuyAmount
	case req.BuyAsset.Asset.IsZero():
		return ErrInvalidBuyAsset
	case req.MakerReceivingAddress.IsZero():
		return ErrInvalidMakerReceivingAddress
	case req.DesiredTaker.IsZero():
		return ErrInvalidDesiredTaker
	case req.ExpirationTimestamp <= now:
		return ErrInvalidExpiration
	case caller.IsZero():
		return ErrInvalidCaller
	case caller == e.vault:
		return custodyParty(ErrInvalidCaller)
	case req.MakerReceivingAddress == e.vault:
		return custodyParty(ErrInvalidMakerReceivingAddress)
	case req.DesiredTaker == e.vault:
		return custodyParty(ErrInvalidDesiredTaker)
	}
	return nil
}

// validateTake 授权与匹配检查先于状态与时间检查，全部先于任何资产移动。
func (e *Engine) validateTake(caller asset.Address, o order.Order, req TakeRequest, now int64) error {
	switch {
	case req.SellAsset.Asset.IsZero():
		return ErrInvalidTakerSellAsset
	case req.SellAsset.Amount == 0:
		return ErrInvalidTakerSellAmount
	case req.TakerReceivingAddress.IsZero():
		return ErrInvalidTakerReceivingAddress
	case req.TakerReceivingAddress == e.vault:
		return custodyParty(ErrInvalidTakerReceivingAddress)
	case caller == e.vault:
		return custodyParty(ErrUnauthorizedTaker)
	case caller != o.Maker.DesiredTaker:
		return ErrUnauthorizedTaker
	case req.SellAsset.Asset != o.Maker.BuyAsset.Asset:
		return ErrAssetMismatch
	case req.SellAsset.Amount != o.Maker.BuyAsset.Amount:
		return ErrAmountMismatch
	case !e.sm.CanSettle(o.Status):
		return ErrOrderAlreadySettled
	case o.Expired(now):
		return ErrOrderExpired
	}
	return nil
}

// validateCancel 不检查过期：过期未成交的订单仍持有托管资产，必须可以取回。
func (e *Engine) validateCancel(caller asset.Address, o order.Order) error {
	switch {
	case caller == e.vault:
		return custodyParty(ErrUnauthorizedCanceller)
	case caller != o.Maker.MakerAddress:
		return ErrUnauthorizedCanceller
	case !e.sm.CanCancel(o.Status):
		return ErrOrderNotCancellable
	}
	return nil
}
