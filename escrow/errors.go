package escrow

import "errors"

// 创建订单
var (
	ErrInvalidSellAsset             = errors.New("sell asset should not be zero address")
	ErrInvalidSellAmount            = errors.New("sell amount should not be zero")
	ErrInvalidBuyAmount             = errors.New("buy amount should not be zero")
	ErrInvalidBuyAsset              = errors.New("buy asset should not be zero address")
	ErrInvalidMakerReceivingAddress = errors.New("maker receiving address should not be zero address")
	ErrInvalidDesiredTaker          = errors.New("desired taker should not be zero address")
	ErrInvalidExpiration            = errors.New("expiration should be later than creation time")
	ErrInvalidCaller                = errors.New("caller should not be zero address")
)

// 成交
var (
	ErrInvalidTakerSellAsset        = errors.New("taker sell asset should not be zero address")
	ErrInvalidTakerSellAmount       = errors.New("taker sell amount should not be zero")
	ErrInvalidTakerReceivingAddress = errors.New("taker receiving address should not be zero address")
	ErrUnauthorizedTaker            = errors.New("invalid taker")
	ErrAssetMismatch                = errors.New("invalid asset")
	ErrAmountMismatch               = errors.New("invalid asset amount")
	ErrOrderAlreadySettled          = errors.New("order cannot be settled")
	ErrOrderExpired                 = errors.New("order has expired")
)

// 撤单
var (
	ErrUnauthorizedCanceller = errors.New("only maker can cancel")
	ErrOrderNotCancellable   = errors.New("order cannot be cancelled")
)

var (
	ErrOrderNotFound = errors.New("order not found")
	// ErrTransferFailed 包装外部资产能力返回的原始错误，两者都可用 errors.Is 判断。
	ErrTransferFailed = errors.New("asset transfer failed")
	// ErrCustodyInconsistent 账本已提交但注册表无法回滚，需要人工介入。
	ErrCustodyInconsistent = errors.New("custody state inconsistent")
)

// Kind 错误类别，调用方据此决定如何处理。
type Kind string

const (
	KindValidation    Kind = "validation"
	KindAuthorization Kind = "authorization"
	KindMatching      Kind = "matching"
	KindTemporal      Kind = "temporal"
	KindState         Kind = "state"
	KindNotFound      Kind = "not_found"
	KindCustody       Kind = "custody"
	KindUnknown       Kind = "unknown"
)

var kinds = []struct {
	kind Kind
	errs []error
}{
	{KindValidation, []error{
		ErrInvalidSellAsset, ErrInvalidSellAmount, ErrInvalidBuyAmount, ErrInvalidBuyAsset,
		ErrInvalidMakerReceivingAddress, ErrInvalidDesiredTaker, ErrInvalidExpiration, ErrInvalidCaller,
		ErrInvalidTakerSellAsset, ErrInvalidTakerSellAmount, ErrInvalidTakerReceivingAddress,
	}},
	{KindAuthorization, []error{ErrUnauthorizedTaker, ErrUnauthorizedCanceller}},
	{KindMatching, []error{ErrAssetMismatch, ErrAmountMismatch}},
	{KindTemporal, []error{ErrOrderExpired}},
	{KindState, []error{ErrOrderAlreadySettled, ErrOrderNotCancellable}},
	{KindNotFound, []error{ErrOrderNotFound}},
	{KindCustody, []error{ErrTransferFailed, ErrCustodyInconsistent}},
}

// KindOf 对错误分类；无法识别的返回 KindUnknown。
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		for _, target := range k.errs {
			if errors.Is(err, target) {
				return k.kind
			}
		}
	}
	return KindUnknown
}
