package asset

import "strings"

// ZeroAddress 空地址哨兵，与空字符串等价。
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// Address 身份标识，不透明且可比较。
type Address string

// IsZero 判断是否为空身份。
func (a Address) IsZero() bool {
	return isNull(string(a))
}

func (a Address) String() string { return string(a) }

// ID 同质化资产类型标识。
type ID string

// IsZero 判断是否为空资产。
func (id ID) IsZero() bool {
	return isNull(string(id))
}

func (id ID) String() string { return string(id) }

// Amount 资产数量，始终为无符号整数。
type Amount = uint64

// Ref 资产引用：资产类型 + 数量。
type Ref struct {
	Asset  ID     `json:"asset" yaml:"asset"`
	Amount Amount `json:"amount" yaml:"amount"`
}

func isNull(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.EqualFold(s, ZeroAddress)
}
