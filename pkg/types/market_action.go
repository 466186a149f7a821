package types

import (
	"fmt"
	"strings"
)

// MarketAction 成交在仓位生命周期中的角色，空字符串表示未知
type MarketAction string

const (
	ActionNone       MarketAction = ""
	ActionEntryLong  MarketAction = "ENTRY_LONG"
	ActionEntryShort MarketAction = "ENTRY_SHORT"
	ActionExitLong   MarketAction = "EXIT_LONG"
	ActionExitShort  MarketAction = "EXIT_SHORT"
)

// PositionState 触发信号携带的仓位状态
type PositionState string

const (
	PositionLong  PositionState = "LONG"
	PositionShort PositionState = "SHORT"
	PositionFlat  PositionState = "FLAT"
)

func (a MarketAction) IsNone() bool  { return a == ActionNone }
func (a MarketAction) IsEntry() bool { return strings.HasPrefix(string(a), "ENTRY") }
func (a MarketAction) IsExit() bool  { return strings.HasPrefix(string(a), "EXIT") }
func (a MarketAction) IsLong() bool  { return strings.Contains(string(a), "LONG") }
func (a MarketAction) IsShort() bool { return strings.Contains(string(a), "SHORT") }

// Valid 是否为四种已知动作之一
func (a MarketAction) Valid() bool {
	switch a {
	case ActionEntryLong, ActionEntryShort, ActionExitLong, ActionExitShort:
		return true
	}
	return false
}

// ParseMarketAction 解析动作字符串
// 空字符串视为缺失；其他无法识别的值返回 ErrInvalidAction
func ParseMarketAction(s string) (MarketAction, error) {
	a := MarketAction(strings.ToUpper(strings.TrimSpace(s)))
	if a == ActionNone || a.Valid() {
		return a, nil
	}
	return ActionNone, fmt.Errorf("%w: market action %q", ErrInvalidAction, s)
}

// DeriveMarketAction 根据触发动作和仓位状态推导 market action
//
//	BUY  + LONG  -> ENTRY_LONG
//	SELL + SHORT -> ENTRY_SHORT
//	SELL + FLAT  -> EXIT_LONG
//	BUY  + FLAT  -> EXIT_SHORT
//
// 其余组合一律拒绝
func DeriveMarketAction(action Direction, position PositionState) (MarketAction, error) {
	switch {
	case action == DirectionBuy && position == PositionLong:
		return ActionEntryLong, nil
	case action == DirectionSell && position == PositionShort:
		return ActionEntryShort, nil
	case action == DirectionSell && position == PositionFlat:
		return ActionExitLong, nil
	case action == DirectionBuy && position == PositionFlat:
		return ActionExitShort, nil
	}
	return ActionNone, fmt.Errorf("%w: action=%s position=%s", ErrInvalidAction, action, position)
}
