package pnl

import (
	"github.com/utrading/utrading-trade-pnl/pkg/logger"
)

// MatchTradeSets 将同一合约的成交序列切分为交易集合并计价
//
// 状态机（t 为当前成交，pt 为前一笔）：
//  1. t 无动作：丢弃当前集合
//  2. pt 无动作：以 t 开启新集合
//  3. t 为开仓且 pt 为平仓：lastSetOnly=false 时结算当前集合，然后以 t 开启新集合
//  4. 其他：当前集合同时包含多空动作时先清空，再追加 t
//
// 循环结束后剩余的非空集合总会被结算。无法计价的集合不会出现在结果中。
func MatchTradeSets(fills []Fill, lastSetOnly bool, ids IDSource) []TradeSet {
	if len(fills) < 2 {
		return nil
	}

	sorted := SortFills(fills)
	var sets []TradeSet

	current := []Fill{sorted[0]}
	for i := 1; i < len(sorted); i++ {
		t, pt := sorted[i], sorted[i-1]

		switch {
		case t.Action.IsNone():
			current = nil
		case pt.Action.IsNone():
			current = []Fill{t}
		case t.Action.IsEntry() && pt.Action.IsExit():
			if !lastSetOnly {
				sets = appendPriced(sets, current, ids)
			}
			current = []Fill{t}
		default:
			if mixedDirection(current) {
				current = nil
			}
			current = append(current, t)
		}
	}

	if len(current) > 0 {
		sets = appendPriced(sets, current, ids)
	}

	if len(sets) == 0 {
		logger.Debug().Int("fills", len(fills)).Msg("no trade sets to close")
	}
	return sets
}

// PriceClosingSet 以某一笔平仓成交为触发点计算最后一个集合
// window 为该合约最近的若干笔成交，触发行必须是排序后的最后一行
func PriceClosingSet(window []Fill, closingRowID int64, ids IDSource) (TradeSet, Outcome) {
	if len(window) < 2 {
		return nil, OutcomeUncomputable
	}

	sorted := SortFills(window)
	last := sorted[len(sorted)-1]

	if last.ID != closingRowID {
		logger.Debug().
			Int64("expected", closingRowID).
			Int64("actual", last.ID).
			Msg("closing trade is not the latest row, skip")
		return nil, OutcomeStale
	}
	if last.Action.IsNone() || last.Action.IsEntry() {
		logger.Debug().
			Int64("row_id", last.ID).
			Str("action", string(last.Action)).
			Msg("trade is not an exit, skip")
		return nil, OutcomeNotClosing
	}

	sets := MatchTradeSets(sorted, true, ids)
	if len(sets) == 0 {
		return nil, OutcomeUncomputable
	}
	return sets[0], OutcomeClosed
}

func appendPriced(sets []TradeSet, set []Fill, ids IDSource) []TradeSet {
	priced := PriceTradeSet(set, ids)
	if len(priced) == 0 {
		return sets
	}
	return append(sets, priced)
}

// mixedDirection 集合同时包含 LONG 与 SHORT 动作
func mixedDirection(set []Fill) bool {
	var long, short bool
	for _, f := range set {
		if f.Action.IsLong() {
			long = true
		}
		if f.Action.IsShort() {
			short = true
		}
	}
	return long && short
}
