package pnl

import (
	"github.com/shopspring/decimal"

	"github.com/utrading/utrading-trade-pnl/pkg/logger"
	"github.com/utrading/utrading-trade-pnl/pkg/types"
)

// PriceTradeSet 计算一个候选集合的已实现盈亏和手续费
// 开仓数量与平仓数量必须严格相等，否则返回 nil（暂不可计价）
func PriceTradeSet(set []Fill, ids IDSource) TradeSet {
	if len(set) == 0 {
		return nil
	}

	var (
		entryNotional, exitNotional decimal.Decimal
		entryQty, exitQty           decimal.Decimal
		commission                  decimal.Decimal
	)
	for _, f := range set {
		qty := decimal.NewFromFloat(f.Quantity)
		notional := decimal.NewFromFloat(f.AvgPrice).Mul(qty)
		switch {
		case f.Action.IsEntry():
			entryNotional = entryNotional.Add(notional)
			entryQty = entryQty.Add(qty)
		case f.Action.IsExit():
			exitNotional = exitNotional.Add(notional)
			exitQty = exitQty.Add(qty)
		}
		commission = commission.Add(decimal.NewFromFloat(f.Commission))
	}

	logger.Debug().
		Str("entry_qty", entryQty.String()).
		Str("exit_qty", exitQty.String()).
		Int("fills", len(set)).
		Msg("pricing trade set")

	if entryQty.IsZero() || exitQty.IsZero() {
		logger.Debug().Msg("entry or exit quantity is zero, cannot price set")
		return nil
	}
	if !entryQty.Equal(exitQty) {
		logger.Debug().Msg("entry and exit quantities differ, cannot price set")
		return nil
	}

	// 方向以首笔成交为准
	var realized decimal.Decimal
	switch set[0].Action {
	case types.ActionEntryLong:
		realized = exitNotional.Sub(entryNotional)
	case types.ActionEntryShort:
		realized = entryNotional.Sub(exitNotional)
	}

	totalPnL := realized.Round(2).InexactFloat64()
	totalCommission := commission.Round(2).InexactFloat64()
	tradeID := ids.NextID()

	priced := make(TradeSet, len(set))
	for i, f := range set {
		f.TradeID = tradeID
		f.TotalPnL = totalPnL
		f.TotalCommission = totalCommission
		priced[i] = f
	}
	return priced
}
