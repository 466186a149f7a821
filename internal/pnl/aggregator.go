package pnl

import (
	"github.com/shopspring/decimal"

	"github.com/utrading/utrading-trade-pnl/pkg/types"
)

// TradeView 展示用的成交行，附带累计盈亏字段
type TradeView struct {
	Fill

	ClientID      int64             `json:"client_id"`
	AccountID     string            `json:"account_id"`
	Direction     types.Direction   `json:"direction"`
	Status        types.OrderStatus `json:"status"`
	Price         float64           `json:"price"`
	UnrealizedPnL float64           `json:"unrealized_pnl"`
	Symbol        string            `json:"symbol"`
	SecType       string            `json:"sec_type"`
	VtSymbol      string            `json:"vt_symbol"`

	TotalPnLPercent      float64 `json:"total_pnl_percent"`
	CumulativePnL        float64 `json:"cumulative_pnl"`
	CumulativeCommission float64 `json:"cumulative_commission"`
}

type groupKey struct {
	byTrade bool
	id      int64
}

func keyOf(v *TradeView) groupKey {
	if v.TradeID > 0 {
		return groupKey{byTrade: true, id: v.TradeID}
	}
	return groupKey{id: v.OrderID}
}

// CumulativeGroups 按 trade_id（缺省时按 order_id）分组并计算累计盈亏
// rows 需按时间升序；分组保持首次出现的顺序。单行分组原样返回。
func CumulativeGroups(rows []*TradeView) [][]*TradeView {
	index := make(map[groupKey]int)
	var groups [][]*TradeView
	for _, row := range rows {
		k := keyOf(row)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], row)
	}

	var cumPnL, cumCommission decimal.Decimal
	for _, group := range groups {
		if len(group) == 1 {
			continue
		}

		first := group[0]
		totalPnL := decimal.NewFromFloat(first.TotalPnL)
		cumPnL = cumPnL.Add(totalPnL)
		cumCommission = cumCommission.Add(decimal.NewFromFloat(first.TotalCommission))

		var entryNotional decimal.Decimal
		for _, row := range group {
			if row.Action.IsEntry() {
				entryNotional = entryNotional.Add(decimal.NewFromFloat(row.AvgPrice).Mul(decimal.NewFromFloat(row.Quantity)))
			}
		}

		var pct decimal.Decimal
		if !entryNotional.IsZero() {
			pct = totalPnL.Div(entryNotional).Mul(decimal.NewFromInt(100))
		}

		for _, row := range group {
			row.TotalPnLPercent = pct.Round(2).InexactFloat64()
			row.CumulativePnL = cumPnL.Round(2).InexactFloat64()
			row.CumulativeCommission = cumCommission.Round(2).InexactFloat64()
		}
	}
	return groups
}

// Cumulative 计算累计盈亏并返回扁平列表
func Cumulative(rows []*TradeView) []*TradeView {
	return Flatten(CumulativeGroups(rows))
}

// Flatten 将分组展开为扁平列表
func Flatten(groups [][]*TradeView) []*TradeView {
	var n int
	for _, g := range groups {
		n += len(g)
	}
	out := make([]*TradeView, 0, n)
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
