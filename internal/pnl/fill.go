package pnl

import (
	"sort"
	"time"

	"github.com/utrading/utrading-trade-pnl/pkg/types"
)

// Fill 引擎内部使用的成交副本
// 由网关在行锁内读取后复制，引擎只会返回新的值，不会回写共享内存
type Fill struct {
	ID              int64              `json:"id"`
	TradeID         int64              `json:"trade_id"`
	OrderID         int64              `json:"order_id"`
	ContractID      int64              `json:"contract_id"`
	Action          types.MarketAction `json:"market_action"`
	Quantity        float64            `json:"quantity"`
	AvgPrice        float64            `json:"avg_price"`
	Commission      float64            `json:"commission"`
	TradeTime       time.Time          `json:"trade_time"`
	CreatedAt       time.Time          `json:"created_at"`
	TotalPnL        float64            `json:"total_pnl"`
	TotalCommission float64            `json:"total_commission"`
}

// TradeSet 一组开仓+平仓成交，已平仓的集合共享 trade_id
type TradeSet []Fill

// TradeID 返回集合的 trade_id
func (s TradeSet) TradeID() int64 {
	if len(s) == 0 {
		return 0
	}
	return s[0].TradeID
}

// TotalPnL 返回集合的已实现盈亏
func (s TradeSet) TotalPnL() float64 {
	if len(s) == 0 {
		return 0
	}
	return s[0].TotalPnL
}

// TotalCommission 返回集合的总手续费
func (s TradeSet) TotalCommission() float64 {
	if len(s) == 0 {
		return 0
	}
	return s[0].TotalCommission
}

// SortFills 按 (trade_time, created_at, id) 升序排序，返回副本
func SortFills(fills []Fill) []Fill {
	sorted := make([]Fill, len(fills))
	copy(sorted, fills)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.TradeTime.Equal(b.TradeTime) {
			return a.TradeTime.Before(b.TradeTime)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return sorted
}

// Outcome 一次平仓计算的结果类型
type Outcome string

const (
	OutcomeClosed        Outcome = "closed"         // 集合已平仓并写回
	OutcomeUncomputable  Outcome = "uncomputable"   // 数量不平衡或缺一侧，等待后续成交
	OutcomeStale         Outcome = "stale"          // 窗口最后一行不是触发行
	OutcomeNotClosing    Outcome = "not_closing"    // 触发行不是平仓动作
	OutcomeAlreadyPriced Outcome = "already_priced" // 触发行已被其他写入者计价
)
