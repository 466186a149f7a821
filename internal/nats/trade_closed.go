package nats

import (
	"encoding/json"
	"time"

	"github.com/utrading/utrading-trade-pnl/internal/pnl"
	"github.com/utrading/utrading-trade-pnl/pkg/types"
)

// ClosedFill 平仓集合中的一笔成交
type ClosedFill struct {
	RowID        int64              `json:"row_id"`
	OrderID      int64              `json:"order_id"`
	MarketAction types.MarketAction `json:"market_action"`
	Quantity     float64            `json:"quantity"`
	AvgPrice     float64            `json:"avg_price"`
	Commission   float64            `json:"commission"`
	TradeTime    time.Time          `json:"trade_time"`
}

// TradeClosedEvent 集合平仓消息
type TradeClosedEvent struct {
	TradeID         int64        `json:"trade_id"`
	ContractID      int64        `json:"contract_id"`
	TotalPnL        float64      `json:"total_pnl"`
	TotalCommission float64      `json:"total_commission"`
	Fills           []ClosedFill `json:"fills"`
	Timestamp       int64        `json:"timestamp"` // 毫秒
}

// NewTradeClosedEvent 从已计价的集合构造消息
func NewTradeClosedEvent(set pnl.TradeSet) *TradeClosedEvent {
	ev := &TradeClosedEvent{
		TradeID:         set.TradeID(),
		TotalPnL:        set.TotalPnL(),
		TotalCommission: set.TotalCommission(),
		Fills:           make([]ClosedFill, 0, len(set)),
		Timestamp:       time.Now().UnixMilli(),
	}
	if len(set) > 0 {
		ev.ContractID = set[0].ContractID
	}
	for _, f := range set {
		ev.Fills = append(ev.Fills, ClosedFill{
			RowID:        f.ID,
			OrderID:      f.OrderID,
			MarketAction: f.Action,
			Quantity:     f.Quantity,
			AvgPrice:     f.AvgPrice,
			Commission:   f.Commission,
			TradeTime:    f.TradeTime,
		})
	}
	return ev
}

// Marshal 序列化消息
func (e *TradeClosedEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}
