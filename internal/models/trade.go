package models

import (
	"time"

	"github.com/utrading/utrading-trade-pnl/internal/pnl"
	"github.com/utrading/utrading-trade-pnl/pkg/types"
)

// Trade 成交记录，一笔已成交订单对应一行
type Trade struct {
	ID              int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	TradeID         *int64    `gorm:"column:trade_id;index:idx_trades_trade_id;comment:交易集合ID，平仓后写入" json:"trade_id"`
	OrderID         int64     `gorm:"column:order_id;not null;uniqueIndex:uidx_trades_order_id;comment:券商永久订单号" json:"order_id"`
	ClientID        int64     `gorm:"column:client_id;not null;default:0" json:"client_id"`
	AccountID       string    `gorm:"column:account_id;type:varchar(32);not null;default:''" json:"account_id"`
	ContractID      int64     `gorm:"column:contract_id;not null;index:idx_trades_contract_time,priority:1" json:"contract_id"`
	Direction       string    `gorm:"column:direction;type:varchar(8);not null;default:''" json:"direction"`
	MarketAction    string    `gorm:"column:market_action;type:varchar(32);not null;default:'';comment:ENTRY_LONG/ENTRY_SHORT/EXIT_LONG/EXIT_SHORT" json:"market_action"`
	Quantity        float64   `gorm:"column:quantity;type:double;not null;default:0" json:"quantity"`
	Price           float64   `gorm:"column:price;type:double;not null;default:0" json:"price"`
	AvgPrice        float64   `gorm:"column:avg_price;type:double;not null;default:0" json:"avg_price"`
	TradeTime       time.Time `gorm:"column:trade_time;not null;index:idx_trades_contract_time,priority:2;comment:券商成交时间" json:"trade_time"`
	Commission      float64   `gorm:"column:commission;type:double;not null;default:0" json:"commission"`
	Pnl             float64   `gorm:"column:pnl;type:double;not null;default:0" json:"pnl"`
	ReleasedPnl     float64   `gorm:"column:released_pnl;type:double;not null;default:0" json:"released_pnl"`
	UnrealizedPnl   float64   `gorm:"column:unrealized_pnl;type:double;not null;default:0" json:"unrealized_pnl"`
	TotalPnl        *float64  `gorm:"column:total_pnl;type:double;comment:集合已实现盈亏" json:"total_pnl"`
	TotalCommission *float64  `gorm:"column:total_commission;type:double;comment:集合总手续费" json:"total_commission"`
	Status          string    `gorm:"column:status;type:varchar(24);not null;default:''" json:"status"`
	CreatedAt       time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Trade) TableName() string {
	return "trades"
}

// IsFilled 是否为可参与盈亏计算的成交
func (t *Trade) IsFilled() bool {
	return t.OrderID > 0 && types.OrderStatus(t.Status) == types.OrderStatusFilled
}

// ToFill 复制为引擎使用的成交值
func (t *Trade) ToFill() pnl.Fill {
	f := pnl.Fill{
		ID:         t.ID,
		OrderID:    t.OrderID,
		ContractID: t.ContractID,
		Action:     types.MarketAction(t.MarketAction),
		Quantity:   t.Quantity,
		AvgPrice:   t.AvgPrice,
		Commission: t.Commission,
		TradeTime:  t.TradeTime,
		CreatedAt:  t.CreatedAt,
	}
	if t.TradeID != nil {
		f.TradeID = *t.TradeID
	}
	if t.TotalPnl != nil {
		f.TotalPnL = *t.TotalPnl
	}
	if t.TotalCommission != nil {
		f.TotalCommission = *t.TotalCommission
	}
	return f
}

// TradeWithContract 成交记录关联合约信息（读路径使用）
type TradeWithContract struct {
	Trade
	Symbol   string `gorm:"column:symbol" json:"symbol"`
	SecType  string `gorm:"column:sec_type" json:"sec_type"`
	VtSymbol string `gorm:"column:vt_symbol" json:"vt_symbol"`
}

// ToView 转换为展示行
func (t *TradeWithContract) ToView() *pnl.TradeView {
	return &pnl.TradeView{
		Fill:          t.Trade.ToFill(),
		ClientID:      t.ClientID,
		AccountID:     t.AccountID,
		Direction:     types.Direction(t.Direction),
		Status:        types.OrderStatus(t.Status),
		Price:         t.Price,
		UnrealizedPnL: t.UnrealizedPnl,
		Symbol:        t.Symbol,
		SecType:       t.SecType,
		VtSymbol:      t.VtSymbol,
	}
}
