package models

import (
	"time"
)

// Order 订单当前状态，与盈亏计算无关
type Order struct {
	ID                int64      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	OrderID           int64      `gorm:"column:order_id;not null;default:0;index:idx_orders_order_id" json:"order_id"`
	PermID            *int64     `gorm:"column:perm_id;uniqueIndex:uidx_orders_perm_id;comment:券商永久订单号" json:"perm_id"`
	ClientID          int64      `gorm:"column:client_id;not null;default:0" json:"client_id"`
	AccountID         string     `gorm:"column:account_id;type:varchar(32);not null;default:''" json:"account_id"`
	ContractID        int64      `gorm:"column:contract_id;not null;default:0;index:idx_orders_contract_id" json:"contract_id"`
	Direction         string     `gorm:"column:direction;type:varchar(8);not null;default:''" json:"direction"`
	MarketAction      string     `gorm:"column:market_action;type:varchar(32);not null;default:''" json:"market_action"`
	OrderType         string     `gorm:"column:order_type;type:varchar(16);not null;default:''" json:"order_type"`
	Quantity          float64    `gorm:"column:quantity;type:double;not null;default:0" json:"quantity"`
	FilledQuantity    float64    `gorm:"column:filled_quantity;type:double;not null;default:0" json:"filled_quantity"`
	RemainingQuantity float64    `gorm:"column:remaining_quantity;type:double;not null;default:0" json:"remaining_quantity"`
	AvgFillPrice      float64    `gorm:"column:avg_fill_price;type:double;not null;default:0" json:"avg_fill_price"`
	StopPrice         float64    `gorm:"column:stop_price;type:double;not null;default:0" json:"stop_price"`
	LimitPrice        float64    `gorm:"column:limit_price;type:double;not null;default:0" json:"limit_price"`
	TrailingPercent   float64    `gorm:"column:trailing_percent;type:double;not null;default:0" json:"trailing_percent"`
	PercentOffset     float64    `gorm:"column:percent_offset;type:double;not null;default:0" json:"percent_offset"`
	Tif               string     `gorm:"column:tif;type:varchar(10);not null;default:'DAY';comment:Time in Force" json:"tif"`
	Status            string     `gorm:"column:status;type:varchar(24);not null;default:'Unknown'" json:"status"`
	IsActive          bool       `gorm:"column:is_active;not null;default:false" json:"is_active"`
	OrderTime         *time.Time `gorm:"column:order_time" json:"order_time"`
	RefID             string     `gorm:"column:ref_id;type:varchar(36);not null;default:''" json:"ref_id"`
	Message           string     `gorm:"column:message;type:varchar(1024);not null;default:''" json:"message"`
	ErrorCode         string     `gorm:"column:error_code;type:varchar(16);not null;default:''" json:"error_code"`
	CreatedAt         time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

// HasKey 是否带有可用于匹配的订单号
func (o *Order) HasKey() bool {
	return (o.PermID != nil && *o.PermID > 0) || o.OrderID > 0
}

// MergeFrom 将 src 合并到当前记录
// 字段逐个列出，新增字段需要在这里显式加入；ID、PermID 与创建时间不参与合并
// 携带状态的更新是券商的完整进度快照，成交进度字段即使为 0 也覆盖，其余字段只合并非零值
func (o *Order) MergeFrom(src *Order) {
	if src.OrderID > 0 {
		o.OrderID = src.OrderID
	}
	if src.ClientID != 0 {
		o.ClientID = src.ClientID
	}
	if src.AccountID != "" {
		o.AccountID = src.AccountID
	}
	if src.ContractID != 0 {
		o.ContractID = src.ContractID
	}
	if src.Direction != "" {
		o.Direction = src.Direction
	}
	if src.MarketAction != "" {
		o.MarketAction = src.MarketAction
	}
	if src.OrderType != "" {
		o.OrderType = src.OrderType
	}
	if src.Quantity != 0 {
		o.Quantity = src.Quantity
	}
	if src.Status != "" {
		o.FilledQuantity = src.FilledQuantity
		o.RemainingQuantity = src.RemainingQuantity
		o.AvgFillPrice = src.AvgFillPrice
	}
	if src.StopPrice != 0 {
		o.StopPrice = src.StopPrice
	}
	if src.LimitPrice != 0 {
		o.LimitPrice = src.LimitPrice
	}
	if src.TrailingPercent != 0 {
		o.TrailingPercent = src.TrailingPercent
	}
	if src.PercentOffset != 0 {
		o.PercentOffset = src.PercentOffset
	}
	if src.Tif != "" {
		o.Tif = src.Tif
	}
	if src.Status != "" {
		o.Status = src.Status
		o.IsActive = src.IsActive
	}
	if src.OrderTime != nil {
		o.OrderTime = src.OrderTime
	}
	if src.RefID != "" {
		o.RefID = src.RefID
	}
	if src.Message != "" {
		o.Message = src.Message
	}
	if src.ErrorCode != "" {
		o.ErrorCode = src.ErrorCode
	}
}
