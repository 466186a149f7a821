package types

// Direction 下单方向
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// ParseDirection 解析方向，兼容 IB 的 BOT/SLD
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "BUY", "BOT", "buy":
		return DirectionBuy, true
	case "SELL", "SLD", "sell":
		return DirectionSell, true
	default:
		return "", false
	}
}

// OrderStatus 订单生命周期状态
type OrderStatus string

const (
	OrderStatusUnknown       OrderStatus = "Unknown"
	OrderStatusPendingSubmit OrderStatus = "PendingSubmit"
	OrderStatusPendingCancel OrderStatus = "PendingCancel"
	OrderStatusPreSubmitted  OrderStatus = "PreSubmitted"
	OrderStatusSubmitted     OrderStatus = "Submitted"
	OrderStatusApiPending    OrderStatus = "ApiPending"
	OrderStatusApiCancelled  OrderStatus = "ApiCancelled"
	OrderStatusCancelled     OrderStatus = "Cancelled"
	OrderStatusFilled        OrderStatus = "Filled"
	OrderStatusInactive      OrderStatus = "Inactive"
)

// ParseOrderStatus 解析订单状态，无法识别时返回 Unknown
func ParseOrderStatus(s string) OrderStatus {
	switch st := OrderStatus(s); st {
	case OrderStatusPendingSubmit, OrderStatusPendingCancel, OrderStatusPreSubmitted,
		OrderStatusSubmitted, OrderStatusApiPending, OrderStatusApiCancelled,
		OrderStatusCancelled, OrderStatusFilled, OrderStatusInactive:
		return st
	default:
		return OrderStatusUnknown
	}
}

// IsDone 是否为终止状态
func (s OrderStatus) IsDone() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusApiCancelled:
		return true
	}
	return false
}

// IsActive 是否为活跃状态
func (s OrderStatus) IsActive() bool {
	switch s {
	case OrderStatusPendingSubmit, OrderStatusApiPending, OrderStatusPreSubmitted, OrderStatusSubmitted:
		return true
	}
	return false
}

// OrderType 订单类型（IB 原始值）
type OrderType string

const (
	OrderTypeMarket            OrderType = "MKT"
	OrderTypeLimit             OrderType = "LMT"
	OrderTypeStop              OrderType = "STP"
	OrderTypeStopLimit         OrderType = "STP LMT"
	OrderTypeTrailingStop      OrderType = "TRAIL"
	OrderTypeTrailingStopLimit OrderType = "TRAIL LIMIT"
)
