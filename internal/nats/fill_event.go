package nats

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"
	"github.com/tidwall/gjson"

	"github.com/utrading/utrading-trade-pnl/internal/gateway"
	"github.com/utrading/utrading-trade-pnl/internal/models"
	"github.com/utrading/utrading-trade-pnl/pkg/types"
)

// ContractSnapshot 回报中携带的合约信息
type ContractSnapshot struct {
	ContractID  int64
	Symbol      string
	SecType     string
	Exchange    string
	Currency    string
	LocalSymbol string
	Expiry      string
	Strike      float64
	Right       string
	Multiplier  string
}

// OrderSnapshot 回报中携带的订单信息
type OrderSnapshot struct {
	OrderID           int64
	OrderType         string
	Quantity          float64
	FilledQuantity    float64
	RemainingQuantity float64
	LimitPrice        float64
	StopPrice         float64
	TrailingPercent   float64
	PercentOffset     float64
	Tif               string
	Message           string
	ErrorCode         string
}

// FillEvent 券商适配器推送的成交回报
type FillEvent struct {
	OrderID      int64 // 券商永久订单号
	ClientID     int64
	AccountID    string
	ContractID   int64
	Direction    types.Direction
	MarketAction types.MarketAction
	Quantity     float64
	Price        float64
	AvgPrice     float64
	Commission   float64
	Pnl          float64
	TradeTime    time.Time
	Status       types.OrderStatus
	RefID        string

	Contract *ContractSnapshot
	Order    *OrderSnapshot
}

// DecodeFillEvent 解析成交回报
// 数值字段兼容字符串；market_action 缺失时由 action + market_position 推导，非法组合返回 ErrInvalidAction
func DecodeFillEvent(data []byte) (*FillEvent, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: malformed json", types.ErrInvalidFill)
	}
	root := gjson.ParseBytes(data)

	var (
		ev  FillEvent
		err error
	)
	if ev.OrderID, err = int64Field(root, "order_id"); err != nil {
		return nil, err
	}
	if ev.ClientID, err = int64Field(root, "client_id"); err != nil {
		return nil, err
	}
	if ev.ContractID, err = int64Field(root, "contract_id"); err != nil {
		return nil, err
	}
	if ev.Quantity, err = floatField(root, "quantity"); err != nil {
		return nil, err
	}
	if ev.Price, err = floatField(root, "price"); err != nil {
		return nil, err
	}
	if ev.AvgPrice, err = floatField(root, "avg_price"); err != nil {
		return nil, err
	}
	if ev.Commission, err = floatField(root, "commission"); err != nil {
		return nil, err
	}
	if ev.Pnl, err = floatField(root, "pnl"); err != nil {
		return nil, err
	}
	if ev.TradeTime, err = timeField(root, "trade_time"); err != nil {
		return nil, err
	}

	ev.AccountID = root.Get("account_id").String()
	ev.Status = types.ParseOrderStatus(root.Get("status").String())
	ev.RefID = root.Get("ref_id").String()
	if ev.RefID == "" {
		ev.RefID = uuid.NewString()
	}

	if s := root.Get("direction").String(); s != "" {
		d, ok := types.ParseDirection(strings.ToUpper(s))
		if !ok {
			return nil, fmt.Errorf("%w: direction %q", types.ErrInvalidFill, s)
		}
		ev.Direction = d
	}

	if ev.MarketAction, err = decodeMarketAction(root, ev.Direction); err != nil {
		return nil, err
	}

	if c := root.Get("contract"); c.IsObject() {
		if ev.Contract, err = decodeContract(c); err != nil {
			return nil, err
		}
		if ev.ContractID == 0 {
			ev.ContractID = ev.Contract.ContractID
		}
	}
	if o := root.Get("order"); o.IsObject() {
		if ev.Order, err = decodeOrder(o); err != nil {
			return nil, err
		}
	}

	if err = ev.Validate(); err != nil {
		return nil, err
	}
	return &ev, nil
}

// Validate 校验落库必需的字段
func (e *FillEvent) Validate() error {
	if e.OrderID <= 0 {
		return fmt.Errorf("%w: order_id must be positive", types.ErrInvalidFill)
	}
	if e.Quantity < 0 || e.AvgPrice < 0 {
		return fmt.Errorf("%w: negative quantity or price", types.ErrInvalidFill)
	}
	if e.Status == types.OrderStatusFilled {
		if e.ContractID <= 0 {
			return fmt.Errorf("%w: filled event without contract_id", types.ErrInvalidFill)
		}
		if e.TradeTime.IsZero() {
			return fmt.Errorf("%w: filled event without trade_time", types.ErrInvalidFill)
		}
	}
	return nil
}

// ToRecord 转换为持久化网关的写入单元
func (e *FillEvent) ToRecord() gateway.FillRecord {
	permID := e.OrderID
	order := &models.Order{
		PermID:       &permID,
		ClientID:     e.ClientID,
		AccountID:    e.AccountID,
		ContractID:   e.ContractID,
		Direction:    string(e.Direction),
		MarketAction: string(e.MarketAction),
		Quantity:     e.Quantity,
		AvgFillPrice: e.AvgPrice,
		Status:       string(e.Status),
		IsActive:     e.Status.IsActive(),
		RefID:        e.RefID,
	}
	if !e.TradeTime.IsZero() {
		t := e.TradeTime
		order.OrderTime = &t
	}
	if o := e.Order; o != nil {
		order.OrderID = o.OrderID
		order.OrderType = o.OrderType
		if o.Quantity > 0 {
			order.Quantity = o.Quantity
		}
		order.FilledQuantity = o.FilledQuantity
		order.RemainingQuantity = o.RemainingQuantity
		order.LimitPrice = o.LimitPrice
		order.StopPrice = o.StopPrice
		order.TrailingPercent = o.TrailingPercent
		order.PercentOffset = o.PercentOffset
		order.Tif = o.Tif
		order.Message = o.Message
		order.ErrorCode = o.ErrorCode
	}
	switch {
	case e.Status == types.OrderStatusFilled && order.FilledQuantity == 0:
		order.FilledQuantity = e.Quantity
	case e.Order == nil:
		// 没有订单快照时视为尚未成交
		order.RemainingQuantity = order.Quantity
	}

	rec := gateway.FillRecord{
		Order: order,
		Trade: &models.Trade{
			OrderID:      e.OrderID,
			ClientID:     e.ClientID,
			AccountID:    e.AccountID,
			ContractID:   e.ContractID,
			Direction:    string(e.Direction),
			MarketAction: string(e.MarketAction),
			Quantity:     e.Quantity,
			Price:        e.Price,
			AvgPrice:     e.AvgPrice,
			Commission:   e.Commission,
			Pnl:          e.Pnl,
			TradeTime:    e.TradeTime,
			Status:       string(e.Status),
		},
	}

	if c := e.Contract; c != nil {
		contract := &models.Contract{
			ContractID:  e.ContractID,
			SecType:     c.SecType,
			Symbol:      c.Symbol,
			Expiry:      c.Expiry,
			Strike:      c.Strike,
			Right:       c.Right,
			Multiplier:  c.Multiplier,
			Exchange:    c.Exchange,
			Currency:    c.Currency,
			LocalSymbol: c.LocalSymbol,
		}
		contract.VtSymbol = contract.BuildVtSymbol()
		rec.Contract = contract
	}
	return rec
}

func decodeMarketAction(root gjson.Result, direction types.Direction) (types.MarketAction, error) {
	if r := root.Get("market_action"); r.Exists() && r.Type != gjson.Null {
		return types.ParseMarketAction(r.String())
	}

	position := root.Get("market_position").String()
	if position == "" {
		return types.ActionNone, nil
	}

	action := direction
	if s := root.Get("action").String(); s != "" {
		d, ok := types.ParseDirection(strings.ToUpper(s))
		if !ok {
			return types.ActionNone, fmt.Errorf("%w: action %q", types.ErrInvalidAction, s)
		}
		action = d
	}
	return types.DeriveMarketAction(action, types.PositionState(strings.ToUpper(position)))
}

func decodeContract(r gjson.Result) (*ContractSnapshot, error) {
	id, err := int64Field(r, "contract_id")
	if err != nil {
		return nil, err
	}
	strike, err := floatField(r, "strike")
	if err != nil {
		return nil, err
	}
	return &ContractSnapshot{
		ContractID:  id,
		Symbol:      r.Get("symbol").String(),
		SecType:     r.Get("sec_type").String(),
		Exchange:    r.Get("exchange").String(),
		Currency:    r.Get("currency").String(),
		LocalSymbol: r.Get("local_symbol").String(),
		Expiry:      r.Get("expiry").String(),
		Strike:      strike,
		Right:       r.Get("right").String(),
		Multiplier:  cast.ToString(r.Get("multiplier").Value()),
	}, nil
}

func decodeOrder(r gjson.Result) (*OrderSnapshot, error) {
	var (
		o   OrderSnapshot
		err error
	)
	if o.OrderID, err = int64Field(r, "order_id"); err != nil {
		return nil, err
	}
	floats := []struct {
		name string
		dst  *float64
	}{
		{"quantity", &o.Quantity},
		{"filled_quantity", &o.FilledQuantity},
		{"remaining_quantity", &o.RemainingQuantity},
		{"limit_price", &o.LimitPrice},
		{"stop_price", &o.StopPrice},
		{"trailing_percent", &o.TrailingPercent},
		{"percent_offset", &o.PercentOffset},
	}
	for _, f := range floats {
		if *f.dst, err = floatField(r, f.name); err != nil {
			return nil, err
		}
	}
	o.OrderType = r.Get("order_type").String()
	o.Tif = r.Get("tif").String()
	o.Message = r.Get("message").String()
	o.ErrorCode = cast.ToString(r.Get("error_code").Value())
	return &o, nil
}

func int64Field(r gjson.Result, name string) (int64, error) {
	v := r.Get(name)
	if !v.Exists() || v.Type == gjson.Null {
		return 0, nil
	}
	n, err := cast.ToInt64E(v.Value())
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", types.ErrInvalidFill, name, err)
	}
	return n, nil
}

func floatField(r gjson.Result, name string) (float64, error) {
	v := r.Get(name)
	if !v.Exists() || v.Type == gjson.Null {
		return 0, nil
	}
	f, err := cast.ToFloat64E(v.Value())
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", types.ErrInvalidFill, name, err)
	}
	return f, nil
}

// timeField 支持 RFC3339 等字符串格式以及秒/毫秒时间戳，统一转为 UTC
func timeField(r gjson.Result, name string) (time.Time, error) {
	v := r.Get(name)
	switch v.Type {
	case gjson.Null:
		return time.Time{}, nil
	case gjson.Number:
		n := v.Int()
		if n > 1e12 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	case gjson.String:
		t, err := cast.ToTimeE(v.String())
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %s: %v", types.ErrInvalidFill, name, err)
		}
		return t.UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %s: unsupported type", types.ErrInvalidFill, name)
	}
}
