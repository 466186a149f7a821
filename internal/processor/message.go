package processor

import (
	"github.com/utrading/utrading-trade-pnl/internal/models"
	"github.com/utrading/utrading-trade-pnl/internal/nats"
)

// Message 消息接口
type Message interface {
	Type() string
}

// FillMessage 成交回报消息
type FillMessage struct {
	Event *nats.FillEvent
}

func (m FillMessage) Type() string { return "fill" }

// AccountValueMessage 账户数值消息
type AccountValueMessage struct {
	Value *models.AccountValue
}

func (m AccountValueMessage) Type() string { return "account_value" }
