package models

import (
	"fmt"
	"strings"
	"time"
)

// Contract 合约信息，按券商 contract_id 去重
type Contract struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ContractID  int64     `gorm:"column:contract_id;not null;uniqueIndex:uidx_contracts_contract_id;comment:券商合约ID" json:"contract_id"`
	SecType     string    `gorm:"column:sec_type;type:varchar(16);not null;default:''" json:"sec_type"`
	Symbol      string    `gorm:"column:symbol;type:varchar(16);not null;default:''" json:"symbol"`
	Expiry      string    `gorm:"column:expiry;type:varchar(16);not null;default:'';comment:最后交易日或合约月份" json:"expiry"`
	Strike      float64   `gorm:"column:strike;type:double;not null;default:0" json:"strike"`
	Right       string    `gorm:"column:right;type:varchar(16);not null;default:''" json:"right"`
	Multiplier  string    `gorm:"column:multiplier;type:varchar(16);not null;default:''" json:"multiplier"`
	Exchange    string    `gorm:"column:exchange;type:varchar(16);not null;default:''" json:"exchange"`
	Currency    string    `gorm:"column:currency;type:varchar(6);not null;default:''" json:"currency"`
	LocalSymbol string    `gorm:"column:local_symbol;type:varchar(16);not null;default:''" json:"local_symbol"`
	VtSymbol    string    `gorm:"column:vt_symbol;type:varchar(100);not null;default:''" json:"vt_symbol"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Contract) TableName() string {
	return "contracts"
}

// BuildVtSymbol 生成 vt_symbol，例如 AAPL-STK-USD-SMART
func (c *Contract) BuildVtSymbol() string {
	parts := []string{c.Symbol, c.SecType}
	if c.Expiry != "" {
		parts = append(parts, c.Expiry)
	}
	if c.Strike > 0 {
		parts = append(parts, fmt.Sprintf("%g", c.Strike), c.Right)
	}
	if c.Multiplier != "" {
		parts = append(parts, c.Multiplier)
	}
	parts = append(parts, c.Currency, c.Exchange)

	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "-")
}
