package models

import (
	"time"
)

// AccountValue 账户数值快照，按 (account_id, tag) 去重
type AccountValue struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	AccountID string    `gorm:"column:account_id;type:varchar(32);not null;uniqueIndex:uidx_account_values_account_tag" json:"account_id"`
	Tag       string    `gorm:"column:tag;type:varchar(64);not null;uniqueIndex:uidx_account_values_account_tag" json:"tag"`
	Value     string    `gorm:"column:value;type:varchar(32);not null;default:''" json:"value"`
	Currency  string    `gorm:"column:currency;type:varchar(6);not null;default:''" json:"currency"`
	ModelCode string    `gorm:"column:model_code;type:varchar(32);not null;default:''" json:"model_code"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (AccountValue) TableName() string {
	return "account_values"
}
