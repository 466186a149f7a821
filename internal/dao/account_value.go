package dao

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/utrading/utrading-trade-pnl/internal/models"
)

var accountValueKey = []clause.Column{{Name: "account_id"}, {Name: "tag"}}

type AccountValueDAO struct {
	db *gorm.DB
}

// NewAccountValueDAO 创建 AccountValueDAO
func NewAccountValueDAO(db *gorm.DB) *AccountValueDAO {
	return &AccountValueDAO{db: db}
}

// WithTx 绑定事务
func (d *AccountValueDAO) WithTx(tx *gorm.DB) *AccountValueDAO {
	return &AccountValueDAO{db: tx}
}

// CreateIfAbsent (account_id, tag) 不存在时插入，返回是否新建
func (d *AccountValueDAO) CreateIfAbsent(ctx context.Context, value *models.AccountValue) (bool, error) {
	result := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   accountValueKey,
		DoNothing: true,
	}).Create(value)
	return result.RowsAffected > 0, result.Error
}

// BatchCreateIfAbsent 批量插入，已存在的记录跳过
func (d *AccountValueDAO) BatchCreateIfAbsent(ctx context.Context, values []*models.AccountValue) error {
	if len(values) == 0 {
		return nil
	}
	return d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   accountValueKey,
		DoNothing: true,
	}).Create(values).Error
}

// Get 查询账户数值，不存在时返回 nil
func (d *AccountValueDAO) Get(ctx context.Context, accountID, tag string) (*models.AccountValue, error) {
	var value models.AccountValue
	err := d.db.WithContext(ctx).Where("account_id = ? AND tag = ?", accountID, tag).Take(&value).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}
