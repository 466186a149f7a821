package dao

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/utrading/utrading-trade-pnl/internal/models"
)

type ContractDAO struct {
	db *gorm.DB
}

// NewContractDAO 创建 ContractDAO
func NewContractDAO(db *gorm.DB) *ContractDAO {
	return &ContractDAO{db: db}
}

// WithTx 绑定事务
func (d *ContractDAO) WithTx(tx *gorm.DB) *ContractDAO {
	return &ContractDAO{db: tx}
}

// CreateIfAbsent 合约不存在时插入，返回是否新建
func (d *ContractDAO) CreateIfAbsent(ctx context.Context, contract *models.Contract) (bool, error) {
	if contract.VtSymbol == "" {
		contract.VtSymbol = contract.BuildVtSymbol()
	}
	result := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "contract_id"}},
		DoNothing: true,
	}).Create(contract)
	return result.RowsAffected > 0, result.Error
}

// BatchCreateIfAbsent 批量插入，已存在的合约跳过
func (d *ContractDAO) BatchCreateIfAbsent(ctx context.Context, contracts []*models.Contract) error {
	if len(contracts) == 0 {
		return nil
	}
	for _, c := range contracts {
		if c.VtSymbol == "" {
			c.VtSymbol = c.BuildVtSymbol()
		}
	}
	return d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "contract_id"}},
		DoNothing: true,
	}).Create(contracts).Error
}

// ListContractIDs 返回所有已保存的合约ID（用于预热缓存）
func (d *ContractDAO) ListContractIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := d.db.WithContext(ctx).Model(&models.Contract{}).Pluck("contract_id", &ids).Error
	return ids, err
}

// GetByContractID 根据合约ID获取，不存在时返回 nil
func (d *ContractDAO) GetByContractID(ctx context.Context, contractID int64) (*models.Contract, error) {
	var contract models.Contract
	err := d.db.WithContext(ctx).Where("contract_id = ?", contractID).Take(&contract).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &contract, nil
}
