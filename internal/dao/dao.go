package dao

import (
	"errors"

	"gorm.io/gorm"
)

// DAO 汇总所有数据访问对象，main 中构造一次后注入
type DAO struct {
	Trade        *TradeDAO
	Order        *OrderDAO
	Contract     *ContractDAO
	AccountValue *AccountValueDAO
}

// New 创建所有 DAO
func New(db *gorm.DB) *DAO {
	return &DAO{
		Trade:        NewTradeDAO(db),
		Order:        NewOrderDAO(db),
		Contract:     NewContractDAO(db),
		AccountValue: NewAccountValueDAO(db),
	}
}

// WithTx 返回绑定到事务的 DAO 集合
func (d *DAO) WithTx(tx *gorm.DB) *DAO {
	return New(tx)
}

func notFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
