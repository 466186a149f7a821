package dao

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/utrading/utrading-trade-pnl/internal/models"
)

// orderConflictColumns 并发插入同一 perm_id 时转为更新的列
var orderConflictColumns = []string{
	"order_id", "client_id", "account_id", "contract_id", "direction",
	"order_type", "quantity", "filled_quantity", "remaining_quantity",
	"avg_fill_price", "stop_price", "limit_price", "trailing_percent",
	"percent_offset", "tif", "status", "is_active", "order_time",
	"message", "error_code", "updated_at",
}

type OrderDAO struct {
	db *gorm.DB
}

// NewOrderDAO 创建 OrderDAO
func NewOrderDAO(db *gorm.DB) *OrderDAO {
	return &OrderDAO{db: db}
}

// WithTx 绑定事务
func (d *OrderDAO) WithTx(tx *gorm.DB) *OrderDAO {
	return &OrderDAO{db: tx}
}

// FindForUpdate 按 perm_id 或 order_id 加锁查找订单，不存在时返回 nil
func (d *OrderDAO) FindForUpdate(ctx context.Context, permID, orderID int64) (*models.Order, error) {
	var order models.Order
	err := d.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("(perm_id > 0 AND perm_id = ?) OR (order_id > 0 AND order_id = ?)", permID, orderID).
		Order("id ASC").
		Take(&order).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// Create 插入订单；perm_id 冲突时按 orderConflictColumns 更新
func (d *OrderDAO) Create(ctx context.Context, order *models.Order) error {
	return d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "perm_id"}},
		DoUpdates: clause.AssignmentColumns(orderConflictColumns),
	}).Create(order).Error
}

// Save 按主键保存合并后的订单
func (d *OrderDAO) Save(ctx context.Context, order *models.Order) error {
	return d.db.WithContext(ctx).Save(order).Error
}

// GetByPermID 根据 perm_id 获取订单，不存在时返回 nil
func (d *OrderDAO) GetByPermID(ctx context.Context, permID int64) (*models.Order, error) {
	var order models.Order
	err := d.db.WithContext(ctx).Where("perm_id = ?", permID).Take(&order).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}
