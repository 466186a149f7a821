package dao

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/plugin/dbresolver"

	"github.com/utrading/utrading-trade-pnl/internal/models"
	"github.com/utrading/utrading-trade-pnl/pkg/types"
)

// tradeUpdateColumns 重复推送成交时允许覆盖的列
// contract/order 关联、total_pnl、total_commission、market_action、trade_id 由盈亏计算或上游补全维护，不在其中
var tradeUpdateColumns = []string{
	"client_id", "account_id", "contract_id", "direction",
	"quantity", "price", "avg_price", "trade_time",
	"commission", "pnl", "released_pnl", "unrealized_pnl",
	"status", "updated_at",
}

const updatePnLSQL = "UPDATE trades SET trade_id = ?, total_pnl = ?, total_commission = ? WHERE id = ?"

type TradeDAO struct {
	db *gorm.DB
}

// NewTradeDAO 创建 TradeDAO
func NewTradeDAO(db *gorm.DB) *TradeDAO {
	return &TradeDAO{db: db}
}

// WithTx 绑定事务
func (d *TradeDAO) WithTx(tx *gorm.DB) *TradeDAO {
	return &TradeDAO{db: tx}
}

// Upsert 按 order_id 插入或更新成交记录
// 仅处理 order_id>0 且状态为 Filled 的成交，返回是否写入
func (d *TradeDAO) Upsert(ctx context.Context, trade *models.Trade) (bool, error) {
	if !trade.IsFilled() {
		return false, nil
	}

	err := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}},
		DoUpdates: clause.AssignmentColumns(tradeUpdateColumns),
	}).Omit("trade_id", "total_pnl", "total_commission").Create(trade).Error
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetByOrderID 根据券商订单号获取成交，不存在时返回 nil
func (d *TradeDAO) GetByOrderID(ctx context.Context, orderID int64) (*models.Trade, error) {
	var trade models.Trade
	err := d.db.WithContext(ctx).Where("order_id = ?", orderID).Take(&trade).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &trade, nil
}

// LockedWindow 加排他行锁读取合约最近 limit 笔成交，按时间降序返回
func (d *TradeDAO) LockedWindow(ctx context.Context, contractID int64, asOf time.Time, limit int) ([]*models.Trade, error) {
	var trades []*models.Trade
	err := d.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("contract_id = ? AND trade_time <= ?", contractID, asOf).
		Order("trade_time DESC").
		Order("id DESC").
		Limit(limit).
		Find(&trades).Error
	return trades, err
}

// UpdatePnL 按主键写回盈亏字段，只修改这三列
func (d *TradeDAO) UpdatePnL(ctx context.Context, id, tradeID int64, totalPnL, totalCommission float64) error {
	return d.db.WithContext(ctx).Exec(updatePnLSQL, tradeID, totalPnL, totalCommission, id).Error
}

// ListUnpricedExits 查询 since 之后仍未计价的平仓成交，最新的在前
// 永远无法计价的旧行（缺少开仓）不会挤占 limit
func (d *TradeDAO) ListUnpricedExits(ctx context.Context, since time.Time, limit int) ([]*models.Trade, error) {
	var trades []*models.Trade
	err := d.db.WithContext(ctx).
		Clauses(dbresolver.Write).
		Where("trade_id IS NULL AND status = ? AND market_action LIKE ? AND trade_time >= ?",
			string(types.OrderStatusFilled), "EXIT%", since).
		Order("trade_time DESC").
		Order("id DESC").
		Limit(limit).
		Find(&trades).Error
	return trades, err
}

// ListFilledSince 查询 since 之后创建的已成交记录（用于恢复去重状态）
func (d *TradeDAO) ListFilledSince(ctx context.Context, since time.Time) ([]*models.Trade, error) {
	var trades []*models.Trade
	err := d.db.WithContext(ctx).
		Select("order_id", "status", "quantity").
		Where("status = ? AND created_at >= ?", string(types.OrderStatusFilled), since).
		Find(&trades).Error
	return trades, err
}

// TradeQuery 成交列表查询条件
type TradeQuery struct {
	AccountID   string
	ContractIDs []int64
	From        *time.Time
	To          *time.Time
	Symbols     []string
	SecTypes    []string
	Query       string // vt_symbol LIKE
}

// List 查询成交并关联合约信息，按创建时间升序，读请求走从库
func (d *TradeDAO) List(ctx context.Context, q TradeQuery) ([]*models.TradeWithContract, error) {
	tx := d.db.WithContext(ctx).
		Clauses(dbresolver.Read).
		Table("trades").
		Select("trades.*, contracts.symbol, contracts.sec_type, contracts.vt_symbol").
		Joins("LEFT JOIN contracts ON contracts.contract_id = trades.contract_id")

	if q.AccountID != "" {
		tx = tx.Where("trades.account_id = ?", q.AccountID)
	}
	if len(q.ContractIDs) > 0 {
		tx = tx.Where("trades.contract_id IN ?", q.ContractIDs)
	}
	if q.From != nil {
		tx = tx.Where("trades.created_at >= ?", *q.From)
	}
	if q.To != nil {
		tx = tx.Where("trades.created_at <= ?", *q.To)
	}
	if len(q.Symbols) > 0 {
		tx = tx.Where("contracts.symbol IN ?", q.Symbols)
	}
	if len(q.SecTypes) > 0 {
		tx = tx.Where("contracts.sec_type IN ?", q.SecTypes)
	}
	if q.Query != "" {
		tx = tx.Where("contracts.vt_symbol LIKE ?", "%"+q.Query+"%")
	}

	var rows []*models.TradeWithContract
	err := tx.Order("trades.created_at ASC").Order("trades.id ASC").Scan(&rows).Error
	return rows, err
}
