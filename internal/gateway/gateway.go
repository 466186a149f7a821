package gateway

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/utrading/utrading-trade-pnl/internal/dao"
	"github.com/utrading/utrading-trade-pnl/internal/models"
	"github.com/utrading/utrading-trade-pnl/internal/monitor"
	"github.com/utrading/utrading-trade-pnl/internal/pnl"
	"github.com/utrading/utrading-trade-pnl/pkg/logger"
	"github.com/utrading/utrading-trade-pnl/pkg/types"
)

// DefaultWindow 重算时锁定的最近成交行数
const DefaultWindow = 5

// Options 网关配置
type Options struct {
	Window    int           // 锁定窗口行数，默认 5
	TxTimeout time.Duration // 单个事务的超时时间，0 表示仅使用调用方的 ctx
	IDs       pnl.IDSource  // trade_id 生成器，默认进程内 IDGenerator
	Metrics   *monitor.Metrics
}

// Gateway 持久化网关：订单/成交的幂等写入与加锁重算
// 进程内只构造一次，所有方法可并发调用
type Gateway struct {
	db      *gorm.DB
	dao     *dao.DAO
	window  int
	timeout time.Duration
	ids     pnl.IDSource
	metrics *monitor.Metrics
}

// New 创建持久化网关
func New(db *gorm.DB, opts Options) *Gateway {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.IDs == nil {
		opts.IDs = pnl.NewIDGenerator()
	}
	return &Gateway{
		db:      db,
		dao:     dao.New(db),
		window:  opts.Window,
		timeout: opts.TxTimeout,
		ids:     opts.IDs,
		metrics: opts.Metrics,
	}
}

// FillRecord 一次成交回报需要落库的全部数据
type FillRecord struct {
	Contract *models.Contract // 可选
	Order    *models.Order    // 可选
	Trade    *models.Trade    // 仅 Filled 状态写入
}

// RecomputeResult 重算结果
type RecomputeResult struct {
	Outcome pnl.Outcome
	Set     pnl.TradeSet // 仅 OutcomeClosed 时非空
}

// Closed 是否有集合平仓
func (r RecomputeResult) Closed() bool {
	return r.Outcome == pnl.OutcomeClosed && len(r.Set) > 0
}

// SaveFillResult SaveFill 的结果
type SaveFillResult struct {
	TradeWritten bool
	Trade        *models.Trade // 写入后的成交行
	Recompute    RecomputeResult
}

// transaction 在超时控制下执行事务，失败时整体回滚并包装为 ErrPersistence
func (g *Gateway) transaction(ctx context.Context, op string, fn func(ctx context.Context, tx *gorm.DB) error) error {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, tx)
	})
	g.metrics.ObserveTxDuration(op, time.Since(start))

	if err != nil {
		g.metrics.IncPersistenceFailure(op)
		logger.Error().Err(err).Str("op", op).Msg("transaction rolled back")
		return fmt.Errorf("%w: %s: %w", types.ErrPersistence, op, err)
	}
	return nil
}

// SaveFill 在一个事务内写入合约、订单、成交，并在成交写入后重算盈亏
func (g *Gateway) SaveFill(ctx context.Context, rec FillRecord) (SaveFillResult, error) {
	var result SaveFillResult

	err := g.transaction(ctx, "save_fill", func(ctx context.Context, tx *gorm.DB) error {
		d := g.dao.WithTx(tx)

		if rec.Contract != nil && rec.Contract.ContractID > 0 {
			if _, err := d.Contract.CreateIfAbsent(ctx, rec.Contract); err != nil {
				return fmt.Errorf("save contract: %w", err)
			}
		}

		if rec.Order != nil {
			if err := upsertOrder(ctx, d, rec.Order); err != nil {
				return fmt.Errorf("save order: %w", err)
			}
		}

		if rec.Trade == nil {
			return nil
		}
		row, err := upsertTrade(ctx, d, rec.Trade)
		if err != nil {
			return fmt.Errorf("save trade: %w", err)
		}
		if row == nil {
			return nil
		}
		result.TradeWritten = true
		result.Trade = row

		result.Recompute, err = g.recompute(ctx, d, row.ContractID, row.TradeTime, row.ID)
		return err
	})
	if err != nil {
		return SaveFillResult{}, err
	}

	if result.TradeWritten {
		g.metrics.IncTradesPersisted()
		g.observeOutcome(result.Recompute)
	}
	return result, nil
}

// SaveOrder 插入或合并订单
func (g *Gateway) SaveOrder(ctx context.Context, order *models.Order) error {
	return g.transaction(ctx, "save_order", func(ctx context.Context, tx *gorm.DB) error {
		return upsertOrder(ctx, g.dao.WithTx(tx), order)
	})
}

// SaveTrade 插入或更新成交（仅 Filled），返回是否写入
// 不触发重算，需要重算时使用 SaveFill 或 RecomputeTrailingPnL
func (g *Gateway) SaveTrade(ctx context.Context, trade *models.Trade) (bool, error) {
	var written bool
	err := g.transaction(ctx, "save_trade", func(ctx context.Context, tx *gorm.DB) error {
		row, err := upsertTrade(ctx, g.dao.WithTx(tx), trade)
		written = row != nil
		return err
	})
	if err == nil && written {
		g.metrics.IncTradesPersisted()
	}
	return written, err
}

// RecomputeTrailingPnL 在独立事务内重算 closingRowID 所在集合的盈亏
func (g *Gateway) RecomputeTrailingPnL(ctx context.Context, contractID int64, asOf time.Time, closingRowID int64) (RecomputeResult, error) {
	var result RecomputeResult
	err := g.transaction(ctx, "recompute", func(ctx context.Context, tx *gorm.DB) error {
		var err error
		result, err = g.recompute(ctx, g.dao.WithTx(tx), contractID, asOf, closingRowID)
		return err
	})
	if err != nil {
		return RecomputeResult{}, err
	}
	g.observeOutcome(result)
	return result, nil
}

// SaveContract 合约不存在时插入
func (g *Gateway) SaveContract(ctx context.Context, contract *models.Contract) (bool, error) {
	var created bool
	err := g.transaction(ctx, "save_contract", func(ctx context.Context, tx *gorm.DB) error {
		var err error
		created, err = g.dao.WithTx(tx).Contract.CreateIfAbsent(ctx, contract)
		return err
	})
	return created, err
}

// SaveAccountValue 账户数值不存在时插入
func (g *Gateway) SaveAccountValue(ctx context.Context, value *models.AccountValue) (bool, error) {
	var created bool
	err := g.transaction(ctx, "save_account_value", func(ctx context.Context, tx *gorm.DB) error {
		var err error
		created, err = g.dao.WithTx(tx).AccountValue.CreateIfAbsent(ctx, value)
		return err
	})
	return created, err
}

// UpdateTradesPnL 在一个事务内按主键批量写回盈亏
func (g *Gateway) UpdateTradesPnL(ctx context.Context, fills []pnl.Fill) error {
	if len(fills) == 0 {
		return nil
	}
	return g.transaction(ctx, "update_pnl", func(ctx context.Context, tx *gorm.DB) error {
		return writeBack(ctx, g.dao.WithTx(tx), fills)
	})
}

// recompute 必须在事务内调用：锁定窗口、校验触发行、计价并写回
func (g *Gateway) recompute(ctx context.Context, d *dao.DAO, contractID int64, asOf time.Time, closingRowID int64) (RecomputeResult, error) {
	rows, err := d.Trade.LockedWindow(ctx, contractID, asOf, g.window)
	if err != nil {
		return RecomputeResult{}, fmt.Errorf("lock trade window: %w", err)
	}

	// 查询为降序，引擎需要升序
	window := make([]pnl.Fill, len(rows))
	for i, row := range rows {
		window[len(rows)-1-i] = row.ToFill()
	}

	sorted := pnl.SortFills(window)
	outcome := pnl.OutcomeAlreadyPriced
	var set pnl.TradeSet
	if n := len(sorted); n == 0 || sorted[n-1].ID != closingRowID || sorted[n-1].TradeID == 0 {
		set, outcome = pnl.PriceClosingSet(sorted, closingRowID, g.ids)
	}

	if outcome != pnl.OutcomeClosed {
		logger.Debug().
			Int64("contract_id", contractID).
			Int64("closing_row_id", closingRowID).
			Int("window", len(window)).
			Str("outcome", string(outcome)).
			Msg("trade set not closed")
		return RecomputeResult{Outcome: outcome}, nil
	}

	if err = writeBack(ctx, d, set); err != nil {
		return RecomputeResult{}, err
	}

	logger.Info().
		Int64("contract_id", contractID).
		Int64("trade_id", set.TradeID()).
		Float64("total_pnl", set.TotalPnL()).
		Float64("total_commission", set.TotalCommission()).
		Int("fills", len(set)).
		Msg("trade set closed")

	return RecomputeResult{Outcome: outcome, Set: set}, nil
}

func (g *Gateway) observeOutcome(r RecomputeResult) {
	g.metrics.IncRecomputeOutcome(string(r.Outcome))
	if r.Closed() {
		g.metrics.IncTradesClosed()
	}
}

func writeBack(ctx context.Context, d *dao.DAO, fills []pnl.Fill) error {
	for _, f := range fills {
		if err := d.Trade.UpdatePnL(ctx, f.ID, f.TradeID, f.TotalPnL, f.TotalCommission); err != nil {
			return fmt.Errorf("write back pnl for row %d: %w", f.ID, err)
		}
	}
	return nil
}

// upsertOrder 按 perm_id / order_id 匹配：存在时合并非零字段，否则插入
func upsertOrder(ctx context.Context, d *dao.DAO, order *models.Order) error {
	if order.PermID != nil && *order.PermID <= 0 {
		order.PermID = nil
	}
	if !order.HasKey() {
		return fmt.Errorf("%w: order without perm_id or order_id", types.ErrInvalidFill)
	}

	var permID int64
	if order.PermID != nil {
		permID = *order.PermID
	}

	existing, err := d.Order.FindForUpdate(ctx, permID, order.OrderID)
	if err != nil {
		return err
	}
	if existing == nil {
		return d.Order.Create(ctx, order)
	}

	existing.MergeFrom(order)
	if existing.PermID == nil && order.PermID != nil {
		existing.PermID = order.PermID
	}
	if err = d.Order.Save(ctx, existing); err != nil {
		return err
	}
	*order = *existing
	return nil
}

// upsertTrade 写入成交并重新读取该行，未写入时返回 nil
func upsertTrade(ctx context.Context, d *dao.DAO, trade *models.Trade) (*models.Trade, error) {
	written, err := d.Trade.Upsert(ctx, trade)
	if err != nil || !written {
		return nil, err
	}
	return d.Trade.GetByOrderID(ctx, trade.OrderID)
}
