package reconciler

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/utrading/utrading-trade-pnl/internal/dao"
	"github.com/utrading/utrading-trade-pnl/internal/gateway"
	"github.com/utrading/utrading-trade-pnl/internal/monitor"
	"github.com/utrading/utrading-trade-pnl/internal/pnl"
	"github.com/utrading/utrading-trade-pnl/pkg/goplus"
	"github.com/utrading/utrading-trade-pnl/pkg/logger"
)

const (
	defaultInterval = time.Minute
	defaultLookback = 24 * time.Hour
	defaultLimit    = 200
)

// ClosedHandler 补算出平仓集合后的回调
type ClosedHandler func(ctx context.Context, set pnl.TradeSet)

// Options 补算器配置
type Options struct {
	Interval time.Duration
	Lookback time.Duration // 只扫描该时间窗口内的平仓行
	Limit    int           // 单次扫描的最大行数
	Metrics  *monitor.Metrics
	OnClosed ClosedHandler
}

// Stats 单次扫描结果
type Stats struct {
	Scanned int
	Closed  int
	Failed  int
}

// Reconciler 定时扫描未计价的平仓成交并重新计算盈亏
// 并发写入同一合约时，先提交的平仓行可能读不到后提交的开仓行，由这里兜底
type Reconciler struct {
	gw      *gateway.Gateway
	trades  *dao.TradeDAO
	opts    Options
	done    chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup
	now     func() time.Time
}

// New 创建补算器
func New(db *gorm.DB, gw *gateway.Gateway, opts Options) *Reconciler {
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.Lookback <= 0 {
		opts.Lookback = defaultLookback
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultLimit
	}
	return &Reconciler{
		gw:     gw,
		trades: dao.NewTradeDAO(db),
		opts:   opts,
		done:   make(chan struct{}),
		now:    time.Now,
	}
}

// Start 启动补算任务
func (r *Reconciler) Start(ctx context.Context) {
	r.wg.Add(1)
	goplus.Go(func() {
		defer r.wg.Done()

		ticker := time.NewTicker(r.opts.Interval)
		defer ticker.Stop()

		logger.Info().Dur("interval", r.opts.Interval).Dur("lookback", r.opts.Lookback).Msg("reconciler started")

		// 启动时立即执行一次
		r.run(ctx)

		for {
			select {
			case <-ticker.C:
				r.run(ctx)
			case <-ctx.Done():
				logger.Info().Msg("reconciler stopped")
				return
			case <-r.done:
				logger.Info().Msg("reconciler stopped")
				return
			}
		}
	})
}

// Stop 停止补算器并等待当前扫描结束
func (r *Reconciler) Stop() {
	r.stopped.Do(func() { close(r.done) })
	r.wg.Wait()
}

func (r *Reconciler) run(ctx context.Context) {
	stats, err := r.Sweep(ctx)
	if err != nil {
		r.opts.Metrics.IncReconcileRuns("error")
		logger.Error().Err(err).Msg("reconcile sweep failed")
		return
	}
	r.opts.Metrics.IncReconcileRuns("ok")

	if stats.Closed > 0 || stats.Failed > 0 {
		logger.Info().
			Int("scanned", stats.Scanned).
			Int("closed", stats.Closed).
			Int("failed", stats.Failed).
			Msg("reconcile sweep finished")
	}
}

// Sweep 执行一次扫描：按时间升序对每个未计价的平仓行重算
func (r *Reconciler) Sweep(ctx context.Context) (Stats, error) {
	var stats Stats

	since := r.now().Add(-r.opts.Lookback)
	rows, err := r.trades.ListUnpricedExits(ctx, since, r.opts.Limit)
	if err != nil {
		return stats, err
	}
	stats.Scanned = len(rows)

	for _, row := range rows {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}

		res, err := r.gw.RecomputeTrailingPnL(ctx, row.ContractID, row.TradeTime, row.ID)
		if err != nil {
			stats.Failed++
			logger.Warn().Err(err).Int64("row_id", row.ID).Int64("contract_id", row.ContractID).Msg("reconcile recompute failed")
			continue
		}
		if !res.Closed() {
			continue
		}

		stats.Closed++
		if r.opts.OnClosed != nil {
			r.opts.OnClosed(ctx, res.Set)
		}
	}
	return stats, nil
}
