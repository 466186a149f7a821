package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/utrading/utrading-trade-pnl/internal/cache"
	"github.com/utrading/utrading-trade-pnl/internal/gateway"
	"github.com/utrading/utrading-trade-pnl/internal/monitor"
	"github.com/utrading/utrading-trade-pnl/internal/nats"
	"github.com/utrading/utrading-trade-pnl/internal/pnl"
	"github.com/utrading/utrading-trade-pnl/pkg/logger"
	"github.com/utrading/utrading-trade-pnl/pkg/types"
)

// FillStore 成交落库接口（*gateway.Gateway 满足）
type FillStore interface {
	SaveFill(ctx context.Context, rec gateway.FillRecord) (gateway.SaveFillResult, error)
}

// ClosedPublisher 平仓消息发布接口
type ClosedPublisher interface {
	PublishTradeClosed(set pnl.TradeSet) error
}

// FillProcessorConfig 成交处理器配置
type FillProcessorConfig struct {
	Workers     int           // 协程池大小（默认 30）
	SaveTimeout time.Duration // 单条回报落库超时（默认 30s）
}

// FillProcessor 成交回报处理器
// 不同合约的回报并发落库，同一合约的重算由数据库行锁串行化
type FillProcessor struct {
	store       FillStore
	publisher   ClosedPublisher
	batchWriter *BatchWriter
	deduper     *cache.DedupCache
	contracts   *cache.ContractCache
	metrics     *monitor.Metrics
	pool        *ants.Pool
	timeout     time.Duration
	wg          sync.WaitGroup

	received  atomic.Int64
	rejected  atomic.Int64
	deduped   atomic.Int64
	persisted atomic.Int64
	failed    atomic.Int64
	closed    atomic.Int64
}

// NewFillProcessor 创建成交处理器
// publisher、batchWriter、deduper、contracts 均可为 nil
func NewFillProcessor(
	store FillStore,
	publisher ClosedPublisher,
	batchWriter *BatchWriter,
	deduper *cache.DedupCache,
	contracts *cache.ContractCache,
	metrics *monitor.Metrics,
	config FillProcessorConfig,
) (*FillProcessor, error) {
	if config.Workers <= 0 {
		config.Workers = 30
	}
	if config.SaveTimeout <= 0 {
		config.SaveTimeout = 30 * time.Second
	}
	if batchWriter == nil {
		logger.Warn().Msg("fill processor created without batch writer, account values will be skipped")
	}

	pool, err := ants.NewPool(config.Workers, ants.WithPanicHandler(func(r any) {
		logger.Error().Interface("panic", r).Msg("fill worker panic")
	}))
	if err != nil {
		return nil, fmt.Errorf("create ants pool: %w", err)
	}

	return &FillProcessor{
		store:       store,
		publisher:   publisher,
		batchWriter: batchWriter,
		deduper:     deduper,
		contracts:   contracts,
		metrics:     metrics,
		pool:        pool,
		timeout:     config.SaveTimeout,
	}, nil
}

// DecodeFill 解析原始回报，非法回报在进入引擎前拒绝
func (p *FillProcessor) DecodeFill(data []byte) (Message, error) {
	p.received.Add(1)
	p.metrics.IncFillsReceived("nats")

	ev, err := nats.DecodeFillEvent(data)
	if err != nil {
		p.reject(err)
		return nil, err
	}
	return FillMessage{Event: ev}, nil
}

// DecodeAccountValue 解析账户数值消息
func (p *FillProcessor) DecodeAccountValue(data []byte) (Message, error) {
	v, err := nats.DecodeAccountValue(data)
	if err != nil {
		logger.Warn().Err(err).Msg("invalid account value message")
		return nil, err
	}
	return AccountValueMessage{Value: v}, nil
}

// HandleFillData 解析并处理原始回报
func (p *FillProcessor) HandleFillData(data []byte) error {
	msg, err := p.DecodeFill(data)
	if err != nil {
		return err
	}
	return p.HandleMessage(msg)
}

// HandleMessage 处理消息（实现 MessageHandler 接口）
func (p *FillProcessor) HandleMessage(msg Message) error {
	switch m := msg.(type) {
	case FillMessage:
		return p.submit(m.Event)
	case AccountValueMessage:
		if p.batchWriter == nil {
			return nil
		}
		return p.batchWriter.Add(AccountValueItem{Value: m.Value})
	default:
		logger.Warn().Str("type", msg.Type()).Msg("unknown message type")
		return nil
	}
}

func (p *FillProcessor) submit(ev *nats.FillEvent) error {
	if ev == nil {
		return nil
	}

	if p.dedupable(ev) && p.deduper.IsSeen(ev.OrderID, string(ev.Status), ev.Quantity) {
		p.deduped.Add(1)
		p.metrics.IncFillsDeduped()
		logger.Debug().Int64("order_id", ev.OrderID).Str("status", string(ev.Status)).Msg("fill already processed, skipping")
		return nil
	}

	p.wg.Add(1)
	err := p.pool.Submit(func() {
		defer p.wg.Done()
		p.process(ev)
	})
	if err != nil {
		p.wg.Done()
		return fmt.Errorf("submit fill: %w", err)
	}
	return nil
}

// dedupable 只有成交回报参与去重
// 未成交的订单更新之间只有成交进度不同，每条都要落库
func (p *FillProcessor) dedupable(ev *nats.FillEvent) bool {
	return p.deduper != nil && ev.Status == types.OrderStatusFilled
}

// process 落库并在集合平仓时发布消息
func (p *FillProcessor) process(ev *nats.FillEvent) {
	rec := ev.ToRecord()
	p.routeContract(&rec, ev.Status)

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	res, err := p.store.SaveFill(ctx, rec)
	if err != nil {
		p.failed.Add(1)
		logger.Error().Err(err).
			Int64("order_id", ev.OrderID).
			Int64("contract_id", ev.ContractID).
			Msg("save fill failed")
		return
	}

	if p.dedupable(ev) {
		p.deduper.Mark(ev.OrderID, string(ev.Status), ev.Quantity)
	}
	if rec.Contract != nil && p.contracts != nil {
		p.contracts.Set(rec.Contract.ContractID, rec.Contract.VtSymbol)
	}
	if res.TradeWritten {
		p.persisted.Add(1)
	}
	if !res.Recompute.Closed() {
		return
	}

	p.closed.Add(1)
	p.PublishClosed(res.Recompute.Set)
}

// routeContract 已知合约不重复写入；非成交回报的合约信息走批量写入
func (p *FillProcessor) routeContract(rec *gateway.FillRecord, status types.OrderStatus) {
	if rec.Contract == nil || p.contracts == nil {
		return
	}
	if p.contracts.Has(rec.Contract.ContractID) {
		p.metrics.IncCacheHit("contract")
		rec.Contract = nil
		return
	}
	p.metrics.IncCacheMiss("contract")

	if status == types.OrderStatusFilled || p.batchWriter == nil {
		return
	}
	if err := p.batchWriter.Add(ContractItem{Contract: rec.Contract}); err == nil {
		p.contracts.Set(rec.Contract.ContractID, rec.Contract.VtSymbol)
		rec.Contract = nil
	}
}

// PublishClosed 发布集合平仓消息（补算器也通过这里发布）
func (p *FillProcessor) PublishClosed(set pnl.TradeSet) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.PublishTradeClosed(set); err != nil {
		logger.Error().Err(err).Int64("trade_id", set.TradeID()).Msg("publish trade closed failed")
	}
}

func (p *FillProcessor) reject(err error) {
	p.rejected.Add(1)

	reason := "invalid_fill"
	if errors.Is(err, types.ErrInvalidAction) {
		reason = "invalid_action"
	}
	p.metrics.IncFillsRejected(reason)
	logger.Warn().Err(err).Str("reason", reason).Msg("fill rejected")
}

// Wait 等待已提交的回报处理完
func (p *FillProcessor) Wait() {
	p.wg.Wait()
}

// Stop 等待在途任务完成并释放协程池
func (p *FillProcessor) Stop() {
	p.wg.Wait()
	p.pool.Release()
}

// GetStats 获取统计信息（健康检查使用）
func (p *FillProcessor) GetStats() map[string]any {
	p.metrics.SetWorkerPoolRunning(p.pool.Running())

	stats := map[string]any{
		"received":     p.received.Load(),
		"rejected":     p.rejected.Load(),
		"deduped":      p.deduped.Load(),
		"persisted":    p.persisted.Load(),
		"failed":       p.failed.Load(),
		"closed":       p.closed.Load(),
		"pool_running": p.pool.Running(),
		"pool_cap":     p.pool.Cap(),
	}
	if p.deduper != nil {
		stats["dedup"] = p.deduper.Stats()
	}
	if p.contracts != nil {
		stats["contracts"] = p.contracts.Stats()
	}
	return stats
}
