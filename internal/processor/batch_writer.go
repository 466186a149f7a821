package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/utrading/utrading-trade-pnl/internal/dao"
	"github.com/utrading/utrading-trade-pnl/internal/models"
	"github.com/utrading/utrading-trade-pnl/internal/monitor"
	"github.com/utrading/utrading-trade-pnl/pkg/concurrent"
	"github.com/utrading/utrading-trade-pnl/pkg/goplus"
	"github.com/utrading/utrading-trade-pnl/pkg/logger"
)

const (
	tableContracts     = "contracts"
	tableAccountValues = "account_values"
)

// BatchItem 批量写入项接口
type BatchItem interface {
	TableName() string
	DedupKey() string // 返回去重键
}

// ContractItem 合约写入项
type ContractItem struct {
	Contract *models.Contract
}

func (i ContractItem) TableName() string { return tableContracts }

func (i ContractItem) DedupKey() string {
	return fmt.Sprintf("ct:%d", i.Contract.ContractID)
}

// AccountValueItem 账户数值写入项
type AccountValueItem struct {
	Value *models.AccountValue
}

func (i AccountValueItem) TableName() string { return tableAccountValues }

func (i AccountValueItem) DedupKey() string {
	return fmt.Sprintf("av:%s:%s", i.Value.AccountID, i.Value.Tag)
}

// BatchWriterConfig 批量写入配置
type BatchWriterConfig struct {
	BatchSize     int           // 批量大小（默认 100）
	FlushInterval time.Duration // 刷新间隔（默认 2s）
	MaxQueueSize  int           // 最大队列大小（默认 10000）
}

// BatchWriter 批量写入器
// 合约与账户数值只做不存在时插入，不参与盈亏计算，批量写入降低 IO 压力
type BatchWriter struct {
	config    *BatchWriterConfig
	dao       *dao.DAO
	metrics   *monitor.Metrics
	queue     chan BatchItem
	buffers   concurrent.Map[string, BatchItem] // 按 dedupKey 去重
	flushMu   sync.Mutex
	flushTick *time.Ticker
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
}

// NewBatchWriter 创建批量写入器
func NewBatchWriter(d *dao.DAO, metrics *monitor.Metrics, config *BatchWriterConfig) *BatchWriter {
	if config == nil {
		config = &BatchWriterConfig{}
	}

	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = 2 * time.Second
	}
	if config.MaxQueueSize <= 0 {
		config.MaxQueueSize = 10000
	}

	return &BatchWriter{
		config:  config,
		dao:     d,
		metrics: metrics,
		queue:   make(chan BatchItem, config.MaxQueueSize),
		done:    make(chan struct{}),
	}
}

// Start 启动批量写入器
func (w *BatchWriter) Start() {
	w.flushTick = time.NewTicker(w.config.FlushInterval)

	w.wg.Add(2)
	goplus.Go(w.receiveLoop)
	goplus.Go(w.flushLoop)
}

func (w *BatchWriter) receiveLoop() {
	defer w.wg.Done()
	for {
		select {
		case item := <-w.queue:
			w.buffer(item)
			if w.buffers.Len() >= int64(w.config.BatchSize) {
				w.flushAll()
			}
		case <-w.done:
			// 处理队列中剩余的数据
			for {
				select {
				case item := <-w.queue:
					w.buffer(item)
				default:
					return
				}
			}
		}
	}
}

func (w *BatchWriter) buffer(item BatchItem) {
	if _, loaded := w.buffers.Swap(item.DedupKey(), item); loaded {
		w.metrics.IncBatchDedupCacheHit(item.TableName())
	}
}

func (w *BatchWriter) flushLoop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.flushTick.C:
			w.flushAll()
		case <-w.done:
			return
		}
	}
}

// flushAll 刷新所有缓冲数据
func (w *BatchWriter) flushAll() {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	grouped := make(map[string][]BatchItem)
	if w.buffers.Drain(func(_ string, item BatchItem) {
		grouped[item.TableName()] = append(grouped[item.TableName()], item)
	}) == 0 {
		return
	}

	for table, items := range grouped {
		start := time.Now()
		err := w.batchInsert(table, items)
		w.metrics.ObserveBatchWriteSize(len(items))
		w.metrics.ObserveBatchWriteDuration(time.Since(start))

		if err != nil {
			logger.Error().Err(err).Str("table", table).Int("count", len(items)).Msg("batch insert failed")
		} else {
			logger.Debug().Str("table", table).Int("count", len(items)).Msg("batch insert success")
		}
	}
}

func (w *BatchWriter) batchInsert(table string, items []BatchItem) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch table {
	case tableContracts:
		contracts := make([]*models.Contract, 0, len(items))
		for _, item := range items {
			if c, ok := item.(ContractItem); ok {
				contracts = append(contracts, c.Contract)
			}
		}
		return w.dao.Contract.BatchCreateIfAbsent(ctx, contracts)
	case tableAccountValues:
		values := make([]*models.AccountValue, 0, len(items))
		for _, item := range items {
			if v, ok := item.(AccountValueItem); ok {
				values = append(values, v.Value)
			}
		}
		return w.dao.AccountValue.BatchCreateIfAbsent(ctx, values)
	default:
		logger.Warn().Str("table", table).Msg("unsupported table for batch insert")
		return nil
	}
}

// Add 添加写入项
func (w *BatchWriter) Add(item BatchItem) error {
	select {
	case w.queue <- item:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop 停止写入器并刷新剩余数据
func (w *BatchWriter) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.wg.Wait()
		w.flushAll()
		if w.flushTick != nil {
			w.flushTick.Stop()
		}
	})
}

// GracefulShutdown 优雅关闭，带超时控制
func (w *BatchWriter) GracefulShutdown(timeout time.Duration) error {
	done := make(chan struct{})
	goplus.Go(func() {
		w.Stop()
		close(done)
	})

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		logger.Warn().Dur("timeout", timeout).Msg("batch writer shutdown timeout")
		return ErrShutdownTimeout
	}
}

// ErrQueueFull 队列满错误
var ErrQueueFull = errors.New("batch queue full")

// ErrShutdownTimeout 关闭超时错误
var ErrShutdownTimeout = errors.New("shutdown timeout")
