package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/utrading/utrading-trade-pnl/internal/cache"
	"github.com/utrading/utrading-trade-pnl/internal/gateway"
	"github.com/utrading/utrading-trade-pnl/internal/models"
	"github.com/utrading/utrading-trade-pnl/internal/monitor"
	"github.com/utrading/utrading-trade-pnl/internal/pnl"
	"github.com/utrading/utrading-trade-pnl/pkg/types"
)

type mockPublisher struct {
	mu   sync.Mutex
	sets []pnl.TradeSet
}

func (m *mockPublisher) PublishTradeClosed(set pnl.TradeSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets = append(m.sets, set)
	return nil
}

func (m *mockPublisher) Sets() []pnl.TradeSet {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]pnl.TradeSet(nil), m.sets...)
}

type failingStore struct{}

func (failingStore) SaveFill(context.Context, gateway.FillRecord) (gateway.SaveFillResult, error) {
	return gateway.SaveFillResult{}, fmt.Errorf("%w: boom", types.ErrPersistence)
}

type fixture struct {
	db        *gorm.DB
	proc      *FillProcessor
	publisher *mockPublisher
	writer    *BatchWriter
	deduper   *cache.DedupCache
	contracts *cache.ContractCache
}

func newFixture(t *testing.T) *fixture {
	db := setupTestDB(t)
	metrics := monitor.NewMetrics("test", prometheus.NewRegistry())
	f := &fixture{
		db:        db,
		publisher: &mockPublisher{},
		writer:    newWriter(db, BatchWriterConfig{BatchSize: 100, FlushInterval: time.Minute}),
		deduper:   cache.NewDedupCache(time.Minute),
		contracts: cache.NewContractCache(),
	}
	gw := gateway.New(db, gateway.Options{Metrics: metrics})

	var err error
	f.proc, err = NewFillProcessor(gw, f.publisher, f.writer, f.deduper, f.contracts, metrics, FillProcessorConfig{Workers: 4})
	require.NoError(t, err)
	t.Cleanup(f.proc.Stop)
	return f
}

func fillJSON(orderID, contractID int64, action types.MarketAction, qty, avg float64, minute int) []byte {
	tradeTime := time.Date(2024, 3, 1, 9, 30+minute, 0, 0, time.UTC).Format(time.RFC3339)
	return []byte(fmt.Sprintf(`{
		"order_id": %d, "account_id": "DU1", "contract_id": %d, "direction": "BUY",
		"market_action": %q, "quantity": %g, "price": %g, "avg_price": %g, "commission": 1,
		"trade_time": %q, "status": "Filled",
		"contract": {"contract_id": %d, "symbol": "AAPL", "sec_type": "STK", "currency": "USD", "exchange": "SMART"}
	}`, orderID, contractID, string(action), qty, avg, avg, tradeTime, contractID))
}

func TestFillProcessor_ClosesAndPublishes(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.proc.HandleFillData(fillJSON(1, 7, types.ActionEntryLong, 1, 100, 0)))
	f.proc.Wait()
	require.NoError(t, f.proc.HandleFillData(fillJSON(2, 7, types.ActionExitLong, 1, 110, 1)))
	f.proc.Wait()

	sets := f.publisher.Sets()
	require.Len(t, sets, 1)
	assert.Equal(t, 10.0, sets[0].TotalPnL())
	assert.Equal(t, 2.0, sets[0].TotalCommission())

	stats := f.proc.GetStats()
	assert.Equal(t, int64(2), stats["received"])
	assert.Equal(t, int64(2), stats["persisted"])
	assert.Equal(t, int64(1), stats["closed"])

	assert.True(t, f.contracts.Has(7))
	var contracts int64
	require.NoError(t, f.db.Model(&models.Contract{}).Count(&contracts).Error)
	assert.Equal(t, int64(1), contracts)
}

func TestFillProcessor_RejectsInvalid(t *testing.T) {
	f := newFixture(t)

	err := f.proc.HandleFillData([]byte(`{"order_id":1,"action":"BUY","market_position":"SHORT"}`))
	assert.ErrorIs(t, err, types.ErrInvalidAction)
	err = f.proc.HandleFillData([]byte(`{"order_id":0}`))
	assert.ErrorIs(t, err, types.ErrInvalidFill)
	f.proc.Wait()

	assert.Equal(t, int64(2), f.proc.GetStats()["rejected"])
	var trades int64
	require.NoError(t, f.db.Model(&models.Trade{}).Count(&trades).Error)
	assert.Zero(t, trades)
}

func TestFillProcessor_DedupReplays(t *testing.T) {
	f := newFixture(t)
	data := fillJSON(1, 7, types.ActionEntryLong, 1, 100, 0)

	require.NoError(t, f.proc.HandleFillData(data))
	f.proc.Wait()
	require.NoError(t, f.proc.HandleFillData(data))
	f.proc.Wait()

	stats := f.proc.GetStats()
	assert.Equal(t, int64(1), stats["deduped"])
	assert.Equal(t, int64(1), stats["persisted"])
}

func TestFillProcessor_OrderProgressNotDeduped(t *testing.T) {
	f := newFixture(t)

	update := func(filled, remaining float64) []byte {
		return []byte(fmt.Sprintf(`{"order_id": 77, "contract_id": 8, "status": "Submitted", "quantity": 10,
			"order": {"order_id": 3, "filled_quantity": %g, "remaining_quantity": %g}}`, filled, remaining))
	}

	require.NoError(t, f.proc.HandleFillData(update(2, 8)))
	f.proc.Wait()
	require.NoError(t, f.proc.HandleFillData(update(6, 4)))
	f.proc.Wait()
	require.NoError(t, f.proc.HandleFillData(update(6, 4)))
	f.proc.Wait()

	var o models.Order
	require.NoError(t, f.db.Where("perm_id = ?", 77).Take(&o).Error)
	assert.Equal(t, 6.0, o.FilledQuantity)
	assert.Equal(t, 4.0, o.RemainingQuantity)
	assert.Equal(t, string(types.OrderStatusSubmitted), o.Status)
	assert.Equal(t, int64(0), f.proc.GetStats()["deduped"])
	assert.False(t, f.deduper.IsSeen(77, "Submitted", 10))

	var orders int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&orders).Error)
	assert.Equal(t, int64(1), orders)
}

func TestFillProcessor_FailedSaveCanReplay(t *testing.T) {
	metrics := monitor.NewMetrics("test", prometheus.NewRegistry())
	deduper := cache.NewDedupCache(time.Minute)
	proc, err := NewFillProcessor(failingStore{}, nil, nil, deduper, nil, metrics, FillProcessorConfig{Workers: 1})
	require.NoError(t, err)
	defer proc.Stop()

	data := fillJSON(1, 7, types.ActionEntryLong, 1, 100, 0)
	require.NoError(t, proc.HandleFillData(data))
	proc.Wait()
	assert.False(t, deduper.IsSeen(1, "Filled", 1))
	assert.Equal(t, int64(1), proc.GetStats()["failed"])

	require.NoError(t, proc.HandleFillData(data))
	proc.Wait()
	assert.Equal(t, int64(2), proc.GetStats()["failed"])
}

func TestFillProcessor_ConcurrentContracts(t *testing.T) {
	f := newFixture(t)

	const contracts = 5
	for c := int64(1); c <= contracts; c++ {
		require.NoError(t, f.proc.HandleFillData(fillJSON(c*10+1, c, types.ActionEntryShort, 2, 50, 0)))
	}
	f.proc.Wait()
	for c := int64(1); c <= contracts; c++ {
		require.NoError(t, f.proc.HandleFillData(fillJSON(c*10+2, c, types.ActionExitShort, 2, 45, 1)))
	}
	f.proc.Wait()

	sets := f.publisher.Sets()
	require.Len(t, sets, contracts)
	ids := make(map[int64]struct{})
	for _, set := range sets {
		assert.Equal(t, 10.0, set.TotalPnL())
		ids[set.TradeID()] = struct{}{}
	}
	assert.Len(t, ids, contracts)
}

func TestFillProcessor_OrderUpdateContractGoesToBatch(t *testing.T) {
	f := newFixture(t)
	f.writer.Start()

	data := []byte(`{"order_id": 5, "contract_id": 8, "status": "Submitted", "quantity": 1,
		"contract": {"contract_id": 8, "symbol": "ES", "sec_type": "FUT", "currency": "USD", "exchange": "CME"}}`)
	require.NoError(t, f.proc.HandleFillData(data))
	f.proc.Wait()

	msg, err := f.proc.DecodeAccountValue([]byte(`{"account_id":"DU1","tag":"NetLiquidation","value":"1"}`))
	require.NoError(t, err)
	require.NoError(t, f.proc.HandleMessage(msg))

	f.writer.Stop()

	var orders, trades, contracts, values int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&orders).Error)
	require.NoError(t, f.db.Model(&models.Trade{}).Count(&trades).Error)
	require.NoError(t, f.db.Model(&models.Contract{}).Count(&contracts).Error)
	require.NoError(t, f.db.Model(&models.AccountValue{}).Count(&values).Error)
	assert.Equal(t, int64(1), orders)
	assert.Zero(t, trades)
	assert.Equal(t, int64(1), contracts)
	assert.Equal(t, int64(1), values)
	assert.True(t, f.contracts.Has(8))

	_, err = f.proc.DecodeAccountValue([]byte(`{}`))
	assert.True(t, errors.Is(err, types.ErrInvalidFill))
}
