package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/utrading/utrading-trade-pnl/internal/gateway"
	"github.com/utrading/utrading-trade-pnl/internal/models"
	"github.com/utrading/utrading-trade-pnl/pkg/types"
)

var t0 = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Contract{}, &models.Order{}, &models.Trade{}, &models.AccountValue{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func seedFill(t *testing.T, g *gateway.Gateway, orderID int64, contract *models.Contract, action types.MarketAction, qty, avg float64, minute int) {
	t.Helper()
	c := *contract
	_, err := g.SaveFill(context.Background(), gateway.FillRecord{
		Contract: &c,
		Trade: &models.Trade{
			OrderID:      orderID,
			ContractID:   contract.ContractID,
			AccountID:    "DU1",
			MarketAction: string(action),
			Quantity:     qty,
			Price:        avg,
			AvgPrice:     avg,
			Commission:   0.5,
			TradeTime:    t0.Add(time.Duration(minute) * time.Minute),
			Status:       string(types.OrderStatusFilled),
		},
	})
	require.NoError(t, err)
}

func seed(t *testing.T, db *gorm.DB) {
	g := gateway.New(db, gateway.Options{})
	aapl := &models.Contract{ContractID: 7, Symbol: "AAPL", SecType: "STK", Currency: "USD", Exchange: "SMART"}
	aapl.VtSymbol = aapl.BuildVtSymbol()
	es := &models.Contract{ContractID: 8, Symbol: "ES", SecType: "FUT", Currency: "USD", Exchange: "CME"}
	es.VtSymbol = es.BuildVtSymbol()

	seedFill(t, g, 1, aapl, types.ActionEntryLong, 1, 100, 0)
	seedFill(t, g, 2, aapl, types.ActionExitLong, 1, 110, 1)
	seedFill(t, g, 3, es, types.ActionEntryShort, 2, 50, 2)
	seedFill(t, g, 4, es, types.ActionExitShort, 2, 52, 3)
	seedFill(t, g, 5, aapl, types.ActionEntryLong, 1, 120, 4)
}

func TestListTrades_Cumulative(t *testing.T) {
	db := newTestDB(t)
	seed(t, db)

	resp, err := NewTradeService(db).ListTrades(context.Background(), TradeFilter{})
	require.NoError(t, err)
	require.Len(t, resp.Trades, 5)
	require.Len(t, resp.GroupedTrades, 3)

	first := resp.GroupedTrades[0]
	require.Len(t, first, 2)
	for _, row := range first {
		assert.Equal(t, "AAPL", row.Symbol)
		assert.Equal(t, 10.0, row.TotalPnLPercent)
		assert.Equal(t, 10.0, row.CumulativePnL)
		assert.Equal(t, 1.0, row.CumulativeCommission)
	}

	second := resp.GroupedTrades[1]
	require.Len(t, second, 2)
	for _, row := range second {
		assert.Equal(t, "FUT", row.SecType)
		assert.Equal(t, -4.0, row.TotalPnLPercent)
		assert.Equal(t, 6.0, row.CumulativePnL)
		assert.Equal(t, 2.0, row.CumulativeCommission)
	}

	// 未平仓的开仓行保持默认值
	open := resp.GroupedTrades[2]
	require.Len(t, open, 1)
	assert.Equal(t, int64(5), open[0].OrderID)
	assert.Zero(t, open[0].TradeID)
	assert.Zero(t, open[0].CumulativePnL)
}

func TestListTrades_Filters(t *testing.T) {
	db := newTestDB(t)
	seed(t, db)
	svc := NewTradeService(db)
	ctx := context.Background()

	resp, err := svc.ListTrades(ctx, TradeFilter{SecTypes: []string{"FUT"}})
	require.NoError(t, err)
	require.Len(t, resp.Trades, 2)
	assert.Equal(t, -4.0, resp.Trades[0].CumulativePnL)

	resp, err = svc.ListTrades(ctx, TradeFilter{Query: "AAPL-STK"})
	require.NoError(t, err)
	assert.Len(t, resp.Trades, 3)

	resp, err = svc.ListTrades(ctx, TradeFilter{ContractIDs: []int64{8}, AccountID: "DU1"})
	require.NoError(t, err)
	assert.Len(t, resp.Trades, 2)

	future := time.Now().UTC().Add(time.Hour)
	resp, err = svc.ListTrades(ctx, TradeFilter{FromDate: &future})
	require.NoError(t, err)
	assert.Empty(t, resp.Trades)
	assert.NotNil(t, resp.GroupedTrades)
}
