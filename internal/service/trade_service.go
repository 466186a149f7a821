package service

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/utrading/utrading-trade-pnl/internal/dao"
	"github.com/utrading/utrading-trade-pnl/internal/pnl"
	"github.com/utrading/utrading-trade-pnl/pkg/logger"
)

// TradeFilter 成交列表过滤条件，零值表示不过滤
type TradeFilter struct {
	AccountID   string     `json:"account_id"`
	ContractIDs []int64    `json:"contract_ids"`
	FromDate    *time.Time `json:"from_date"`
	ToDate      *time.Time `json:"to_date"`
	Symbols     []string   `json:"symbols"`
	SecTypes    []string   `json:"sec_types"`
	Query       string     `json:"query"`
}

// ListTradeResponse 成交列表及按集合分组后的累计盈亏
type ListTradeResponse struct {
	Trades        []*pnl.TradeView   `json:"trades"`
	GroupedTrades [][]*pnl.TradeView `json:"grouped_trades"`
}

// TradeService 成交查询服务
type TradeService struct {
	trades *dao.TradeDAO
}

// NewTradeService 创建成交查询服务
func NewTradeService(db *gorm.DB) *TradeService {
	return &TradeService{trades: dao.NewTradeDAO(db)}
}

// ListTrades 查询成交并按 trade_id 分组计算累计盈亏
func (s *TradeService) ListTrades(ctx context.Context, filter TradeFilter) (*ListTradeResponse, error) {
	start := time.Now()

	rows, err := s.trades.List(ctx, dao.TradeQuery{
		AccountID:   filter.AccountID,
		ContractIDs: filter.ContractIDs,
		From:        filter.FromDate,
		To:          filter.ToDate,
		Symbols:     filter.Symbols,
		SecTypes:    filter.SecTypes,
		Query:       filter.Query,
	})
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}

	views := make([]*pnl.TradeView, 0, len(rows))
	for _, row := range rows {
		views = append(views, row.ToView())
	}

	groups := pnl.CumulativeGroups(views)
	if groups == nil {
		groups = [][]*pnl.TradeView{}
	}

	logger.Debug().
		Int("trades", len(views)).
		Int("groups", len(groups)).
		Dur("elapsed", time.Since(start)).
		Msg("list trades")

	return &ListTradeResponse{
		Trades:        pnl.Flatten(groups),
		GroupedTrades: groups,
	}, nil
}
