package pnl

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utrading/utrading-trade-pnl/pkg/types"
)

// seqIDs 测试用的确定性 ID 源
type seqIDs struct{ next int64 }

func (s *seqIDs) NextID() int64 {
	s.next++
	return s.next
}

var base = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func fill(id int64, action types.MarketAction, qty, avg float64) Fill {
	return Fill{
		ID:         id,
		OrderID:    1000 + id,
		ContractID: 1,
		Action:     action,
		Quantity:   qty,
		AvgPrice:   avg,
		Commission: 1,
		TradeTime:  base.Add(time.Duration(id) * time.Minute),
		CreatedAt:  base.Add(time.Duration(id) * time.Minute),
	}
}

func TestMatchTradeSets_ScenarioA_Long(t *testing.T) {
	fills := []Fill{
		fill(1, types.ActionEntryLong, 1, 100),
		fill(2, types.ActionExitLong, 1, 110),
	}

	sets := MatchTradeSets(fills, true, &seqIDs{})
	require.Len(t, sets, 1)
	assert.Len(t, sets[0], 2)
	assert.Equal(t, 10.0, sets[0].TotalPnL())
	assert.Equal(t, 2.0, sets[0].TotalCommission())
	for _, f := range sets[0] {
		assert.Equal(t, sets[0].TradeID(), f.TradeID)
	}
}

func TestMatchTradeSets_ScenarioB_Short(t *testing.T) {
	fills := []Fill{
		fill(1, types.ActionEntryShort, 2, 50),
		fill(2, types.ActionExitShort, 2, 45),
	}

	sets := MatchTradeSets(fills, true, &seqIDs{})
	require.Len(t, sets, 1)
	assert.Equal(t, 10.0, sets[0].TotalPnL())
}

func TestPriceTradeSet_ScenarioC_EntryOnly(t *testing.T) {
	got := PriceTradeSet([]Fill{fill(1, types.ActionEntryLong, 1, 100)}, &seqIDs{})
	assert.Empty(t, got)
}

func TestMatchTradeSets_ScenarioD_TwoSets(t *testing.T) {
	fills := []Fill{
		fill(1, types.ActionEntryLong, 1, 100),
		fill(2, types.ActionExitLong, 1, 105),
		fill(3, types.ActionEntryShort, 1, 105),
		fill(4, types.ActionExitShort, 1, 101),
	}

	sets := MatchTradeSets(fills, false, &seqIDs{})
	require.Len(t, sets, 2)
	assert.Equal(t, 5.0, sets[0].TotalPnL())
	assert.Equal(t, 4.0, sets[1].TotalPnL())
	assert.NotEqual(t, sets[0].TradeID(), sets[1].TradeID())

	// 只要最后一组时前面的集合不会被结算
	last := MatchTradeSets(fills, true, &seqIDs{})
	require.Len(t, last, 1)
	assert.Equal(t, int64(3), last[0][0].ID)
	assert.Equal(t, 4.0, last[0].TotalPnL())
}

func TestMatchTradeSets_FewerThanTwo(t *testing.T) {
	assert.Empty(t, MatchTradeSets(nil, false, &seqIDs{}))
	assert.Empty(t, MatchTradeSets([]Fill{fill(1, types.ActionEntryLong, 1, 1)}, false, &seqIDs{}))
}

func TestMatchTradeSets_SortsInput(t *testing.T) {
	fills := []Fill{
		fill(2, types.ActionExitLong, 1, 110),
		fill(1, types.ActionEntryLong, 1, 100),
	}
	sets := MatchTradeSets(fills, true, &seqIDs{})
	require.Len(t, sets, 1)
	assert.Equal(t, 10.0, sets[0].TotalPnL())
	// 调用方的切片不应被改动
	assert.Equal(t, int64(2), fills[0].ID)
	assert.Zero(t, fills[0].TradeID)
}

func TestMatchTradeSets_TieBreakOnCreatedAt(t *testing.T) {
	entry := fill(2, types.ActionEntryLong, 1, 100)
	exit := fill(1, types.ActionExitLong, 1, 110)
	exit.TradeTime = entry.TradeTime
	exit.CreatedAt = entry.CreatedAt.Add(time.Second)

	sets := MatchTradeSets([]Fill{exit, entry}, true, &seqIDs{})
	require.Len(t, sets, 1)
	assert.Equal(t, int64(2), sets[0][0].ID)
}

func TestMatchTradeSets_AbsentActionDiscardsSet(t *testing.T) {
	fills := []Fill{
		fill(1, types.ActionEntryLong, 1, 100),
		fill(2, types.ActionNone, 1, 105),
		fill(3, types.ActionExitLong, 1, 110),
	}
	assert.Empty(t, MatchTradeSets(fills, false, &seqIDs{}))

	// 缺失动作之后重新开始的集合仍然可以平仓
	fills = append(fills,
		fill(4, types.ActionEntryShort, 1, 110),
		fill(5, types.ActionExitShort, 1, 100),
	)
	sets := MatchTradeSets(fills, false, &seqIDs{})
	require.Len(t, sets, 1)
	assert.Equal(t, int64(4), sets[0][0].ID)
	assert.Equal(t, 10.0, sets[0].TotalPnL())
}

func TestMatchTradeSets_MixedDirectionResets(t *testing.T) {
	fills := []Fill{
		fill(1, types.ActionEntryLong, 1, 100),
		fill(2, types.ActionExitShort, 1, 105),
		fill(3, types.ActionExitLong, 1, 110),
	}
	assert.Empty(t, MatchTradeSets(fills, false, &seqIDs{}))
}

func TestMatchTradeSets_PartialExitsCloseOnlyWhenBalanced(t *testing.T) {
	fills := []Fill{
		fill(1, types.ActionEntryLong, 3, 100),
		fill(2, types.ActionExitLong, 1, 101),
		fill(3, types.ActionExitLong, 1, 102),
	}
	assert.Empty(t, MatchTradeSets(fills, true, &seqIDs{}))

	fills = append(fills, fill(4, types.ActionExitLong, 1, 103))
	sets := MatchTradeSets(fills, true, &seqIDs{})
	require.Len(t, sets, 1)
	assert.Len(t, sets[0], 4)
	assert.Equal(t, 6.0, sets[0].TotalPnL())
	assert.Equal(t, 4.0, sets[0].TotalCommission())
}

func TestMatchTradeSets_NeverEmitsUnbalancedSets(t *testing.T) {
	actions := []types.MarketAction{
		types.ActionEntryLong, types.ActionEntryShort,
		types.ActionExitLong, types.ActionExitShort, types.ActionNone,
	}
	r := rand.New(rand.NewSource(42))

	for round := 0; round < 500; round++ {
		n := r.Intn(12)
		fills := make([]Fill, n)
		for i := range fills {
			fills[i] = fill(int64(i+1), actions[r.Intn(len(actions))], float64(1+r.Intn(3)), float64(90+r.Intn(20)))
		}

		for _, set := range MatchTradeSets(fills, r.Intn(2) == 0, &seqIDs{}) {
			var entry, exit decimal.Decimal
			for _, f := range set {
				q := decimal.NewFromFloat(f.Quantity)
				if f.Action.IsEntry() {
					entry = entry.Add(q)
				}
				if f.Action.IsExit() {
					exit = exit.Add(q)
				}
				assert.Equal(t, set.TradeID(), f.TradeID)
			}
			require.False(t, entry.IsZero(), "round %d", round)
			require.True(t, entry.Equal(exit), "round %d: entry %s exit %s", round, entry, exit)
		}
	}
}

func TestPriceClosingSet(t *testing.T) {
	window := []Fill{
		fill(1, types.ActionEntryLong, 1, 100),
		fill(2, types.ActionExitLong, 1, 110),
	}

	set, outcome := PriceClosingSet(window, 2, &seqIDs{})
	assert.Equal(t, OutcomeClosed, outcome)
	require.Len(t, set, 2)
	assert.Equal(t, 10.0, set.TotalPnL())

	_, outcome = PriceClosingSet(window, 1, &seqIDs{})
	assert.Equal(t, OutcomeStale, outcome)

	_, outcome = PriceClosingSet(window[:1], 1, &seqIDs{})
	assert.Equal(t, OutcomeUncomputable, outcome)

	entries := []Fill{
		fill(1, types.ActionEntryLong, 1, 100),
		fill(2, types.ActionEntryLong, 1, 101),
	}
	_, outcome = PriceClosingSet(entries, 2, &seqIDs{})
	assert.Equal(t, OutcomeNotClosing, outcome)

	unbalanced := []Fill{
		fill(1, types.ActionEntryLong, 2, 100),
		fill(2, types.ActionExitLong, 1, 110),
	}
	_, outcome = PriceClosingSet(unbalanced, 2, &seqIDs{})
	assert.Equal(t, OutcomeUncomputable, outcome)
}

func TestPriceClosingSet_Idempotent(t *testing.T) {
	window := []Fill{
		fill(1, types.ActionEntryShort, 1.5, 20.1),
		fill(2, types.ActionExitShort, 1.5, 19.37),
	}
	a, _ := PriceClosingSet(window, 2, &seqIDs{})
	b, _ := PriceClosingSet(window, 2, &seqIDs{})
	assert.Equal(t, a.TotalPnL(), b.TotalPnL())
	assert.Equal(t, a.TotalCommission(), b.TotalCommission())
	assert.Equal(t, 1.1, a.TotalPnL())
}
