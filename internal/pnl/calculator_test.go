package pnl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utrading/utrading-trade-pnl/pkg/types"
)

func TestPriceTradeSet_RoundsToCents(t *testing.T) {
	set := []Fill{
		fill(1, types.ActionEntryShort, 3, 20.1),
		fill(2, types.ActionExitShort, 3, 19.37),
	}
	set[0].Commission = 0.333
	set[1].Commission = 0.333

	priced := PriceTradeSet(set, &seqIDs{})
	require.Len(t, priced, 2)
	assert.Equal(t, 2.19, priced.TotalPnL())
	assert.Equal(t, 0.67, priced.TotalCommission())
}

func TestPriceTradeSet_ScalesAcrossPartialFills(t *testing.T) {
	set := []Fill{
		fill(1, types.ActionEntryLong, 2, 100),
		fill(2, types.ActionEntryLong, 1, 103),
		fill(3, types.ActionExitLong, 1.5, 104),
		fill(4, types.ActionExitLong, 1.5, 106),
	}

	priced := PriceTradeSet(set, &seqIDs{next: 41})
	require.Len(t, priced, 4)
	// exit 156+159=315, entry 200+103=303
	assert.Equal(t, 12.0, priced.TotalPnL())
	assert.Equal(t, 4.0, priced.TotalCommission())
	assert.Equal(t, int64(42), priced.TradeID())
	for _, f := range priced {
		assert.Equal(t, int64(42), f.TradeID)
	}
}

func TestPriceTradeSet_LosingShort(t *testing.T) {
	set := []Fill{
		fill(1, types.ActionEntryShort, 4, 50),
		fill(2, types.ActionExitShort, 4, 51),
	}
	priced := PriceTradeSet(set, &seqIDs{})
	require.Len(t, priced, 2)
	assert.Equal(t, -4.0, priced.TotalPnL())
}

func TestPriceTradeSet_SideFromFirstFill(t *testing.T) {
	long := []Fill{
		fill(1, types.ActionEntryLong, 1, 100),
		fill(2, types.ActionExitLong, 1, 90),
	}
	priced := PriceTradeSet(long, &seqIDs{})
	require.Len(t, priced, 2)
	assert.Equal(t, -10.0, priced.TotalPnL())

	short := []Fill{
		fill(1, types.ActionEntryShort, 1, 100),
		fill(2, types.ActionExitShort, 1, 90),
	}
	priced = PriceTradeSet(short, &seqIDs{})
	require.Len(t, priced, 2)
	assert.Equal(t, 10.0, priced.TotalPnL())
}

func TestPriceTradeSet_Uncomputable(t *testing.T) {
	ids := &seqIDs{}
	cases := map[string][]Fill{
		"empty":       nil,
		"exit only":   {fill(1, types.ActionExitLong, 1, 100)},
		"unbalanced":  {fill(1, types.ActionEntryLong, 2, 100), fill(2, types.ActionExitLong, 1, 110)},
		"zero entry":  {fill(1, types.ActionEntryLong, 0, 100), fill(2, types.ActionExitLong, 0, 110)},
		"no action":   {fill(1, types.ActionNone, 1, 100), fill(2, types.ActionNone, 1, 110)},
		"over closed": {fill(1, types.ActionEntryLong, 1, 100), fill(2, types.ActionExitLong, 2, 110)},
	}
	for name, set := range cases {
		assert.Empty(t, PriceTradeSet(set, ids), name)
	}
	// 不可计价时不消耗 ID
	assert.Equal(t, int64(0), ids.next)
}

func TestPriceTradeSet_DoesNotMutateInput(t *testing.T) {
	set := []Fill{
		fill(1, types.ActionEntryLong, 1, 100),
		fill(2, types.ActionExitLong, 1, 110),
	}
	PriceTradeSet(set, &seqIDs{})
	assert.Zero(t, set[0].TradeID)
	assert.Zero(t, set[1].TotalPnL)
}
