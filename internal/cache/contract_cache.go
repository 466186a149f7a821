package cache

import (
	"github.com/utrading/utrading-trade-pnl/pkg/concurrent"
)

// ContractCache 已落库合约缓存 contractID -> vt_symbol
type ContractCache struct {
	contracts *concurrent.Map[int64, string]
}

// NewContractCache 创建合约缓存
func NewContractCache() *ContractCache {
	return &ContractCache{
		contracts: &concurrent.Map[int64, string]{},
	}
}

// Has 合约是否已落库
func (c *ContractCache) Has(contractID int64) bool {
	_, ok := c.contracts.Load(contractID)
	return ok
}

// VtSymbol 获取合约的 vt_symbol
func (c *ContractCache) VtSymbol(contractID int64) (string, bool) {
	return c.contracts.Load(contractID)
}

// Set 记录已落库合约
func (c *ContractCache) Set(contractID int64, vtSymbol string) {
	c.contracts.Store(contractID, vtSymbol)
}

// Warm 预热缓存（启动时加载已有合约ID）
func (c *ContractCache) Warm(ids []int64) {
	for _, id := range ids {
		c.contracts.LoadOrStore(id, "")
	}
}

// Stats 获取统计信息
func (c *ContractCache) Stats() map[string]any {
	return map[string]any{
		"contract_count": c.contracts.Len(),
	}
}
