package types

import "errors"

var (
	// ErrInvalidAction 动作与仓位状态组合非法，必须在进入引擎前拒绝
	ErrInvalidAction = errors.New("invalid market action")

	// ErrInvalidFill 成交事件缺少必要字段
	ErrInvalidFill = errors.New("invalid fill")

	// ErrPersistence 事务失败，整个写入单元已回滚
	ErrPersistence = errors.New("persistence failure")
)
