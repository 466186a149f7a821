package concurrent

import (
	"sync"
	"sync/atomic"
)

// Map 并发安全的泛型 map，额外维护元素个数
// 零值可直接使用
type Map[K comparable, V any] struct {
	length atomic.Int64
	data   sync.Map
}

// Len 当前元素个数
func (m *Map[K, V]) Len() int64 {
	return m.length.Load()
}

// Load 读取 key 对应的值
func (m *Map[K, V]) Load(key K) (V, bool) {
	value, ok := m.data.Load(key)
	if !ok {
		var zero V
		return zero, false
	}
	return value.(V), true
}

// Store 写入或覆盖
func (m *Map[K, V]) Store(key K, value V) {
	m.Swap(key, value)
}

// LoadOrStore key 已存在时返回旧值，否则写入 value；loaded 表示是否已存在
func (m *Map[K, V]) LoadOrStore(key K, value V) (V, bool) {
	actual, loaded := m.data.LoadOrStore(key, value)
	if !loaded {
		m.length.Add(1)
	}
	return actual.(V), loaded
}

// LoadAndDelete 删除 key 并返回被删除的值
func (m *Map[K, V]) LoadAndDelete(key K) (V, bool) {
	value, loaded := m.data.LoadAndDelete(key)
	if !loaded {
		var zero V
		return zero, false
	}
	m.length.Add(-1)
	return value.(V), true
}

// Delete 删除 key
func (m *Map[K, V]) Delete(key K) {
	m.LoadAndDelete(key)
}

// Swap 写入 value 并返回旧值；loaded 表示 key 之前是否存在
func (m *Map[K, V]) Swap(key K, value V) (V, bool) {
	previous, loaded := m.data.Swap(key, value)
	if !loaded {
		m.length.Add(1)
		var zero V
		return zero, false
	}
	return previous.(V), true
}

// Range 遍历，f 返回 false 时停止
// 不保证快照语义，遍历期间的并发写入可能可见也可能不可见
func (m *Map[K, V]) Range(f func(K, V) bool) {
	m.data.Range(func(key, value any) bool {
		return f(key.(K), value.(V))
	})
}

// Drain 逐个取出并删除当前所有元素，返回取出的个数
// 每个 key 以删除时刻的值回调，遍历期间被覆盖的值不会丢失
func (m *Map[K, V]) Drain(f func(K, V)) int {
	n := 0
	m.data.Range(func(key, _ any) bool {
		if value, ok := m.LoadAndDelete(key.(K)); ok {
			f(key.(K), value)
			n++
		}
		return true
	})
	return n
}
