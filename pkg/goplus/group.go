package goplus

import (
	"sync"
	"sync/atomic"
)

var background = NewWaitGroup()

// Go 在后台协程中执行 fn，panic 会被记录而不会导致进程退出
func Go(fn func()) {
	background.Go(fn)
}

// Running 后台协程当前数量
func Running() int64 {
	return background.Count()
}

// WaitGroup 带计数与 panic 恢复的 sync.WaitGroup
type WaitGroup struct {
	wg      sync.WaitGroup
	running atomic.Int64
}

func NewWaitGroup() *WaitGroup {
	return &WaitGroup{}
}

func (s *WaitGroup) Go(fn func()) {
	s.running.Add(1)
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		defer s.running.Add(-1)
		defer Recover()

		fn()
	}()
}

func (s *WaitGroup) Wait() {
	s.wg.Wait()
}

// Count 当前运行中的协程数量
func (s *WaitGroup) Count() int64 {
	return s.running.Load()
}
