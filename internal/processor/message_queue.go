package processor

import (
	"sync"

	"github.com/utrading/utrading-trade-pnl/pkg/goplus"
	"github.com/utrading/utrading-trade-pnl/pkg/logger"
)

// MessageHandler 消息处理器接口
type MessageHandler interface {
	HandleMessage(msg Message) error
}

// MessageQueue 异步消息队列，把 NATS 回调与落库解耦
type MessageQueue struct {
	queue   chan Message
	workers int
	wg      sync.WaitGroup
	handler MessageHandler
	done    chan struct{}
	once    sync.Once
}

// NewMessageQueue 创建消息队列
func NewMessageQueue(size, workers int, handler MessageHandler) *MessageQueue {
	if size <= 0 {
		size = 10000
	}
	if workers <= 0 {
		workers = 1
	}
	return &MessageQueue{
		queue:   make(chan Message, size),
		workers: workers,
		handler: handler,
		done:    make(chan struct{}),
	}
}

// Start 启动工作协程
func (q *MessageQueue) Start() {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		goplus.Go(q.worker)
	}
}

func (q *MessageQueue) worker() {
	defer q.wg.Done()
	for {
		select {
		case msg := <-q.queue:
			q.handle(msg)
		case <-q.done:
			// 退出前处理完剩余消息
			for {
				select {
				case msg := <-q.queue:
					q.handle(msg)
				default:
					return
				}
			}
		}
	}
}

func (q *MessageQueue) handle(msg Message) {
	defer goplus.Recover()
	if err := q.handler.HandleMessage(msg); err != nil {
		logger.Error().Err(err).Str("type", msg.Type()).Msg("handle message failed")
	}
}

// Enqueue 发送消息（带背压策略）
func (q *MessageQueue) Enqueue(msg Message) error {
	select {
	case q.queue <- msg:
		return nil
	default:
		// 队列满，同步降级处理
		logger.Warn().
			Str("type", msg.Type()).
			Int("queue_size", len(q.queue)).
			Msg("message queue full, falling back to sync processing")

		return q.handler.HandleMessage(msg)
	}
}

// Stop 停止队列并等待剩余消息处理完
func (q *MessageQueue) Stop() {
	q.once.Do(func() { close(q.done) })
	q.wg.Wait()
}

// Size 返回当前队列大小
func (q *MessageQueue) Size() int {
	return len(q.queue)
}
