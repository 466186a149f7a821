package nats

import (
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/utrading/utrading-trade-pnl/pkg/goplus"
	"github.com/utrading/utrading-trade-pnl/pkg/logger"
)

// Handler 消息处理函数
type Handler func(data []byte)

// Subscriber 队列订阅，同一 queue group 内的实例分摊消息
type Subscriber struct {
	conn  *nats.Conn
	queue string
	mu    sync.Mutex
	subs  []*nats.Subscription
}

// NewSubscriber 创建订阅器
func NewSubscriber(conn *nats.Conn, queue string) *Subscriber {
	return &Subscriber{conn: conn, queue: queue}
}

// Subscribe 订阅主题，handler 内的 panic 会被恢复
func (s *Subscriber) Subscribe(subject string, handler Handler) error {
	sub, err := s.conn.QueueSubscribe(subject, s.queue, func(msg *nats.Msg) {
		defer goplus.Recover()
		handler(msg.Data)
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()

	logger.Info().Str("subject", subject).Str("queue", s.queue).Msg("nats subscribed")
	return nil
}

// Drain 停止接收新消息，等待已投递的消息处理完
func (s *Subscriber) Drain() {
	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Drain(); err != nil {
			logger.Warn().Err(err).Str("subject", sub.Subject).Msg("drain subscription failed")
		}
	}
}
