package nats

import (
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/utrading/utrading-trade-pnl/internal/monitor"
	"github.com/utrading/utrading-trade-pnl/internal/pnl"
	"github.com/utrading/utrading-trade-pnl/pkg/logger"
)

// Publisher NATS 连接，负责发布平仓消息，订阅也复用同一连接
type Publisher struct {
	*nats.Conn
	subject string
	metrics *monitor.Metrics
	mu      sync.RWMutex
	closed  bool
}

// NewPublisher 创建 NATS 发布器
// subject: 平仓消息主题
func NewPublisher(url, subject string, metrics *monitor.Metrics) (*Publisher, error) {
	p := &Publisher{
		subject: subject,
		metrics: metrics,
	}

	conn, err := nats.Connect(url,
		nats.Name("trade_pnl"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			metrics.SetNATSConnected(false)
			logger.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			metrics.SetNATSConnected(true)
			logger.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, err
	}
	p.Conn = conn

	metrics.SetNATSConnected(true)

	return p, nil
}

// PublishTradeClosed 发布集合平仓消息
func (p *Publisher) PublishTradeClosed(set pnl.TradeSet) error {
	if !p.IsConnected() {
		p.metrics.IncClosedPublished("skipped")
		return fmt.Errorf("nats publisher closed")
	}

	data, err := NewTradeClosedEvent(set).Marshal()
	if err != nil {
		p.metrics.IncClosedPublished("error")
		logger.Error().Err(err).Msg("marshal trade closed event failed")
		return err
	}

	if err = p.Publish(p.subject, data); err != nil {
		p.metrics.IncClosedPublished("error")
		return err
	}
	p.metrics.IncClosedPublished("ok")
	return nil
}

// IsConnected 检查发布器是否已连接
func (p *Publisher) IsConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.closed && p.Conn != nil && p.Conn.IsConnected()
}

// Close 关闭连接
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	p.metrics.SetNATSConnected(false)

	if p.Conn != nil {
		p.Conn.Close()
	}
	return nil
}
