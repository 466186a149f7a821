package monitor

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utrading/utrading-trade-pnl/pkg/goplus"
	"github.com/utrading/utrading-trade-pnl/pkg/logger"
)

// HealthServer HTTP 健康检查和指标服务器
type HealthServer struct {
	addr         string
	db           DBPinger
	nats         ConnRef
	processor    StatsRef
	gatherer     prometheus.Gatherer
	server       *http.Server
	listener     net.Listener
	mu           sync.RWMutex
	healthy      bool
	healthySince time.Time
	startTime    time.Time
}

// DBPinger 数据库连通性检查接口（*sql.DB 满足）
type DBPinger interface {
	PingContext(ctx context.Context) error
}

// ConnRef NATS 连接引用接口
type ConnRef interface {
	IsConnected() bool
}

// StatsRef 成交处理器统计接口
type StatsRef interface {
	GetStats() map[string]any
}

// NewHealthServer 创建健康检查服务器，gatherer 为 nil 时使用默认注册器
func NewHealthServer(addr string, gatherer prometheus.Gatherer, db DBPinger, nats ConnRef, processor StatsRef) *HealthServer {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &HealthServer{
		addr:         addr,
		db:           db,
		nats:         nats,
		processor:    processor,
		gatherer:     gatherer,
		healthy:      true,
		healthySince: time.Now(),
		startTime:    time.Now(),
	}
}

// Handler 返回路由（测试中直接使用）
func (h *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()

	// 健康检查端点
	mux.HandleFunc("/health", h.healthHandler)
	mux.HandleFunc("/health/ready", h.readyHandler)
	mux.HandleFunc("/health/live", h.liveHandler)

	// Prometheus指标端点
	mux.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))

	// 服务状态端点
	mux.HandleFunc("/status", h.statusHandler)
	return mux
}

// Start 启动HTTP服务器
func (h *HealthServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return err
	}
	h.listener = ln

	h.server = &http.Server{
		Handler:      h.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	goplus.Go(func() {
		if err := h.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("health server error")
		}
	})

	logger.Info().Str("addr", ln.Addr().String()).Msg("health server started")

	return nil
}

// Stop 停止服务器
func (h *HealthServer) Stop(ctx context.Context) error {
	h.mu.Lock()
	h.healthy = false
	h.mu.Unlock()

	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(ctx)
}

// healthHandler 健康检查处理器
func (h *HealthServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := h.getHealthStatus(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(status)
}

// readyHandler 就绪检查处理器
func (h *HealthServer) readyHandler(w http.ResponseWriter, r *http.Request) {
	if !h.isReady(r.Context()) {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// liveHandler 存活检查处理器
func (h *HealthServer) liveHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// statusHandler 服务状态处理器
func (h *HealthServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := h.getHealthStatus(r.Context())
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

func (h *HealthServer) dbConnected(ctx context.Context) bool {
	if h.db == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return h.db.PingContext(ctx) == nil
}

// isReady 数据库可用且 NATS 已连接
func (h *HealthServer) isReady(ctx context.Context) bool {
	h.mu.RLock()
	healthy := h.healthy
	h.mu.RUnlock()

	if !healthy {
		return false
	}
	if !h.dbConnected(ctx) {
		return false
	}
	if h.nats != nil && !h.nats.IsConnected() {
		return false
	}
	return true
}

// getHealthStatus 获取健康状态
func (h *HealthServer) getHealthStatus(ctx context.Context) HealthStatus {
	h.mu.RLock()
	healthy := h.healthy
	healthySince := h.healthySince
	h.mu.RUnlock()

	natsConnected := false
	if h.nats != nil {
		natsConnected = h.nats.IsConnected()
	}

	var stats map[string]any
	if h.processor != nil {
		stats = h.processor.GetStats()
	}

	dbOK := h.dbConnected(ctx)

	return HealthStatus{
		Healthy:      healthy && dbOK,
		HealthySince: healthySince.Format(time.RFC3339),
		Uptime:       time.Since(h.startTime).String(),
		Goroutines:   goplus.Running(),
		Database:     DatabaseStatus{Connected: dbOK},
		NATS:         NATSStatus{Connected: natsConnected},
		Processor:    stats,
	}
}

// HealthStatus 健康状态结构
type HealthStatus struct {
	Healthy      bool           `json:"healthy"`
	HealthySince string         `json:"healthy_since"`
	Uptime       string         `json:"uptime"`
	Goroutines   int64          `json:"background_goroutines"`
	Database     DatabaseStatus `json:"database"`
	NATS         NATSStatus     `json:"nats"`
	Processor    map[string]any `json:"processor,omitempty"`
}

// DatabaseStatus 数据库连接状态
type DatabaseStatus struct {
	Connected bool `json:"connected"`
}

// NATSStatus NATS连接状态
type NATSStatus struct {
	Connected bool `json:"connected"`
}
