package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"

	"github.com/utrading/utrading-trade-pnl/config"
	"github.com/utrading/utrading-trade-pnl/internal/cache"
	"github.com/utrading/utrading-trade-pnl/internal/dal"
	"github.com/utrading/utrading-trade-pnl/internal/dao"
	"github.com/utrading/utrading-trade-pnl/internal/gateway"
	"github.com/utrading/utrading-trade-pnl/internal/monitor"
	"github.com/utrading/utrading-trade-pnl/internal/nats"
	"github.com/utrading/utrading-trade-pnl/internal/pnl"
	"github.com/utrading/utrading-trade-pnl/internal/processor"
	"github.com/utrading/utrading-trade-pnl/internal/reconciler"
	"github.com/utrading/utrading-trade-pnl/internal/service"
	"github.com/utrading/utrading-trade-pnl/pkg/logger"
	"github.com/utrading/utrading-trade-pnl/pkg/sigproc"
)

func main() {
	var (
		configFile string
		report     bool
		account    string
		symbols    string
	)
	flag.StringVar(&configFile, "config", "cfg.toml", "config file path")
	flag.BoolVar(&report, "report", false, "print the cumulative pnl report as json and exit")
	flag.StringVar(&account, "account", "", "report: filter by account id")
	flag.StringVar(&symbols, "symbols", "", "report: comma separated symbols")
	flag.Parse()

	// 加载配置
	if err := config.Init(configFile); err != nil {
		panic(err)
	}
	cfg := config.Get()

	// 初始化日志
	if err := initLogger(cfg); err != nil {
		panic("init logger failed: " + err.Error())
	}
	defer logger.Close()

	// 初始化数据库
	db, err := dal.Open(cfg.MySQL)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db failed")
	}
	if cfg.MySQL.AutoMigrate {
		dal.AutoMigrate(db)
	}

	if report {
		err = printReport(db, account, symbols)
		dal.Close(db)
		config.Stop()
		if err != nil {
			logger.Fatal().Err(err).Msg("report failed")
		}
		return
	}

	logger.Info().Msg("trade_pnl service starting...")

	// 初始化指标
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitor.NewMetrics("trade_pnl", registry)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 持久化网关（进程内唯一）
	gw := gateway.New(db, gateway.Options{
		Window:    cfg.TradePnL.RecalcWindow,
		TxTimeout: cfg.TradePnL.TxTimeout,
		IDs:       pnl.NewIDGenerator(),
		Metrics:   metrics,
	})
	d := dao.New(db)

	// 初始化 NATS
	publisher, err := nats.NewPublisher(cfg.NATS.Endpoint, cfg.NATS.PnLSubject, metrics)
	if err != nil {
		logger.Fatal().Err(err).Msg("init nats publisher failed")
	}
	defer publisher.Close()

	// 去重缓存与合约缓存预热
	deduper := cache.NewDedupCache(cfg.Ingest.DedupTTL)
	if err = deduper.LoadFromDB(ctx, d.Trade); err != nil {
		logger.Warn().Err(err).Msg("failed to load filled trades to dedup cache")
	}
	contracts := cache.NewContractCache()
	if ids, err := d.Contract.ListContractIDs(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to warm contract cache")
	} else {
		contracts.Warm(ids)
	}

	// 创建批量写入器
	batchWriter := processor.NewBatchWriter(d, metrics, &processor.BatchWriterConfig{
		BatchSize:     cfg.Ingest.BatchSize,
		FlushInterval: cfg.Ingest.FlushInterval,
	})
	batchWriter.Start()

	fillProcessor, err := processor.NewFillProcessor(gw, publisher, batchWriter, deduper, contracts, metrics,
		processor.FillProcessorConfig{
			Workers:     cfg.Ingest.Workers,
			SaveTimeout: cfg.TradePnL.TxTimeout * 3,
		})
	if err != nil {
		logger.Fatal().Err(err).Msg("init fill processor failed")
	}

	queue := processor.NewMessageQueue(10000, 4, fillProcessor)
	queue.Start()

	// 订阅成交回报与账户数值
	subscriber := nats.NewSubscriber(publisher.Conn, cfg.NATS.QueueGroup)
	if err = subscriber.Subscribe(cfg.NATS.FillSubject, enqueue(queue, fillProcessor.DecodeFill)); err != nil {
		logger.Fatal().Err(err).Msg("subscribe fills failed")
	}
	if cfg.NATS.AccountTopic != "" {
		if err = subscriber.Subscribe(cfg.NATS.AccountTopic, enqueue(queue, fillProcessor.DecodeAccountValue)); err != nil {
			logger.Fatal().Err(err).Msg("subscribe account values failed")
		}
	}

	// 补算未计价的平仓成交
	var recon *reconciler.Reconciler
	if cfg.Reconcile.Enabled {
		recon = reconciler.New(db, gw, reconciler.Options{
			Interval: cfg.Reconcile.Interval,
			Lookback: cfg.Reconcile.Lookback,
			Limit:    cfg.Reconcile.Limit,
			Metrics:  metrics,
			OnClosed: func(_ context.Context, set pnl.TradeSet) { fillProcessor.PublishClosed(set) },
		})
		recon.Start(ctx)
	}

	// 初始化健康检查服务器
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal().Err(err).Msg("get sql.DB failed")
	}
	healthServer := monitor.NewHealthServer(cfg.TradePnL.HealthServerAddr, registry, sqlDB, publisher, fillProcessor)
	if err = healthServer.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("start health server failed")
	}

	logger.Info().
		Str("fill_subject", cfg.NATS.FillSubject).
		Str("health_addr", cfg.TradePnL.HealthServerAddr).
		Int("window", cfg.TradePnL.RecalcWindow).
		Msg("trade_pnl service started successfully")

	// 优雅关闭
	sigproc.GracefulShutdown(sigproc.DefaultTimeout, func(sig os.Signal) {
		logger.Info().Str("signal", sig.String()).Msg("shutting down...")

		// 停止接收新回报
		subscriber.Drain()
		queue.Stop()
		fillProcessor.Stop()

		if recon != nil {
			recon.Stop()
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		healthServer.Stop(shutdownCtx)

		config.Stop()

		if err := batchWriter.GracefulShutdown(10 * time.Second); err != nil {
			logger.Warn().Err(err).Msg("batch writer shutdown")
		}

		publisher.Close()
		dal.Close(db)

		logger.Info().Msg("trade_pnl service stopped")
		logger.Close()
	})

	// 关闭流程结束后由 sigproc 退出进程
	select {}
}

// enqueue 解析消息后放入队列，解析失败的消息直接丢弃
func enqueue(queue *processor.MessageQueue, decode func([]byte) (processor.Message, error)) nats.Handler {
	return func(data []byte) {
		msg, err := decode(data)
		if err != nil {
			return
		}
		if err = queue.Enqueue(msg); err != nil {
			logger.Error().Err(err).Str("type", msg.Type()).Msg("enqueue message failed")
		}
	}
}

func printReport(db *gorm.DB, account, symbols string) error {
	filter := service.TradeFilter{AccountID: account}
	if symbols != "" {
		filter.Symbols = strings.Split(symbols, ",")
	}

	resp, err := service.NewTradeService(db).ListTrades(context.Background(), filter)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func initLogger(cfg *config.Config) error {
	return logger.NewBuilder().
		SetService("trade_pnl").
		SetDir(cfg.Logger.Dir).
		SetMaxSize(cfg.Logger.MaxSize).
		SetMaxBackups(cfg.Logger.MaxBackups).
		SetMaxAge(cfg.Logger.MaxAge).
		SetLevel(cfg.Logger.Level).
		EnableCompression(cfg.Logger.Compress).
		EnableConsoleOutput(cfg.Logger.Console).
		Build()
}
