package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/spf13/cast"

	"github.com/utrading/utrading-trade-pnl/pkg/logger"
)

type TradePnL struct {
	HealthServerAddr string        `toml:"health_server_addr"`
	RecalcWindow     int           `toml:"recalc_window"` // 重算时锁定的最近成交行数
	TxTimeout        time.Duration `toml:"tx_timeout"`
}

type MySQL struct {
	Driver             string   `toml:"driver"` // mysql | sqlite
	DSN                string   `toml:"dsn"`
	SlaveAddr          []string `toml:"slave_addr"`
	MaxIdleConnections int      `toml:"max_idle_connections"`
	MaxOpenConnections int      `toml:"max_open_connections"`
	SetConnMaxLifetime int      `toml:"set_conn_max_lifetime"`
	SetConnMaxIdleTime int      `toml:"set_conn_max_idle_time"`
	ProxyEnabled       bool     `toml:"proxy_enabled"`
	ProxyAddr          string   `toml:"proxy_addr"`
	AutoMigrate        bool     `toml:"auto_migrate"`
}

type NATS struct {
	Endpoint     string `toml:"endpoint"`
	FillSubject  string `toml:"fill_subject"`
	QueueGroup   string `toml:"queue_group"`
	PnLSubject   string `toml:"pnl_subject"`
	AccountTopic string `toml:"account_subject"`
}

type Logger struct {
	Dir        string `toml:"dir"`
	Level      string `toml:"level"`
	MaxSize    int    `toml:"max_size"`
	MaxBackups int    `toml:"max_backups"`
	MaxAge     int    `toml:"max_age"`
	Compress   bool   `toml:"compress"`
	Console    bool   `toml:"console"`
}

type Ingest struct {
	Workers       int           `toml:"workers"`
	DedupTTL      time.Duration `toml:"dedup_ttl"`
	BatchSize     int           `toml:"batch_size"`
	FlushInterval time.Duration `toml:"flush_interval"`
}

type Reconcile struct {
	Enabled  bool          `toml:"enabled"`
	Interval time.Duration `toml:"interval"`
	Lookback time.Duration `toml:"lookback"`
	Limit    int           `toml:"limit"`
}

type Config struct {
	TradePnL  TradePnL  `toml:"trade_pnl"`
	MySQL     MySQL     `toml:"mysql"`
	NATS      NATS      `toml:"nats"`
	Logger    Logger    `toml:"log"`
	Ingest    Ingest    `toml:"ingest"`
	Reconcile Reconcile `toml:"reconcile"`
}

// EnvPrefix 环境变量覆盖前缀
const EnvPrefix = "TRADE_PNL_"

var (
	cfg         *Config
	cfgPath     string
	cfgLock     sync.RWMutex
	lastModTime time.Time
	stopChan    chan struct{}
)

func Default() *Config {
	return &Config{
		TradePnL: TradePnL{
			HealthServerAddr: "0.0.0.0:16810",
			RecalcWindow:     5,
			TxTimeout:        10 * time.Second,
		},
		MySQL: MySQL{
			Driver:             "mysql",
			DSN:                "root:password@tcp(localhost:3306)/utrading?charset=utf8mb4&parseTime=True&loc=Local",
			SlaveAddr:          []string{},
			MaxIdleConnections: 16,
			MaxOpenConnections: 64,
			SetConnMaxLifetime: 7200,
			SetConnMaxIdleTime: 3600,
			ProxyEnabled:       false,
			ProxyAddr:          "127.0.0.1:7890",
			AutoMigrate:        true,
		},
		NATS: NATS{
			Endpoint:     "nats://localhost:4222",
			FillSubject:  "ib.fills",
			QueueGroup:   "trade_pnl",
			PnLSubject:   "trade_pnl.closed",
			AccountTopic: "ib.account_values",
		},
		Logger: Logger{
			Dir:        "logs",
			Level:      "info",
			MaxSize:    10,
			MaxBackups: 60,
			MaxAge:     7,
			Compress:   false,
			Console:    false,
		},
		Ingest: Ingest{
			Workers:       30,
			DedupTTL:      30 * time.Minute,
			BatchSize:     100,
			FlushInterval: 2 * time.Second,
		},
		Reconcile: Reconcile{
			Enabled:  true,
			Interval: time.Minute,
			Lookback: 24 * time.Hour,
			Limit:    200,
		},
	}
}

// Parse 解析配置文件（不修改全局配置），随后应用 .env 与环境变量覆盖
func Parse(path string) (*Config, error) {
	c := Default()
	if _, err := toml.DecodeFile(path, c); err != nil {
		return nil, err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return c, nil
}

func Load(path string) error {
	c, err := Parse(path)
	if err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	cfgLock.Lock()
	defer cfgLock.Unlock()
	cfg = c
	cfgPath = path
	lastModTime = info.ModTime()

	return nil
}

// applyEnv 使用 TRADE_PNL_* 环境变量覆盖配置
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			n, err := cast.ToIntE(v)
			if err != nil {
				return errors.New("invalid " + EnvPrefix + key + ": " + err.Error())
			}
			*dst = n
		}
		return nil
	}
	dur := func(key string, dst *time.Duration) error {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			d, err := cast.ToDurationE(v)
			if err != nil {
				return errors.New("invalid " + EnvPrefix + key + ": " + err.Error())
			}
			*dst = d
		}
		return nil
	}

	str("HEALTH_SERVER_ADDR", &c.TradePnL.HealthServerAddr)
	str("MYSQL_DRIVER", &c.MySQL.Driver)
	str("MYSQL_DSN", &c.MySQL.DSN)
	str("NATS_ENDPOINT", &c.NATS.Endpoint)
	str("LOG_LEVEL", &c.Logger.Level)
	str("LOG_DIR", &c.Logger.Dir)
	if v, ok := lookup(EnvPrefix + "MYSQL_SLAVE_ADDR"); ok && v != "" {
		c.MySQL.SlaveAddr = strings.Split(v, ",")
	}

	if err := num("RECALC_WINDOW", &c.TradePnL.RecalcWindow); err != nil {
		return err
	}
	if err := num("INGEST_WORKERS", &c.Ingest.Workers); err != nil {
		return err
	}
	if err := dur("TX_TIMEOUT", &c.TradePnL.TxTimeout); err != nil {
		return err
	}
	return dur("RECONCILE_INTERVAL", &c.Reconcile.Interval)
}

func Get() *Config {
	cfgLock.RLock()
	defer cfgLock.RUnlock()
	return cfg
}

// Init 初始化配置并启动定期重载（默认10秒）
func Init(path string) error {
	return InitWithInterval(path, 10*time.Second)
}

// InitWithInterval 初始化配置并指定重载间隔
func InitWithInterval(path string, interval time.Duration) error {
	if err := Load(path); err != nil {
		return err
	}

	stopChan = make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				reloadIfNeeded()
			case <-stopChan:
				return
			}
		}
	}()

	return nil
}

// Stop 停止配置重载
func Stop() {
	if stopChan != nil {
		close(stopChan)
		stopChan = nil
	}
}

// reloadIfNeeded 仅在文件修改时重载
func reloadIfNeeded() {
	cfgLock.RLock()
	path := cfgPath
	lastMod := lastModTime
	cfgLock.RUnlock()

	if path == "" {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		logger.Error().Err(err).Msg("config stat failed")
		return
	}

	if info.ModTime().After(lastMod) {
		if err = Load(path); err != nil {
			logger.Error().Err(err).Msg("config reload failed")
		} else {
			logger.Info().Msg("config reloaded")
		}
	}
}
