package dal

import (
	"context"
	"fmt"
	"net"
	"time"

	proxymysql "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/proxy"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"

	"github.com/utrading/utrading-trade-pnl/config"
	"github.com/utrading/utrading-trade-pnl/internal/models"
	"github.com/utrading/utrading-trade-pnl/pkg/logger"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

type GormLogger struct{}

func (l GormLogger) Printf(f string, args ...any) {
	log.Printf(f, args...)
}

func (l GormLogger) Print(args ...any) {
	log.Print(args...)
}

// Models 需要迁移的表
func Models() []any {
	return []any{
		&models.Contract{},
		&models.Order{},
		&models.Trade{},
		&models.AccountValue{},
	}
}

// registerProxyDialer 注册 SOCKS5 代理拨号器
func registerProxyDialer(proxyAddr string) error {
	dialer, err := proxy.SOCKS5("tcp", proxyAddr, nil, &net.Dialer{})
	if err != nil {
		return fmt.Errorf("create proxy dialer failed: %w", err)
	}

	proxymysql.RegisterDialContext("dial", func(ctx context.Context, addr string) (net.Conn, error) {
		return dialer.Dial("tcp", addr)
	})

	return nil
}

func dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "", DriverMySQL:
		return mysql.Open(dsn), nil
	case DriverSQLite:
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}
}

// Open 建立数据库连接（主库 + 可选从库），由 main 构造一次后注入各组件
func Open(cfg config.MySQL) (*gorm.DB, error) {
	// 注册代理（如果启用）
	if cfg.ProxyEnabled && cfg.Driver != DriverSQLite {
		if err := registerProxyDialer(cfg.ProxyAddr); err != nil {
			return nil, fmt.Errorf("register proxy failed: %w", err)
		}
		logger.Info().Str("proxy", cfg.ProxyAddr).Msg("mysql proxy enabled")
	}

	newLogger := gormlogger.New(
		GormLogger{}, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			Colorful:                  true,
			IgnoreRecordNotFoundError: true,
		},
	)

	master, err := dialector(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	// 主库连接
	db, err := gorm.Open(master, &gorm.Config{
		Logger:      newLogger,
		PrepareStmt: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect %s master failed: %w", cfg.Driver, err)
	}

	// 配置连接池
	maxIdleTime := time.Hour
	if cfg.SetConnMaxIdleTime > 0 {
		maxIdleTime = time.Duration(cfg.SetConnMaxIdleTime) * time.Second
	}

	maxLifetime := 2 * time.Hour
	if cfg.SetConnMaxLifetime > 0 {
		maxLifetime = time.Duration(cfg.SetConnMaxLifetime) * time.Second
	}

	// 配置读写分离
	if len(cfg.SlaveAddr) > 0 {
		var replicas []gorm.Dialector
		for _, addr := range cfg.SlaveAddr {
			replica, err := dialector(cfg.Driver, addr)
			if err != nil {
				return nil, err
			}
			replicas = append(replicas, replica)
		}

		plugin := dbresolver.Register(dbresolver.Config{
			Replicas:          replicas,
			Policy:            dbresolver.RandomPolicy{},
			TraceResolverMode: true,
		}).
			SetConnMaxIdleTime(maxIdleTime).
			SetConnMaxLifetime(maxLifetime).
			SetMaxIdleConns(cfg.MaxIdleConnections).
			SetMaxOpenConns(cfg.MaxOpenConnections)
		if err = db.Use(plugin); err != nil {
			return nil, fmt.Errorf("register dbresolver failed: %w", err)
		}
		logger.Info().Str("driver", cfg.Driver).Int("slaves", len(cfg.SlaveAddr)).Msg("read replicas configured")
	}

	// 配置主库连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB failed: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConnections)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConnections)
	sqlDB.SetConnMaxIdleTime(maxIdleTime)
	sqlDB.SetConnMaxLifetime(maxLifetime)

	logger.Info().Msgf("%s connected: max_idle=%d, max_open=%d, max_idle_time=%v, max_lifetime=%v",
		cfg.Driver, cfg.MaxIdleConnections, cfg.MaxOpenConnections, maxIdleTime, maxLifetime)

	return db, nil
}

// Close 关闭数据库连接
func Close(db *gorm.DB) {
	if db == nil {
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Error().Err(err).Msg("get sql.DB failed")
		return
	}
	if err = sqlDB.Close(); err != nil {
		logger.Error().Err(err).Msg("close db failed")
	}

	logger.Info().Msg("db closed")
}

// AutoMigrate 自动迁移数据库表结构
// 失败时记录警告日志，不中断服务启动
func AutoMigrate(db *gorm.DB) {
	if db == nil {
		log.Error().Msg("database not initialized, skip auto migration")
		return
	}

	for _, model := range Models() {
		if err := db.AutoMigrate(model); err != nil {
			log.Warn().Err(err).
				Str("table", getTableName(model)).
				Msg("auto migrate failed, continuing anyway")
		} else {
			log.Info().Str("table", getTableName(model)).Msg("auto migrate success")
		}
	}
}

// getTableName 获取模型的表名
func getTableName(model any) string {
	if t, ok := model.(interface{ TableName() string }); ok {
		return t.TableName()
	}
	return "unknown"
}
