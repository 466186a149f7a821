package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParse_DefaultsAndOverrides(t *testing.T) {
	path := writeConfig(t, `
[trade_pnl]
recalc_window = 8
tx_timeout = "3s"

[mysql]
driver = "sqlite"
dsn = "file:pnl.db"

[reconcile]
interval = "30s"
`)

	c, err := Parse(path)
	require.NoError(t, err)

	assert.Equal(t, 8, c.TradePnL.RecalcWindow)
	assert.Equal(t, 3*time.Second, c.TradePnL.TxTimeout)
	assert.Equal(t, "sqlite", c.MySQL.Driver)
	assert.Equal(t, 30*time.Second, c.Reconcile.Interval)

	// 未配置的字段保持默认值
	assert.Equal(t, "ib.fills", c.NATS.FillSubject)
	assert.Equal(t, 30, c.Ingest.Workers)
	assert.Equal(t, 24*time.Hour, c.Reconcile.Lookback)
}

func TestParse_EnvOverride(t *testing.T) {
	path := writeConfig(t, "[mysql]\ndriver = \"mysql\"\n")
	t.Setenv(EnvPrefix+"MYSQL_DRIVER", "sqlite")
	t.Setenv(EnvPrefix+"INGEST_WORKERS", "4")
	t.Setenv(EnvPrefix+"TX_TIMEOUT", "1500ms")
	t.Setenv(EnvPrefix+"MYSQL_SLAVE_ADDR", "a,b")

	c, err := Parse(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", c.MySQL.Driver)
	assert.Equal(t, 4, c.Ingest.Workers)
	assert.Equal(t, 1500*time.Millisecond, c.TradePnL.TxTimeout)
	assert.Equal(t, []string{"a", "b"}, c.MySQL.SlaveAddr)
}

func TestApplyEnv_Invalid(t *testing.T) {
	c := Default()
	err := c.applyEnv(func(key string) (string, bool) {
		if key == EnvPrefix+"RECALC_WINDOW" {
			return "five", true
		}
		return "", false
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RECALC_WINDOW")
	assert.Equal(t, 5, c.TradePnL.RecalcWindow)
}

func TestParse_BadFile(t *testing.T) {
	_, err := Parse(writeConfig(t, "[trade_pnl\n"))
	assert.Error(t, err)

	_, err = Parse(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestLoadAndReload(t *testing.T) {
	path := writeConfig(t, "[trade_pnl]\nrecalc_window = 6\n")
	require.NoError(t, Load(path))
	assert.Equal(t, 6, Get().TradePnL.RecalcWindow)

	require.NoError(t, os.WriteFile(path, []byte("[trade_pnl]\nrecalc_window = 7\n"), 0o644))
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))

	reloadIfNeeded()
	assert.Equal(t, 7, Get().TradePnL.RecalcWindow)
}
