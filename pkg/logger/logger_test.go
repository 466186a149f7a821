package logger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return ""
	}
	require.NoError(t, err)
	return string(b)
}

func TestBuild_DefaultFilesFromService(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, NewBuilder().SetService("trade_pnl").SetDir(dir).SetLevel(DEBUG).Build())
	defer Close()

	Info().Int64("contract_id", 265598).Msg("trade set closed")
	Error().Err(errors.New("deadlock")).Msg("transaction rolled back")

	info := readFile(t, filepath.Join(dir, "trade_pnl.log"))
	assert.Contains(t, info, "trade set closed")
	assert.Contains(t, info, "contract_id=265598")
	assert.Contains(t, info, "service=trade_pnl")
	assert.NotContains(t, info, "transaction rolled back")

	errLog := readFile(t, filepath.Join(dir, "trade_pnl.err.log"))
	assert.Contains(t, errLog, "transaction rolled back")
	assert.Contains(t, errLog, "deadlock")
}

func TestBuild_UnconfiguredLevelsFallBackToInfo(t *testing.T) {
	dir := t.TempDir()
	infoFile := filepath.Join(dir, "info.log")
	warnFile := filepath.Join(dir, "warn.log")

	require.NoError(t, NewBuilder().
		AddLevelFile(INFO, infoFile).
		AddLevelFile(WARN, warnFile).
		SetLevel(DEBUG).
		Build())
	defer Close()

	Debug().Msg("window locked")
	Warn().Msg("publish skipped")
	Err(errors.New("boom")).Msg("save fill failed")

	info := readFile(t, infoFile)
	assert.Contains(t, info, "window locked")
	assert.Contains(t, info, "save fill failed")
	assert.NotContains(t, info, "publish skipped")

	warn := readFile(t, warnFile)
	assert.Contains(t, warn, "publish skipped")
	assert.NotContains(t, warn, "window locked")
}

func TestBuild_GlobalLevel(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "info.log")

	require.NoError(t, NewBuilder().AddLevelFile(INFO, file).SetLevel(WARN).Build())
	defer Close()

	Debug().Msg("hidden debug")
	Info().Msg("hidden info")
	Warn().Msg("visible warn")

	content := readFile(t, file)
	assert.NotContains(t, content, "hidden")
	assert.Contains(t, content, "visible warn")
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
}

func TestBuild_RebuildReplacesSink(t *testing.T) {
	first := filepath.Join(t.TempDir(), "first.log")
	second := filepath.Join(t.TempDir(), "second.log")

	require.NoError(t, NewBuilder().AddLevelFile(INFO, first).Build())
	Info().Msg("to first")
	require.NoError(t, NewBuilder().AddLevelFile(INFO, second).Build())
	Info().Msg("to second")
	Close()
	Close()

	assert.Contains(t, readFile(t, first), "to first")
	assert.NotContains(t, readFile(t, first), "to second")
	assert.Contains(t, readFile(t, second), "to second")
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"INFO":    zerolog.InfoLevel,
		" warn ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"Error":   zerolog.ErrorLevel,
		"fatal":   zerolog.FatalLevel,
		"verbose": zerolog.InfoLevel,
		"":        zerolog.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestConfigFiles(t *testing.T) {
	files := NewBuilder().SetService("trade_pnl").SetDir("/var/log/pnl").Config().files()
	assert.Equal(t, []LevelFile{
		{Level: INFO, Path: "/var/log/pnl/trade_pnl.log"},
		{Level: ERROR, Path: "/var/log/pnl/trade_pnl.err.log"},
	}, files)

	explicit := NewBuilder().AddLevelFile(DEBUG, "debug.log").Config().files()
	assert.Equal(t, []LevelFile{{Level: DEBUG, Path: "debug.log"}}, explicit)

	// 空目录不覆盖默认值
	assert.Equal(t, "logs", NewBuilder().SetDir("").Config().Dir)
}

func TestLevelRouter(t *testing.T) {
	configured := map[zerolog.Level]bool{zerolog.InfoLevel: true, zerolog.ErrorLevel: true}
	info := &levelRouter{level: zerolog.InfoLevel, configured: configured}
	errw := &levelRouter{level: zerolog.ErrorLevel, configured: configured}

	assert.True(t, info.accepts(zerolog.DebugLevel))
	assert.True(t, info.accepts(zerolog.WarnLevel))
	assert.True(t, info.accepts(zerolog.TraceLevel))
	assert.False(t, info.accepts(zerolog.ErrorLevel))

	assert.True(t, errw.accepts(zerolog.ErrorLevel))
	assert.True(t, errw.accepts(zerolog.FatalLevel))
	assert.False(t, errw.accepts(zerolog.WarnLevel))
}

func TestUntilMidnight(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	now := time.Date(2024, 3, 10, 23, 30, 0, 0, loc)
	assert.Equal(t, 30*time.Minute, untilMidnight(now))
	assert.Equal(t, 24*time.Hour, untilMidnight(time.Date(2024, 3, 11, 0, 0, 0, 0, loc)))
}

func BenchmarkStructuredLogging(b *testing.B) {
	if err := NewBuilder().AddLevelFile(INFO, filepath.Join(b.TempDir(), "bench.log")).Build(); err != nil {
		b.Fatal(err)
	}
	defer Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Info().
			Int64("contract_id", 265598).
			Int64("trade_id", int64(i)).
			Float64("total_pnl", 10.5).
			Msg("trade set closed")
	}
}
