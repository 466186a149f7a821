package logger

import (
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

const (
	DEBUG = "debug"
	INFO  = "info"
	WARN  = "warn"
	ERROR = "error"
	FATAL = "fatal"
)

// ParseLevel 解析等级名称，无法识别时返回 info
func ParseLevel(name string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case DEBUG:
		return zerolog.DebugLevel
	case WARN, "warning":
		return zerolog.WarnLevel
	case ERROR:
		return zerolog.ErrorLevel
	case FATAL:
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// LevelFile 单个等级对应的日志文件
type LevelFile struct {
	Level string
	Path  string
}

type Config struct {
	Service    string      // 写入每行日志的 service 字段，可为空
	Dir        string      // LevelFiles 为空时按 Dir/Service 生成默认文件
	LevelFiles []LevelFile // 分等级文件
	MaxSize    int         // 单个文件最大 MB
	MaxBackups int
	MaxAge     int // 天
	Level      string
	Compress   bool
	Console    bool // 同时输出到 stdout
}

// DefaultConfig 默认配置：logs/ 下 info 与 error 两个文件
func DefaultConfig() Config {
	return Config{
		Dir:        "logs",
		MaxSize:    10,
		MaxBackups: 100,
		MaxAge:     5,
		Level:      INFO,
	}
}

// files 返回最终使用的等级文件
// 未显式配置时生成 <dir>/<service>.log 与 <dir>/<service>.err.log
func (c Config) files() []LevelFile {
	if len(c.LevelFiles) > 0 {
		return c.LevelFiles
	}
	dir := c.Dir
	if dir == "" {
		dir = "logs"
	}
	name := c.Service
	if name == "" {
		name = "app"
	}
	return []LevelFile{
		{Level: INFO, Path: filepath.Join(dir, name+".log")},
		{Level: ERROR, Path: filepath.Join(dir, name+".err.log")},
	}
}

type Builder struct {
	config Config
}

func NewBuilder() *Builder {
	return &Builder{config: DefaultConfig()}
}

func (b *Builder) SetService(name string) *Builder {
	b.config.Service = name
	return b
}

func (b *Builder) SetDir(dir string) *Builder {
	if dir != "" {
		b.config.Dir = dir
	}
	return b
}

func (b *Builder) SetMaxSize(size int) *Builder {
	b.config.MaxSize = size
	return b
}

func (b *Builder) SetMaxBackups(backups int) *Builder {
	b.config.MaxBackups = backups
	return b
}

func (b *Builder) SetMaxAge(days int) *Builder {
	b.config.MaxAge = days
	return b
}

func (b *Builder) SetLevel(level string) *Builder {
	b.config.Level = level
	return b
}

func (b *Builder) EnableCompression(enable bool) *Builder {
	b.config.Compress = enable
	return b
}

func (b *Builder) EnableConsoleOutput(enable bool) *Builder {
	b.config.Console = enable
	return b
}

// AddLevelFile 显式指定某个等级的文件，设置后不再生成默认文件
func (b *Builder) AddLevelFile(level, path string) *Builder {
	b.config.LevelFiles = append(b.config.LevelFiles, LevelFile{Level: level, Path: path})
	return b
}

func (b *Builder) Config() Config {
	return b.config
}

func (b *Builder) Build() error {
	return initLogger(b.config)
}
