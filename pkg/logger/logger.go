package logger

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"gopkg.in/natefinch/lumberjack.v2"
)

const TimeFormat = "2006-01-02 15:04:05"

var (
	mu      sync.Mutex
	current *sink
)

// sink 一次初始化产生的文件句柄与按日轮转协程
type sink struct {
	files map[string]*lumberjack.Logger
	stop  chan struct{}
	once  sync.Once
}

func initLogger(config Config) error {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.SetGlobalLevel(ParseLevel(config.Level))

	files := config.files()
	for _, f := range files {
		if err := os.MkdirAll(filepath.Dir(f.Path), 0755); err != nil {
			return err
		}
	}

	s := &sink{
		files: make(map[string]*lumberjack.Logger, len(files)),
		stop:  make(chan struct{}),
	}

	configured := make(map[zerolog.Level]bool, len(files))
	for _, f := range files {
		configured[ParseLevel(f.Level)] = true
	}

	writers := make([]io.Writer, 0, len(files)+1)
	for _, f := range files {
		lj := &lumberjack.Logger{
			Filename:   f.Path,
			MaxSize:    config.MaxSize,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAge,
			Compress:   config.Compress,
		}
		s.files[f.Path] = lj
		writers = append(writers, &levelRouter{
			level:      ParseLevel(f.Level),
			configured: configured,
			out:        zerolog.ConsoleWriter{Out: lj, TimeFormat: TimeFormat, NoColor: true},
		})
	}
	if config.Console {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: TimeFormat})
	}

	ctx := zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Caller()
	if config.Service != "" {
		ctx = ctx.Str("service", config.Service)
	}

	mu.Lock()
	prev := current
	current = s
	log.Logger = ctx.Logger()
	mu.Unlock()

	if prev != nil {
		prev.close()
	}
	go s.rotateDaily()
	return nil
}

// levelRouter 把事件写入对应等级的文件
// info 文件兜底未单独配置的等级，error 文件兜底未配置的 fatal/panic
type levelRouter struct {
	level      zerolog.Level
	configured map[zerolog.Level]bool
	out        io.Writer
}

func (w *levelRouter) Write(p []byte) (int, error) {
	return w.out.Write(p)
}

func (w *levelRouter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if w.accepts(level) {
		return w.out.Write(p)
	}
	return len(p), nil
}

func (w *levelRouter) accepts(level zerolog.Level) bool {
	if level == w.level {
		return true
	}
	if w.configured[level] {
		return false
	}
	switch w.level {
	case zerolog.InfoLevel:
		return true
	case zerolog.ErrorLevel:
		return level == zerolog.FatalLevel || level == zerolog.PanicLevel
	}
	return false
}

// rotateDaily 每天零点轮转所有文件
func (s *sink) rotateDaily() {
	timer := time.NewTimer(untilMidnight(time.Now()))
	defer timer.Stop()
	for {
		select {
		case <-s.stop:
			return
		case now := <-timer.C:
			for path, lj := range s.files {
				if err := lj.Rotate(); err != nil {
					log.Logger.Err(err).Str("file", path).Msg("rotate log file failed")
				}
			}
			timer.Reset(untilMidnight(now))
		}
	}
}

func (s *sink) close() {
	s.once.Do(func() {
		close(s.stop)
		for _, lj := range s.files {
			_ = lj.Close()
		}
	})
}

func untilMidnight(t time.Time) time.Duration {
	next := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()).AddDate(0, 0, 1)
	return next.Sub(t)
}

// L 返回全局 logger
func L() zerolog.Logger {
	return log.Logger
}

func Debug() *zerolog.Event {
	return log.Logger.Debug()
}

func Info() *zerolog.Event {
	return log.Logger.Info()
}

func Warn() *zerolog.Event {
	return log.Logger.Warn()
}

func Error() *zerolog.Event {
	return log.Logger.Error()
}

func Fatal() *zerolog.Event {
	return log.Logger.Fatal()
}

func Err(err error) *zerolog.Event {
	return log.Logger.Err(err)
}

// Close 停止轮转并关闭日志文件，可重复调用
func Close() {
	mu.Lock()
	s := current
	current = nil
	mu.Unlock()

	if s != nil {
		s.close()
	}
}
