package sigproc

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/utrading/utrading-trade-pnl/pkg/goplus"
)

type HandlerFunc func(os.Signal)

// DefaultTimeout 关闭流程的最长等待时间
const DefaultTimeout = 30 * time.Second

// GracefulShutdown 收到退出信号后执行 shutdown，完成或超时后退出进程
func GracefulShutdown(timeout time.Duration, shutdown HandlerFunc) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	goplus.Go(func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("received signal")

		done := make(chan struct{})
		goplus.Go(func() {
			defer close(done)
			shutdown(sig)
		})

		select {
		case <-done:
			os.Exit(0)
		case <-time.After(timeout):
			log.Warn().Dur("timeout", timeout).Msg("graceful shutdown timed out")
			os.Exit(1)
		}
	})
}
